package irc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"git.sr.ht/~taiite/ircstate/state"
)

const (
	defaultChantypes = "#&"
	defaultLinelen   = 512
)

// Features holds the ISUPPORT tokens advertised by the server, and answers
// the questions the state tracker asks about the server.  It is safe for
// concurrent use.
type Features struct {
	l sync.RWMutex

	raw map[string]string // advertised tokens and their value.

	casemapName string
	casemap     func(string) string
	chantypes   string
	chanModes   []state.Mode
	statusModes []state.Mode
	maxModes    int
	whox        bool
	linelen     int
	network     string
}

// NewFeatures returns the features of a server that advertised nothing yet,
// following RFC 1459.
func NewFeatures() *Features {
	f := &Features{raw: map[string]string{}}
	for _, key := range []string{"CASEMAPPING", "CHANTYPES", "CHANMODES", "PREFIX", "MODES", "WHOX", "LINELEN", "NETWORK"} {
		f.reset(key)
	}
	return f
}

// reset restores the default value of a token.  f.l must be held, or f not
// shared yet.
func (f *Features) reset(key string) {
	switch key {
	case "CASEMAPPING":
		f.casemapName = "rfc1459"
		f.casemap = CasemapRFC1459
	case "CHANTYPES":
		f.chantypes = defaultChantypes
	case "CHANMODES":
		f.chanModes = state.DefaultChannelModes
	case "PREFIX":
		f.statusModes = state.DefaultStatusModes
	case "MODES":
		f.maxModes = state.DefaultMaxModesPerLine
	case "WHOX":
		f.whox = false
	case "LINELEN":
		f.linelen = defaultLinelen
	case "NETWORK":
		f.network = ""
	}
}

// Update applies the tokens of an RPL_ISUPPORT message.  It reports whether
// the casemapping changed, in which case every casemapped key must be
// recomputed.  Malformed tokens are skipped and reported in err; the other
// tokens are still applied.
func (f *Features) Update(tokens []string) (casemapChanged bool, err error) {
	f.l.Lock()
	defer f.l.Unlock()

	former := f.casemapName
	var errs []error

	for _, token := range tokens {
		if token == "" || token == "-" || token == "=" || token == "-=" {
			continue
		}

		if strings.HasPrefix(token, "-") {
			key := strings.ToUpper(token[1:])
			delete(f.raw, key)
			f.reset(key)
			continue
		}

		kv := strings.SplitN(token, "=", 2)
		key := strings.ToUpper(kv[0])
		var value string
		if len(kv) > 1 {
			value = kv[1]
		}

		if err := f.set(key, value); err != nil {
			errs = append(errs, err)
			continue
		}
		f.raw[key] = value
	}

	return f.casemapName != former, errors.Join(errs...)
}

func (f *Features) set(key, value string) error {
	switch key {
	case "CASEMAPPING":
		casemap, ok := casemappings[value]
		if !ok {
			return fmt.Errorf("unsupported ISUPPORT CASEMAPPING value: %q", value)
		}
		f.casemapName = value
		f.casemap = casemap
	case "CHANTYPES":
		f.chantypes = value
	case "CHANMODES":
		modes, err := parseChanmodes(value)
		if err != nil {
			return err
		}
		f.chanModes = modes
	case "PREFIX":
		modes, err := parsePrefix(value)
		if err != nil {
			return err
		}
		f.statusModes = modes
	case "MODES":
		if value == "" {
			// No limit.
			f.maxModes = 0
			break
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("malformed ISUPPORT MODES value: %q", value)
		}
		f.maxModes = n
	case "WHOX":
		f.whox = true
	case "LINELEN":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("malformed ISUPPORT LINELEN value: %q", value)
		}
		f.linelen = n
	case "NETWORK":
		f.network = value
	}
	return nil
}

// parseChanmodes parses CHANMODES, e.g. "beI,k,l,imnpst".  Groups past the
// fourth are ignored.
func parseChanmodes(value string) (modes []state.Mode, err error) {
	groups := strings.Split(value, ",")
	if len(groups) < 4 {
		return nil, fmt.Errorf("malformed ISUPPORT CHANMODES value: %q", value)
	}
	for i, group := range groups {
		t, ok := state.ModeTypeFromChanmodesIndex(i)
		if !ok {
			break
		}
		for j := 0; j < len(group); j++ {
			modes = append(modes, state.Mode{Char: group[j], Type: t})
		}
	}
	return modes, nil
}

// parsePrefix parses PREFIX, e.g. "(qaohv)~&@%+".
func parsePrefix(value string) (modes []state.Mode, err error) {
	if value == "" {
		return nil, nil
	}
	if value[0] != '(' {
		return nil, fmt.Errorf("malformed ISUPPORT PREFIX value: %q", value)
	}
	sep := strings.IndexByte(value, ')')
	if sep < 0 || len(value) != sep*2 {
		return nil, fmt.Errorf("malformed ISUPPORT PREFIX value: %q", value)
	}
	modes = make([]state.Mode, sep-1)
	for i := range modes {
		modes[i] = state.Mode{
			Char:   value[i+1],
			Type:   state.AlwaysParameterized,
			Prefix: value[sep+i+1],
		}
	}
	return modes, nil
}

// Get returns the raw value of an advertised token.
func (f *Features) Get(key string) (value string, ok bool) {
	f.l.RLock()
	defer f.l.RUnlock()
	value, ok = f.raw[strings.ToUpper(key)]
	return
}

func (f *Features) Casemap(name string) string {
	f.l.RLock()
	casemap := f.casemap
	f.l.RUnlock()
	return casemap(name)
}

// CasemapFunc returns the casemapping function currently in use.
func (f *Features) CasemapFunc() func(string) string {
	f.l.RLock()
	defer f.l.RUnlock()
	return f.casemap
}

// CasemapName returns the advertised CASEMAPPING value.
func (f *Features) CasemapName() string {
	f.l.RLock()
	defer f.l.RUnlock()
	return f.casemapName
}

func (f *Features) IsChannel(name string) bool {
	f.l.RLock()
	defer f.l.RUnlock()
	return name != "" && strings.IndexByte(f.chantypes, name[0]) >= 0
}

func (f *Features) ChannelTypes() string {
	f.l.RLock()
	defer f.l.RUnlock()
	return f.chantypes
}

// StatusModes returns the PREFIX modes, highest first.
func (f *Features) StatusModes() []state.Mode {
	f.l.RLock()
	defer f.l.RUnlock()
	return f.statusModes
}

// ChannelModes returns the CHANMODES modes.
func (f *Features) ChannelModes() []state.Mode {
	f.l.RLock()
	defer f.l.RUnlock()
	return f.chanModes
}

// MaxModesPerLine returns the MODES limit.  Servers advertising no limit
// get one line per 12 changes.
func (f *Features) MaxModesPerLine() int {
	f.l.RLock()
	defer f.l.RUnlock()
	if f.maxModes == 0 {
		return 12
	}
	return f.maxModes
}

func (f *Features) HasWhoX() bool {
	f.l.RLock()
	defer f.l.RUnlock()
	return f.whox
}

// LineLen returns the maximum length of a line, including the CRLF.
func (f *Features) LineLen() int {
	f.l.RLock()
	defer f.l.RUnlock()
	return f.linelen
}

// Network returns the advertised name of the network.
func (f *Features) Network() string {
	f.l.RLock()
	defer f.l.RUnlock()
	return f.network
}

var _ state.ServerInfo = (*Features)(nil)
