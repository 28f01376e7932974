package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ModeType is the parameter arity class of a channel mode, as advertised by
// the CHANMODES ISUPPORT token.
type ModeType int

const (
	// AlwaysListed modes (type A) manage a list, such as ban masks.  They
	// always take a parameter.
	AlwaysListed ModeType = iota
	// AlwaysParameterized modes (type B) hold a single value, such as a
	// channel key.  They always take a parameter.
	AlwaysParameterized
	// ParameterOnSet modes (type C) only take a parameter when set, such
	// as a user limit.
	ParameterOnSet
	// NeverParameterized modes (type D) are simple flags.
	NeverParameterized
)

func (t ModeType) String() string {
	switch t {
	case AlwaysListed:
		return "A"
	case AlwaysParameterized:
		return "B"
	case ParameterOnSet:
		return "C"
	case NeverParameterized:
		return "D"
	}
	return fmt.Sprintf("ModeType(%d)", int(t))
}

// ModeTypeFromChanmodesIndex returns the mode type of the i-th comma separated
// group of CHANMODES.  Groups past the fourth are unspecified and reported as
// not ok.
func ModeTypeFromChanmodesIndex(i int) (t ModeType, ok bool) {
	if i < 0 || 3 < i {
		return
	}
	return ModeType(i), true
}

// Mode is a channel mode character.  Status modes (op, voice...) have a
// non-zero Prefix, the symbol shown in front of nicknames.
type Mode struct {
	Char   byte
	Type   ModeType
	Prefix byte
}

// IsStatus reports whether m is a per-user status mode.
func (m Mode) IsStatus() bool {
	return m.Prefix != 0
}

// NeedsParameter reports whether a change of m with the given action carries
// a parameter on the wire.
func (m Mode) NeedsParameter(action Action) bool {
	if m.IsStatus() {
		return true
	}
	switch m.Type {
	case AlwaysListed, AlwaysParameterized:
		return true
	case ParameterOnSet:
		return action == Add
	}
	return false
}

func (m Mode) String() string {
	return string(m.Char)
}

// DefaultChannelModes is the RFC 1459 channel mode table, used until the
// server advertises CHANMODES.
var DefaultChannelModes = []Mode{
	{Char: 'b', Type: AlwaysListed},
	{Char: 'k', Type: AlwaysParameterized},
	{Char: 'l', Type: ParameterOnSet},
	{Char: 'i', Type: NeverParameterized},
	{Char: 'm', Type: NeverParameterized},
	{Char: 'n', Type: NeverParameterized},
	{Char: 'p', Type: NeverParameterized},
	{Char: 's', Type: NeverParameterized},
	{Char: 't', Type: NeverParameterized},
}

// DefaultStatusModes is the RFC 1459 status mode table, "(ov)@+".
var DefaultStatusModes = []Mode{
	{Char: 'o', Type: AlwaysParameterized, Prefix: '@'},
	{Char: 'v', Type: AlwaysParameterized, Prefix: '+'},
}

// DefaultMaxModesPerLine is the number of parameterized mode changes sent on
// a single line when the server does not advertise MODES.
const DefaultMaxModesPerLine = 3

// Action is the direction of a mode change.
type Action bool

const (
	Add    Action = true
	Remove Action = false
)

func (a Action) sign() byte {
	if a == Add {
		return '+'
	}
	return '-'
}

func (a Action) String() string {
	return string(a.sign())
}

// ModeStatus is a single "+m param" or "-m" change.
type ModeStatus struct {
	Action Action
	Mode   Mode
	Param  string
}

func (ms ModeStatus) String() string {
	s := string([]byte{ms.Action.sign(), ms.Mode.Char})
	if ms.Mode.NeedsParameter(ms.Action) {
		s += " " + ms.Param
	}
	return s
}

// ModeLookup resolves a mode character received on the wire.
type ModeLookup func(c byte) (Mode, bool)

// ModeLookupFrom builds a lookup over the given mode tables.  Status modes
// should be given last so they take precedence over a channel mode using the
// same character.
func ModeLookupFrom(tables ...[]Mode) ModeLookup {
	modes := map[byte]Mode{}
	for _, table := range tables {
		for _, m := range table {
			modes[m.Char] = m
		}
	}
	return func(c byte) (m Mode, ok bool) {
		m, ok = modes[c]
		return
	}
}

var (
	ErrNoModeSign       = errors.New("mode string does not start with '+' or '-'")
	ErrUnknownMode      = errors.New("unknown mode character")
	ErrMissingParameter = errors.New("missing mode parameter")
)

// ModeParseError reports where a mode string could not be parsed.
type ModeParseError struct {
	Input string
	Char  byte // the offending mode character, if any.
	Err   error
}

func (e *ModeParseError) Error() string {
	if e.Char != 0 {
		return fmt.Sprintf("parse modes %q: %c: %v", e.Input, e.Char, e.Err)
	}
	return fmt.Sprintf("parse modes %q: %v", e.Input, e.Err)
}

func (e *ModeParseError) Unwrap() error {
	return e.Err
}

// ModeStatusList is an ordered sequence of mode changes.
type ModeStatusList []ModeStatus

// ParseModes parses a mode string and its parameters, as found in MODE
// messages or RPL_CHANNELMODEIS, e.g. "+o-b nick *!*@host".  Parameters are
// consumed in order by the changes that require one; any token left after
// that must be another mode word.
func ParseModes(s string, lookup ModeLookup) (list ModeStatusList, err error) {
	return ParseModeParams(strings.Fields(s), lookup)
}

// ParseModeParams is like ParseModes, with the mode string already split into
// words, as in the parameters of a MODE message.
func ParseModeParams(words []string, lookup ModeLookup) (list ModeStatusList, err error) {
	input := strings.Join(words, " ")
	next := 0
	for next < len(words) {
		word := words[next]
		next++
		if word == "" || (word[0] != '+' && word[0] != '-') {
			return nil, &ModeParseError{Input: input, Err: ErrNoModeSign}
		}

		action := Add
		for i := 0; i < len(word); i++ {
			c := word[i]
			switch c {
			case '+':
				action = Add
				continue
			case '-':
				action = Remove
				continue
			}

			m, ok := lookup(c)
			if !ok {
				return nil, &ModeParseError{Input: input, Char: c, Err: ErrUnknownMode}
			}

			ms := ModeStatus{Action: action, Mode: m}
			if m.NeedsParameter(action) {
				if len(words) <= next {
					return nil, &ModeParseError{Input: input, Char: c, Err: ErrMissingParameter}
				}
				ms.Param = words[next]
				next++
			}
			list = append(list, ms)
		}
	}
	return
}

// Lines serializes the list into one or more mode strings.  Consecutive
// changes with the same action share a sign, and a new line is started when a
// line would hold more than maxParams parameterized changes.  A maxParams of
// zero or less means DefaultMaxModesPerLine.
func (l ModeStatusList) Lines(maxParams int) (lines []string) {
	if maxParams <= 0 {
		maxParams = DefaultMaxModesPerLine
	}

	var (
		modes  strings.Builder
		params []string
		last   Action
		count  int
	)
	flush := func() {
		if modes.Len() == 0 {
			return
		}
		line := modes.String()
		if len(params) != 0 {
			line += " " + strings.Join(params, " ")
		}
		lines = append(lines, line)
		modes.Reset()
		params = params[:0]
		count = 0
	}

	for _, ms := range l {
		hasParam := ms.Mode.NeedsParameter(ms.Action)
		if hasParam && maxParams <= count {
			flush()
		}
		if modes.Len() == 0 || ms.Action != last {
			modes.WriteByte(ms.Action.sign())
			last = ms.Action
		}
		modes.WriteByte(ms.Mode.Char)
		if hasParam {
			params = append(params, ms.Param)
			count++
		}
	}
	flush()

	return
}

// String returns the list as a single, unchunked mode string.
func (l ModeStatusList) String() string {
	lines := l.Lines(len(l) + 1)
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

// Add appends a "+mode param" change.
func (l ModeStatusList) Add(m Mode, param string) ModeStatusList {
	return append(l, ModeStatus{Action: Add, Mode: m, Param: param})
}

// Remove appends a "-mode param" change.
func (l ModeStatusList) Remove(m Mode, param string) ModeStatusList {
	return append(l, ModeStatus{Action: Remove, Mode: m, Param: param})
}

// ModeInfo is an entry of a list mode (type A), such as a ban.
type ModeInfo struct {
	Mode    Mode
	Mask    string
	Creator string    // who set the entry, "" if unknown.
	Created time.Time // when the entry was set, zero if unknown.
}
