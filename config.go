package ircstate

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~emersion/go-scfg"
)

type Config struct {
	Addr     string
	Nick     string
	Real     string
	User     string
	Password *string
	NoTLS    bool

	// Channels are joined once registered.  In the file, names must be
	// quoted, as in `channels "#a,#b"`, since a word starting with '#' is a
	// comment.
	Channels []string
	// TrackModes are the list modes whose entries are tracked, e.g. "bI".
	TrackModes  string
	WhoInterval time.Duration

	// MetricsAddr, if set, is the address metrics are served on.
	MetricsAddr string
	Debug       bool
}

func Defaults() Config {
	return Config{
		WhoInterval: 5 * time.Second,
	}
}

func ParseConfig(r io.Reader) (cfg Config, err error) {
	block, err := scfg.Read(r)
	if err != nil {
		return
	}

	cfg = Defaults()
	for _, d := range block {
		if err = cfg.set(d); err != nil {
			return
		}
	}

	if cfg.Addr == "" {
		return cfg, fmt.Errorf("addr is required")
	}
	if cfg.Nick == "" {
		return cfg, fmt.Errorf("nick is required")
	}
	if cfg.User == "" {
		cfg.User = cfg.Nick
	}
	if cfg.Real == "" {
		cfg.Real = cfg.Nick
	}
	return
}

func LoadConfigFile(filename string) (cfg Config, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return
	}
	defer f.Close()

	cfg, err = ParseConfig(f)
	if err != nil {
		err = fmt.Errorf("%s: %w", filename, err)
	}
	return
}

func (cfg *Config) set(d *scfg.Directive) error {
	switch d.Name {
	case "addr", "nick", "user", "real", "password", "track-modes", "metrics-addr":
		value, err := single(d)
		if err != nil {
			return err
		}
		switch d.Name {
		case "addr":
			cfg.Addr = value
		case "nick":
			cfg.Nick = value
		case "user":
			cfg.User = value
		case "real":
			cfg.Real = value
		case "password":
			cfg.Password = &value
		case "track-modes":
			cfg.TrackModes = value
		case "metrics-addr":
			cfg.MetricsAddr = value
		}
	case "tls", "debug":
		value, err := single(d)
		if err != nil {
			return err
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("directive %q: %w", d.Name, err)
		}
		if d.Name == "tls" {
			cfg.NoTLS = !b
		} else {
			cfg.Debug = b
		}
	case "channels":
		if len(d.Params) == 0 {
			return fmt.Errorf("directive %q: expected at least one channel", d.Name)
		}
		for _, p := range d.Params {
			for _, channel := range strings.Split(p, ",") {
				if channel != "" {
					cfg.Channels = append(cfg.Channels, channel)
				}
			}
		}
	case "who-interval":
		value, err := single(d)
		if err != nil {
			return err
		}
		interval, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("directive %q: %w", d.Name, err)
		}
		if interval <= 0 {
			return fmt.Errorf("directive %q: must be positive", d.Name)
		}
		cfg.WhoInterval = interval
	default:
		return fmt.Errorf("unknown directive %q", d.Name)
	}
	return nil
}

func single(d *scfg.Directive) (string, error) {
	if len(d.Params) != 1 {
		return "", fmt.Errorf("directive %q: expected exactly one parameter, got %d", d.Name, len(d.Params))
	}
	return d.Params[0], nil
}
