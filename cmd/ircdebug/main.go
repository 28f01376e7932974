package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"git.sr.ht/~taiite/ircstate"
	"git.sr.ht/~taiite/ircstate/irc"
)

var (
	configPath string
	address    string
	nick       string
	password   string
	trackModes string
	useTLS     bool
)

func main() {
	parseFlags()

	oldState, err := term.MakeRaw(0)
	if err != nil {
		panic(err)
	}
	defer term.Restore(0, oldState)

	width, _, err := term.GetSize(0)
	if err != nil {
		width = 80
	}

	screen := struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}
	t := term.NewTerminal(screen, "> ")

	fmt.Fprintf(t, "Connecting to %s...\n", address)

	var conn net.Conn
	if useTLS {
		conn, err = tls.Dial("tcp", address, nil)
	} else {
		conn, err = net.Dial("tcp", address)
	}
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to %s: %v\n", address, err))
	}

	fmt.Fprintf(t, "Connected. Registration in progress...\n")

	logger := slog.New(slog.NewTextHandler(t, &slog.HandlerOptions{Level: slog.LevelDebug}))
	in, out := irc.ChanInOut(conn, logger)
	out.OnSend = func(line string) {
		fmt.Fprintf(t, "C  > S: %s\n", line)
	}
	session, err := irc.NewSession(out, irc.SessionParams{
		Nickname:  nick,
		Password:  password,
		ListModes: trackModes,
		Logger:    logger,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to %s: %v", address, err))
	}
	defer session.Close()

	console := ircstate.NewConsole(session, t, width)
	go func() {
		for !console.ShouldExit() {
			line, err := t.ReadLine()
			if err != nil {
				break
			}
			if err := console.HandleInput(line); err != nil {
				fmt.Fprintf(t, "!! %v\n", err)
			}
		}
		out.Close()
	}()

	for msg := range in {
		fmt.Fprintf(t, "C <  S: %s\n", msg.String())
		ev, err := session.HandleMessage(msg)
		if err != nil {
			fmt.Fprintf(t, "!! %v\n", err)
			continue
		}
		if ev != nil {
			fmt.Fprintf(t, "=EVENT: %T%+v\n", ev, ev)
		}
	}
	t.SetPrompt("")
	fmt.Fprintln(t, "Disconnected")
}

func parseFlags() {
	flag.StringVar(&configPath, "config", "", "path to the configuration file")
	flag.StringVar(&address, "address", "", "server address")
	flag.StringVar(&nick, "nick", "ircdebug", "IRC nick/user to use")
	flag.StringVar(&trackModes, "track-modes", "b", "list modes to track the entries of")
	flag.BoolVar(&useTLS, "tls", false, "use tls")
	flag.Parse()

	_ = godotenv.Load()
	password = os.Getenv("IRCSTATE_PASSWORD")

	if address == "" {
		if configPath == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				panic(err)
			}
			configPath = path.Join(configDir, "ircstate", "ircstate.scfg")
		}

		cfg, err := ircstate.LoadConfigFile(configPath)
		if err != nil {
			panic(err)
		}

		address = cfg.Addr
		nick = cfg.Nick
		if cfg.Password != nil && password == "" {
			password = *cfg.Password
		}
		if cfg.TrackModes != "" {
			trackModes = cfg.TrackModes
		}
		useTLS = !cfg.NoTLS
	}
}
