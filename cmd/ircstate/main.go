package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"git.sr.ht/~taiite/ircstate"
	"git.sr.ht/~taiite/ircstate/irc"
)

const summaryInterval = time.Minute

func main() {
	var configPath string
	var debug bool
	flag.StringVar(&configPath, "config", "", "path to the configuration file")
	flag.BoolVar(&debug, "debug", false, "log raw protocol data")
	flag.Parse()

	_ = godotenv.Load()

	if configPath == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			panic(err)
		}
		configPath = path.Join(configDir, "ircstate", "ircstate.scfg")
	}

	cfg, err := ircstate.LoadConfigFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load the required configuration file at %q: %s\n", configPath, err)
		os.Exit(1)
	}
	if password, ok := os.LookupEnv("IRCSTATE_PASSWORD"); ok {
		cfg.Password = &password
	}
	cfg.Debug = cfg.Debug || debug

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var reg prometheus.Registerer
	if cfg.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		reg = registry
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			err := http.ListenAndServe(cfg.MetricsAddr, mux)
			logger.Error("metrics server stopped", "err", err)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := ircstate.NewClient(cfg, logger, reg)
	done := make(chan error, 1)
	go func() {
		done <- client.Run(ctx)
	}()

	printEvents(client.Events(), terminalWidth())

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("client stopped", "err", err)
		os.Exit(1)
	}
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// printEvents prints events until the channel is closed, along with a
// summary of the tracked channels every summaryInterval.
func printEvents(events <-chan ircstate.Event, width int) {
	ticker := time.NewTicker(summaryInterval)
	defer ticker.Stop()

	var session *irc.Session
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Content == nil {
				if session == ev.Session {
					fmt.Println("-- Connection lost")
					session = nil
				} else {
					session = ev.Session
				}
				continue
			}
			printEvent(ev.Content, width)
		case <-ticker.C:
			if session == nil {
				continue
			}
			for _, c := range session.Tracker().Channels() {
				ircstate.WriteChannel(os.Stdout, c, width)
			}
		}
	}
}

func printEvent(ev irc.Event, width int) {
	switch ev := ev.(type) {
	case irc.RawMessageEvent:
		fmt.Printf("C <  S: %s\n", ev.Message)
	case irc.RegisteredEvent:
		fmt.Println("-- Registered")
	case irc.SelfNickEvent:
		fmt.Printf("-- You are no longer known as %s\n", ev.FormerNick)
	case irc.UserNickEvent:
		fmt.Printf("-- %s is now known as %s\n", ev.FormerNick, ev.User.Nick())
	case irc.SelfJoinEvent:
		ircstate.WriteChannel(os.Stdout, ev.Channel, width)
		ircstate.WriteMembers(os.Stdout, ev.Channel, width)
	case irc.UserJoinEvent:
		fmt.Printf("--> %s joined %s\n", ev.User.Name(), ev.Channel.Name())
	case irc.SelfPartEvent:
		fmt.Printf("<-- You left %s\n", ev.Channel)
	case irc.UserPartEvent:
		fmt.Printf("<-- %s left %s\n", ev.User.Name(), ev.Channel)
	case irc.UserQuitEvent:
		fmt.Printf("<-- %s quit\n", ev.User.Name())
	case irc.UserUpdateEvent:
		fmt.Printf("-- %s updated\n", ev.User.Name())
	case irc.ModeChangeEvent:
		fmt.Printf("-- %s set %s on %s\n", ev.Source.Name(), ev.Changes, ev.Channel.Name())
	case irc.TopicChangeEvent:
		fmt.Printf("-- %s changed the topic of %s to %q\n", ev.Source.Name(), ev.Channel.Name(), ev.Channel.Topic().Value)
	case irc.ModeListEvent:
		entries, _ := ev.Channel.ModeInfo(ev.Mode.Char)
		fmt.Printf("-- %s has %d +%c entries\n", ev.Channel.Name(), len(entries), ev.Mode.Char)
	case irc.ErrorEvent:
		fmt.Printf("!! %s: %s\n", ev.Code, ev.Message)
	}
}
