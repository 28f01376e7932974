package ircstate

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"git.sr.ht/~taiite/ircstate/irc"
	"git.sr.ht/~taiite/ircstate/state"
)

type command struct {
	MinArgs int
	MaxArgs int
	Usage   string
	Desc    string
	Handle  func(con *Console, args []string) error
}

type commandSet map[string]*command

var commands commandSet

func init() {
	commands = commandSet{
		"HELP": {
			MaxArgs: 1,
			Usage:   "[command]",
			Desc:    "show the list of commands, or how to use the given one",
			Handle:  commandDoHelp,
		},
		"CHANNELS": {
			Desc:   "show the tracked channels",
			Handle: commandDoChannels,
		},
		"JOIN": {
			MinArgs: 1,
			MaxArgs: 2,
			Usage:   "<channels> [keys]",
			Desc:    "join a channel",
			Handle:  commandDoJoin,
		},
		"LIST": {
			MinArgs: 2,
			MaxArgs: 2,
			Usage:   "<channel> <mode>",
			Desc:    "show the entries of a tracked list mode, such as bans",
			Handle:  commandDoList,
		},
		"MODE": {
			MinArgs: 1,
			MaxArgs: 2,
			Usage:   "<channel> <flags> [args]",
			Desc:    "show the modes of a channel, or change them",
			Handle:  commandDoMode,
		},
		"NAMES": {
			MinArgs: 1,
			MaxArgs: 1,
			Usage:   "<channel>",
			Desc:    "show the member list of a channel",
			Handle:  commandDoNames,
		},
		"PART": {
			MinArgs: 1,
			MaxArgs: 2,
			Usage:   "<channel> [reason]",
			Desc:    "part a channel",
			Handle:  commandDoPart,
		},
		"QUIT": {
			MaxArgs: 1,
			Usage:   "[reason]",
			Desc:    "quit",
			Handle:  commandDoQuit,
		},
		"QUOTE": {
			MinArgs: 1,
			MaxArgs: 1,
			Usage:   "<raw message>",
			Desc:    "send raw protocol data",
			Handle:  commandDoQuote,
		},
		"TOPIC": {
			MinArgs: 1,
			MaxArgs: 1,
			Usage:   "<channel>",
			Desc:    "show the topic of a channel",
			Handle:  commandDoTopic,
		},
		"WHOIS": {
			MinArgs: 1,
			MaxArgs: 1,
			Usage:   "<nick>",
			Desc:    "show what is known about a user",
			Handle:  commandDoWhois,
		},
	}
}

// Console runs the commands of a debugging console against a session.
// Lines that are not commands are sent to the server as is.
type Console struct {
	s     *irc.Session
	out   io.Writer
	width int
	exit  bool
}

// NewConsole returns a console writing to out, wrapping lists to width
// columns.
func NewConsole(s *irc.Session, out io.Writer, width int) *Console {
	return &Console{s: s, out: out, width: width}
}

// ShouldExit reports whether the QUIT command was run.
func (con *Console) ShouldExit() bool {
	return con.exit
}

func (con *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(con.out, format, args...)
}

func commandDoHelp(con *Console, args []string) (err error) {
	var names []string
	for cmdName := range commands {
		if len(args) == 0 || strings.Contains(cmdName, strings.ToUpper(args[0])) {
			names = append(names, cmdName)
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("no command matches %q", args[0])
	}
	sort.Strings(names)

	if len(args) == 0 {
		con.printf("Available commands:\n")
	} else {
		con.printf("Commands that match %q:\n", strings.ToUpper(args[0]))
	}
	for _, cmdName := range names {
		cmd := commands[cmdName]
		con.printf("  %s %s\n", cmdName, cmd.Usage)
		con.printf("    %s\n", cmd.Desc)
	}
	return
}

func commandDoChannels(con *Console, args []string) (err error) {
	channels := con.s.Tracker().Channels()
	if len(channels) == 0 {
		con.printf("No tracked channel\n")
		return
	}
	for _, c := range channels {
		if err = WriteChannel(con.out, c, con.width); err != nil {
			return
		}
	}
	return
}

func commandDoJoin(con *Console, args []string) (err error) {
	key := ""
	if len(args) == 2 {
		key = args[1]
	}
	con.s.Join(args[0], key)
	return
}

// channel returns the snapshot of a tracked channel.
func (con *Console) channel(name string) (*state.Channel, error) {
	c, ok := con.s.Tracker().Channel(name)
	if !ok {
		return nil, fmt.Errorf("%s is not tracked", name)
	}
	return c, nil
}

func commandDoList(con *Console, args []string) (err error) {
	c, err := con.channel(args[0])
	if err != nil {
		return
	}
	if len(args[1]) != 1 {
		return fmt.Errorf("expected a single mode character, got %q", args[1])
	}
	entries, ok := c.ModeInfo(args[1][0])
	if !ok {
		return fmt.Errorf("mode %s of %s is not tracked", args[1], c.Name())
	}
	if len(entries) == 0 {
		con.printf("No entry\n")
		return
	}
	for _, e := range entries {
		if e.Creator == "" {
			con.printf("%s\n", e.Mask)
			continue
		}
		con.printf("%s  (by %s, %s)\n", e.Mask, e.Creator, e.Created.Local().Format(time.DateTime))
	}
	return
}

func commandDoMode(con *Console, args []string) (err error) {
	c, err := con.channel(args[0])
	if err != nil {
		return
	}
	if len(args) == 1 {
		con.printf("%s\n", c.Modes())
		return
	}
	changes, err := state.ParseModeParams(strings.Fields(args[1]), con.s.Tracker().ModeLookup())
	if err != nil {
		return
	}
	con.s.ChangeMode(c.Name(), changes)
	return
}

func commandDoNames(con *Console, args []string) (err error) {
	c, err := con.channel(args[0])
	if err != nil {
		return
	}
	if !c.HasCompleteList() {
		con.printf("(member list incomplete)\n")
	}
	return WriteMembers(con.out, c, con.width)
}

func commandDoPart(con *Console, args []string) (err error) {
	reason := ""
	if len(args) == 2 {
		reason = args[1]
	}
	con.s.Part(args[0], reason)
	return
}

func commandDoQuit(con *Console, args []string) (err error) {
	reason := ""
	if 0 < len(args) {
		reason = args[0]
	}
	con.s.Quit(reason)
	con.exit = true
	return
}

func commandDoQuote(con *Console, args []string) (err error) {
	con.s.SendRaw(args[0])
	return
}

func commandDoTopic(con *Console, args []string) (err error) {
	c, err := con.channel(args[0])
	if err != nil {
		return
	}
	topic := c.Topic()
	switch {
	case !topic.Known:
		con.printf("Topic: unknown\n")
	case topic.Setter == "":
		con.printf("Topic: %s\n", topic.Value)
	default:
		con.printf("Topic (by %s, %s): %s\n", topic.Setter, topic.Time.Local().Format("Mon Jan 2 15:04:05"), topic.Value)
	}
	return
}

func commandDoWhois(con *Console, args []string) (err error) {
	u, ok := con.s.Tracker().User(args[0])
	if !ok {
		return fmt.Errorf("%s is not tracked", args[0])
	}
	if err = WriteUser(con.out, u); err != nil {
		return
	}
	if channels := con.s.Tracker().ChannelsOf(u.Nick()); len(channels) != 0 {
		con.printf("Channels:  %s\n", strings.Join(channels, " "))
	}
	return
}

// implemented from https://golang.org/src/strings/strings.go?s=8055:8085#L310
func fieldsN(s string, n int) []string {
	s = strings.TrimSpace(s)
	if s == "" || n == 0 {
		return nil
	}
	if n == 1 {
		return []string{s}
	}
	n--
	var a []string
	na := 0
	i := 0
	fieldStart := 0
	for i < len(s) {
		if s[i] != ' ' {
			i++
			continue
		}
		a = append(a, s[fieldStart:i])
		na++
		i++
		// Skip spaces in between fields.
		for i < len(s) && s[i] == ' ' {
			i++
		}
		fieldStart = i
		if n <= na {
			a = append(a, s[fieldStart:])
			return a
		}
	}
	if fieldStart < len(s) {
		// Last field ends at EOF.
		a = append(a, s[fieldStart:])
	}
	return a
}

func parseCommand(s string) (command, args string, isCommand bool) {
	if s[0] != '/' {
		return "", s, false
	}
	if len(s) > 1 && s[1] == '/' {
		// Input starts with two slashes.
		return "", s[1:], false
	}

	i := strings.IndexByte(s, ' ')
	if i < 0 {
		i = len(s)
	}

	isCommand = true
	command = strings.ToUpper(s[1:i])
	args = strings.TrimLeft(s[i:], " ")
	return
}

// HandleInput runs a line typed in the console.
func (con *Console) HandleInput(content string) error {
	if content == "" {
		return nil
	}

	cmdName, rawArgs, isCommand := parseCommand(content)
	if !isCommand {
		con.s.SendRaw(rawArgs)
		return nil
	}
	if cmdName == "" {
		return fmt.Errorf("lone slash at the begining")
	}

	chosenCMDName := cmdName
	_, found := commands[cmdName]
	for key := range commands {
		if found {
			break
		}
		if !strings.HasPrefix(key, cmdName) {
			continue
		}
		if chosenCMDName != cmdName {
			return fmt.Errorf("ambiguous command %q (could mean %v or %v)", cmdName, chosenCMDName, key)
		}
		chosenCMDName = key
	}
	if !found && chosenCMDName == cmdName {
		return fmt.Errorf("command %q doesn't exist", cmdName)
	}

	cmd := commands[chosenCMDName]

	var args []string
	if rawArgs != "" && cmd.MaxArgs != 0 {
		args = fieldsN(rawArgs, cmd.MaxArgs)
	}

	if len(args) < cmd.MinArgs {
		return fmt.Errorf("usage: %s %s", chosenCMDName, cmd.Usage)
	}

	return cmd.Handle(con, args)
}
