package irc

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.sr.ht/~taiite/ircstate/state"
)

// SupportedCapabilities is the set of capabilities supported by this library.
var SupportedCapabilities = map[string]struct{}{
	"account-notify":    {},
	"away-notify":       {},
	"cap-notify":        {},
	"chghost":           {},
	"extended-join":     {},
	"multi-prefix":      {},
	"server-time":       {},
	"setname":           {},
	"userhost-in-names": {},
}

// SessionParams defines how to connect to an IRC server.
type SessionParams struct {
	Nickname string
	Username string
	RealName string
	Password string // server password, sent with PASS if not empty.

	// ListModes are the list modes whose entries are tracked in joined
	// channels, e.g. "bI" for bans and invite exceptions.
	ListModes string

	Logger     *slog.Logger
	Registerer prometheus.Registerer

	// TrackerOptions are passed to the state tracker, after the logger and
	// registerer.
	TrackerOptions []state.Option
}

type listKey struct {
	channel string // casemapped.
	mode    byte
}

// Session processes the messages of an IRC connection and keeps its state
// tracker up to date.
//
// HandleMessage must be called from a single goroutine.  The tracker, the
// features and the sending methods can be used from any goroutine.
type Session struct {
	out      *Outbox
	features *Features
	tracker  *state.Tracker
	logger   *slog.Logger

	registered bool
	nick       string
	user       string
	real       string
	listModes  string

	availableCaps map[string]string
	enabledCaps   map[string]struct{}

	joining map[string]struct{}          // casemapped channels waiting for RPL_ENDOFNAMES.
	lists   map[listKey][]state.ModeInfo // list mode replies being received.

	handled   *prometheus.CounterVec
	malformed prometheus.Counter
}

// NewSession starts registration on the given outbox.
//
// It returns an error when the parameters are invalid.
func NewSession(out *Outbox, params SessionParams) (*Session, error) {
	if params.Nickname == "" {
		return nil, errors.New("no nickname specified")
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	features := NewFeatures()
	opts := []state.Option{
		state.WithLogger(logger),
		state.WithRegisterer(params.Registerer),
	}
	opts = append(opts, params.TrackerOptions...)

	s := &Session{
		out:           out,
		features:      features,
		tracker:       state.NewTracker(features, out, opts...),
		logger:        logger,
		nick:          params.Nickname,
		user:          params.Username,
		real:          params.RealName,
		listModes:     params.ListModes,
		availableCaps: map[string]string{},
		enabledCaps:   map[string]struct{}{},
		joining:       map[string]struct{}{},
		lists:         map[listKey][]state.ModeInfo{},
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ircstate",
			Name:      "messages_handled_total",
			Help:      "Messages received from the server and handled, by command.",
		}, []string{"command"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ircstate",
			Name:      "messages_malformed_total",
			Help:      "Messages received from the server and ignored because they were malformed.",
		}),
	}
	if s.user == "" {
		s.user = s.nick
	}
	if s.real == "" {
		s.real = s.nick
	}
	if params.Registerer != nil {
		s.handled = register(params.Registerer, s.handled)
		s.malformed = register(params.Registerer, s.malformed)
	}

	if params.Password != "" {
		s.out.Send(NewMessage("PASS", params.Password))
	}
	s.out.Send(NewMessage("CAP", "LS", "302"))
	s.out.Send(NewMessage("NICK", s.nick))
	s.out.Send(NewMessage("USER", s.user, "0", "*", s.real))

	return s, nil
}

// register registers c on reg, or returns the collector registered by a
// previous session.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Close stops sending messages and forgets the state of the connection.
// Snapshots obtained before are all stale afterwards.
func (s *Session) Close() {
	s.out.Close()
	s.tracker.Reset()
}

func (s *Session) Tracker() *state.Tracker {
	return s.tracker
}

func (s *Session) Features() *Features {
	return s.features
}

// Registered reports whether the server accepted our registration.
func (s *Session) Registered() bool {
	return s.registered
}

// HasCapability reports whether the given capability has been negotiated
// successfully.
func (s *Session) HasCapability(capability string) bool {
	_, ok := s.enabledCaps[capability]
	return ok
}

// Nick returns our nickname, as requested until registration succeeds.
func (s *Session) Nick() string {
	if nick := s.tracker.Nick(); nick != "" {
		return nick
	}
	return s.nick
}

func (s *Session) SendRaw(raw string) {
	msg, err := ParseMessage(raw)
	if err != nil {
		return
	}
	s.out.Send(msg)
}

func (s *Session) Join(channel, key string) {
	if key == "" {
		s.out.Send(NewMessage("JOIN", channel))
	} else {
		s.out.Send(NewMessage("JOIN", channel, key))
	}
}

func (s *Session) Part(channel, reason string) {
	s.out.Send(NewMessage("PART", channel, reason))
}

func (s *Session) Quit(reason string) {
	s.out.Send(NewMessage("QUIT", reason))
}

func (s *Session) Who(target string) {
	if s.features.HasWhoX() {
		s.out.Send(NewMessage("WHO", target, "%cuhsnfar"))
	} else {
		s.out.Send(NewMessage("WHO", target))
	}
}

// ChangeMode sends mode changes for channel, on as many lines as the server
// requires.
func (s *Session) ChangeMode(channel string, changes state.ModeStatusList) {
	for _, line := range s.tracker.ModeLines(channel, changes) {
		s.out.SendUnique(line)
	}
}

// handler handles a message once it has been checked to hold at least params
// parameters, and a prefix if prefix is set.
type handler struct {
	params int
	prefix bool
	fn     func(s *Session, msg Message) (Event, error)
}

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		rplWelcome:          {1, false, (*Session).handleWelcome},
		rplIsupport:         {3, false, (*Session).handleIsupport},
		rplChannelmodeis:    {3, false, (*Session).handleChannelModeIs},
		rplNotopic:          {2, false, (*Session).handleNoTopic},
		rplTopic:            {3, false, (*Session).handleTopicReply},
		rplTopicwhotime:     {4, false, (*Session).handleTopicWhoTime},
		rplWhoreply:         {8, false, (*Session).handleWhoReply},
		rplWhospcrpl:        {9, false, (*Session).handleWhoxReply},
		rplEndofwho:         {2, false, (*Session).handleEndOfWho},
		rplNamreply:         {4, false, (*Session).handleNamReply},
		rplEndofnames:       {2, false, (*Session).handleEndOfNames},
		rplBanlist:          {3, false, (*Session).handleListEntry},
		rplInvitelist:       {3, false, (*Session).handleListEntry},
		rplExceptlist:       {3, false, (*Session).handleListEntry},
		rplEndofbanlist:     {2, false, (*Session).handleListEnd},
		rplEndofinvitelist:  {2, false, (*Session).handleListEnd},
		rplEndofexceptlist:  {2, false, (*Session).handleListEnd},
		errNicknameinuse:    {2, false, (*Session).handleNickUnavailable},
		errErroneusnickname: {2, false, (*Session).handleNickUnavailable},
		"CAP":               {2, false, (*Session).handleCap},
		"PING":              {1, false, (*Session).handlePing},
		"ERROR":             {0, false, (*Session).handleError},
		"JOIN":              {1, true, (*Session).handleJoin},
		"PART":              {1, true, (*Session).handlePart},
		"KICK":              {2, false, (*Session).handleKick},
		"QUIT":              {0, true, (*Session).handleQuit},
		"NICK":              {1, true, (*Session).handleNick},
		"MODE":              {2, false, (*Session).handleMode},
		"TOPIC":             {2, false, (*Session).handleTopic},
		"AWAY":              {0, true, (*Session).handleAway},
		"ACCOUNT":           {1, true, (*Session).handleAccount},
		"CHGHOST":           {2, true, (*Session).handleChghost},
		"SETNAME":           {1, true, (*Session).handleSetname},
	}
}

// HandleMessage updates the state with msg, and returns the event it
// produced if any.  Malformed messages are reported as errors and leave the
// state untouched.
func (s *Session) HandleMessage(msg Message) (Event, error) {
	h, ok := handlers[msg.Command]
	if !ok {
		if msg.IsReply() && (msg.Command[0] == '4' || msg.Command[0] == '5') {
			return ErrorEvent{
				Code:    msg.Command,
				Message: strings.Join(msg.Params[min(1, len(msg.Params)):], " "),
			}, nil
		}
		return nil, nil
	}

	var (
		ev  Event
		err error
	)
	if len(msg.Params) < h.params {
		err = msg.errNotEnoughParams(h.params)
	} else if h.prefix && msg.Prefix == nil {
		err = fmt.Errorf("%s: %w", msg.Command, errNoPrefix)
	} else {
		ev, err = h.fn(s, msg)
	}
	if err != nil {
		s.malformed.Inc()
		return nil, err
	}
	s.handled.WithLabelValues(msg.Command).Inc()
	return ev, nil
}

// Handle is like HandleMessage, but logs malformed messages instead of
// returning an error.
func (s *Session) Handle(msg Message) Event {
	ev, err := s.HandleMessage(msg)
	if err != nil {
		s.logger.Debug("ignoring message", "command", msg.Command, "err", err)
	}
	return ev
}

func (s *Session) handleWelcome(msg Message) (Event, error) {
	var nick string
	if err := msg.ParseParams(&nick); err != nil {
		return nil, err
	}

	s.registered = true
	s.tracker.SetNick(nick)
	s.Who(nick)
	return RegisteredEvent{}, nil
}

func (s *Session) handleIsupport(msg Message) (Event, error) {
	changed, err := s.features.Update(msg.Params[1 : len(msg.Params)-1])
	if changed {
		s.tracker.Refold()
	}
	return nil, err
}

func (s *Session) handleNickUnavailable(msg Message) (Event, error) {
	if s.registered {
		return ErrorEvent{Code: msg.Command, Message: strings.Join(msg.Params[1:], " ")}, nil
	}
	s.nick = msg.Params[1] + "_"
	s.out.Send(NewMessage("NICK", s.nick))
	return nil, nil
}

func (s *Session) handleCap(msg Message) (Event, error) {
	switch msg.Params[1] {
	case "LS":
		var willContinue bool
		var ls string

		if len(msg.Params) > 3 && msg.Params[2] == "*" {
			willContinue = true
			ls = msg.Params[3]
		} else if len(msg.Params) > 2 {
			ls = msg.Params[2]
		}

		for _, c := range ParseCaps(ls) {
			s.availableCaps[c.Name] = c.Value
		}

		if !willContinue {
			s.requestCaps(s.availableCaps)
			if !s.registered {
				s.out.Send(NewMessage("CAP", "END"))
			}
		}
	case "ACK":
		if len(msg.Params) < 3 {
			return nil, msg.errNotEnoughParams(3)
		}
		for _, c := range ParseCaps(msg.Params[2]) {
			if c.Enable {
				s.enabledCaps[c.Name] = struct{}{}
			} else {
				delete(s.enabledCaps, c.Name)
			}
		}
	case "NEW":
		if len(msg.Params) < 3 {
			return nil, msg.errNotEnoughParams(3)
		}
		caps := map[string]string{}
		for _, c := range ParseCaps(msg.Params[2]) {
			s.availableCaps[c.Name] = c.Value
			caps[c.Name] = c.Value
		}
		s.requestCaps(caps)
	case "DEL":
		if len(msg.Params) < 3 {
			return nil, msg.errNotEnoughParams(3)
		}
		for _, c := range ParseCaps(msg.Params[2]) {
			delete(s.availableCaps, c.Name)
			delete(s.enabledCaps, c.Name)
		}
	case "NAK":
		// do nothing
	}
	return nil, nil
}

func (s *Session) requestCaps(available map[string]string) {
	var req []string
	for c := range available {
		if _, ok := SupportedCapabilities[c]; !ok {
			continue
		}
		if _, ok := s.enabledCaps[c]; ok {
			continue
		}
		req = append(req, c)
	}
	if len(req) == 0 {
		return
	}
	sort.Strings(req)
	s.out.Send(NewMessage("CAP", "REQ", strings.Join(req, " ")))
}

func (s *Session) handlePing(msg Message) (Event, error) {
	s.out.Send(NewMessage("PONG", msg.Params[0]))
	return nil, nil
}

func (s *Session) handleError(msg Message) (Event, error) {
	return ErrorEvent{Code: "ERROR", Message: strings.Join(msg.Params, " ")}, nil
}

func (s *Session) handleJoin(msg Message) (Event, error) {
	channel := msg.Params[0]
	nick := msg.Prefix.Name

	me := s.tracker.IsMe(nick)
	if me {
		s.tracker.TrackChannel(channel)
		s.joining[s.features.Casemap(channel)] = struct{}{}
		s.tracker.TrackUser(msg.Prefix.String())
		s.out.Send(NewMessage("MODE", channel))
	}
	s.tracker.TrackChannelUser(channel, msg.Prefix.String(), nil)

	if s.HasCapability("extended-join") && len(msg.Params) >= 3 {
		s.tracker.SetUserAccount(nick, msg.Params[1])
		s.tracker.SetUserRealName(nick, msg.Params[2])
	}

	if me {
		return nil, nil
	}
	u, ok := s.tracker.User(nick)
	if !ok {
		return nil, nil
	}
	c, ok := s.tracker.Channel(channel)
	if !ok {
		return nil, nil
	}
	return UserJoinEvent{
		User:    u,
		Channel: c,
		Time:    msg.TimeOrNow(),
	}, nil
}

// leave handles nick leaving channel, by PART or KICK.
func (s *Session) leave(msg Message, channel, nick string) (Event, error) {
	if s.tracker.IsMe(nick) {
		if _, ok := s.tracker.Channel(channel); !ok {
			return nil, nil
		}
		s.forgetChannel(channel)
		s.tracker.UntrackChannel(channel)
		return SelfPartEvent{Channel: channel}, nil
	}

	c, ok := s.tracker.Channel(channel)
	if !ok {
		return nil, nil
	}
	u, ok := s.tracker.User(nick)
	if !ok {
		return nil, nil
	}
	s.tracker.TrackUserPart(channel, nick)
	return UserPartEvent{
		User:    u,
		Channel: c.Name(),
		Time:    msg.TimeOrNow(),
	}, nil
}

func (s *Session) forgetChannel(channel string) {
	channelCf := s.features.Casemap(channel)
	delete(s.joining, channelCf)
	for key := range s.lists {
		if key.channel == channelCf {
			delete(s.lists, key)
		}
	}
}

func (s *Session) handlePart(msg Message) (Event, error) {
	return s.leave(msg, msg.Params[0], msg.Prefix.Name)
}

func (s *Session) handleKick(msg Message) (Event, error) {
	return s.leave(msg, msg.Params[0], msg.Params[1])
}

func (s *Session) handleQuit(msg Message) (Event, error) {
	nick := msg.Prefix.Name
	u, ok := s.tracker.User(nick)
	if !ok {
		return nil, nil
	}
	channels := s.tracker.ChannelsOf(nick)
	s.tracker.TrackUserQuit(nick)
	return UserQuitEvent{
		User:     u,
		Channels: channels,
		Time:     msg.TimeOrNow(),
	}, nil
}

func (s *Session) handleNick(msg Message) (Event, error) {
	formerNick := msg.Prefix.Name
	newNick := msg.Params[0]
	me := s.tracker.IsMe(formerNick)

	if _, ok := s.tracker.User(formerNick); ok {
		s.tracker.TrackUserNickChange(formerNick, newNick)
	} else if me {
		s.tracker.SetNick(newNick)
	} else {
		return nil, nil
	}

	if me {
		return SelfNickEvent{
			FormerNick: formerNick,
			Time:       msg.TimeOrNow(),
		}, nil
	}
	u, _ := s.tracker.User(newNick)
	return UserNickEvent{
		User:       u,
		FormerNick: formerNick,
		Time:       msg.TimeOrNow(),
	}, nil
}

func (s *Session) handleMode(msg Message) (Event, error) {
	channel := msg.Params[0]
	if !s.features.IsChannel(channel) {
		// user modes.
		return nil, nil
	}

	changes, err := state.ParseModeParams(msg.Params[1:], s.tracker.ModeLookup())
	if err != nil {
		return nil, fmt.Errorf("MODE: %w", err)
	}

	t := msg.TimeOrNow()
	for _, ms := range changes {
		if ms.Mode.IsStatus() || ms.Mode.Type != state.AlwaysListed {
			continue
		}
		s.tracker.TrackChannelModeInfo(channel, ms.Action == state.Add, state.ModeInfo{
			Mode:    ms.Mode,
			Mask:    ms.Param,
			Creator: msg.Prefix.String(),
			Created: t,
		})
	}
	s.tracker.UpdateChannelModes(channel, changes)

	c, ok := s.tracker.Channel(channel)
	if !ok {
		return nil, nil
	}
	return ModeChangeEvent{
		Channel: c,
		Source:  s.tracker.Actor(msg.Prefix.String()),
		Changes: changes,
		Time:    t,
	}, nil
}

func (s *Session) handleChannelModeIs(msg Message) (Event, error) {
	modes, err := state.ParseModeParams(msg.Params[2:], s.tracker.ModeLookup())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", msg.Command, err)
	}
	s.tracker.ResetChannelModes(msg.Params[1], modes)
	return nil, nil
}

func (s *Session) handleTopic(msg Message) (Event, error) {
	channel := msg.Params[0]
	t := msg.TimeOrNow()
	s.tracker.SetChannelTopic(channel, msg.Params[1])
	s.tracker.SetChannelTopicWhoTime(channel, msg.Prefix.String(), t)

	c, ok := s.tracker.Channel(channel)
	if !ok {
		return nil, nil
	}
	return TopicChangeEvent{
		Channel: c,
		Source:  s.tracker.Actor(msg.Prefix.String()),
		Time:    t,
	}, nil
}

func (s *Session) handleNoTopic(msg Message) (Event, error) {
	s.tracker.SetChannelTopic(msg.Params[1], "")
	return nil, nil
}

func (s *Session) handleTopicReply(msg Message) (Event, error) {
	s.tracker.SetChannelTopic(msg.Params[1], msg.Params[2])
	return nil, nil
}

func (s *Session) handleTopicWhoTime(msg Message) (Event, error) {
	t, err := parseUnix(msg.Params[3])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", msg.Command, err)
	}
	s.tracker.SetChannelTopicWhoTime(msg.Params[1], msg.Params[2], t)
	return nil, nil
}

// whoReply holds the fields of RPL_WHOREPLY and RPL_WHOSPCRPL.
type whoReply struct {
	channel  string
	user     string
	host     string
	server   string
	nick     string
	flags    string
	account  *string
	realName string
}

func (s *Session) handleWhoReply(msg Message) (Event, error) {
	var r whoReply
	var trailing string
	if err := msg.ParseParams(nil, &r.channel, &r.user, &r.host, &r.server, &r.nick, &r.flags, &trailing); err != nil {
		return nil, err
	}
	// trailing is "<hop count> <real name>".
	_, r.realName = word(trailing)
	return s.applyWho(r)
}

// handleWhoxReply handles replies to the WHO requests sent by the session and
// the tracker, which ask for the "cuhsnfar" fields.
func (s *Session) handleWhoxReply(msg Message) (Event, error) {
	var r whoReply
	var account string
	if err := msg.ParseParams(nil, &r.channel, &r.user, &r.host, &r.server, &r.nick, &r.flags, &account, &r.realName); err != nil {
		return nil, err
	}
	if account == "0" {
		account = ""
	}
	r.account = &account
	return s.applyWho(r)
}

func (s *Session) applyWho(r whoReply) (Event, error) {
	if r.flags == "" || (r.flags[0] != 'H' && r.flags[0] != 'G') {
		return nil, fmt.Errorf("WHO: unexpected flags %q", r.flags)
	}

	mask := r.nick + "!" + r.user + "@" + r.host
	if s.features.IsChannel(r.channel) {
		s.tracker.TrackChannelUser(r.channel, mask, s.statusFromFlags(r.flags[1:]))
	} else {
		s.tracker.TrackUser(mask)
	}

	u, ok := s.tracker.User(r.nick)
	if !ok {
		return nil, nil
	}
	s.tracker.SetUserServer(r.nick, r.server)
	s.tracker.SetUserRealName(r.nick, r.realName)
	if away := r.flags[0] == 'G'; away != u.IsAway() {
		s.tracker.SetUserAway(r.nick, away, "")
	}
	if strings.IndexByte(r.flags, '*') >= 0 {
		s.tracker.SetUserOperator(r.nick, "is an IRC operator")
	} else {
		s.tracker.SetUserOperator(r.nick, "")
	}
	if r.account != nil {
		s.tracker.SetUserAccount(r.nick, *r.account)
	}
	return nil, nil
}

// statusFromFlags returns the status modes whose prefix appears in the flags
// of a WHO reply.
func (s *Session) statusFromFlags(flags string) (modes []state.Mode) {
	for _, m := range s.features.StatusModes() {
		if strings.IndexByte(flags, m.Prefix) >= 0 {
			modes = append(modes, m)
		}
	}
	return
}

func (s *Session) handleEndOfWho(msg Message) (Event, error) {
	target := msg.Params[1]
	if s.features.IsChannel(target) {
		s.tracker.SetChannelListReceived(target)
	}
	return nil, nil
}

func (s *Session) handleNamReply(msg Message) (Event, error) {
	channel := msg.Params[2]
	for _, name := range strings.Fields(msg.Params[3]) {
		modes, nick := s.tracker.StatusModesOf(name)
		if nick == "" {
			continue
		}
		s.tracker.TrackChannelNick(channel, nick, modes)
	}
	return nil, nil
}

func (s *Session) handleEndOfNames(msg Message) (Event, error) {
	channel := msg.Params[1]
	channelCf := s.features.Casemap(channel)
	s.tracker.SetChannelListReceived(channel)

	if _, ok := s.joining[channelCf]; !ok {
		return nil, nil
	}
	delete(s.joining, channelCf)

	for i := 0; i < len(s.listModes); i++ {
		if m, ok := s.listMode(s.listModes[i]); ok {
			s.tracker.TrackChannelMode(channel, m, true)
		}
	}

	c, ok := s.tracker.Channel(channel)
	if !ok {
		return nil, nil
	}
	return SelfJoinEvent{Channel: c}, nil
}

// listMode returns the list mode of the given character, if the server has
// one.
func (s *Session) listMode(char byte) (state.Mode, bool) {
	for _, m := range s.features.ChannelModes() {
		if m.Char == char && m.Type == state.AlwaysListed {
			return m, true
		}
	}
	return state.Mode{}, false
}

func (s *Session) handleListEntry(msg Message) (Event, error) {
	m, ok := s.listMode(listReplies[msg.Command].mode)
	if !ok {
		return nil, nil
	}

	channel := msg.Params[1]
	info := state.ModeInfo{Mode: m, Mask: msg.Params[2]}
	if len(msg.Params) >= 5 {
		t, err := parseUnix(msg.Params[4])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", msg.Command, err)
		}
		info.Creator = msg.Params[3]
		info.Created = t
	}

	key := listKey{channel: s.features.Casemap(channel), mode: m.Char}
	s.lists[key] = append(s.lists[key], info)
	return nil, nil
}

func (s *Session) handleListEnd(msg Message) (Event, error) {
	var char byte
	for _, r := range listReplies {
		if r.end == msg.Command {
			char = r.mode
		}
	}
	m, ok := s.listMode(char)
	if !ok {
		return nil, nil
	}

	channel := msg.Params[1]
	key := listKey{channel: s.features.Casemap(channel), mode: m.Char}
	entries := s.lists[key]
	delete(s.lists, key)
	s.tracker.SetChannelModeInfoList(channel, m, entries)

	c, ok := s.tracker.Channel(channel)
	if !ok {
		return nil, nil
	}
	if _, ok := c.ModeInfo(m.Char); !ok {
		return nil, nil
	}
	return ModeListEvent{Channel: c, Mode: m}, nil
}

func (s *Session) userUpdate(nick string, msg Message) (Event, error) {
	u, ok := s.tracker.User(nick)
	if !ok {
		return nil, nil
	}
	return UserUpdateEvent{User: u, Time: msg.TimeOrNow()}, nil
}

func (s *Session) handleAway(msg Message) (Event, error) {
	nick := msg.Prefix.Name
	if len(msg.Params) == 0 {
		s.tracker.SetUserAway(nick, false, "")
	} else {
		s.tracker.SetUserAway(nick, true, msg.Params[0])
	}
	return s.userUpdate(nick, msg)
}

func (s *Session) handleAccount(msg Message) (Event, error) {
	nick := msg.Prefix.Name
	s.tracker.SetUserAccount(nick, msg.Params[0])
	return s.userUpdate(nick, msg)
}

func (s *Session) handleChghost(msg Message) (Event, error) {
	nick := msg.Prefix.Name
	s.tracker.SetUserHost(nick, msg.Params[0], msg.Params[1])
	return s.userUpdate(nick, msg)
}

func (s *Session) handleSetname(msg Message) (Event, error) {
	nick := msg.Prefix.Name
	s.tracker.SetUserRealName(nick, msg.Params[0])
	return s.userUpdate(nick, msg)
}

func parseUnix(s string) (t time.Time, err error) {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return
	}
	return time.Unix(sec, 0).UTC(), nil
}
