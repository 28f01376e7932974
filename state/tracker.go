// Package state keeps a live model of the channels and users visible to an
// IRC connection, and hands out immutable snapshots of it.
//
// The Tracker is mutated by a single goroutine, the one processing protocol
// messages, through its Track*/Set*/Update* methods.  Lookups, snapshots and
// IsStale may be called from any goroutine at any time.
//
// Snapshots are memoized: a channel or user returns the same *Channel or
// *User until it is next mutated.  IsStale compares a held snapshot with the
// current one by identity, so callers can cheaply check whether what they hold
// is still current.
package state

import (
	"io"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// ServerInfo answers questions about the server, usually from its ISUPPORT
// tokens.
type ServerInfo interface {
	// Casemap returns the casemapped form of a nickname or channel name.
	Casemap(name string) string
	// IsChannel reports whether name is a syntactically valid channel.
	IsChannel(name string) bool
	// ChannelTypes returns the channel prefix characters.
	ChannelTypes() string
	// StatusModes returns the per-user status modes, highest first.
	StatusModes() []Mode
	// ChannelModes returns the channel modes, excluding status modes.
	ChannelModes() []Mode
	// MaxModesPerLine returns the number of parameterized mode changes
	// allowed in a single MODE message.
	MaxModesPerLine() int
	// HasWhoX reports whether the server supports extended WHO replies.
	HasWhoX() bool
}

// casemapFuncer is implemented by ServerInfo values that can hand out their
// current casemapping function.  Channel snapshots keep the function they
// were built with, so that they answer the same after the casemapping
// changes.
type casemapFuncer interface {
	CasemapFunc() func(name string) string
}

// EqualFold reports whether a and b denote the same name under the
// casemapping of the server.
func EqualFold(info ServerInfo, a, b string) bool {
	return info.Casemap(a) == info.Casemap(b)
}

// Sender sends raw lines to the server.  SendUnique must not block and must
// drop a line if the exact same line is already waiting to be sent.
type Sender interface {
	SendUnique(line string)
}

// whoxFields are the WHOX fields requested by WHO refreshes.
const whoxFields = "%cuhsnfar"

const defaultQueryCacheSize = 64

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used to report ignored protocol input.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithRegisterer registers the tracker metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(t *Tracker) {
		t.metrics = newMetrics(reg)
	}
}

// WithClock sets the clock used to throttle WHO refreshes.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithWhoInterval sets the minimum time between two WHO refreshes of a
// channel.
func WithWhoInterval(d time.Duration) Option {
	return func(t *Tracker) {
		t.whoInterval = d
	}
}

// WithQueryCacheSize sets how many channels that are not joined are kept
// around for Actor lookups.
func WithQueryCacheSize(size int) Option {
	return func(t *Tracker) {
		t.queryCacheSize = size
	}
}

// Tracker is the live model of the channels and users visible to a
// connection.
type Tracker struct {
	info   ServerInfo
	sender Sender

	logger         *slog.Logger
	metrics        *metrics
	now            func() time.Time
	whoInterval    time.Duration
	queryCacheSize int

	nick atomic.Value // string

	// channels holds tracked channels, users holds us and the users sharing
	// a tracked channel with us.
	channels *registry[*channel]
	users    *registry[*user]

	// queried holds recently looked up channels that are not tracked, by
	// casemapped name.
	queried *lru.Cache[string, *channel]
}

// NewTracker returns an empty tracker.  info and sender must not be nil.
func NewTracker(info ServerInfo, sender Sender, opts ...Option) *Tracker {
	if info == nil || sender == nil {
		violation("NewTracker", "nil server info or sender")
	}
	t := &Tracker{
		info:           info,
		sender:         sender,
		now:            time.Now,
		whoInterval:    defaultWhoInterval,
		queryCacheSize: defaultQueryCacheSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if t.metrics == nil {
		t.metrics = newMetrics(nil)
	}
	if t.whoInterval <= 0 {
		t.whoInterval = defaultWhoInterval
	}
	if t.queryCacheSize <= 0 {
		t.queryCacheSize = defaultQueryCacheSize
	}
	t.nick.Store("")
	t.channels = newRegistry[*channel](info.Casemap)
	t.users = newRegistry[*user](info.Casemap)
	t.queried, _ = lru.New[string, *channel](t.queryCacheSize)
	return t
}

// Nick returns our own nickname.
func (t *Tracker) Nick() string {
	return t.nick.Load().(string)
}

// IsMe reports whether nick is our own nickname.
func (t *Tracker) IsMe(nick string) bool {
	me := t.Nick()
	return me != "" && EqualFold(t.info, me, nick)
}

// SetNick records our own nickname, and makes sure we are tracked as a user.
func (t *Tracker) SetNick(nick string) {
	requireName("SetNick", "nickname", nick)
	former := t.Nick()
	t.nick.Store(nick)
	if former != "" && !EqualFold(t.info, former, nick) {
		if u, ok := t.users.rename(former, nick); ok {
			u.update(func(u *user) {
				u.nick = nick
			})
			t.renameMembers(former, nick)
		}
	}
	t.users.getOrPut(nick, func() *user {
		return newUser(nick)
	})
	t.reportCounts()
}

func (t *Tracker) snapshotParams() snapshotParams {
	statuses := t.info.StatusModes()
	casemap := t.info.Casemap
	if f, ok := t.info.(casemapFuncer); ok {
		casemap = f.CasemapFunc()
	}
	return snapshotParams{
		now:     t.now(),
		casemap: casemap,
		rank: func(c byte) int {
			for i, m := range statuses {
				if m.Char == c {
					return i
				}
			}
			return len(statuses)
		},
	}
}

// channelSnapshot returns the snapshot of a live channel and sends the WHO
// refresh it asks for, if any.
func (t *Tracker) channelSnapshot(c *channel) *Channel {
	snap, needWho := c.snapshot(t.snapshotParams())
	if needWho {
		line := "WHO " + snap.name
		if t.info.HasWhoX() {
			line += " " + whoxFields
		}
		t.sender.SendUnique(line)
		t.metrics.whoRequests.Inc()
	}
	return snap
}

// Actor resolves a name found in a message into an actor: a user if name is a
// "nick!user@host" mask, a channel if it is tracked or looks like a channel,
// a server if it is empty or looks like a host name, or else an actor only
// carrying the name.
func (t *Tracker) Actor(name string) Actor {
	if nick, _, _, ok := parseMask(name); ok {
		if u, ok := t.users.get(nick); ok {
			return u.snapshot()
		}
		return newUser(name).snapshot()
	}
	if c, ok := t.channels.get(name); ok {
		return t.channelSnapshot(c)
	}
	if t.info.IsChannel(name) {
		key := t.info.Casemap(name)
		c, ok := t.queried.Get(key)
		if !ok {
			c = newChannel(name, t.whoInterval)
			t.queried.Add(key, c)
		}
		return t.channelSnapshot(c)
	}
	if isServerName(name) {
		return &Server{name: name}
	}
	return &Named{name: name}
}

// Channel returns the snapshot of a tracked channel.
func (t *Tracker) Channel(name string) (*Channel, bool) {
	c, ok := t.channels.get(name)
	if !ok {
		return nil, false
	}
	return t.channelSnapshot(c), true
}

// Channels returns the snapshots of all tracked channels, ordered by
// casemapped name.
func (t *Tracker) Channels() []*Channel {
	cs := t.channels.values()
	snaps := make([]*Channel, 0, len(cs))
	for _, c := range cs {
		snaps = append(snaps, t.channelSnapshot(c))
	}
	sort.Slice(snaps, func(i, j int) bool {
		return t.info.Casemap(snaps[i].name) < t.info.Casemap(snaps[j].name)
	})
	return snaps
}

// User returns the snapshot of a tracked user.
func (t *Tracker) User(nick string) (*User, bool) {
	u, ok := t.users.get(nick)
	if !ok {
		return nil, false
	}
	return u.snapshot(), true
}

// Users returns the snapshots of all tracked users, ordered by casemapped
// nickname.
func (t *Tracker) Users() []*User {
	us := t.users.values()
	snaps := make([]*User, 0, len(us))
	for _, u := range us {
		snaps = append(snaps, u.snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return t.info.Casemap(snaps[i].nick) < t.info.Casemap(snaps[j].nick)
	})
	return snaps
}

// UserModes returns the status modes nick holds in a tracked channel.
func (t *Tracker) UserModes(channel, nick string) ([]Mode, bool) {
	c, ok := t.Channel(channel)
	if !ok {
		return nil, false
	}
	return c.UserModes(nick)
}

// ChannelsOf returns the names of the tracked channels nick is a member of.
func (t *Tracker) ChannelsOf(nick string) (names []string) {
	nickCf := t.info.Casemap(nick)
	for _, c := range t.channels.values() {
		if c.hasMember(nickCf) {
			names = append(names, c.name)
		}
	}
	sort.Strings(names)
	return
}

// IsStale reports whether a snapshot is no longer the current one of its
// channel or user.  Snapshots of channels and users that are no longer
// tracked are always stale.  Servers and other actors have no live state and
// are never stale.
func (t *Tracker) IsStale(a Actor) bool {
	switch a := a.(type) {
	case *Channel:
		c, ok := t.channels.get(a.name)
		if !ok {
			return true
		}
		return t.channelSnapshot(c) != a
	case *User:
		u, ok := t.users.get(a.nick)
		if !ok {
			return true
		}
		return u.snapshot() != a
	}
	return false
}

// TrackChannel starts tracking a channel we joined.  Tracking a channel
// again resets its member list to incomplete.
func (t *Tracker) TrackChannel(name string) {
	requireName("TrackChannel", "channel name", name)
	c, _ := t.channels.getOrPut(name, func() *channel {
		key := t.info.Casemap(name)
		if c, ok := t.queried.Get(key); ok {
			t.queried.Remove(key)
			return c
		}
		return newChannel(name, t.whoInterval)
	})
	c.update(func(c *channel) {
		c.tracked = true
		c.listReceived = false
	})
	t.reportCounts()
}

// UntrackChannel stops tracking a channel we left.  Users that no longer
// share a channel with us are forgotten.
func (t *Tracker) UntrackChannel(name string) {
	requireName("UntrackChannel", "channel name", name)
	c, ok := t.channels.remove(name)
	if !ok {
		return
	}
	c.update(func(c *channel) {
		c.tracked = false
	})
	for _, nick := range c.memberNicks() {
		t.reconsiderUser(nick)
	}
	t.reportCounts()
}

// TrackUser updates the user and host of a tracked user from its mask.  Our
// own record is created if needed; other users are only tracked through
// channel membership.
func (t *Tracker) TrackUser(mask string) {
	requireName("TrackUser", "user mask", mask)
	nick := maskNick(mask)
	if t.IsMe(nick) {
		u, created := t.users.getOrPut(nick, func() *user {
			return newUser(mask)
		})
		if created {
			t.reportCounts()
			return
		}
		u.mergeMask(mask)
		return
	}
	if u, ok := t.users.get(nick); ok {
		u.mergeMask(mask)
	}
}

// TrackChannelUser adds or updates a member of a tracked channel, from its
// "nick!user@host" mask.  An empty modes does not clear the status modes
// already known for the member.
func (t *Tracker) TrackChannelUser(channel, mask string, modes []Mode) {
	requireName("TrackChannelUser", "channel name", channel)
	requireName("TrackChannelUser", "user mask", mask)
	c, ok := t.channels.get(channel)
	if !ok {
		return
	}
	u, created := t.users.getOrPut(maskNick(mask), func() *user {
		return newUser(mask)
	})
	if !created {
		u.mergeMask(mask)
	}
	nick := u.getNick()
	c.setMember(nick, t.info.Casemap(nick), modes)
	t.reportCounts()
}

// TrackChannelNick is like TrackChannelUser, for names found in RPL_NAMREPLY.
// rawNick is either a nickname or, with userhost-in-names, a full mask.
func (t *Tracker) TrackChannelNick(channel, rawNick string, modes []Mode) {
	t.TrackChannelUser(channel, rawNick, modes)
}

// maskNick returns the nickname part of a mask, or s itself if it is not a
// mask.
func maskNick(s string) string {
	if nick, _, _, ok := parseMask(s); ok {
		return nick
	}
	return s
}

// TrackUserNickChange renames a tracked user, in the registry and in the
// member lists of channels.  The user must be tracked; callers handling
// NICK messages should check with User first.
func (t *Tracker) TrackUserNickChange(oldNick, newNick string) {
	requireName("TrackUserNickChange", "old nickname", oldNick)
	requireName("TrackUserNickChange", "new nickname", newNick)
	u, ok := t.users.rename(oldNick, newNick)
	if !ok {
		violation("TrackUserNickChange", "user %q is not tracked", oldNick)
	}
	u.update(func(u *user) {
		u.nick = newNick
	})
	t.renameMembers(oldNick, newNick)
	if t.IsMe(oldNick) {
		t.nick.Store(newNick)
	}
}

func (t *Tracker) renameMembers(oldNick, newNick string) {
	oldCf, newCf := t.info.Casemap(oldNick), t.info.Casemap(newNick)
	for _, c := range t.channels.values() {
		c.renameMember(oldCf, newNick, newCf)
	}
}

// TrackUserPart removes nick from the members of a tracked channel, after a
// PART or a KICK.
func (t *Tracker) TrackUserPart(channel, nick string) {
	requireName("TrackUserPart", "channel name", channel)
	requireName("TrackUserPart", "nickname", nick)
	c, ok := t.channels.get(channel)
	if !ok {
		return
	}
	c.removeMember(t.info.Casemap(nick))
	t.reconsiderUser(nick)
	t.reportCounts()
}

// TrackUserQuit forgets a user and removes it from all channels.
func (t *Tracker) TrackUserQuit(nick string) {
	requireName("TrackUserQuit", "nickname", nick)
	t.users.remove(nick)
	nickCf := t.info.Casemap(nick)
	for _, c := range t.channels.values() {
		c.removeMember(nickCf)
	}
	t.reportCounts()
}

// reconsiderUser forgets nick unless it is us or shares a tracked channel
// with us.  It must be called after every removal of a membership.
func (t *Tracker) reconsiderUser(nick string) {
	if t.IsMe(nick) {
		return
	}
	nickCf := t.info.Casemap(nick)
	for _, c := range t.channels.values() {
		if c.hasMember(nickCf) {
			return
		}
	}
	t.users.remove(nick)
}

// lookupMode checks that m is a mode of the server, as currently known.
func (t *Tracker) lookupMode(m Mode) bool {
	for _, table := range [][]Mode{t.info.StatusModes(), t.info.ChannelModes()} {
		for _, known := range table {
			if known == m {
				return true
			}
		}
	}
	return false
}

// ModeLookup returns a lookup over the current modes of the server, for
// ParseModes.
func (t *Tracker) ModeLookup() ModeLookup {
	return ModeLookupFrom(t.info.ChannelModes(), t.info.StatusModes())
}

// UpdateChannelModes applies mode changes to a tracked channel.  Status
// modes update the modes of members, other modes update the active modes of
// the channel, and list modes are ignored (see TrackChannelModeInfo).
func (t *Tracker) UpdateChannelModes(name string, changes ModeStatusList) {
	requireName("UpdateChannelModes", "channel name", name)
	c, ok := t.channels.get(name)
	if !ok {
		return
	}
	c.update(func(c *channel) {
		t.applyModes(c, changes)
	})
}

// ResetChannelModes replaces the active modes of a tracked channel, as
// received in RPL_CHANNELMODEIS.
func (t *Tracker) ResetChannelModes(name string, modes ModeStatusList) {
	requireName("ResetChannelModes", "channel name", name)
	c, ok := t.channels.get(name)
	if !ok {
		return
	}
	c.update(func(c *channel) {
		c.modes = map[byte]ModeStatus{}
		t.applyModes(c, modes)
	})
}

// applyModes must be called with c locked.
func (t *Tracker) applyModes(c *channel, changes ModeStatusList) {
	for _, ms := range changes {
		if !t.lookupMode(ms.Mode) {
			t.drop(c.name, ms, "unknown mode")
			continue
		}
		switch {
		case ms.Mode.IsStatus():
			m, ok := c.members[t.info.Casemap(ms.Param)]
			if !ok {
				t.drop(c.name, ms, "not a member")
				continue
			}
			if ms.Action == Add {
				m.modes[ms.Mode.Char] = ms.Mode
			} else {
				delete(m.modes, ms.Mode.Char)
			}
		case ms.Mode.Type == AlwaysListed:
		case ms.Action == Add:
			c.modes[ms.Mode.Char] = ms
		default:
			delete(c.modes, ms.Mode.Char)
		}
	}
}

func (t *Tracker) drop(channel string, ms ModeStatus, reason string) {
	t.metrics.dropped.Inc()
	t.logger.Debug("ignoring mode change",
		"channel", channel, "change", ms.String(), "reason", reason)
}

// TrackChannelMode starts or stops tracking the entries of a list mode in a
// tracked channel.  Starting to track a mode requests its current list from
// the server.
func (t *Tracker) TrackChannelMode(name string, mode Mode, track bool) {
	requireName("TrackChannelMode", "channel name", name)
	if mode.IsStatus() || mode.Type != AlwaysListed {
		violation("TrackChannelMode", "mode %c is not a list mode", mode.Char)
	}
	if !t.lookupMode(mode) {
		violation("TrackChannelMode", "mode %c is not a mode of the server", mode.Char)
	}
	c, ok := t.channels.get(name)
	if !ok {
		return
	}
	var query bool
	c.update(func(c *channel) {
		_, tracked := c.listModes[mode.Char]
		if track && !tracked {
			c.listModes[mode.Char] = mode
			delete(c.modeInfo, mode.Char)
			query = true
		} else if !track && tracked {
			delete(c.listModes, mode.Char)
			delete(c.modeInfo, mode.Char)
		}
	})
	if query {
		t.sender.SendUnique("MODE " + c.name + " " + string(mode.Char))
		t.metrics.listQueries.Inc()
	}
}

// TrackChannelModeInfo adds or removes an entry of a tracked list mode, as
// changed by a MODE message.  It does nothing if the mode is not tracked in
// that channel.
func (t *Tracker) TrackChannelModeInfo(channel string, add bool, info ModeInfo) {
	requireName("TrackChannelModeInfo", "channel name", channel)
	c, ok := t.channels.get(channel)
	if !ok {
		return
	}
	c.l.Lock()
	defer c.l.Unlock()
	if _, ok := c.listModes[info.Mode.Char]; !ok {
		return
	}
	entries := c.modeInfo[info.Mode.Char]
	kept := entries[:0:0]
	for _, e := range entries {
		if e.Mask != info.Mask {
			kept = append(kept, e)
		}
	}
	if add {
		kept = append(kept, info)
	}
	c.modeInfo[info.Mode.Char] = kept
	c.snap.invalidate()
}

// SetChannelModeInfoList replaces the entries of a tracked list mode, once
// all pages of its list have been received.
func (t *Tracker) SetChannelModeInfoList(channel string, mode Mode, entries []ModeInfo) {
	requireName("SetChannelModeInfoList", "channel name", channel)
	c, ok := t.channels.get(channel)
	if !ok {
		return
	}
	c.l.Lock()
	defer c.l.Unlock()
	if _, ok := c.listModes[mode.Char]; !ok {
		return
	}
	c.modeInfo[mode.Char] = append([]ModeInfo{}, entries...)
	c.snap.invalidate()
}

// SetChannelListReceived marks the member list of a tracked channel as
// complete.  List modes already tracked without any entry get an empty list.
// Modes tracked afterwards stay without entries until their list is received.
func (t *Tracker) SetChannelListReceived(name string) {
	requireName("SetChannelListReceived", "channel name", name)
	t.updateChannel(name, func(c *channel) {
		c.listReceived = true
		for char := range c.listModes {
			if _, ok := c.modeInfo[char]; !ok {
				c.modeInfo[char] = []ModeInfo{}
			}
		}
	})
}

// SetChannelTopic records the topic text of a tracked channel.  The setter
// and time are reset until SetChannelTopicWhoTime is called.
func (t *Tracker) SetChannelTopic(name, text string) {
	requireName("SetChannelTopic", "channel name", name)
	t.updateChannel(name, func(c *channel) {
		c.topic = Topic{Value: text, Known: true}
	})
}

// SetChannelTopicWhoTime records who set the topic of a tracked channel, and
// when.
func (t *Tracker) SetChannelTopicWhoTime(name, setter string, at time.Time) {
	requireName("SetChannelTopicWhoTime", "channel name", name)
	t.updateChannel(name, func(c *channel) {
		c.topic.Setter = setter
		c.topic.Time = at
	})
}

func (t *Tracker) updateChannel(name string, f func(c *channel)) {
	if c, ok := t.channels.get(name); ok {
		c.update(f)
	}
}

func (t *Tracker) updateUser(nick string, f func(u *user)) {
	if u, ok := t.users.get(nick); ok {
		u.update(f)
	}
}

// SetUserAccount records the services account of a tracked user.  "" and
// "*" mean the user is not logged in.
func (t *Tracker) SetUserAccount(nick, account string) {
	if account == "*" {
		account = ""
	}
	t.updateUser(nick, func(u *user) {
		u.account = account
	})
}

// SetUserAway records whether a tracked user is away, and why.
func (t *Tracker) SetUserAway(nick string, away bool, message string) {
	if !away {
		message = ""
	}
	t.updateUser(nick, func(u *user) {
		u.away = away
		u.awayMsg = message
	})
}

// SetUserHost records the username and host of a tracked user.  Empty values
// are left unchanged.
func (t *Tracker) SetUserHost(nick, username, host string) {
	t.updateUser(nick, func(u *user) {
		if username != "" {
			u.user = username
		}
		if host != "" {
			u.host = host
		}
	})
}

func (t *Tracker) SetUserRealName(nick, realName string) {
	t.updateUser(nick, func(u *user) {
		u.realName = realName
	})
}

func (t *Tracker) SetUserServer(nick, server string) {
	t.updateUser(nick, func(u *user) {
		u.server = server
	})
}

// SetUserOperator records the operator information of a tracked user, ""
// if it is not an operator.
func (t *Tracker) SetUserOperator(nick, info string) {
	t.updateUser(nick, func(u *user) {
		u.operator = info
	})
}

// Refold recomputes every key after the casemapping of the server changed.
func (t *Tracker) Refold() {
	t.channels.refold(func(c *channel) string {
		return c.name
	})
	t.users.refold(func(u *user) string {
		return u.getNick()
	})
	for _, c := range t.channels.values() {
		c.refoldMembers(t.info.Casemap)
	}
	t.queried.Purge()
}

// Reset forgets everything, e.g. after the connection was lost.  Snapshots
// handed out before are all stale.
func (t *Tracker) Reset() {
	for _, c := range t.channels.values() {
		c.update(func(c *channel) {
			c.tracked = false
		})
	}
	t.channels.clear()
	t.users.clear()
	t.queried.Purge()
	t.nick.Store("")
	t.reportCounts()
}

func (t *Tracker) reportCounts() {
	t.metrics.channels.Set(float64(t.channels.len()))
	t.metrics.users.Set(float64(t.users.len()))
}

// ModeLines formats mode changes into MODE messages for channel, chunked
// according to the server limit.
func (t *Tracker) ModeLines(channel string, changes ModeStatusList) []string {
	lines := changes.Lines(t.info.MaxModesPerLine())
	for i, line := range lines {
		lines[i] = "MODE " + channel + " " + line
	}
	return lines
}

// StatusModesOf resolves status prefixes found in front of a name in
// RPL_NAMREPLY, e.g. "@+nick", into modes and the remaining name.
func (t *Tracker) StatusModesOf(name string) (modes []Mode, rest string) {
	statuses := t.info.StatusModes()
	rest = name
	for rest != "" {
		found := false
		for _, m := range statuses {
			if rest[0] == m.Prefix {
				modes = append(modes, m)
				rest = rest[1:]
				found = true
				break
			}
		}
		if !found {
			break
		}
	}
	return
}
