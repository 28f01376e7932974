package state

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultWhoInterval is the minimum time between two WHO refreshes of a
// channel whose member list is incomplete.
const defaultWhoInterval = 5 * time.Second

// Topic is the topic of a channel.  Setter and Time are zero when unknown.
type Topic struct {
	Value  string
	Known  bool // whether Value is known, "" then means no topic is set.
	Setter string
	Time   time.Time
}

// Member is a user in a channel, with the status modes it holds there.
type Member struct {
	Nick  string
	Modes []Mode
}

// Channel is a snapshot of a channel.
type Channel struct {
	name     string
	tracked  bool
	complete bool
	topic    Topic
	modes    ModeStatusList
	modeInfo map[byte][]ModeInfo
	members  map[string]Member
	nicks    []string
	casemap  func(string) string
}

func (c *Channel) Name() string {
	return c.name
}

// IsTracked reports whether the channel is joined.  Channels obtained from
// Tracker.Actor without being joined are not tracked.
func (c *Channel) IsTracked() bool {
	return c.tracked
}

// HasCompleteList reports whether the whole member list has been received.
func (c *Channel) HasCompleteList() bool {
	return c.complete
}

func (c *Channel) Topic() Topic {
	return c.topic
}

// Modes returns the active modes of the channel, excluding list modes and
// status modes, ordered by mode character.
func (c *Channel) Modes() ModeStatusList {
	return append(ModeStatusList(nil), c.modes...)
}

// Mode returns the active change of the given non-list mode character.
func (c *Channel) Mode(char byte) (ms ModeStatus, ok bool) {
	for _, ms := range c.modes {
		if ms.Mode.Char == char {
			return ms, true
		}
	}
	return
}

// ModeInfo returns the entries of a tracked list mode.  ok is false if the
// mode is not tracked or its list has not been received yet.
func (c *Channel) ModeInfo(char byte) (entries []ModeInfo, ok bool) {
	entries, ok = c.modeInfo[char]
	if !ok {
		return
	}
	return append([]ModeInfo{}, entries...), true
}

// Nicknames returns the nicknames of the members, in casemapped order.
func (c *Channel) Nicknames() []string {
	return append([]string(nil), c.nicks...)
}

// Members returns the members, in the order of Nicknames.
func (c *Channel) Members() []Member {
	members := make([]Member, 0, len(c.nicks))
	for _, nick := range c.nicks {
		m := c.members[c.casemap(nick)]
		members = append(members, Member{
			Nick:  m.Nick,
			Modes: append([]Mode(nil), m.Modes...),
		})
	}
	return members
}

// UserModes returns the status modes of the given member, highest first.
func (c *Channel) UserModes(nick string) (modes []Mode, ok bool) {
	m, ok := c.members[c.casemap(nick)]
	if !ok {
		return
	}
	return append([]Mode(nil), m.Modes...), true
}

// member is a user in a live channel record.
type member struct {
	nick  string
	modes map[byte]Mode
}

// channel is the live record of a channel.
type channel struct {
	l sync.Mutex

	name         string
	tracked      bool
	listReceived bool
	topic        Topic
	modes        map[byte]ModeStatus // active non-list modes.
	listModes    map[byte]Mode       // list modes we track entries of.
	modeInfo     map[byte][]ModeInfo // received entries of tracked list modes.
	members      map[string]*member  // keyed by casemapped nick.
	who          *rate.Limiter

	snap slot[*Channel]
}

func newChannel(name string, whoInterval time.Duration) *channel {
	return &channel{
		name:      name,
		modes:     map[byte]ModeStatus{},
		listModes: map[byte]Mode{},
		modeInfo:  map[byte][]ModeInfo{},
		members:   map[string]*member{},
		who:       rate.NewLimiter(rate.Every(whoInterval), 1),
	}
}

// update runs f with the record locked and invalidates its snapshot.
func (c *channel) update(f func(c *channel)) {
	c.l.Lock()
	f(c)
	c.snap.invalidate()
	c.l.Unlock()
}

// hasMember reports whether the casemapped nick is a member.
func (c *channel) hasMember(nickCf string) bool {
	c.l.Lock()
	defer c.l.Unlock()
	_, ok := c.members[nickCf]
	return ok
}

// memberNicks returns the nicknames of all members.
func (c *channel) memberNicks() []string {
	c.l.Lock()
	defer c.l.Unlock()
	nicks := make([]string, 0, len(c.members))
	for _, m := range c.members {
		nicks = append(nicks, m.nick)
	}
	return nicks
}

// setMember adds or updates a member.  An empty modes set does not clear the
// modes already recorded for the member.
func (c *channel) setMember(nick, nickCf string, modes []Mode) {
	c.update(func(c *channel) {
		m, ok := c.members[nickCf]
		if !ok {
			m = &member{modes: map[byte]Mode{}}
			c.members[nickCf] = m
		}
		m.nick = nick
		if len(modes) == 0 {
			return
		}
		m.modes = make(map[byte]Mode, len(modes))
		for _, mode := range modes {
			m.modes[mode.Char] = mode
		}
	})
}

// removeMember reports whether the member was present.
func (c *channel) removeMember(nickCf string) (ok bool) {
	c.update(func(c *channel) {
		_, ok = c.members[nickCf]
		delete(c.members, nickCf)
	})
	return
}

func (c *channel) renameMember(fromCf, to, toCf string) (ok bool) {
	c.l.Lock()
	defer c.l.Unlock()
	m, ok := c.members[fromCf]
	if !ok {
		return
	}
	delete(c.members, fromCf)
	m.nick = to
	c.members[toCf] = m
	c.snap.invalidate()
	return
}

// refoldMembers recomputes member keys after the casemapping changed.
func (c *channel) refoldMembers(casemap func(string) string) {
	c.update(func(c *channel) {
		members := make(map[string]*member, len(c.members))
		for _, m := range c.members {
			members[casemap(m.nick)] = m
		}
		c.members = members
	})
}

// snapshotParams is what a channel snapshot needs from the tracker.
type snapshotParams struct {
	now     time.Time
	casemap func(string) string
	rank    func(c byte) int // position of a status mode, lowest is highest.
}

// snapshot returns the memoized snapshot of the channel, building it if
// needed.  needWho reports whether a WHO refresh is due: the channel is
// tracked, its member list is incomplete, and the last refresh is old
// enough.
func (c *channel) snapshot(p snapshotParams) (snap *Channel, needWho bool) {
	c.l.Lock()
	defer c.l.Unlock()
	if snap, ok := c.snap.peek(); ok {
		return snap, false
	}
	if c.tracked && !c.listReceived {
		needWho = c.who.AllowN(p.now, 1)
	}
	snap = c.snap.get(func() *Channel {
		return c.build(p)
	})
	return
}

func (c *channel) build(p snapshotParams) *Channel {
	snap := &Channel{
		name:     c.name,
		tracked:  c.tracked,
		complete: c.listReceived,
		topic:    c.topic,
		modeInfo: map[byte][]ModeInfo{},
		members:  make(map[string]Member, len(c.members)),
		nicks:    make([]string, 0, len(c.members)),
		casemap:  p.casemap,
	}

	snap.modes = make(ModeStatusList, 0, len(c.modes))
	for _, ms := range c.modes {
		snap.modes = append(snap.modes, ms)
	}
	sort.Slice(snap.modes, func(i, j int) bool {
		return snap.modes[i].Mode.Char < snap.modes[j].Mode.Char
	})

	for char := range c.listModes {
		if entries, ok := c.modeInfo[char]; ok {
			snap.modeInfo[char] = append([]ModeInfo{}, entries...)
		}
	}

	for nickCf, m := range c.members {
		modes := make([]Mode, 0, len(m.modes))
		for _, mode := range m.modes {
			modes = append(modes, mode)
		}
		sort.Slice(modes, func(i, j int) bool {
			return p.rank(modes[i].Char) < p.rank(modes[j].Char)
		})
		snap.members[nickCf] = Member{Nick: m.nick, Modes: modes}
		snap.nicks = append(snap.nicks, m.nick)
	}
	sort.Slice(snap.nicks, func(i, j int) bool {
		return p.casemap(snap.nicks[i]) < p.casemap(snap.nicks[j])
	})

	return snap
}
