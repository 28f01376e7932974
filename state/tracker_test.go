package state

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testInfo struct {
	casemap func(string) string
	whox    bool
}

func (i *testInfo) Casemap(name string) string {
	if i.casemap != nil {
		return i.casemap(name)
	}
	return strings.ToLower(name)
}

func (i *testInfo) CasemapFunc() func(string) string {
	if i.casemap != nil {
		return i.casemap
	}
	return strings.ToLower
}

func (i *testInfo) IsChannel(name string) bool {
	return name != "" && strings.IndexByte(i.ChannelTypes(), name[0]) >= 0
}

func (i *testInfo) ChannelTypes() string { return "#&" }
func (i *testInfo) StatusModes() []Mode  { return DefaultStatusModes }
func (i *testInfo) ChannelModes() []Mode { return DefaultChannelModes }
func (i *testInfo) MaxModesPerLine() int { return DefaultMaxModesPerLine }
func (i *testInfo) HasWhoX() bool        { return i.whox }

type testSender struct {
	l     sync.Mutex
	lines []string
}

func (s *testSender) SendUnique(line string) {
	s.l.Lock()
	defer s.l.Unlock()
	s.lines = append(s.lines, line)
}

func (s *testSender) sent() []string {
	s.l.Lock()
	defer s.l.Unlock()
	return append([]string(nil), s.lines...)
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

type fixture struct {
	tracker *Tracker
	info    *testInfo
	sender  *testSender
	clock   *testClock
	reg     *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		info:   &testInfo{},
		sender: &testSender{},
		clock:  &testClock{now: time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)},
		reg:    prometheus.NewRegistry(),
	}
	f.tracker = NewTracker(f.info, f.sender,
		WithClock(f.clock.Now),
		WithRegisterer(f.reg),
		WithQueryCacheSize(4))
	f.tracker.SetNick("me")
	return f
}

// join tracks channel with the given members and marks its list received.
func (f *fixture) join(channel string, members map[string][]Mode) {
	f.tracker.TrackChannel(channel)
	f.tracker.TrackChannelUser(channel, "me!me@localhost", nil)
	for mask, modes := range members {
		f.tracker.TrackChannelUser(channel, mask, modes)
	}
	f.tracker.SetChannelListReceived(channel)
}

func TestActorClassification(t *testing.T) {
	f := newFixture(t)
	f.join("#test", nil)

	u, ok := f.tracker.Actor("alice!al@example.org").(*User)
	require.True(t, ok)
	assert.Equal(t, "alice", u.Nick())
	assert.Equal(t, "alice!al@example.org", u.Name())
	_, tracked := f.tracker.User("alice")
	assert.False(t, tracked, "looking up a user does not track it")

	c, ok := f.tracker.Actor("#TEST").(*Channel)
	require.True(t, ok)
	assert.True(t, c.IsTracked())
	assert.Equal(t, "#test", c.Name())

	c, ok = f.tracker.Actor("#other").(*Channel)
	require.True(t, ok)
	assert.False(t, c.IsTracked())

	s, ok := f.tracker.Actor("irc.example.org").(*Server)
	require.True(t, ok)
	assert.Equal(t, "irc.example.org", s.Name())

	_, ok = f.tracker.Actor("").(*Server)
	assert.True(t, ok)

	n, ok := f.tracker.Actor("bob").(*Named)
	require.True(t, ok)
	assert.Equal(t, "bob", n.Name())
}

func TestActorTrackedChannelWins(t *testing.T) {
	f := newFixture(t)
	f.tracker.TrackChannel("#test")
	c1 := f.tracker.Actor("#test").(*Channel)
	c2, ok := f.tracker.Channel("#Test")
	require.True(t, ok)
	assert.Same(t, c1, c2)
}

func TestQueriedChannelsAreShared(t *testing.T) {
	f := newFixture(t)
	c1 := f.tracker.Actor("#lobby").(*Channel)
	c2 := f.tracker.Actor("#LOBBY").(*Channel)
	assert.Same(t, c1, c2)
	assert.Empty(t, f.sender.sent(), "untracked channels are not refreshed")

	f.tracker.TrackChannel("#lobby")
	c3, ok := f.tracker.Channel("#lobby")
	require.True(t, ok)
	assert.True(t, c3.IsTracked())
	assert.NotSame(t, c1, c3)
}

func TestEmptyStatusModesKeepExisting(t *testing.T) {
	f := newFixture(t)
	f.tracker.TrackChannel("#test")
	f.tracker.TrackChannelUser("#test", "alice!a@h", []Mode{mode('o')})
	f.tracker.TrackChannelUser("#test", "alice!a@h", nil)
	f.tracker.TrackChannelNick("#test", "alice", []Mode{})

	modes, ok := f.tracker.UserModes("#test", "alice")
	require.True(t, ok)
	assert.Equal(t, []Mode{mode('o')}, modes)

	f.tracker.TrackChannelUser("#test", "alice!a@h", []Mode{mode('v')})
	modes, _ = f.tracker.UserModes("#test", "alice")
	assert.Equal(t, []Mode{mode('v')}, modes)
}

func TestTrackChannelNickWithMask(t *testing.T) {
	f := newFixture(t)
	f.tracker.TrackChannel("#test")
	f.tracker.TrackChannelNick("#test", "bob", nil)
	u, ok := f.tracker.User("bob")
	require.True(t, ok)
	assert.Equal(t, "bob!*@*", u.Name())

	f.tracker.TrackChannelNick("#test", "bob!b@host.example", nil)
	u, _ = f.tracker.User("bob")
	assert.Equal(t, "b", u.Username())
	assert.Equal(t, "host.example", u.Host())
}

func TestTrackChannelUserIgnoresUntracked(t *testing.T) {
	f := newFixture(t)
	f.tracker.TrackChannelUser("#nowhere", "alice!a@h", nil)
	_, ok := f.tracker.User("alice")
	assert.False(t, ok)
}

func TestStaleness(t *testing.T) {
	f := newFixture(t)
	f.join("#test", map[string][]Mode{"alice!a@h": nil})

	c, _ := f.tracker.Channel("#test")
	u, _ := f.tracker.User("alice")
	assert.False(t, f.tracker.IsStale(c))
	assert.False(t, f.tracker.IsStale(u))

	again, _ := f.tracker.Channel("#test")
	assert.Same(t, c, again, "snapshots are memoized")

	f.tracker.SetChannelTopic("#test", "hello")
	assert.True(t, f.tracker.IsStale(c))
	assert.False(t, f.tracker.IsStale(u))

	f.tracker.SetUserAway("alice", true, "lunch")
	assert.True(t, f.tracker.IsStale(u))

	u, _ = f.tracker.User("alice")
	assert.True(t, u.IsAway())
	assert.Equal(t, "lunch", u.AwayMessage())
	assert.False(t, f.tracker.IsStale(u))

	f.tracker.UntrackChannel("#test")
	assert.True(t, f.tracker.IsStale(u), "alice is forgotten")

	assert.False(t, f.tracker.IsStale(&Server{name: "irc.example.org"}))
	assert.False(t, f.tracker.IsStale(&Named{name: "x"}))
}

func TestUntrackChannelCollectsUsers(t *testing.T) {
	f := newFixture(t)
	f.join("#a", map[string][]Mode{"alice!a@h": nil, "bob!b@h": nil})
	f.join("#b", map[string][]Mode{"bob!b@h": nil})

	f.tracker.UntrackChannel("#a")
	_, ok := f.tracker.User("alice")
	assert.False(t, ok)
	_, ok = f.tracker.User("bob")
	assert.True(t, ok, "bob still shares #b")
	_, ok = f.tracker.User("me")
	assert.True(t, ok, "we are never collected")
	_, ok = f.tracker.Channel("#a")
	assert.False(t, ok)

	f.tracker.UntrackChannel("#b")
	_, ok = f.tracker.User("bob")
	assert.False(t, ok)
	_, ok = f.tracker.User("me")
	assert.True(t, ok)

	assert.Equal(t, 0.0, testutil.ToFloat64(f.tracker.metrics.channels))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.tracker.metrics.users))
}

func TestUntrackTwice(t *testing.T) {
	f := newFixture(t)
	f.join("#test", nil)
	f.tracker.UntrackChannel("#test")
	_, ok := f.tracker.Channel("#test")
	assert.False(t, ok)
	f.tracker.UntrackChannel("#test")
}

func TestPartAndQuit(t *testing.T) {
	f := newFixture(t)
	f.join("#a", map[string][]Mode{"alice!a@h": nil, "bob!b@h": nil})
	f.join("#b", map[string][]Mode{"alice!a@h": nil})

	f.tracker.TrackUserPart("#a", "ALICE")
	c, _ := f.tracker.Channel("#a")
	assert.Equal(t, []string{"bob", "me"}, c.Nicknames())
	_, ok := f.tracker.User("alice")
	assert.True(t, ok, "alice is still in #b")

	f.tracker.TrackUserPart("#b", "alice")
	_, ok = f.tracker.User("alice")
	assert.False(t, ok)

	f.tracker.TrackUserQuit("bob")
	_, ok = f.tracker.User("bob")
	assert.False(t, ok)
	c, _ = f.tracker.Channel("#a")
	assert.Equal(t, []string{"me"}, c.Nicknames())

	f.tracker.TrackUserPart("#a", "me")
	_, ok = f.tracker.User("me")
	assert.True(t, ok)
}

func TestUpdateChannelModes(t *testing.T) {
	f := newFixture(t)
	f.join("#test", map[string][]Mode{"userA!a@h": {mode('o')}})
	f.tracker.UpdateChannelModes("#test", ModeStatusList{}.Add(mode('n'), "").Add(mode('l'), "10"))

	before, _ := f.tracker.Channel("#test")
	f.tracker.UpdateChannelModes("#test", ModeStatusList{}.Remove(mode('o'), "userA"))

	modes, ok := f.tracker.UserModes("#test", "userA")
	require.True(t, ok)
	assert.Empty(t, modes)

	after, _ := f.tracker.Channel("#test")
	assert.Equal(t, before.Modes(), after.Modes())
	assert.Len(t, after.Modes(), 2)

	ms, ok := after.Mode('l')
	require.True(t, ok)
	assert.Equal(t, "10", ms.Param)

	f.tracker.UpdateChannelModes("#test", ModeStatusList{}.Remove(mode('l'), "").Add(mode('b'), "*!*@x"))
	after, _ = f.tracker.Channel("#test")
	_, ok = after.Mode('l')
	assert.False(t, ok)
	_, ok = after.Mode('b')
	assert.False(t, ok, "list modes are never active modes")
}

func TestUpdateChannelModesDropsBadChanges(t *testing.T) {
	f := newFixture(t)
	f.join("#test", nil)
	f.tracker.UpdateChannelModes("#test", ModeStatusList{
		{Action: Add, Mode: Mode{Char: 'X', Type: NeverParameterized}},
		{Action: Add, Mode: mode('o'), Param: "ghost"},
		{Action: Add, Mode: mode('m')},
	})
	c, _ := f.tracker.Channel("#test")
	assert.Len(t, c.Modes(), 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.tracker.metrics.dropped))
}

func TestResetChannelModes(t *testing.T) {
	f := newFixture(t)
	f.join("#test", nil)
	f.tracker.UpdateChannelModes("#test", ModeStatusList{}.Add(mode('m'), ""))
	f.tracker.ResetChannelModes("#test", ModeStatusList{}.Add(mode('n'), "").Add(mode('t'), ""))
	c, _ := f.tracker.Channel("#test")
	assert.Equal(t, "+nt", c.Modes().String())
}

func TestTrackChannelModeQueriesOnce(t *testing.T) {
	f := newFixture(t)
	f.join("#test", nil)

	f.tracker.TrackChannelMode("#test", mode('b'), true)
	f.tracker.TrackChannelMode("#test", mode('b'), true)
	assert.Equal(t, []string{"MODE #test b"}, f.sender.sent())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.tracker.metrics.listQueries))

	f.tracker.TrackChannelMode("#test", mode('b'), false)
	f.tracker.TrackChannelMode("#test", mode('b'), true)
	assert.Equal(t, []string{"MODE #test b", "MODE #test b"}, f.sender.sent())
}

func TestTrackChannelModeRejectsNonListModes(t *testing.T) {
	f := newFixture(t)
	f.join("#test", nil)
	assert.PanicsWithError(t, `state: TrackChannelMode: mode k is not a list mode`, func() {
		f.tracker.TrackChannelMode("#test", mode('k'), true)
	})
	assert.PanicsWithError(t, `state: TrackChannelMode: mode Z is not a mode of the server`, func() {
		f.tracker.TrackChannelMode("#test", Mode{Char: 'Z', Type: AlwaysListed}, true)
	})
	assert.Empty(t, f.sender.sent())
}

func TestModeInfo(t *testing.T) {
	f := newFixture(t)
	f.tracker.TrackChannel("#test")
	f.tracker.TrackChannelMode("#test", mode('b'), true)

	c, _ := f.tracker.Channel("#test")
	_, ok := c.ModeInfo('b')
	assert.False(t, ok, "list not received yet")

	f.tracker.SetChannelListReceived("#test")
	c, _ = f.tracker.Channel("#test")
	entries, ok := c.ModeInfo('b')
	require.True(t, ok)
	assert.Empty(t, entries)

	ban := ModeInfo{Mode: mode('b'), Mask: "*!*@x", Creator: "op"}
	f.tracker.TrackChannelModeInfo("#test", true, ban)
	f.tracker.TrackChannelModeInfo("#test", true, ban)
	f.tracker.TrackChannelModeInfo("#test", true, ModeInfo{Mode: mode('b'), Mask: "*!*@y"})
	c, _ = f.tracker.Channel("#test")
	entries, _ = c.ModeInfo('b')
	assert.Len(t, entries, 2)

	f.tracker.TrackChannelModeInfo("#test", false, ModeInfo{Mode: mode('b'), Mask: "*!*@x"})
	c, _ = f.tracker.Channel("#test")
	entries, _ = c.ModeInfo('b')
	require.Len(t, entries, 1)
	assert.Equal(t, "*!*@y", entries[0].Mask)

	f.tracker.SetChannelModeInfoList("#test", mode('b'), []ModeInfo{ban})
	c, _ = f.tracker.Channel("#test")
	entries, _ = c.ModeInfo('b')
	assert.Equal(t, []ModeInfo{ban}, entries)
}

func TestModeInfoTrackedAfterJoin(t *testing.T) {
	f := newFixture(t)
	f.join("#test", nil)
	f.tracker.TrackChannelMode("#test", mode('b'), true)
	assert.Equal(t, []string{"MODE #test b"}, f.sender.sent())

	c, _ := f.tracker.Channel("#test")
	_, ok := c.ModeInfo('b')
	assert.False(t, ok, "ban list not received yet")

	ban := ModeInfo{Mode: mode('b'), Mask: "*!*@x"}
	f.tracker.SetChannelModeInfoList("#test", mode('b'), []ModeInfo{ban})
	c, _ = f.tracker.Channel("#test")
	entries, ok := c.ModeInfo('b')
	require.True(t, ok)
	assert.Equal(t, []ModeInfo{ban}, entries)
}

func TestModeInfoIgnoredWhenNotTracked(t *testing.T) {
	f := newFixture(t)
	f.join("#test", nil)
	f.tracker.TrackChannelModeInfo("#test", true, ModeInfo{Mode: mode('b'), Mask: "*!*@x"})
	f.tracker.SetChannelModeInfoList("#test", mode('b'), []ModeInfo{{Mode: mode('b'), Mask: "*!*@x"}})
	c, _ := f.tracker.Channel("#test")
	_, ok := c.ModeInfo('b')
	assert.False(t, ok)
}

func TestNickChange(t *testing.T) {
	f := newFixture(t)
	f.join("#a", map[string][]Mode{"old!o@h": {mode('o'), mode('v')}})
	f.join("#b", map[string][]Mode{"old!o@h": nil})

	f.tracker.TrackUserNickChange("old", "new")

	_, ok := f.tracker.User("old")
	assert.False(t, ok)
	u, ok := f.tracker.User("new")
	require.True(t, ok)
	assert.Equal(t, "new!o@h", u.Name())

	modes, ok := f.tracker.UserModes("#a", "new")
	require.True(t, ok)
	assert.Equal(t, []Mode{mode('o'), mode('v')}, modes)
	_, ok = f.tracker.UserModes("#a", "old")
	assert.False(t, ok)
	_, ok = f.tracker.UserModes("#b", "new")
	assert.True(t, ok)
	assert.Equal(t, []string{"#a", "#b"}, f.tracker.ChannelsOf("NEW"))
}

func TestOwnNickChange(t *testing.T) {
	f := newFixture(t)
	f.join("#a", nil)
	f.tracker.TrackUserNickChange("me", "myself")
	assert.Equal(t, "myself", f.tracker.Nick())
	assert.True(t, f.tracker.IsMe("MYSELF"))
	c, _ := f.tracker.Channel("#a")
	assert.Equal(t, []string{"myself"}, c.Nicknames())
}

func TestNickChangeUnknownUserPanics(t *testing.T) {
	f := newFixture(t)
	defer func() {
		err, ok := recover().(*ContractError)
		require.True(t, ok)
		assert.Equal(t, "TrackUserNickChange", err.Op)
	}()
	f.tracker.TrackUserNickChange("ghost", "spirit")
}

func TestEmptyNamesPanic(t *testing.T) {
	f := newFixture(t)
	assert.Panics(t, func() { f.tracker.TrackChannel("") })
	assert.Panics(t, func() { f.tracker.TrackUserQuit("") })
	assert.Panics(t, func() { f.tracker.TrackChannelUser("#a", "", nil) })
}

func TestWhoRefreshThrottle(t *testing.T) {
	f := newFixture(t)
	f.tracker.TrackChannel("#test")

	f.tracker.Channel("#test")
	f.tracker.Channel("#test")
	assert.Equal(t, []string{"WHO #test"}, f.sender.sent())

	f.tracker.TrackChannelUser("#test", "alice!a@h", nil)
	f.clock.now = f.clock.now.Add(2 * time.Second)
	f.tracker.Channel("#test")
	assert.Len(t, f.sender.sent(), 1, "throttled")

	f.tracker.TrackChannelUser("#test", "bob!b@h", nil)
	f.clock.now = f.clock.now.Add(4 * time.Second)
	f.tracker.Channel("#test")
	assert.Equal(t, []string{"WHO #test", "WHO #test"}, f.sender.sent())

	f.tracker.SetChannelListReceived("#test")
	f.clock.now = f.clock.now.Add(time.Minute)
	f.tracker.Channel("#test")
	assert.Len(t, f.sender.sent(), 2, "list complete")
	assert.Equal(t, 2.0, testutil.ToFloat64(f.tracker.metrics.whoRequests))
}

func TestWhoRefreshInterval(t *testing.T) {
	clock := &testClock{now: time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)}
	sender := &testSender{}
	tracker := NewTracker(&testInfo{}, sender,
		WithClock(clock.Now),
		WithWhoInterval(time.Minute))
	tracker.SetNick("me")
	tracker.TrackChannel("#test")

	tracker.Channel("#test")
	tracker.TrackChannelUser("#test", "alice!a@h", nil)
	clock.now = clock.now.Add(30 * time.Second)
	tracker.Channel("#test")
	assert.Len(t, sender.sent(), 1)

	tracker.TrackChannelUser("#test", "bob!b@h", nil)
	clock.now = clock.now.Add(45 * time.Second)
	tracker.Channel("#test")
	assert.Len(t, sender.sent(), 2)
}

func TestWhoRefreshUsesWhoX(t *testing.T) {
	f := newFixture(t)
	f.info.whox = true
	f.tracker.TrackChannel("#test")
	f.tracker.Channel("#test")
	assert.Equal(t, []string{"WHO #test %cuhsnfar"}, f.sender.sent())
}

func TestTopic(t *testing.T) {
	f := newFixture(t)
	f.join("#test", nil)
	c, _ := f.tracker.Channel("#test")
	assert.False(t, c.Topic().Known)

	at := time.Unix(1600000000, 0)
	f.tracker.SetChannelTopic("#test", "welcome")
	f.tracker.SetChannelTopicWhoTime("#test", "op!o@h", at)
	c, _ = f.tracker.Channel("#test")
	assert.Equal(t, Topic{Value: "welcome", Known: true, Setter: "op!o@h", Time: at}, c.Topic())

	f.tracker.SetChannelTopic("#test", "")
	c, _ = f.tracker.Channel("#test")
	assert.Equal(t, Topic{Known: true}, c.Topic())
}

func TestUserSetters(t *testing.T) {
	f := newFixture(t)
	f.join("#test", map[string][]Mode{"alice!a@h": nil})

	f.tracker.SetUserAccount("alice", "alice_acc")
	f.tracker.SetUserHost("alice", "", "new.host")
	f.tracker.SetUserRealName("alice", "Alice A.")
	f.tracker.SetUserServer("alice", "irc.example.org")
	f.tracker.SetUserOperator("alice", "is an IRC operator")
	f.tracker.SetUserAccount("nobody", "x")

	u, _ := f.tracker.User("alice")
	account, ok := u.Account()
	assert.True(t, ok)
	assert.Equal(t, "alice_acc", account)
	assert.Equal(t, "alice!a@new.host", u.Name())
	assert.Equal(t, "Alice A.", u.RealName())
	assert.Equal(t, "irc.example.org", u.Server())
	assert.Equal(t, "is an IRC operator", u.Operator())

	f.tracker.SetUserAccount("alice", "*")
	u, _ = f.tracker.User("alice")
	_, ok = u.Account()
	assert.False(t, ok)

	f.tracker.SetUserAway("alice", false, "ignored")
	u, _ = f.tracker.User("alice")
	assert.False(t, u.IsAway())
	assert.Empty(t, u.AwayMessage())
}

func TestTrackUser(t *testing.T) {
	f := newFixture(t)
	f.tracker.TrackUser("me!ident@cloak")
	u, ok := f.tracker.User("me")
	require.True(t, ok)
	assert.Equal(t, "me!ident@cloak", u.Name())

	f.tracker.TrackUser("stranger!s@h")
	_, ok = f.tracker.User("stranger")
	assert.False(t, ok)
}

func TestRefold(t *testing.T) {
	f := newFixture(t)
	f.info.casemap = func(s string) string { return s }
	f.join("#Test", map[string][]Mode{"Alice!a@h": nil})

	_, ok := f.tracker.User("alice")
	assert.False(t, ok)
	before, _ := f.tracker.Channel("#Test")
	_, ok = before.UserModes("Alice")
	assert.True(t, ok)

	f.info.casemap = strings.ToLower
	f.tracker.Refold()

	_, ok = before.UserModes("Alice")
	assert.True(t, ok, "snapshots keep their casemapping")
	assert.True(t, f.tracker.IsStale(before))

	_, ok = f.tracker.User("alice")
	assert.True(t, ok)
	_, ok = f.tracker.Channel("#test")
	assert.True(t, ok)
	_, ok = f.tracker.UserModes("#test", "ALICE")
	assert.True(t, ok)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	f.join("#test", map[string][]Mode{"alice!a@h": nil})
	c, _ := f.tracker.Channel("#test")

	f.tracker.Reset()
	assert.Empty(t, f.tracker.Channels())
	assert.Empty(t, f.tracker.Users())
	assert.Equal(t, "", f.tracker.Nick())
	assert.True(t, f.tracker.IsStale(c))
}

func TestChannelsAndUsersOrdered(t *testing.T) {
	f := newFixture(t)
	f.join("#b", map[string][]Mode{"Zed!z@h": nil})
	f.join("#A", map[string][]Mode{"bob!b@h": nil})

	var names []string
	for _, c := range f.tracker.Channels() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"#A", "#b"}, names)

	var nicks []string
	for _, u := range f.tracker.Users() {
		nicks = append(nicks, u.Nick())
	}
	assert.Equal(t, []string{"bob", "me", "Zed"}, nicks)
}

func TestMembersSortedByRank(t *testing.T) {
	f := newFixture(t)
	f.join("#test", map[string][]Mode{"alice!a@h": {mode('v'), mode('o')}})
	c, _ := f.tracker.Channel("#test")
	members := c.Members()
	require.Len(t, members, 2)
	assert.Equal(t, "alice", members[0].Nick)
	assert.Equal(t, []Mode{mode('o'), mode('v')}, members[0].Modes)
}

func TestModeLinesAndStatusPrefixes(t *testing.T) {
	f := newFixture(t)
	lines := f.tracker.ModeLines("#test", ModeStatusList{}.
		Add(mode('o'), "a").Add(mode('o'), "b").Add(mode('o'), "c").Add(mode('o'), "d"))
	assert.Equal(t, []string{"MODE #test +ooo a b c", "MODE #test +o d"}, lines)

	modes, rest := f.tracker.StatusModesOf("@+alice")
	assert.Equal(t, []Mode{mode('o'), mode('v')}, modes)
	assert.Equal(t, "alice", rest)

	modes, rest = f.tracker.StatusModesOf("bob")
	assert.Empty(t, modes)
	assert.Equal(t, "bob", rest)
}

func TestConcurrentReaders(t *testing.T) {
	f := newFixture(t)
	f.join("#test", nil)

	var wg sync.WaitGroup
	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				for _, c := range f.tracker.Channels() {
					c.Members()
					f.tracker.IsStale(c)
				}
				f.tracker.Users()
			}
		}()
	}
	for i := 0; i < 200; i++ {
		nick := "user" + string(rune('a'+i%26))
		f.tracker.TrackChannelUser("#test", nick+"!u@h", nil)
		f.tracker.TrackUserNickChange(nick, nick+"_")
		f.tracker.TrackUserPart("#test", nick+"_")
	}
	close(done)
	wg.Wait()

	c, _ := f.tracker.Channel("#test")
	assert.Equal(t, []string{"me"}, c.Nicknames())
}
