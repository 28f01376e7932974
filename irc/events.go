package irc

import (
	"time"

	"git.sr.ht/~taiite/ircstate/state"
)

type Event interface{}

// RawMessageEvent carries a line as it was received from the server.
type RawMessageEvent struct {
	Message string
}

type RegisteredEvent struct{}

type SelfNickEvent struct {
	FormerNick string
	Time       time.Time
}

type UserNickEvent struct {
	User       *state.User
	FormerNick string
	Time       time.Time
}

// SelfJoinEvent is sent once the member list of a joined channel has been
// received.
type SelfJoinEvent struct {
	Channel *state.Channel
}

type UserJoinEvent struct {
	User    *state.User
	Channel *state.Channel
	Time    time.Time
}

type SelfPartEvent struct {
	Channel string
}

// UserPartEvent is sent when a user leaves a channel, by PART or KICK.  User
// is the last known state of the user, who may not be tracked anymore.
type UserPartEvent struct {
	User    *state.User
	Channel string
	Time    time.Time
}

type UserQuitEvent struct {
	User     *state.User
	Channels []string
	Time     time.Time
}

// UserUpdateEvent is sent when the away status, account, host or real name of
// a user changes.
type UserUpdateEvent struct {
	User *state.User
	Time time.Time
}

type ModeChangeEvent struct {
	Channel *state.Channel
	Source  state.Actor
	Changes state.ModeStatusList
	Time    time.Time
}

type TopicChangeEvent struct {
	Channel *state.Channel
	Source  state.Actor
	Time    time.Time
}

// ModeListEvent is sent when the entries of a tracked list mode have been
// received.
type ModeListEvent struct {
	Channel *state.Channel
	Mode    state.Mode
}

// ErrorEvent is sent for error replies from the server.
type ErrorEvent struct {
	Code    string
	Message string
}
