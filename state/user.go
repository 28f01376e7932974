package state

import "sync"

// User is a snapshot of a known IRC user.  Fields reported as "" are not
// known.
type User struct {
	nick     string
	user     string
	host     string
	account  string
	away     bool
	awayMsg  string
	operator string
	realName string
	server   string
}

// Name returns the "nick!user@host" mask of the user, with "*" in place of
// unknown parts.
func (u *User) Name() string {
	return maskOf(u.nick, u.user, u.host)
}

func (u *User) Nick() string     { return u.nick }
func (u *User) Username() string { return u.user }
func (u *User) Host() string     { return u.host }

// Account returns the services account of the user, if logged in and known.
func (u *User) Account() (account string, ok bool) {
	return u.account, u.account != ""
}

// IsAway reports whether the user is known to be away.
func (u *User) IsAway() bool {
	return u.away
}

// AwayMessage returns the away message of the user, "" if not away or if the
// message is not known.
func (u *User) AwayMessage() string {
	return u.awayMsg
}

// Operator returns the operator information of the user (e.g. "is an IRC
// operator"), "" if the user is not known to be an operator.
func (u *User) Operator() string {
	return u.operator
}

func (u *User) RealName() string { return u.realName }

// Server returns the name of the server the user is connected to.
func (u *User) Server() string { return u.server }

// user is the live record of a known user.
type user struct {
	l sync.Mutex

	nick     string
	user     string
	host     string
	account  string
	away     bool
	awayMsg  string
	operator string
	realName string
	server   string

	snap slot[*User]
}

// newUser creates a record from a mask or a bare nickname.
func newUser(nickOrMask string) *user {
	if nick, username, host, ok := parseMask(nickOrMask); ok {
		return &user{nick: nick, user: username, host: host}
	}
	return &user{nick: nickOrMask}
}

func (u *user) getNick() string {
	u.l.Lock()
	defer u.l.Unlock()
	return u.nick
}

// update runs f with the record locked and invalidates its snapshot.
func (u *user) update(f func(u *user)) {
	u.l.Lock()
	f(u)
	u.snap.invalidate()
	u.l.Unlock()
}

// mergeMask fills the user and host parts from a mask, when they differ from
// what is recorded.
func (u *user) mergeMask(mask string) {
	_, username, host, ok := parseMask(mask)
	if !ok {
		return
	}
	u.l.Lock()
	defer u.l.Unlock()
	if u.user == username && u.host == host {
		return
	}
	u.user = username
	u.host = host
	u.snap.invalidate()
}

func (u *user) snapshot() *User {
	u.l.Lock()
	defer u.l.Unlock()
	return u.snap.get(func() *User {
		return &User{
			nick:     u.nick,
			user:     u.user,
			host:     u.host,
			account:  u.account,
			away:     u.away,
			awayMsg:  u.awayMsg,
			operator: u.operator,
			realName: u.realName,
			server:   u.server,
		}
	})
}
