package state

import (
	"regexp"
	"strings"
)

// Actor is anything the protocol can name: a user, a channel, a server, or
// a name that is none of those.  Actors handed out by the Tracker are
// immutable snapshots.
type Actor interface {
	Name() string
}

// Server is a server name, as found in message prefixes or WHO replies.
type Server struct {
	name string
}

func (s *Server) Name() string {
	return s.name
}

// Named is an actor that is neither a user, a channel or a server.
type Named struct {
	name string
}

func (n *Named) Name() string {
	return n.name
}

var serverPattern = regexp.MustCompile(`^[A-Za-z0-9\-]+(\.[A-Za-z0-9\-]+)+\.?$`)

// isServerName reports whether name looks like a server host name.  The
// empty prefix also denotes the server we are connected to.
func isServerName(name string) bool {
	return name == "" || serverPattern.MatchString(name)
}

// parseMask splits a "nick!user@host" mask.  ok is false if s is not a full
// mask.
func parseMask(s string) (nick, user, host string, ok bool) {
	bang := strings.IndexByte(s, '!')
	if bang <= 0 {
		return
	}
	at := strings.IndexByte(s[bang+1:], '@')
	if at <= 0 {
		return
	}
	at += bang + 1
	if at == len(s)-1 {
		return
	}
	return s[:bang], s[bang+1 : at], s[at+1:], true
}

// maskOf builds the mask of a user, using "*" for the parts that are not
// known.
func maskOf(nick, user, host string) string {
	if user == "" {
		user = "*"
	}
	if host == "" {
		host = "*"
	}
	return nick + "!" + user + "@" + host
}
