package irc

// IRC replies handled by the session.
const (
	rplWelcome  = "001" // :Welcome message
	rplIsupport = "005" // 1*13<TOKEN[=value]> :are supported by this server

	rplEndofwho        = "315" // <name> :End of WHO list
	rplChannelmodeis   = "324" // <channel> <modes> <mode params>
	rplNotopic         = "331" // <channel> :No topic set
	rplTopic           = "332" // <channel> <topic>
	rplTopicwhotime    = "333" // <channel> <nick> <setat>
	rplInvitelist      = "346" // <channel> <invite mask> [<setter> <setat>]
	rplEndofinvitelist = "347" // <channel> :End of invite list
	rplExceptlist      = "348" // <channel> <exception mask> [<setter> <setat>]
	rplEndofexceptlist = "349" // <channel> :End of exception list
	rplWhoreply        = "352" // <channel> <user> <host> <server> <nick> "H"/"G" ["*"] [("@"/"+")] :<hop count> <real name>
	rplNamreply        = "353" // <=/*/@> <channel> :1*(@/ /+user)
	rplWhospcrpl       = "354" // WHOX reply, fields depend on the request
	rplEndofnames      = "366" // <channel> :End of names list
	rplBanlist         = "367" // <channel> <ban mask> [<setter> <setat>]
	rplEndofbanlist    = "368" // <channel> :End of ban list

	errNicknameinuse    = "433" // <nick> :Nickname in use
	errErroneusnickname = "432" // <nick> :Erroneous nickname
)

// listReplies maps the numerics of list mode replies to the mode they list,
// and to the numeric ending the list.
var listReplies = map[string]struct {
	mode byte
	end  string
}{
	rplBanlist:    {'b', rplEndofbanlist},
	rplInvitelist: {'I', rplEndofinvitelist},
	rplExceptlist: {'e', rplEndofexceptlist},
}
