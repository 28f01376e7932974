package ircstate

import (
	"strings"
	"testing"

	"git.sr.ht/~taiite/ircstate/irc"
	"git.sr.ht/~taiite/ircstate/state"
)

func assertStringWidth(t *testing.T, input string, expected int) {
	actual := stringWidth(input)
	if actual != expected {
		t.Errorf("%q: expected width of %d got %d", input, expected, actual)
	}
}

func TestStringWidth(t *testing.T) {
	assertStringWidth(t, "", 0)

	assertStringWidth(t, "hello", 5)
	assertStringWidth(t, "\x02hello", 5)
	assertStringWidth(t, "\x035hello", 5)
	assertStringWidth(t, "\x0305hello", 5)
	assertStringWidth(t, "\x0305,0hello", 5)
	assertStringWidth(t, "\x0305,09hello", 5)

	assertStringWidth(t, "\x0305,hello", 6)
	assertStringWidth(t, "\x03050hello", 6)
	assertStringWidth(t, "\x0305,090hello", 6)

	assertStringWidth(t, "日本", 4)
}

func TestFillRight(t *testing.T) {
	if actual := fillRight("\x02ab", 4); actual != "\x02ab  " {
		t.Errorf("expected %q, got %q", "\x02ab  ", actual)
	}
	if actual := fillRight("abcdef", 4); actual != "abcdef" {
		t.Errorf("expected %q, got %q", "abcdef", actual)
	}
}

// channelWith returns the snapshot of #test, joined with the given NAMES.
func channelWith(t *testing.T, names string) *state.Channel {
	t.Helper()
	out := irc.NewOutbox()
	s, err := irc.NewSession(out, irc.SessionParams{Nickname: "me"})
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range []string{
		":srv 001 me :Welcome",
		":srv 005 me PREFIX=(ov)@+ :are supported",
		":me!me@h JOIN #test",
		":srv 353 me = #test :" + names,
		":srv 366 me #test :End",
		":srv 332 me #test :a long enough topic",
	} {
		msg, err := irc.ParseMessage(line)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.HandleMessage(msg); err != nil {
			t.Fatal(err)
		}
	}
	c, ok := s.Tracker().Channel("#test")
	if !ok {
		t.Fatal("#test is not tracked")
	}
	return c
}

func TestWriteMembers(t *testing.T) {
	c := channelWith(t, "me @alice +bob carol dave")

	var sb strings.Builder
	if err := WriteMembers(&sb, c, 20); err != nil {
		t.Fatal(err)
	}
	expected := "@alice  +bob\ncarol   dave\nme\n"
	if sb.String() != expected {
		t.Errorf("expected %q, got %q", expected, sb.String())
	}
}

func TestWriteChannel(t *testing.T) {
	c := channelWith(t, "me alice")

	var sb strings.Builder
	if err := WriteChannel(&sb, c, 0); err != nil {
		t.Fatal(err)
	}
	expected := "#test (2 members): a long enough topic\n"
	if sb.String() != expected {
		t.Errorf("expected %q, got %q", expected, sb.String())
	}

	sb.Reset()
	if err := WriteChannel(&sb, c, 24); err != nil {
		t.Fatal(err)
	}
	if w := stringWidth(strings.TrimSuffix(sb.String(), "\n")); w > 24 {
		t.Errorf("expected at most 24 columns, got %d in %q", w, sb.String())
	}
}
