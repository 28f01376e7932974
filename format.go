package ircstate

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"

	"git.sr.ht/~taiite/ircstate/state"
)

// widthBuffer measures the width of text on a terminal, skipping IRC
// formatting codes.
type widthBuffer struct {
	width int
	color int
}

func (wb *widthBuffer) WriteString(s string) {
	for _, r := range s {
		wb.WriteRune(r)
	}
}

// WriteRune follows the color code state machine: ^C, then up to two digits
// of foreground, then a comma and up to two digits of background.
func (wb *widthBuffer) WriteRune(r rune) {
	switch wb.color {
	case 1:
		if '0' <= r && r <= '9' {
			wb.color = 2
			return
		}
		wb.color = 0
	case 2:
		if '0' <= r && r <= '9' {
			wb.color = 3
			return
		}
		if r == ',' {
			wb.color = 4
			return
		}
		wb.color = 0
	case 3:
		if r == ',' {
			wb.color = 4
			return
		}
		wb.color = 0
	case 4:
		if '0' <= r && r <= '9' {
			wb.color = 5
			return
		}
		// the comma was text.
		wb.width++
		wb.color = 0
	case 5:
		wb.color = 0
		if '0' <= r && r <= '9' {
			return
		}
	}

	if r == 0x03 {
		wb.color = 1
		return
	}

	wb.width += runewidth.RuneWidth(r)
}

func stringWidth(s string) int {
	var wb widthBuffer
	wb.WriteString(s)
	return wb.width
}

// fillRight pads s with spaces up to the given width.
func fillRight(s string, width int) string {
	if n := width - stringWidth(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

// memberName returns the nickname of a member, behind the prefix of its
// highest status mode.
func memberName(m state.Member) string {
	if len(m.Modes) == 0 {
		return m.Nick
	}
	return string(m.Modes[0].Prefix) + m.Nick
}

// WriteMembers writes the members of c in columns that fit in width.
func WriteMembers(w io.Writer, c *state.Channel, width int) error {
	members := c.Members()
	if len(members) == 0 {
		return nil
	}

	names := make([]string, len(members))
	cell := 0
	for i, m := range members {
		names[i] = memberName(m)
		if nw := stringWidth(names[i]); cell < nw {
			cell = nw
		}
	}
	cell += 2

	perRow := width / cell
	if perRow < 1 {
		perRow = 1
	}

	var sb strings.Builder
	for i, name := range names {
		last := i == len(names)-1 || (i+1)%perRow == 0
		if last {
			sb.WriteString(name)
			sb.WriteByte('\n')
		} else {
			sb.WriteString(fillRight(name, cell))
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// WriteChannel writes a one line summary of c, truncated to width.
func WriteChannel(w io.Writer, c *state.Channel, width int) error {
	var sb strings.Builder
	sb.WriteString(c.Name())
	fmt.Fprintf(&sb, " (%d members", len(c.Nicknames()))
	if !c.HasCompleteList() {
		sb.WriteString(", incomplete")
	}
	sb.WriteByte(')')
	if modes := c.Modes(); len(modes) != 0 {
		sb.WriteByte(' ')
		sb.WriteString(modes.String())
	}
	if topic := c.Topic(); topic.Value != "" {
		sb.WriteString(": ")
		sb.WriteString(topic.Value)
	}

	line := sb.String()
	if width > 0 && stringWidth(line) > width {
		line = runewidth.Truncate(line, width, "…")
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// WriteUser writes what is known about u, one field per line.
func WriteUser(w io.Writer, u *state.User) error {
	fields := [][2]string{
		{"Mask", u.Name()},
		{"Real name", u.RealName()},
		{"Server", u.Server()},
	}
	if account, ok := u.Account(); ok {
		fields = append(fields, [2]string{"Account", account})
	}
	if u.IsAway() {
		msg := u.AwayMessage()
		if msg == "" {
			msg = "yes"
		}
		fields = append(fields, [2]string{"Away", msg})
	}
	if op := u.Operator(); op != "" {
		fields = append(fields, [2]string{"Operator", op})
	}

	keyWidth := 0
	for _, f := range fields {
		if keyWidth < len(f[0]) {
			keyWidth = len(f[0])
		}
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s  %s\n", fillRight(f[0]+":", keyWidth+1), f[1]); err != nil {
			return err
		}
	}
	return nil
}
