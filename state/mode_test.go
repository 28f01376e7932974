package state

import (
	"errors"
	"reflect"
	"testing"
)

var testLookup = ModeLookupFrom(DefaultChannelModes, DefaultStatusModes)

func mode(c byte) Mode {
	m, ok := testLookup(c)
	if !ok {
		panic("unknown test mode " + string(c))
	}
	return m
}

func assertParse(t *testing.T, input string, expected ModeStatusList) {
	t.Helper()
	actual, err := ParseModes(input, testLookup)
	if err != nil {
		t.Errorf("%q: unexpected error: %v", input, err)
		return
	}
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("%q: expected %v got %v", input, expected, actual)
	}
}

func assertParseError(t *testing.T, input string, expected error) {
	t.Helper()
	_, err := ParseModes(input, testLookup)
	if !errors.Is(err, expected) {
		t.Errorf("%q: expected error %v got %v", input, expected, err)
	}
	var perr *ModeParseError
	if err != nil && !errors.As(err, &perr) {
		t.Errorf("%q: expected a *ModeParseError got %T", input, err)
	}
}

func TestParseModes(t *testing.T) {
	assertParse(t, "+b *!*@host.example", ModeStatusList{
		{Action: Add, Mode: mode('b'), Param: "*!*@host.example"},
	})
	assertParse(t, "+o-v alice bob", ModeStatusList{
		{Action: Add, Mode: mode('o'), Param: "alice"},
		{Action: Remove, Mode: mode('v'), Param: "bob"},
	})
	assertParse(t, "+lk-l 10 secret", ModeStatusList{
		{Action: Add, Mode: mode('l'), Param: "10"},
		{Action: Add, Mode: mode('k'), Param: "secret"},
		{Action: Remove, Mode: mode('l')},
	})
	assertParse(t, "-k+nt secret", ModeStatusList{
		{Action: Remove, Mode: mode('k'), Param: "secret"},
		{Action: Add, Mode: mode('n')},
		{Action: Add, Mode: mode('t')},
	})
	assertParse(t, "+o alice -v bob", ModeStatusList{
		{Action: Add, Mode: mode('o'), Param: "alice"},
		{Action: Remove, Mode: mode('v'), Param: "bob"},
	})
	assertParse(t, "", nil)
}

func TestParseModesErrors(t *testing.T) {
	assertParseError(t, "o alice", ErrNoModeSign)
	assertParseError(t, "+n extra", ErrNoModeSign)
	assertParseError(t, "+X", ErrUnknownMode)
	assertParseError(t, "+ob alice", ErrMissingParameter)
	assertParseError(t, "-k", ErrMissingParameter)
}

func assertLines(t *testing.T, list ModeStatusList, max int, expected []string) {
	t.Helper()
	actual := list.Lines(max)
	if !reflect.DeepEqual(actual, expected) {
		t.Errorf("%v (max=%d): expected %q got %q", list, max, expected, actual)
	}
}

func TestModeLines(t *testing.T) {
	assertLines(t, ModeStatusList{}.Add(mode('b'), "*!*@host.example"), 0, []string{
		"+b *!*@host.example",
	})
	assertLines(t, ModeStatusList{}.
		Add(mode('o'), "a").
		Add(mode('o'), "b").
		Remove(mode('v'), "c").
		Add(mode('v'), "d").
		Add(mode('n'), ""), 0, []string{
		"+oo-v a b c",
		"+vn d",
	})
	assertLines(t, ModeStatusList{}.
		Add(mode('o'), "a").
		Add(mode('o'), "b").
		Add(mode('o'), "c"), 2, []string{
		"+oo a b",
		"+o c",
	})
	assertLines(t, ModeStatusList{}.
		Add(mode('i'), "").
		Add(mode('m'), "").
		Remove(mode('l'), ""), 1, []string{
		"+im-l",
	})
	assertLines(t, nil, 3, nil)
}

// sameChanges reports whether a and b hold the same changes, regardless of
// grouping.
func sameChanges(a, b ModeStatusList) bool {
	count := map[ModeStatus]int{}
	for _, ms := range a {
		count[ms]++
	}
	for _, ms := range b {
		count[ms]--
	}
	for _, n := range count {
		if n != 0 {
			return false
		}
	}
	return true
}

func TestModeRoundTrip(t *testing.T) {
	inputs := []string{
		"+b *!*@host.example",
		"+o-o+v-v a b c d",
		"+kl-b key 42 *!*@x",
		"-k+b-l key mask",
		"+imnpst",
		"+ooo-vvv a b c d e f",
	}
	for _, input := range inputs {
		list, err := ParseModes(input, testLookup)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", input, err)
			continue
		}
		var reparsed ModeStatusList
		for _, line := range list.Lines(DefaultMaxModesPerLine) {
			part, err := ParseModes(line, testLookup)
			if err != nil {
				t.Errorf("%q: line %q does not parse: %v", input, line, err)
				continue
			}
			reparsed = append(reparsed, part...)
		}
		if !sameChanges(list, reparsed) {
			t.Errorf("%q: expected %v got %v", input, list, reparsed)
		}
	}
}

func TestModeStatusString(t *testing.T) {
	cases := []struct {
		ms       ModeStatus
		expected string
	}{
		{ModeStatus{Action: Add, Mode: mode('l'), Param: "5"}, "+l 5"},
		{ModeStatus{Action: Remove, Mode: mode('l'), Param: "5"}, "-l"},
		{ModeStatus{Action: Remove, Mode: mode('o'), Param: "nick"}, "-o nick"},
		{ModeStatus{Action: Add, Mode: mode('t')}, "+t"},
	}
	for _, c := range cases {
		if actual := c.ms.String(); actual != c.expected {
			t.Errorf("expected %q got %q", c.expected, actual)
		}
	}
}

func TestModeTypeFromChanmodesIndex(t *testing.T) {
	expected := []ModeType{AlwaysListed, AlwaysParameterized, ParameterOnSet, NeverParameterized}
	for i, e := range expected {
		if actual, ok := ModeTypeFromChanmodesIndex(i); !ok || actual != e {
			t.Errorf("group %d: expected %s got %s (ok=%t)", i, e, actual, ok)
		}
	}
	if _, ok := ModeTypeFromChanmodesIndex(4); ok {
		t.Errorf("group 4: expected not ok")
	}
}
