package irc

// Names are byte strings: folding works byte by byte, so that names which are
// not valid UTF-8 keep distinct keys.

// CasemapASCII maps A-Z to a-z.
func CasemapASCII(name string) string {
	b := []byte(name)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

// CasemapRFC1459 maps A-Z and []\~ to a-z and {}|^.
func CasemapRFC1459(name string) string {
	b := []byte(name)
	for i, c := range b {
		b[i] = foldRFC1459(c)
		if c == '~' {
			b[i] = '^'
		}
	}
	return string(b)
}

// CasemapRFC1459Strict is like CasemapRFC1459, but leaves '~' alone.
func CasemapRFC1459Strict(name string) string {
	b := []byte(name)
	for i, c := range b {
		b[i] = foldRFC1459(c)
	}
	return string(b)
}

func foldRFC1459(c byte) byte {
	switch {
	case 'A' <= c && c <= 'Z':
		return c + 'a' - 'A'
	case c == '[':
		return '{'
	case c == ']':
		return '}'
	case c == '\\':
		return '|'
	}
	return c
}

// casemappings maps CASEMAPPING values to casemapping functions.
var casemappings = map[string]func(string) string{
	"ascii":          CasemapASCII,
	"rfc1459":        CasemapRFC1459,
	"rfc1459-strict": CasemapRFC1459Strict,
}
