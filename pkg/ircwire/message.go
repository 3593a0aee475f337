// Package ircwire implements RFC 1459/2812 line framing and message
// parsing: splitting a connection's byte stream into CRLF-terminated
// lines and turning each line into a Message (prefix, command, params,
// trailing).
package ircwire

import "strings"

// MaxLineLen is the protocol line length limit (including CRLF).
const MaxLineLen = 512

// Message is one parsed protocol line.
type Message struct {
	Prefix  string // source prefix, without leading ':'; empty if absent
	Command string // verb (uppercased) or 3-digit numeric, kept literal
	Params  []string
}

// Trailing returns the last parameter, and ok reports whether there were
// any params at all. Message does not record whether that parameter was
// introduced with ':', so a final middle parameter is returned the same way.
func (m Message) Trailing() (string, bool) {
	if len(m.Params) == 0 {
		return "", false
	}
	return m.Params[len(m.Params)-1], true
}

// Parse turns a single already-framed line (no CRLF, no leading/trailing
// whitespace stripped) into a Message. Returns ok=false for lines that
// parse to nothing usable (e.g. empty after prefix).
func Parse(line string) (Message, bool) {
	var m Message

	if line == "" {
		return m, false
	}

	if line[0] == ':' {
		sp := strings.IndexByte(line, ' ')
		if sp == -1 {
			return m, false
		}
		m.Prefix = line[1:sp]
		line = strings.TrimLeft(line[sp+1:], " ")
	}

	if line == "" {
		return m, false
	}

	sp := strings.IndexByte(line, ' ')
	var cmd string
	if sp == -1 {
		cmd = line
		line = ""
	} else {
		cmd = line[:sp]
		line = strings.TrimLeft(line[sp+1:], " ")
	}
	if cmd == "" {
		return m, false
	}
	if !isNumeric(cmd) {
		cmd = strings.ToUpper(cmd)
	}
	m.Command = cmd

	for len(m.Params) < 14 && line != "" {
		if line[0] == ':' {
			m.Params = append(m.Params, line[1:])
			line = ""
			break
		}
		sp := strings.IndexByte(line, ' ')
		if sp == -1 {
			m.Params = append(m.Params, line)
			line = ""
			break
		}
		m.Params = append(m.Params, line[:sp])
		line = strings.TrimLeft(line[sp+1:], " ")
	}
	if line != "" {
		// 15th and final parameter: consumes the remainder verbatim,
		// trailing ':' sigil stripped if present.
		m.Params = append(m.Params, strings.TrimPrefix(line, ":"))
	}

	return m, true
}

func isNumeric(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// String reserializes a Message to wire form (without trailing CRLF).
// Reparsing the result reproduces the same Message modulo whitespace
// normalization of the trailing-parameter separator.
func (m Message) String() string {
	var b strings.Builder
	if m.Prefix != "" {
		b.WriteByte(':')
		b.WriteString(m.Prefix)
		b.WriteByte(' ')
	}
	b.WriteString(m.Command)
	for i, p := range m.Params {
		b.WriteByte(' ')
		last := i == len(m.Params)-1
		if last && (p == "" || strings.ContainsRune(p, ' ') || strings.HasPrefix(p, ":")) {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}
	return b.String()
}
