package plist

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// SyntaxError describes malformed plist input.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Line == 0 {
		return "plist: " + e.Msg
	}
	return fmt.Sprintf("plist: line %d: %s", e.Line, e.Msg)
}

// ParseASCII decodes an OpenStep property list. Comments are discarded.
func ParseASCII(data []byte) (Value, error) {
	p := &asciiParser{src: data, line: 1}
	p.skip()
	if p.eof() {
		return nil, p.errorf("empty document")
	}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skip()
	if !p.eof() {
		return nil, p.errorf("unexpected %q after top-level value", p.peek())
	}
	return v, nil
}

type asciiParser struct {
	src  []byte
	pos  int
	line int
}

func (p *asciiParser) eof() bool  { return p.pos >= len(p.src) }
func (p *asciiParser) peek() byte { return p.src[p.pos] }

func (p *asciiParser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *asciiParser) advance() byte {
	c := p.src[p.pos]
	p.pos++
	if c == '\n' {
		p.line++
	}
	return c
}

// skip consumes whitespace and comments.
func (p *asciiParser) skip() {
	for !p.eof() {
		c := p.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			p.advance()
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/':
			for !p.eof() && p.peek() != '\n' {
				p.advance()
			}
		case c == '/' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '*':
			p.advance()
			p.advance()
			for !p.eof() {
				if p.peek() == '*' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '/' {
					p.advance()
					p.advance()
					break
				}
				p.advance()
			}
		default:
			return
		}
	}
}

func (p *asciiParser) expect(c byte) error {
	p.skip()
	if p.eof() {
		return p.errorf("expected %q, found end of input", c)
	}
	if p.peek() != c {
		return p.errorf("expected %q, found %q", c, p.peek())
	}
	p.advance()
	return nil
}

func (p *asciiParser) value() (Value, error) {
	p.skip()
	if p.eof() {
		return nil, p.errorf("unexpected end of input")
	}
	switch c := p.peek(); {
	case c == '{':
		return p.dict()
	case c == '(':
		return p.array()
	case c == '<':
		return p.data()
	case c == '"' || c == '\'':
		s, err := p.quoted()
		return String(s), err
	case isUnquoted(c):
		return String(p.unquoted()), nil
	default:
		return nil, p.errorf("unexpected %q", c)
	}
}

func (p *asciiParser) dict() (Value, error) {
	p.advance()
	d := NewDict()
	for {
		p.skip()
		if p.eof() {
			return nil, p.errorf("unterminated dictionary")
		}
		if p.peek() == '}' {
			p.advance()
			return d, nil
		}
		k, err := p.value()
		if err != nil {
			return nil, err
		}
		key, ok := k.(String)
		if !ok {
			return nil, p.errorf("dictionary key must be a string")
		}
		if err := p.expect('='); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		if err := p.expect(';'); err != nil {
			return nil, err
		}
		d.Set(string(key), v)
	}
}

func (p *asciiParser) array() (Value, error) {
	p.advance()
	arr := Array{}
	for {
		p.skip()
		if p.eof() {
			return nil, p.errorf("unterminated array")
		}
		if p.peek() == ')' {
			p.advance()
			return arr, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
		p.skip()
		if p.eof() {
			return nil, p.errorf("unterminated array")
		}
		switch p.peek() {
		case ',':
			p.advance()
		case ')':
		default:
			return nil, p.errorf("expected ',' or ')' in array, found %q", p.peek())
		}
	}
}

func (p *asciiParser) data() (Value, error) {
	p.advance()
	var hexDigits strings.Builder
	for {
		if p.eof() {
			return nil, p.errorf("unterminated data")
		}
		c := p.advance()
		if c == '>' {
			break
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			continue
		}
		hexDigits.WriteByte(c)
	}
	b, err := hex.DecodeString(hexDigits.String())
	if err != nil {
		return nil, p.errorf("invalid data: %v", err)
	}
	return Data(b), nil
}

func (p *asciiParser) quoted() (string, error) {
	q := p.advance()
	var b strings.Builder
	for {
		if p.eof() {
			return "", p.errorf("unterminated string")
		}
		c := p.advance()
		if c == q {
			return b.String(), nil
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if p.eof() {
			return "", p.errorf("unterminated escape")
		}
		e := p.advance()
		switch e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case 'U':
			if p.pos+4 > len(p.src) {
				return "", p.errorf("short unicode escape")
			}
			n, err := strconv.ParseUint(string(p.src[p.pos:p.pos+4]), 16, 32)
			if err != nil {
				return "", p.errorf("invalid unicode escape")
			}
			p.pos += 4
			b.WriteRune(rune(n))
		case '0', '1', '2', '3', '4', '5', '6', '7':
			end := p.pos
			for end < len(p.src) && end < p.pos+2 && p.src[end] >= '0' && p.src[end] <= '7' {
				end++
			}
			n, _ := strconv.ParseUint(string(e)+string(p.src[p.pos:end]), 8, 8)
			p.pos = end
			b.WriteByte(byte(n))
		default:
			b.WriteByte(e)
		}
	}
}

func (p *asciiParser) unquoted() string {
	start := p.pos
	for !p.eof() && isUnquoted(p.peek()) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

func isUnquoted(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("_$+/:.-", c) >= 0
}

// needsQuotes reports whether s must be quoted in OpenStep output.
// Xcode leaves [A-Za-z0-9_$/:.] bare and quotes everything else, including
// strings holding "___" and the empty string.
func needsQuotes(s string) bool {
	if s == "" || strings.Contains(s, "___") {
		return true
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' || c == '+' || !isUnquoted(c) {
			return true
		}
	}
	return false
}

// Quote renders s the way Xcode writes a string value.
func Quote(s string) string {
	if !needsQuotes(s) {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteString(s[:size])
		}
		s = s[size:]
	}
	b.WriteByte('"')
	return b.String()
}
