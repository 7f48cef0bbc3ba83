// FILE: haystackauth/src/internal/challenge/parser.go
package challenge

import (
	"fmt"
	"strings"
)

const eof = -1

// Parser tokenizes an auth header value of the form
//
//	auth-scheme [ 1*SP auth-param *( OWS "," OWS auth-param ) ] *( OWS "," OWS challenge )
//
// Each call to Next returns the following challenge. Probing for another
// auth-param is done against a saved cursor mark so that a failed probe leaves
// the next scheme's name unconsumed.
type Parser struct {
	buf     string
	pos     int
	schemes int
}

// NewParser creates a parser positioned at the start of header.
func NewParser(header string) *Parser {
	return &Parser{buf: header}
}

// Next returns the next challenge, or nil at end of input.
func (p *Parser) Next() (*Challenge, error) {
	if p.eof() {
		return nil, nil
	}

	if p.schemes > 0 {
		if err := p.commaOWS(); err != nil {
			return nil, err
		}
		// A trailing list separator ends the header
		if p.eof() {
			return nil, nil
		}
	}

	name := p.parseToken(" \t,")
	if name == "" {
		return nil, p.errorf("expected auth-scheme")
	}
	p.schemes++

	c := &Challenge{
		Scheme: strings.ToLower(name),
		Params: Params{},
	}
	if !p.isOWS() {
		return c, nil
	}
	p.ows()

	params, err := p.parseAuthParams()
	if err != nil {
		return nil, err
	}
	c.Params = params
	return c, nil
}

// ParseChallenges returns every challenge in header, in order.
func ParseChallenges(header string) ([]*Challenge, error) {
	p := NewParser(header)
	var out []*Challenge
	for {
		c, err := p.Next()
		if err != nil {
			return nil, err
		}
		if c == nil {
			return out, nil
		}
		out = append(out, c)
	}
}

// ParseFirst returns the first challenge in header.
func ParseFirst(header string) (*Challenge, error) {
	c, err := NewParser(header).Next()
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, &ParseError{Header: header, Msg: "no auth-scheme present"}
	}
	return c, nil
}

// ParseParams parses a bare auth-param list with no leading scheme, the
// shape used by Authentication-Info.
func ParseParams(header string) (Params, error) {
	p := NewParser(header)
	p.ows()
	params, err := p.parseAuthParams()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, p.errorf("unexpected %q", p.buf[p.pos:])
	}
	return params, nil
}

func (p *Parser) parseAuthParams() (Params, error) {
	params := Params{}
	for !p.eof() {
		start := p.mark()
		if len(params) > 0 {
			if err := p.commaOWS(); err != nil {
				return nil, err
			}
		}

		ok, err := p.parseAuthParam(params)
		if err != nil {
			return nil, err
		}
		if !ok {
			// The separator belongs to the next challenge
			p.reset(start)
			break
		}
		p.ows()
	}
	return params, nil
}

// parseAuthParam reads token OWS "=" OWS ( token / quoted-string ).
// It returns false with the cursor restored when no "key =" is present.
func (p *Parser) parseAuthParam(params Params) (bool, error) {
	if p.eof() {
		return false, nil
	}

	start := p.mark()
	key := p.parseToken(" \t=,")
	p.ows()
	if key == "" || p.cur() != '=' {
		p.reset(start)
		return false, nil
	}
	p.consume()
	p.ows()

	var val string
	switch {
	case p.cur() == '"':
		var err error
		if val, err = p.parseQuotedString(); err != nil {
			return false, err
		}
	case p.eof():
		return false, p.errorf("unexpected end of input, expected value for %q", key)
	default:
		val = p.parseToken(" \t,")
		if val == "" {
			return false, p.errorf("expected value for %q", key)
		}
	}
	p.ows()

	params[strings.ToLower(key)] = val
	return true, nil
}

func (p *Parser) parseQuotedString() (string, error) {
	start := p.pos
	p.consume()

	var sb strings.Builder
	for {
		switch c := p.cur(); c {
		case eof:
			return "", &ParseError{Header: p.buf, Pos: start, Msg: "unterminated quoted-string"}
		case '"':
			p.consume()
			return sb.String(), nil
		case '\\':
			p.consume()
			if p.eof() {
				return "", &ParseError{Header: p.buf, Pos: start, Msg: "unterminated quoted-string"}
			}
			sb.WriteByte(byte(p.cur()))
			p.consume()
		default:
			sb.WriteByte(byte(c))
			p.consume()
		}
	}
}

// parseToken consumes bytes up to the first terminator or end of input.
func (p *Parser) parseToken(terms string) string {
	start := p.pos
	for !p.eof() && strings.IndexByte(terms, byte(p.cur())) < 0 {
		p.consume()
	}
	return p.buf[start:p.pos]
}

func (p *Parser) commaOWS() error {
	if p.cur() != ',' {
		return p.errorf("expected ','")
	}
	p.consume()
	p.ows()
	return nil
}

func (p *Parser) ows() {
	for p.isOWS() {
		p.consume()
	}
}

func (p *Parser) isOWS() bool {
	c := p.cur()
	return c == ' ' || c == '\t'
}

func (p *Parser) cur() int {
	if p.pos >= len(p.buf) {
		return eof
	}
	return int(p.buf[p.pos])
}

func (p *Parser) eof() bool {
	return p.pos >= len(p.buf)
}

func (p *Parser) consume() {
	if p.pos < len(p.buf) {
		p.pos++
	}
}

func (p *Parser) mark() int {
	return p.pos
}

func (p *Parser) reset(mark int) {
	p.pos = mark
}

func (p *Parser) errorf(format string, args ...any) error {
	return &ParseError{Header: p.buf, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}
