package wed

import (
	"fmt"
	"strings"
)

// clauseParser is a small hand-written scanner for the four clause forms.
// A regular-expression based matcher was considered and rejected: the
// grammar is four fixed shapes over a single identifier and one quoted
// literal (or bracketed literal list), which a handful of string scans
// express more plainly than a multi-alternative regexp would.
type clauseParser struct {
	src string
	pos int
}

func (p *clauseParser) parse() (Dependency, error) {
	p.skipSpace()
	if !p.consumeByte('$') {
		return Dependency{}, fmt.Errorf("expected '$' at start of clause")
	}
	id := p.scanIdentifier()
	if id == "" {
		return Dependency{}, fmt.Errorf("expected identifier after '$'")
	}
	v, err := NewVariable(id)
	if err != nil {
		return Dependency{}, err
	}
	p.skipSpace()

	switch {
	case p.consumeLiteralWord("not in"):
		lits, err := p.scanLiteralList()
		if err != nil {
			return Dependency{}, err
		}
		return Dependency{Kind: NoMembership, On: v, Literals: lits}, p.finish()
	case p.consumeLiteralWord("in"):
		lits, err := p.scanLiteralList()
		if err != nil {
			return Dependency{}, err
		}
		return Dependency{Kind: Membership, On: v, Literals: lits}, p.finish()
	case p.consumeByte('!'):
		if !p.consumeByte('=') {
			return Dependency{}, fmt.Errorf("expected '=' after '!'")
		}
		lit, err := p.scanQuotedLiteral()
		if err != nil {
			return Dependency{}, err
		}
		return Dependency{Kind: Inequality, On: v, Literal: lit}, p.finish()
	case p.consumeByte('='):
		lit, err := p.scanQuotedLiteral()
		if err != nil {
			return Dependency{}, err
		}
		return Dependency{Kind: Equality, On: v, Literal: lit}, p.finish()
	default:
		return Dependency{}, fmt.Errorf("expected one of '=', '!=', 'in', 'not in'")
	}
}

func (p *clauseParser) finish() error {
	p.skipSpace()
	if p.pos != len(p.src) {
		return fmt.Errorf("unexpected trailing input %q", p.src[p.pos:])
	}
	return nil
}

func (p *clauseParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *clauseParser) consumeByte(b byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == b {
		p.pos++
		return true
	}
	return false
}

func (p *clauseParser) consumeLiteralWord(word string) bool {
	save := p.pos
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], word) {
		// require a following space or bracket so "in" doesn't match "index".
		end := p.pos + len(word)
		if end == len(p.src) || p.src[end] == ' ' || p.src[end] == '[' {
			p.pos = end
			return true
		}
	}
	p.pos = save
	return false
}

func (p *clauseParser) scanIdentifier() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *clauseParser) scanQuotedLiteral() (string, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return "", fmt.Errorf("expected quoted literal")
	}
	quote := p.src[p.pos]
	if quote != '"' && quote != '\'' {
		return "", fmt.Errorf("expected quote character, got %q", p.src[p.pos:])
	}
	p.pos++
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != quote {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return "", fmt.Errorf("unterminated quoted literal")
	}
	lit := p.src[start:p.pos]
	p.pos++ // closing quote
	if !ValidValue(lit) {
		return "", fmt.Errorf("literal %q is not a valid value", lit)
	}
	return lit, nil
}

func (p *clauseParser) scanLiteralList() ([]string, error) {
	p.skipSpace()
	if !p.consumeByte('[') {
		return nil, fmt.Errorf("expected '[' to start a literal list")
	}
	var lits []string
	p.skipSpace()
	if p.consumeByte(']') {
		return lits, nil
	}
	for {
		lit, err := p.scanQuotedLiteral()
		if err != nil {
			return nil, err
		}
		lits = append(lits, lit)
		p.skipSpace()
		if p.consumeByte(',') {
			continue
		}
		if p.consumeByte(']') {
			break
		}
		return nil, fmt.Errorf("expected ',' or ']' in literal list")
	}
	return lits, nil
}
