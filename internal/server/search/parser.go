package search

// Grammar:
//
//	query    = or EOF
//	or       = and { ("OR" | "||") and }
//	and      = not { ["AND" | "&&"] not }
//	not      = ("NOT" | "!" | "-") not | primary
//	primary  = "(" or ")" | term ":" value
//	value    = term | phrase | range | compare | "(" group ")"
//
// A field group such as family:(emotet OR qakbot) is expanded into one
// FieldNode per value.

type parser struct {
	tokens []token
	pos    int
}

// Parse turns query text into an expression tree. An empty query yields nil.
func Parse(query string) (Node, error) {
	tokens, err := lex(query)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	if p.peek().kind == tokEOF {
		return nil, nil
	}

	n, err := p.parseOr(p.parsePrimary)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, syntaxErrorf(t.pos, "unexpected %s", describe(t))
	}
	return n, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, syntaxErrorf(t.pos, "expected %s, got %s", kind, describe(t))
	}
	return t, nil
}

type leafFunc func() (Node, error)

func (p *parser) parseOr(leaf leafFunc) (Node, error) {
	first, err := p.parseAnd(leaf)
	if err != nil {
		return nil, err
	}
	children := []Node{first}
	for p.peek().kind == tokOr {
		p.next()
		n, err := p.parseAnd(leaf)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	if len(children) == 1 {
		return first, nil
	}
	return &OrNode{Children: children}, nil
}

func (p *parser) parseAnd(leaf leafFunc) (Node, error) {
	first, err := p.parseNot(leaf)
	if err != nil {
		return nil, err
	}
	children := []Node{first}
	for {
		switch p.peek().kind {
		case tokAnd:
			p.next()
		case tokTerm, tokPhrase, tokNot, tokLParen, tokRangeOpen, tokCompare:
			// implicit AND
		default:
			if len(children) == 1 {
				return first, nil
			}
			return &AndNode{Children: children}, nil
		}
		n, err := p.parseNot(leaf)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
}

func (p *parser) parseNot(leaf leafFunc) (Node, error) {
	if p.peek().kind == tokNot {
		p.next()
		child, err := p.parseNot(leaf)
		if err != nil {
			return nil, err
		}
		return &NotNode{Child: child}, nil
	}
	if p.peek().kind == tokLParen {
		open := p.next()
		n, err := p.parseOr(leaf)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, syntaxErrorf(open.pos, "unbalanced parenthesis")
		}
		return n, nil
	}
	return leaf()
}

func (p *parser) parsePrimary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokTerm:
	case tokPhrase:
		return nil, semanticErrorf(t.pos, "unfielded phrase %q, use field:value", t.text)
	case tokEOF:
		return nil, syntaxErrorf(t.pos, "unexpected end of query")
	default:
		return nil, syntaxErrorf(t.pos, "unexpected %s", describe(t))
	}

	if p.peek().kind != tokColon {
		return nil, semanticErrorf(t.pos, "unfielded term %q, use field:value", t.text)
	}
	p.next()

	field := t.text
	fieldPos := t.pos

	if p.peek().kind == tokLParen {
		open := p.next()
		n, err := p.parseOr(func() (Node, error) {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			return &FieldNode{Field: field, Pos: fieldPos, Value: v}, nil
		})
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, syntaxErrorf(open.pos, "unbalanced parenthesis")
		}
		return n, nil
	}

	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &FieldNode{Field: field, Pos: fieldPos, Value: v}, nil
}

func (p *parser) parseValue() (Value, error) {
	t := p.next()
	switch t.kind {
	case tokTerm:
		return &TermValue{Raw: t.text, Pos: t.pos}, nil
	case tokPhrase:
		return &TermValue{Raw: t.text, Quoted: true, Pos: t.pos}, nil
	case tokCompare:
		v := p.next()
		if v.kind != tokTerm && v.kind != tokPhrase {
			return nil, syntaxErrorf(v.pos, "expected value after %s", t.text)
		}
		return &CompareValue{Op: t.text, Value: TermValue{Raw: v.text, Quoted: v.kind == tokPhrase, Pos: v.pos}, Pos: t.pos}, nil
	case tokRangeOpen:
		return p.parseRange(t)
	case tokEOF:
		return nil, syntaxErrorf(t.pos, "missing value")
	}
	return nil, syntaxErrorf(t.pos, "unexpected %s", describe(t))
}

func (p *parser) parseRange(open token) (Value, error) {
	low, err := p.parseBound()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokTo); err != nil {
		return nil, err
	}
	high, err := p.parseBound()
	if err != nil {
		return nil, err
	}
	closing, err := p.expect(tokRangeClose)
	if err != nil {
		return nil, err
	}
	return &RangeValue{
		Low:           low,
		High:          high,
		InclusiveLow:  open.text == "[",
		InclusiveHigh: closing.text == "]",
		Pos:           open.pos,
	}, nil
}

func (p *parser) parseBound() (*TermValue, error) {
	t := p.next()
	switch t.kind {
	case tokTerm:
		if t.text == "*" {
			return nil, nil
		}
		return &TermValue{Raw: t.text, Pos: t.pos}, nil
	case tokPhrase:
		return &TermValue{Raw: t.text, Quoted: true, Pos: t.pos}, nil
	}
	return nil, syntaxErrorf(t.pos, "expected range bound, got %s", describe(t))
}

func describe(t token) string {
	if t.kind == tokEOF {
		return t.kind.String()
	}
	return t.kind.String() + " " + `"` + t.text + `"`
}
