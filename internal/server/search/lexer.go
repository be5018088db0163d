package search

import (
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokTerm
	tokPhrase
	tokColon
	tokLParen
	tokRParen
	tokRangeOpen  // [ or {
	tokRangeClose // ] or }
	tokTo
	tokAnd
	tokOr
	tokNot
	tokCompare // >, >=, <, <=
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokTerm:
		return "term"
	case tokPhrase:
		return "phrase"
	case tokColon:
		return "':'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokRangeOpen:
		return "range start"
	case tokRangeClose:
		return "range end"
	case tokTo:
		return "TO"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	case tokCompare:
		return "comparison"
	}
	return "unknown"
}

type token struct {
	kind tokenKind
	text string // raw text; escapes are kept for terms, removed for phrases
	pos  int
}

const specialChars = `():"[]{}`

// lex splits query into tokens. Keywords are recognized only in upper case.
func lex(query string) ([]token, error) {
	var tokens []token
	i := 0
	n := len(query)

	// prefixAllowed is true where a leading '-' or '!' acts as NOT.
	prefixAllowed := true

	for i < n {
		c := query[i]

		if isSpace(c) {
			i++
			prefixAllowed = true
			continue
		}

		switch {
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
			prefixAllowed = true
			continue
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
			prefixAllowed = false
			continue
		case c == ':':
			tokens = append(tokens, token{kind: tokColon, text: ":", pos: i})
			i++
			prefixAllowed = false
			continue
		case c == '[' || c == '{':
			tokens = append(tokens, token{kind: tokRangeOpen, text: string(c), pos: i})
			i++
			prefixAllowed = false
			continue
		case c == ']' || c == '}':
			tokens = append(tokens, token{kind: tokRangeClose, text: string(c), pos: i})
			i++
			prefixAllowed = false
			continue
		case c == '"':
			text, next, err := lexPhrase(query, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokPhrase, text: text, pos: i})
			i = next
			prefixAllowed = false
			continue
		case c == '&' && i+1 < n && query[i+1] == '&':
			tokens = append(tokens, token{kind: tokAnd, text: "&&", pos: i})
			i += 2
			prefixAllowed = true
			continue
		case c == '|' && i+1 < n && query[i+1] == '|':
			tokens = append(tokens, token{kind: tokOr, text: "||", pos: i})
			i += 2
			prefixAllowed = true
			continue
		case (c == '!' || c == '-') && prefixAllowed:
			tokens = append(tokens, token{kind: tokNot, text: string(c), pos: i})
			i++
			continue
		case c == '>' || c == '<':
			op := string(c)
			if i+1 < n && query[i+1] == '=' {
				op += "="
			}
			tokens = append(tokens, token{kind: tokCompare, text: op, pos: i})
			i += len(op)
			prefixAllowed = false
			continue
		}

		start := i
		for i < n {
			c := query[i]
			if c == '\\' {
				if i+1 >= n {
					return nil, syntaxErrorf(i, "dangling escape character")
				}
				i += 2
				continue
			}
			if isSpace(c) || strings.IndexByte(specialChars, c) >= 0 {
				break
			}
			i++
		}
		text := query[start:i]
		tokens = append(tokens, token{kind: keywordKind(text), text: text, pos: start})
		prefixAllowed = false
	}

	tokens = append(tokens, token{kind: tokEOF, pos: n})
	return tokens, nil
}

func lexPhrase(query string, start int) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(query) {
		c := query[i]
		switch c {
		case '\\':
			if i+1 >= len(query) {
				return "", 0, syntaxErrorf(i, "dangling escape character")
			}
			b.WriteByte(query[i+1])
			i += 2
		case '"':
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, syntaxErrorf(start, "unterminated phrase")
}

func keywordKind(text string) tokenKind {
	switch text {
	case "AND":
		return tokAnd
	case "OR":
		return tokOr
	case "NOT":
		return tokNot
	case "TO":
		return tokTo
	}
	return tokTerm
}

// isSpace matches ASCII whitespace only. The lexer walks bytes, and UTF-8
// continuation bytes such as 0x85 and 0xA0 must stay inside their term.
func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
