package search

import (
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/artivault/internal/dbx"
	"github.com/dmitrijs2005/artivault/internal/server/access"
	"github.com/dmitrijs2005/artivault/internal/server/models"
)

// Filter is a compiled predicate with '?' placeholders.
type Filter struct {
	SQL  string
	Args []any
}

// Empty reports whether the filter matches everything.
func (f *Filter) Empty() bool { return f == nil || f.SQL == "" }

// Compiler turns query text into a Filter for one object type and caller.
type Compiler struct {
	dialect  dbx.Dialect
	identity *access.Identity
	variant  models.ObjectType
	readable map[string]bool
}

// NewCompiler binds the compiler to a dialect, caller and object type.
// readableKeys holds the case-folded attribute keys the caller may query.
func NewCompiler(d dbx.Dialect, id *access.Identity, variant models.ObjectType, readableKeys map[string]bool) *Compiler {
	return &Compiler{dialect: d, identity: id, variant: variant, readable: readableKeys}
}

// Compile parses and compiles query. A blank query yields an empty Filter.
func (c *Compiler) Compile(query string) (*Filter, error) {
	root, err := Parse(query)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return &Filter{}, nil
	}
	sql, args, err := c.compileNode(root)
	if err != nil {
		return nil, err
	}
	return &Filter{SQL: sql, Args: args}, nil
}

func (c *Compiler) compileNode(n Node) (string, []any, error) {
	switch n := n.(type) {
	case *AndNode:
		return c.compileJoin(n.Children, " AND ")
	case *OrNode:
		return c.compileJoin(n.Children, " OR ")
	case *NotNode:
		sql, args, err := c.compileNode(n.Child)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", args, nil
	case *FieldNode:
		return c.compileField(n)
	}
	return "", nil, semanticErrorf(0, "unsupported expression")
}

func (c *Compiler) compileJoin(children []Node, sep string) (string, []any, error) {
	parts := make([]string, 0, len(children))
	var args []any
	for _, child := range children {
		sql, a, err := c.compileNode(child)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, a...)
	}
	return "(" + strings.Join(parts, sep) + ")", args, nil
}

func (c *Compiler) compileField(n *FieldNode) (string, []any, error) {
	field := n.Field

	switch {
	case strings.HasPrefix(field, prefixMeta):
		return c.compileMeta(n, strings.TrimPrefix(field, prefixMeta))
	case strings.HasPrefix(field, prefixAttribute):
		return c.compileMeta(n, strings.TrimPrefix(field, prefixAttribute))
	case strings.HasPrefix(field, prefixCfg):
		if c.variant != models.TypeConfig {
			return "", nil, semanticErrorf(n.Pos, "field %q is not available for %s objects", field, c.variant)
		}
		return c.compileJSON(n, strings.TrimPrefix(field, prefixCfg))
	case field == fieldParent:
		return c.compileRelation(n, "r.parent_id", "r.child_id")
	case field == fieldChild:
		return c.compileRelation(n, "r.child_id", "r.parent_id")
	}

	col, ok := lookupColumn(c.variant, field)
	if !ok {
		return "", nil, semanticErrorf(n.Pos, "unknown field %q for %s objects", field, c.variant)
	}

	switch col.kind {
	case kindString:
		return stringCondition(n, col.expr, false)
	case kindHash:
		return stringCondition(n, col.expr, true)
	case kindType:
		return typeCondition(n, col.expr)
	case kindInt:
		return intCondition(n, col.expr)
	case kindDate:
		return dateCondition(n, col.expr)
	}
	return "", nil, semanticErrorf(n.Pos, "unsupported field %q", field)
}

func (c *Compiler) compileMeta(n *FieldNode, key string) (string, []any, error) {
	key = models.NormalizeKey(key)
	if key == "" {
		return "", nil, semanticErrorf(n.Pos, "missing attribute key")
	}
	if !c.readable[key] {
		return "", nil, semanticErrorf(n.Pos, "attribute %q is not defined or not readable", key)
	}
	cond, args, err := stringCondition(n, "m.value", false)
	if err != nil {
		return "", nil, err
	}
	sql := "EXISTS (SELECT 1 FROM metakeys m WHERE m.object_id = o.id AND m.key = ? AND " + cond + ")"
	return sql, append([]any{key}, args...), nil
}

func (c *Compiler) compileJSON(n *FieldNode, path string) (string, []any, error) {
	segments := strings.Split(path, ".")
	for _, s := range segments {
		if s == "" {
			return "", nil, semanticErrorf(n.Pos, "malformed cfg path %q", path)
		}
	}
	cond, args, err := stringCondition(n, c.dialect.JSONText("c.cfg"), false)
	if err != nil {
		return "", nil, err
	}
	return cond, append([]any{c.dialect.JSONPath(segments)}, args...), nil
}

// compileRelation matches objects linked through the relations table to a
// related object that the caller can see. self is the relations column that
// points at the outer object.
func (c *Compiler) compileRelation(n *FieldNode, related, self string) (string, []any, error) {
	cond, args, err := stringCondition(n, "ro.dhash", true)
	if err != nil {
		return "", nil, err
	}
	sql := "EXISTS (SELECT 1 FROM relations r JOIN objects ro ON ro.id = " + related +
		" WHERE " + self + " = o.id AND " + cond
	vis, visArgs := access.Visibility(c.identity, "ro.id")
	if vis != "" {
		sql += " AND " + vis
		args = append(args, visArgs...)
	}
	return sql + ")", args, nil
}

func stringCondition(n *FieldNode, expr string, lower bool) (string, []any, error) {
	term, ok := n.Value.(*TermValue)
	if !ok {
		return "", nil, semanticErrorf(n.Pos, "field %q does not support ranges or comparisons", n.Field)
	}
	literal, like, wildcard := termPattern(term)
	if lower {
		literal, like = strings.ToLower(literal), strings.ToLower(like)
	}
	if wildcard {
		return expr + ` LIKE ? ESCAPE '\'`, []any{like}, nil
	}
	return expr + " = ?", []any{literal}, nil
}

func typeCondition(n *FieldNode, expr string) (string, []any, error) {
	term, ok := n.Value.(*TermValue)
	if !ok {
		return "", nil, semanticErrorf(n.Pos, "field %q does not support ranges or comparisons", n.Field)
	}
	literal, _, wildcard := termPattern(term)
	if wildcard {
		return "", nil, semanticErrorf(term.Pos, "field %q does not support wildcards", n.Field)
	}
	t, err := models.ParseObjectType(literal)
	if err != nil || t == models.TypeObject {
		return "", nil, semanticErrorf(term.Pos, "unknown object type %q", literal)
	}
	return expr + " = ?", []any{string(t)}, nil
}

func intCondition(n *FieldNode, expr string) (string, []any, error) {
	parse := func(v *TermValue) (int64, error) {
		literal, _, wildcard := termPattern(v)
		if wildcard {
			return 0, semanticErrorf(v.Pos, "field %q does not support wildcards", n.Field)
		}
		i, err := strconv.ParseInt(literal, 10, 64)
		if err != nil {
			return 0, semanticErrorf(v.Pos, "malformed integer %q", literal)
		}
		return i, nil
	}

	switch v := n.Value.(type) {
	case *TermValue:
		i, err := parse(v)
		if err != nil {
			return "", nil, err
		}
		return expr + " = ?", []any{i}, nil
	case *CompareValue:
		i, err := parse(&v.Value)
		if err != nil {
			return "", nil, err
		}
		return expr + " " + v.Op + " ?", []any{i}, nil
	case *RangeValue:
		var parts []string
		var args []any
		if v.Low != nil {
			i, err := parse(v.Low)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, expr+pick(v.InclusiveLow, " >= ?", " > ?"))
			args = append(args, i)
		}
		if v.High != nil {
			i, err := parse(v.High)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, expr+pick(v.InclusiveHigh, " <= ?", " < ?"))
			args = append(args, i)
		}
		return joinBounds(parts), args, nil
	}
	return "", nil, semanticErrorf(n.Pos, "unsupported value for %q", n.Field)
}

func dateCondition(n *FieldNode, expr string) (string, []any, error) {
	parse := func(v *TermValue) (time.Time, time.Duration, error) {
		literal, _, wildcard := termPattern(v)
		if wildcard {
			return time.Time{}, 0, semanticErrorf(v.Pos, "field %q does not support wildcards", n.Field)
		}
		t, precision, ok := parseDate(literal)
		if !ok {
			return time.Time{}, 0, semanticErrorf(v.Pos, "malformed date %q", literal)
		}
		return t, precision, nil
	}

	switch v := n.Value.(type) {
	case *TermValue:
		t, p, err := parse(v)
		if err != nil {
			return "", nil, err
		}
		return "(" + expr + " >= ? AND " + expr + " < ?)", []any{t, t.Add(p)}, nil
	case *CompareValue:
		t, p, err := parse(&v.Value)
		if err != nil {
			return "", nil, err
		}
		switch v.Op {
		case ">":
			return expr + " >= ?", []any{t.Add(p)}, nil
		case ">=":
			return expr + " >= ?", []any{t}, nil
		case "<":
			return expr + " < ?", []any{t}, nil
		default:
			return expr + " < ?", []any{t.Add(p)}, nil
		}
	case *RangeValue:
		var parts []string
		var args []any
		if v.Low != nil {
			t, p, err := parse(v.Low)
			if err != nil {
				return "", nil, err
			}
			if !v.InclusiveLow {
				t = t.Add(p)
			}
			parts = append(parts, expr+" >= ?")
			args = append(args, t)
		}
		if v.High != nil {
			t, p, err := parse(v.High)
			if err != nil {
				return "", nil, err
			}
			if v.InclusiveHigh {
				t = t.Add(p)
			}
			parts = append(parts, expr+" < ?")
			args = append(args, t)
		}
		return joinBounds(parts), args, nil
	}
	return "", nil, semanticErrorf(n.Pos, "unsupported value for %q", n.Field)
}

var dateLayouts = []struct {
	layout    string
	precision time.Duration
}{
	{time.RFC3339, time.Second},
	{"2006-01-02T15:04:05", time.Second},
	{"2006-01-02 15:04:05", time.Second},
	{"2006-01-02 15:04", time.Minute},
	{"2006-01-02", 24 * time.Hour},
}

func parseDate(s string) (time.Time, time.Duration, bool) {
	for _, l := range dateLayouts {
		if t, err := time.ParseInLocation(l.layout, s, time.UTC); err == nil {
			return t.UTC(), l.precision, true
		}
	}
	return time.Time{}, 0, false
}

// termPattern resolves escapes in a term. It returns the literal text, a
// LIKE pattern with '\' as escape character, and whether any unescaped
// wildcard was present. Quoted phrases never contain wildcards.
func termPattern(v *TermValue) (literal, like string, wildcard bool) {
	if v.Quoted {
		return v.Raw, escapeLike(v.Raw), false
	}
	var lit, pat strings.Builder
	raw := v.Raw
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch {
		case ch == '\\' && i+1 < len(raw):
			i++
			lit.WriteByte(raw[i])
			pat.WriteString(escapeLike(string(raw[i])))
		case ch == '*':
			wildcard = true
			lit.WriteByte(ch)
			pat.WriteByte('%')
		case ch == '?':
			wildcard = true
			lit.WriteByte(ch)
			pat.WriteByte('_')
		default:
			lit.WriteByte(ch)
			pat.WriteString(escapeLike(string(ch)))
		}
	}
	return lit.String(), pat.String(), wildcard
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func joinBounds(parts []string) string {
	switch len(parts) {
	case 0:
		return "1=1"
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
