package search

// Node is a parsed query expression.
type Node interface {
	node()
}

// AndNode matches when every child matches.
type AndNode struct {
	Children []Node
}

// OrNode matches when any child matches.
type OrNode struct {
	Children []Node
}

// NotNode inverts its child.
type NotNode struct {
	Child Node
}

// FieldNode is a single field:value condition.
type FieldNode struct {
	Field string
	Pos   int
	Value Value
}

func (*AndNode) node()   {}
func (*OrNode) node()    {}
func (*NotNode) node()   {}
func (*FieldNode) node() {}

// Value is the right-hand side of a field condition.
type Value interface {
	value()
}

// TermValue is a bare term or quoted phrase. Raw terms keep their escapes so
// that escaped wildcards stay literal.
type TermValue struct {
	Raw    string
	Quoted bool
	Pos    int
}

// RangeValue is [low TO high] or {low TO high}. A nil bound is open.
type RangeValue struct {
	Low, High                   *TermValue
	InclusiveLow, InclusiveHigh bool
	Pos                         int
}

// CompareValue is >v, >=v, <v or <=v.
type CompareValue struct {
	Op    string
	Value TermValue
	Pos   int
}

func (*TermValue) value()    {}
func (*RangeValue) value()   {}
func (*CompareValue) value() {}
