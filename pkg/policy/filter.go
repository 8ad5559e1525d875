package policy

import "github.com/cuemby/aeroclient/pkg/types"

// FilterOp is a secondary-index filter's comparison kind, grounded on
// as_query.h's as_predicate_type/as_index_type pairing.
type FilterOp int

const (
	FilterEqual FilterOp = iota
	FilterRange
	FilterContains
)

// IndexCollectionType identifies which part of a bin's value the index
// covers (the bin itself, or a CDT list/map's elements).
type IndexCollectionType int

const (
	IndexDefault IndexCollectionType = iota
	IndexList
	IndexMapKeys
	IndexMapValues
)

// Filter restricts a query to records matching a single secondary-index
// predicate: a bin name, a comparison, and one or two bounding values.
type Filter struct {
	Bin        string
	Op         FilterOp
	Begin, End *types.Value
	Collection IndexCollectionType
}

func EqualFilter(bin string, v *types.Value) *Filter {
	return &Filter{Bin: bin, Op: FilterEqual, Begin: v}
}

func RangeFilter(bin string, begin, end *types.Value) *Filter {
	return &Filter{Bin: bin, Op: FilterRange, Begin: begin, End: end}
}

// PredExpOp is a predicate-expression opcode (grounded on as_predexp.c's
// expression stack machine: leaves push values, operators pop and combine).
type PredExpOp int

const (
	PredExpAnd PredExpOp = iota
	PredExpOr
	PredExpNot
	PredExpIntegerValue
	PredExpStringValue
	PredExpIntegerBin
	PredExpStringBin
	PredExpIntegerEqual
	PredExpIntegerGreater
	PredExpIntegerLess
	PredExpStringEqual
)

// PredExp is one node of a predicate-expression tree. Leaves carry a value
// or bin-name operand; internal nodes combine children with AND/OR/NOT.
// Compile walks the tree in postfix order to match the C client's
// stack-machine wire encoding.
type PredExp struct {
	Op       PredExpOp
	IntVal   int64
	StrVal   string
	Children []*PredExp
}

func PredIntBin(name string) *PredExp  { return &PredExp{Op: PredExpIntegerBin, StrVal: name} }
func PredStrBin(name string) *PredExp  { return &PredExp{Op: PredExpStringBin, StrVal: name} }
func PredIntVal(v int64) *PredExp      { return &PredExp{Op: PredExpIntegerValue, IntVal: v} }
func PredStrVal(v string) *PredExp     { return &PredExp{Op: PredExpStringValue, StrVal: v} }

func PredAnd(children ...*PredExp) *PredExp { return &PredExp{Op: PredExpAnd, Children: children} }
func PredOr(children ...*PredExp) *PredExp  { return &PredExp{Op: PredExpOr, Children: children} }
func PredNot(child *PredExp) *PredExp       { return &PredExp{Op: PredExpNot, Children: []*PredExp{child}} }

func PredIntEqual(bin string, v int64) *PredExp {
	return &PredExp{Op: PredExpIntegerEqual, Children: []*PredExp{PredIntBin(bin), PredIntVal(v)}}
}

// Compile linearizes the tree into postfix node order, the form the wire
// predicate-expression field carries (one opcode+operand per entry,
// evaluated left to right against an operand stack).
func (p *PredExp) Compile() []*PredExp {
	if p == nil {
		return nil
	}
	var out []*PredExp
	for _, c := range p.Children {
		out = append(out, c.Compile()...)
	}
	out = append(out, p)
	return out
}
