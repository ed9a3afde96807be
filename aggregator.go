package simpledb

import "fmt"

// Online grouped aggregation.  An Aggregator folds tuples into per-group
// AggStates as they arrive and exposes the finished groups as a tuple
// stream; the two variants differ only in the operations they admit over
// their field type.

// AggOp names an aggregate operation.
type AggOp int

const (
	AggMin AggOp = iota
	AggMax
	AggSum
	AggAvg
	AggCount
)

func (op AggOp) String() string {
	switch op {
	case AggMin:
		return "min"
	case AggMax:
		return "max"
	case AggSum:
		return "sum"
	case AggAvg:
		return "avg"
	case AggCount:
		return "count"
	}
	return fmt.Sprintf("agg(%d)", int(op))
}

func newAggState(op AggOp) (AggState, error) {
	switch op {
	case AggMin:
		return &MinAggState{}, nil
	case AggMax:
		return &MaxAggState{}, nil
	case AggSum:
		return &SumAggState{}, nil
	case AggAvg:
		return &AvgAggState{}, nil
	case AggCount:
		return &CountAggState{}, nil
	}
	return nil, GoDBError{IllegalOperationError, fmt.Sprintf("unknown aggregate op %d", op)}
}

// Aggregator folds tuples keyed by the group field and produces the result
// stream once input is exhausted.
type Aggregator interface {
	Merge(t *Tuple) error
	Descriptor() *TupleDesc
	Iterator() TupleIterator
}

// noGroupKey is the shared sentinel group key used by both aggregator
// variants in ungrouped mode.
type noGroupKey struct{}

var noGrouping noGroupKey

type baseAggregator struct {
	op      AggOp
	afield  Expr
	gbfield Expr // nil in ungrouped mode
	proto   AggState

	groups map[any]AggState
	gbVals map[any]DBValue
	order  []any
}

func newBaseAggregator(op AggOp, afield Expr, gbfield Expr) (*baseAggregator, error) {
	if afield == nil {
		return nil, GoDBError{IllegalOperationError, "aggregator requires an aggregate field expression"}
	}
	proto, err := newAggState(op)
	if err != nil {
		return nil, err
	}
	alias := fmt.Sprintf("%s(%s)", op, afield.GetExprType().Fname)
	if err := proto.Init(alias, afield); err != nil {
		return nil, err
	}
	a := &baseAggregator{op: op, afield: afield, gbfield: gbfield, proto: proto}
	a.reset()
	return a, nil
}

// reset discards accumulated groups, returning the aggregator to its
// just-constructed state.
func (a *baseAggregator) reset() {
	a.groups = make(map[any]AggState)
	a.gbVals = make(map[any]DBValue)
	a.order = nil
}

// Merge folds one tuple into the state of its group, creating the group on
// first sight.  Ungrouped aggregation uses the shared sentinel key.
func (a *baseAggregator) Merge(t *Tuple) error {
	var key any = noGrouping
	var gbVal DBValue
	if a.gbfield != nil {
		v, err := a.gbfield.EvalExpr(t)
		if err != nil {
			return err
		}
		key, gbVal = v, v
	}

	state, ok := a.groups[key]
	if !ok {
		state = a.proto.Copy()
		a.groups[key] = state
		a.gbVals[key] = gbVal
		a.order = append(a.order, key)
	}
	state.AddTuple(t)
	return nil
}

// Descriptor returns [agg] in ungrouped mode and [group, agg] in grouped
// mode.
func (a *baseAggregator) Descriptor() *TupleDesc {
	aggTd := a.proto.GetTupleDesc()
	if a.gbfield == nil {
		return aggTd
	}
	gb := a.gbfield.GetExprType()
	return (&TupleDesc{[]FieldType{gb}}).merge(aggTd)
}

// results finalizes every group, in group-arrival order.
func (a *baseAggregator) results() []*Tuple {
	out := make([]*Tuple, 0, len(a.order))
	for _, key := range a.order {
		aggTup := a.groups[key].Finalize()
		if a.gbfield == nil {
			out = append(out, aggTup)
			continue
		}
		gbTup := &Tuple{TupleDesc{[]FieldType{a.gbfield.GetExprType()}}, []DBValue{a.gbVals[key]}, nil}
		out = append(out, joinTuples(gbTup, aggTup))
	}
	return out
}

// Iterator produces the materialized group stream.  It reflects the groups
// merged so far; merging more tuples after iteration begins is a caller
// error.
func (a *baseAggregator) Iterator() TupleIterator {
	reset := func() (pullFunc, error) {
		tuples := a.results()
		i := 0
		return func() (*Tuple, error) {
			if i >= len(tuples) {
				return nil, nil
			}
			t := tuples[i]
			i++
			return t, nil
		}, nil
	}
	return newFuncIterator(a.Descriptor(), reset, nil)
}

// IntAggregator aggregates an integer field: MIN, MAX, SUM, AVG, or COUNT.
type IntAggregator struct {
	baseAggregator
}

func NewIntAggregator(op AggOp, afield Expr, gbfield Expr) (*IntAggregator, error) {
	if ft := afield.GetExprType().Ftype; ft != IntType && ft != UnknownType {
		return nil, GoDBError{TypeMismatchError, "integer aggregator over a non-integer field"}
	}
	base, err := newBaseAggregator(op, afield, gbfield)
	if err != nil {
		return nil, err
	}
	return &IntAggregator{*base}, nil
}

// StringAggregator aggregates a string field.  COUNT is the only operation
// defined over strings.
type StringAggregator struct {
	baseAggregator
}

func NewStringAggregator(op AggOp, afield Expr, gbfield Expr) (*StringAggregator, error) {
	if op != AggCount {
		return nil, GoDBError{IllegalOperationError, fmt.Sprintf("%s is not defined over string fields", op)}
	}
	if ft := afield.GetExprType().Ftype; ft != StringType && ft != UnknownType {
		return nil, GoDBError{TypeMismatchError, "string aggregator over a non-string field"}
	}
	base, err := newBaseAggregator(op, afield, gbfield)
	if err != nil {
		return nil, err
	}
	return &StringAggregator{*base}, nil
}
