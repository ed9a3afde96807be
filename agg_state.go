package simpledb

// Per-group aggregation state.  An AggState folds tuples one at a time and
// finalizes to a single-field tuple; the grouped aggregator keeps one state
// per group key.

type AggState interface {
	// Init initializes the state with an output alias and the expression
	// that extracts the aggregated value from an input tuple.
	Init(alias string, expr Expr) error

	// Copy returns a fresh state with the same alias and expression but no
	// accumulated input, used to seed a new group.
	Copy() AggState

	// AddTuple folds one tuple into the state.
	AddTuple(*Tuple)

	// Finalize returns the aggregate as a one-field tuple.
	Finalize() *Tuple

	// GetTupleDesc returns the descriptor of the tuple Finalize produces.
	GetTupleDesc() *TupleDesc
}

// CountAggState implements COUNT.  The aggregate field value is ignored;
// only arrivals are counted.
type CountAggState struct {
	alias string
	expr  Expr
	count int64
}

func (a *CountAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.count = 0
	return nil
}

func (a *CountAggState) Copy() AggState {
	return &CountAggState{a.alias, a.expr, 0}
}

func (a *CountAggState) AddTuple(t *Tuple) {
	a.count++
}

func (a *CountAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{[]FieldType{{a.alias, "", IntType, 0}}}
}

func (a *CountAggState) Finalize() *Tuple {
	return &Tuple{*a.GetTupleDesc(), []DBValue{IntField{int32(a.count)}}, nil}
}

// SumAggState implements SUM with a 64-bit accumulator.
type SumAggState struct {
	alias string
	expr  Expr
	sum   int64
}

func (a *SumAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.sum = 0
	return nil
}

func (a *SumAggState) Copy() AggState {
	return &SumAggState{a.alias, a.expr, 0}
}

func (a *SumAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if iv, ok := v.(IntField); ok {
		a.sum += int64(iv.Value)
	}
}

func (a *SumAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{[]FieldType{{a.alias, "", IntType, 0}}}
}

func (a *SumAggState) Finalize() *Tuple {
	return &Tuple{*a.GetTupleDesc(), []DBValue{IntField{int32(a.sum)}}, nil}
}

// AvgAggState implements AVG: sum and count accumulate separately and the
// quotient is taken, with integer division, at finalize time.  A group
// exists only once it has received a tuple, so the division is safe.
type AvgAggState struct {
	alias string
	expr  Expr
	sum   int64
	count int64
}

func (a *AvgAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.sum = 0
	a.count = 0
	return nil
}

func (a *AvgAggState) Copy() AggState {
	return &AvgAggState{a.alias, a.expr, 0, 0}
}

func (a *AvgAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if iv, ok := v.(IntField); ok {
		a.sum += int64(iv.Value)
		a.count++
	}
}

func (a *AvgAggState) GetTupleDesc() *TupleDesc {
	return &TupleDesc{[]FieldType{{a.alias, "", IntType, 0}}}
}

func (a *AvgAggState) Finalize() *Tuple {
	return &Tuple{*a.GetTupleDesc(), []DBValue{IntField{int32(a.sum / a.count)}}, nil}
}

// MaxAggState implements MAX.  The first tuple seeds the state.
type MaxAggState struct {
	alias string
	expr  Expr
	max   DBValue
}

func (a *MaxAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.max = nil
	return nil
}

func (a *MaxAggState) Copy() AggState {
	return &MaxAggState{a.alias, a.expr, nil}
}

func (a *MaxAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if a.max == nil || v.EvalPred(a.max, OpGt) {
		a.max = v
	}
}

func (a *MaxAggState) GetTupleDesc() *TupleDesc {
	ft := a.expr.GetExprType()
	return &TupleDesc{[]FieldType{{a.alias, "", ft.Ftype, ft.Flen}}}
}

func (a *MaxAggState) Finalize() *Tuple {
	return &Tuple{*a.GetTupleDesc(), []DBValue{a.max}, nil}
}

// MinAggState implements MIN.  The first tuple seeds the state.
type MinAggState struct {
	alias string
	expr  Expr
	min   DBValue
}

func (a *MinAggState) Init(alias string, expr Expr) error {
	a.alias = alias
	a.expr = expr
	a.min = nil
	return nil
}

func (a *MinAggState) Copy() AggState {
	return &MinAggState{a.alias, a.expr, nil}
}

func (a *MinAggState) AddTuple(t *Tuple) {
	v, err := a.expr.EvalExpr(t)
	if err != nil {
		return
	}
	if a.min == nil || v.EvalPred(a.min, OpLt) {
		a.min = v
	}
}

func (a *MinAggState) GetTupleDesc() *TupleDesc {
	ft := a.expr.GetExprType()
	return &TupleDesc{[]FieldType{{a.alias, "", ft.Ftype, ft.Flen}}}
}

func (a *MinAggState) Finalize() *Tuple {
	return &Tuple{*a.GetTupleDesc(), []DBValue{a.min}, nil}
}
