package simpledb

// Aggregate is the relational operator wrapping an Aggregator.  Opening its
// iterator drains the child exactly once, feeding every tuple to the
// aggregator's Merge; the materialized group stream is then exposed, and
// Rewind (or Close followed by Open) re-reads the materialized results
// rather than re-executing the child.
type Aggregate struct {
	op      AggOp
	afield  Expr
	gbfield Expr // nil for ungrouped aggregation
	child   Operator
	agg     Aggregator
}

// NewAggregate constructs an aggregate over afield, grouped by gbfield if
// non-nil.  The aggregator variant is chosen by the aggregate field's type.
func NewAggregate(op AggOp, afield Expr, gbfield Expr, child Operator) (*Aggregate, error) {
	var agg Aggregator
	var err error
	if afield.GetExprType().Ftype == StringType {
		agg, err = NewStringAggregator(op, afield, gbfield)
	} else {
		agg, err = NewIntAggregator(op, afield, gbfield)
	}
	if err != nil {
		return nil, err
	}
	return &Aggregate{op, afield, gbfield, child, agg}, nil
}

func (a *Aggregate) Descriptor() *TupleDesc {
	return a.agg.Descriptor()
}

func (a *Aggregate) Iterator(tid TransactionID) (TupleIterator, error) {
	var results []*Tuple
	materialized := false

	reset := func() (pullFunc, error) {
		if !materialized {
			child, err := a.child.Iterator(tid)
			if err != nil {
				return nil, err
			}
			if err := child.Open(); err != nil {
				return nil, err
			}
			if err := drain(child, a.agg.Merge); err != nil {
				child.Close()
				return nil, err
			}
			if err := child.Close(); err != nil {
				return nil, err
			}
			iter := a.agg.Iterator()
			if err := iter.Open(); err != nil {
				return nil, err
			}
			if err := drain(iter, func(t *Tuple) error {
				results = append(results, t)
				return nil
			}); err != nil {
				return nil, err
			}
			iter.Close()
			materialized = true
		}
		i := 0
		return func() (*Tuple, error) {
			if i >= len(results) {
				return nil, nil
			}
			t := results[i]
			i++
			return t, nil
		}, nil
	}
	return newFuncIterator(a.Descriptor(), reset, nil), nil
}
