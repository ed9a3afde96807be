package simpledb

// LimitOp truncates the child stream to a fixed number of tuples.
type LimitOp struct {
	child     Operator
	limitTups Expr
}

// NewLimitOp constructs a limit operator.  lim is evaluated once, against
// an empty tuple, when the iterator opens.
func NewLimitOp(lim Expr, child Operator) *LimitOp {
	return &LimitOp{child, lim}
}

// Descriptor returns the child's descriptor; limiting does not change the
// schema.
func (l *LimitOp) Descriptor() *TupleDesc {
	return l.child.Descriptor()
}

func (l *LimitOp) Iterator(tid TransactionID) (TupleIterator, error) {
	var child TupleIterator
	reset := func() (pullFunc, error) {
		limitVal, err := l.limitTups.EvalExpr(&Tuple{})
		if err != nil {
			return nil, err
		}
		limit, ok := limitVal.(IntField)
		if !ok {
			return nil, GoDBError{TypeMismatchError, "limit must be an integer expression"}
		}
		it, err := openChild(l.child, tid, &child)
		if err != nil {
			return nil, err
		}
		var count int32
		return func() (*Tuple, error) {
			if count >= limit.Value {
				return nil, nil
			}
			ok, err := it.HasNext()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			t, err := it.Next()
			if err != nil {
				return nil, err
			}
			count++
			return t, nil
		}, nil
	}
	closeFn := func() error {
		if child != nil {
			return child.Close()
		}
		return nil
	}
	return newFuncIterator(l.Descriptor(), reset, closeFn), nil
}
