package simpledb

// Filter passes through the child tuples for which left op right holds.
type Filter struct {
	op    BoolOp
	left  Expr
	right Expr
	child Operator
}

// NewFilter constructs a filter operator comparing the field expression
// against the constant expression with op.
func NewFilter(constExpr Expr, op BoolOp, field Expr, child Operator) (*Filter, error) {
	if constExpr == nil || field == nil || child == nil {
		return nil, GoDBError{IllegalOperationError, "filter requires expressions and a child"}
	}
	return &Filter{op, field, constExpr, child}, nil
}

// Descriptor returns the child's descriptor; filtering does not change the
// schema.
func (f *Filter) Descriptor() *TupleDesc {
	return f.child.Descriptor()
}

func (f *Filter) Iterator(tid TransactionID) (TupleIterator, error) {
	var child TupleIterator
	reset := func() (pullFunc, error) {
		it, err := openChild(f.child, tid, &child)
		if err != nil {
			return nil, err
		}
		return func() (*Tuple, error) {
			for {
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
				leftVal, err := f.left.EvalExpr(t)
				if err != nil {
					return nil, err
				}
				rightVal, err := f.right.EvalExpr(t)
				if err != nil {
					return nil, err
				}
				if leftVal.EvalPred(rightVal, f.op) {
					return t, nil
				}
			}
		}, nil
	}
	closeFn := func() error {
		if child != nil {
			return child.Close()
		}
		return nil
	}
	return newFuncIterator(f.Descriptor(), reset, closeFn), nil
}
