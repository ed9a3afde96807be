package simpledb

// InsertOp inserts the tuples of its child into a DBFile and produces a
// single tuple counting the insertions.
type InsertOp struct {
	insertFile DBFile
	child      Operator
}

func NewInsertOp(insertFile DBFile, child Operator) *InsertOp {
	return &InsertOp{insertFile, child}
}

// Descriptor is a one-column descriptor with an integer field named
// "count".
func (i *InsertOp) Descriptor() *TupleDesc {
	return &TupleDesc{[]FieldType{{"count", "", IntType, 0}}}
}

func (i *InsertOp) Iterator(tid TransactionID) (TupleIterator, error) {
	desc := i.Descriptor()
	var child TupleIterator
	// The insert runs once per iterator; a rewind replays the (empty)
	// remainder rather than inserting the child's tuples again.
	done := false
	reset := func() (pullFunc, error) {
		it, err := openChild(i.child, tid, &child)
		if err != nil {
			return nil, err
		}
		return func() (*Tuple, error) {
			if done {
				return nil, nil
			}
			var inserted int32
			if err := drain(it, func(t *Tuple) error {
				if err := i.insertFile.insertTuple(t, tid); err != nil {
					return err
				}
				inserted++
				return nil
			}); err != nil {
				return nil, err
			}
			done = true
			return &Tuple{*desc, []DBValue{IntField{inserted}}, nil}, nil
		}, nil
	}
	closeFn := func() error {
		if child != nil {
			return child.Close()
		}
		return nil
	}
	return newFuncIterator(desc, reset, closeFn), nil
}
