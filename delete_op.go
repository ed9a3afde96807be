package simpledb

// DeleteOp deletes the tuples of its child from a DBFile and produces a
// single tuple counting the deletions.
type DeleteOp struct {
	deleteFile DBFile
	child      Operator
}

func NewDeleteOp(deleteFile DBFile, child Operator) *DeleteOp {
	return &DeleteOp{deleteFile, child}
}

// Descriptor is a one-column descriptor with an integer field named
// "count".
func (d *DeleteOp) Descriptor() *TupleDesc {
	return &TupleDesc{[]FieldType{{"count", "", IntType, 0}}}
}

func (d *DeleteOp) Iterator(tid TransactionID) (TupleIterator, error) {
	desc := d.Descriptor()
	var child TupleIterator
	// The delete runs once per iterator; a rewind replays the (empty)
	// remainder rather than deleting again.
	done := false
	reset := func() (pullFunc, error) {
		it, err := openChild(d.child, tid, &child)
		if err != nil {
			return nil, err
		}
		return func() (*Tuple, error) {
			if done {
				return nil, nil
			}
			var deleted int32
			if err := drain(it, func(t *Tuple) error {
				if err := d.deleteFile.deleteTuple(t, tid); err != nil {
					return err
				}
				deleted++
				return nil
			}); err != nil {
				return nil, err
			}
			done = true
			return &Tuple{*desc, []DBValue{IntField{deleted}}, nil}, nil
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
