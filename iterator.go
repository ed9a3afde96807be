package simpledb

// The tuple-stream protocol shared by heap file scans, relational operators,
// and the aggregation result stream.
//
// The lifecycle is: Open (idempotent; legal again after Close), then
// alternating HasNext/Next, optionally Rewind while open, then Close
// (idempotent).  Next without a successful HasNext since the previous Next
// is a programmer error and is reported as such rather than silently
// advancing.

// TupleIterator produces a stream of tuples.
type TupleIterator interface {
	// Open prepares the stream.  Calling Open on an open iterator is a
	// no-op; calling it after Close restarts the stream.
	Open() error
	// HasNext reports whether another tuple is available, fetching and
	// buffering it if necessary.
	HasNext() (bool, error)
	// Next returns the tuple buffered by the preceding HasNext.
	Next() (*Tuple, error)
	// Rewind restarts the stream from the beginning.  Legal only while
	// open.
	Rewind() error
	// Close releases the stream's resources.  The transaction's locks are
	// unaffected; those are held to end of transaction.
	Close() error
	// Descriptor returns the schema of the produced tuples.
	Descriptor() *TupleDesc
}

// pullFunc is the underlying producer shape: each call yields the next
// tuple, or nil when the stream is exhausted.
type pullFunc func() (*Tuple, error)

// funcIterator adapts a pullFunc producer to the TupleIterator protocol.
// reset is invoked on every Open-from-closed and Rewind and must return a
// producer positioned at the start of the stream; closeFn, if non-nil, is
// invoked on Close.
type funcIterator struct {
	td      *TupleDesc
	reset   func() (pullFunc, error)
	closeFn func() error

	pull   pullFunc
	peeked *Tuple
	opened bool
}

func newFuncIterator(td *TupleDesc, reset func() (pullFunc, error), closeFn func() error) *funcIterator {
	return &funcIterator{td: td, reset: reset, closeFn: closeFn}
}

func (it *funcIterator) Open() error {
	if it.opened {
		return nil
	}
	pull, err := it.reset()
	if err != nil {
		return err
	}
	it.pull = pull
	it.peeked = nil
	it.opened = true
	return nil
}

func (it *funcIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, GoDBError{IllegalOperationError, "HasNext called on an iterator that is not open"}
	}
	if it.peeked != nil {
		return true, nil
	}
	t, err := it.pull()
	if err != nil {
		return false, err
	}
	it.peeked = t
	return t != nil, nil
}

func (it *funcIterator) Next() (*Tuple, error) {
	if !it.opened {
		return nil, GoDBError{IllegalOperationError, "Next called on an iterator that is not open"}
	}
	if it.peeked == nil {
		return nil, GoDBError{IllegalOperationError, "Next called without a preceding HasNext"}
	}
	t := it.peeked
	it.peeked = nil
	return t, nil
}

func (it *funcIterator) Rewind() error {
	if !it.opened {
		return GoDBError{IllegalOperationError, "Rewind called on an iterator that is not open"}
	}
	pull, err := it.reset()
	if err != nil {
		return err
	}
	it.pull = pull
	it.peeked = nil
	return nil
}

func (it *funcIterator) Close() error {
	if !it.opened {
		return nil
	}
	it.opened = false
	it.pull = nil
	it.peeked = nil
	if it.closeFn != nil {
		return it.closeFn()
	}
	return nil
}

func (it *funcIterator) Descriptor() *TupleDesc {
	return it.td
}

// drain runs iter to exhaustion, invoking visit on every tuple.  The
// iterator must already be open.
func drain(iter TupleIterator, visit func(*Tuple) error) error {
	for {
		ok, err := iter.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		t, err := iter.Next()
		if err != nil {
			return err
		}
		if err := visit(t); err != nil {
			return err
		}
	}
}

// openChild builds and opens the iterator of a child operator; reset
// position for an already-open child.  Shared by the operator
// implementations, whose reset closures all need the same dance.
func openChild(child Operator, tid TransactionID, cached *TupleIterator) (TupleIterator, error) {
	if *cached == nil {
		it, err := child.Iterator(tid)
		if err != nil {
			return nil, err
		}
		*cached = it
	}
	it := *cached
	if err := it.Open(); err != nil {
		return nil, err
	}
	if err := it.Rewind(); err != nil {
		return nil, err
	}
	return it, nil
}
