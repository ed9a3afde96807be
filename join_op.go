package simpledb

// EqualityJoin joins two streams on equality of a left and a right
// expression.  The implementation is a block hash join: up to
// maxBufferSize left tuples are buffered in a hash table keyed by join
// value, and the right child is scanned (and rewound) once per block, so
// intermediate state never exceeds the buffer size.
type EqualityJoin struct {
	leftField, rightField Expr
	left, right           Operator
	maxBufferSize         int
}

const defaultJoinBufferSize = 10000

// NewJoin constructs an equality join.  maxBufferSize bounds the number of
// buffered left tuples; a non-positive value selects the default.
func NewJoin(left Operator, leftField Expr, right Operator, rightField Expr, maxBufferSize int) (*EqualityJoin, error) {
	if leftField == nil || rightField == nil {
		return nil, GoDBError{TypeMismatchError, "leftField and rightField must be non-nil"}
	}
	if maxBufferSize <= 0 {
		maxBufferSize = defaultJoinBufferSize
	}
	return &EqualityJoin{leftField, rightField, left, right, maxBufferSize}, nil
}

// Descriptor is the concatenation of the left and right descriptors.
func (j *EqualityJoin) Descriptor() *TupleDesc {
	return j.left.Descriptor().merge(j.right.Descriptor())
}

func (j *EqualityJoin) Iterator(tid TransactionID) (TupleIterator, error) {
	var leftIter, rightIter TupleIterator
	reset := func() (pullFunc, error) {
		li, err := openChild(j.left, tid, &leftIter)
		if err != nil {
			return nil, err
		}
		ri, err := openChild(j.right, tid, &rightIter)
		if err != nil {
			return nil, err
		}

		var block map[DBValue][]*Tuple
		var pending []*Tuple
		leftDone := false

		// loadBlock buffers the next batch of left tuples, keyed by join
		// value.  Returns false when the left stream is exhausted.
		loadBlock := func() (bool, error) {
			block = make(map[DBValue][]*Tuple)
			n := 0
			for n < j.maxBufferSize {
				ok, err := li.HasNext()
				if err != nil {
					return false, err
				}
				if !ok {
					leftDone = true
					break
				}
				lt, err := li.Next()
				if err != nil {
					return false, err
				}
				v, err := j.leftField.EvalExpr(lt)
				if err != nil {
					return false, err
				}
				block[v] = append(block[v], lt)
				n++
			}
			if n == 0 {
				return false, nil
			}
			return true, ri.Rewind()
		}

		return func() (*Tuple, error) {
			for {
				if len(pending) > 0 {
					t := pending[0]
					pending = pending[1:]
					return t, nil
				}
				if block == nil {
					if leftDone {
						return nil, nil
					}
					ok, err := loadBlock()
					if err != nil {
						return nil, err
					}
					if !ok {
						return nil, nil
					}
				}
				ok, err := ri.HasNext()
				if err != nil {
					return nil, err
				}
				if !ok {
					// This block has seen the whole right side.
					block = nil
					continue
				}
				rt, err := ri.Next()
				if err != nil {
					return nil, err
				}
				v, err := j.rightField.EvalExpr(rt)
				if err != nil {
					return nil, err
				}
				for _, lt := range block[v] {
					pending = append(pending, joinTuples(lt, rt))
				}
			}
		}, nil
	}
	closeFn := func() error {
		var err error
		if leftIter != nil {
			err = leftIter.Close()
		}
		if rightIter != nil {
			if cerr := rightIter.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}
	return newFuncIterator(j.Descriptor(), reset, closeFn), nil
}
