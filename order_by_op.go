package simpledb

import "sort"

// OrderBy sorts the child stream by a list of expressions.  The sort is
// blocking: the child is drained and sorted in memory before the first
// tuple is produced.
type OrderBy struct {
	orderBy   []Expr
	child     Operator
	ascending []bool
}

// NewOrderBy constructs an order-by operator.  The ascending slice pairs
// with orderByFields: true sorts the i'th key ascending, false descending.
func NewOrderBy(orderByFields []Expr, child Operator, ascending []bool) (*OrderBy, error) {
	if len(orderByFields) != len(ascending) {
		return nil, GoDBError{IllegalOperationError, "one ascending flag per order-by expression required"}
	}
	return &OrderBy{orderByFields, child, ascending}, nil
}

// Descriptor returns the child's descriptor; sorting changes order, not
// schema.
func (o *OrderBy) Descriptor() *TupleDesc {
	return o.child.Descriptor()
}

func (o *OrderBy) Iterator(tid TransactionID) (TupleIterator, error) {
	var child TupleIterator
	reset := func() (pullFunc, error) {
		it, err := openChild(o.child, tid, &child)
		if err != nil {
			return nil, err
		}
		var all []*Tuple
		if err := drain(it, func(t *Tuple) error {
			all = append(all, t)
			return nil
		}); err != nil {
			return nil, err
		}
		sort.Stable(sortTuples{all, o.orderBy, o.ascending})
		i := 0
		return func() (*Tuple, error) {
			if i >= len(all) {
				return nil, nil
			}
			t := all[i]
			i++
			return t, nil
		}, nil
	}
	closeFn := func() error {
		if child != nil {
			return child.Close()
		}
		return nil
	}
	return newFuncIterator(o.Descriptor(), reset, closeFn), nil
}

type sortTuples struct {
	tuples    []*Tuple
	orderBy   []Expr
	ascending []bool
}

func (s sortTuples) Len() int {
	return len(s.tuples)
}

func (s sortTuples) Less(i, j int) bool {
	for k, expr := range s.orderBy {
		ord, err := s.tuples[i].compareField(s.tuples[j], expr)
		if err != nil || ord == OrderedEqual {
			continue
		}
		less := ord == OrderedLessThan
		if s.ascending[k] {
			return less
		}
		return !less
	}
	return false
}

func (s sortTuples) Swap(i, j int) {
	s.tuples[i], s.tuples[j] = s.tuples[j], s.tuples[i]
}
