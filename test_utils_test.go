package simpledb

import (
	"testing"
)

// sliceOperator produces a fixed list of tuples; several operator tests use
// it as a child that needs no backing storage.
type sliceOperator struct {
	td     *TupleDesc
	tuples []*Tuple
}

func (s *sliceOperator) Descriptor() *TupleDesc {
	return s.td
}

func (s *sliceOperator) Iterator(tid TransactionID) (TupleIterator, error) {
	reset := func() (pullFunc, error) {
		i := 0
		return func() (*Tuple, error) {
			if i >= len(s.tuples) {
				return nil, nil
			}
			t := s.tuples[i]
			i++
			return t, nil
		}, nil
	}
	return newFuncIterator(s.td, reset, nil), nil
}

func makeTestDatabase(t *testing.T, bufferPages int) (*BufferPool, *Catalog) {
	t.Helper()
	bp, err := NewBufferPool(bufferPages)
	if err != nil {
		t.Fatalf("NewBufferPool: %v", err)
	}
	return bp, NewCatalog(bp, t.TempDir())
}

func makeTestVars(t *testing.T) (TupleDesc, Tuple, Tuple, *HeapFile, *BufferPool, TransactionID) {
	t.Helper()
	td := TupleDesc{Fields: []FieldType{
		{Fname: "name", Ftype: StringType},
		{Fname: "age", Ftype: IntType},
	}}
	t1 := Tuple{td, []DBValue{StringField{"sam"}, IntField{25}}, nil}
	t2 := Tuple{td, []DBValue{StringField{"george jones"}, IntField{999}}, nil}

	bp, c := makeTestDatabase(t, 10)
	hf, err := c.AddTable("test", td)
	if err != nil {
		t.Fatalf("AddTable: %v", err)
	}
	tid := NewTID()
	if err := bp.BeginTransaction(tid); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	return td, t1, t2, hf, bp, tid
}

func twoIntSchema() TupleDesc {
	return TupleDesc{Fields: []FieldType{
		{Fname: "a", Ftype: IntType},
		{Fname: "b", Ftype: IntType},
	}}
}

func intPair(td TupleDesc, a, b int32) *Tuple {
	return &Tuple{td, []DBValue{IntField{a}, IntField{b}}, nil}
}

// iterate opens op's iterator, drains it, closes it, and returns the
// tuples.
func iterate(t *testing.T, op Operator, tid TransactionID) []*Tuple {
	t.Helper()
	iter, err := op.Iterator(tid)
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	return collect(t, iter)
}

func collect(t *testing.T, iter TupleIterator) []*Tuple {
	t.Helper()
	if err := iter.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer iter.Close()
	var out []*Tuple
	if err := drain(iter, func(tup *Tuple) error {
		out = append(out, tup)
		return nil
	}); err != nil {
		t.Fatalf("drain: %v", err)
	}
	return out
}
