package simpledb

import (
	"testing"
)

func groupValSchema() TupleDesc {
	return TupleDesc{Fields: []FieldType{
		{Fname: "grp", Ftype: IntType},
		{Fname: "val", Ftype: IntType},
	}}
}

func groupValTuples(td TupleDesc, pairs [][2]int32) []*Tuple {
	out := make([]*Tuple, len(pairs))
	for i, p := range pairs {
		out[i] = intPair(td, p[0], p[1])
	}
	return out
}

// resultMap flattens grouped [group, agg] tuples into a map for set
// comparison.
func resultMap(t *testing.T, tuples []*Tuple) map[int32]int32 {
	t.Helper()
	out := make(map[int32]int32)
	for _, tup := range tuples {
		if len(tup.Fields) != 2 {
			t.Fatalf("grouped result has %d fields, want 2", len(tup.Fields))
		}
		out[tup.Fields[0].(IntField).Value] = tup.Fields[1].(IntField).Value
	}
	return out
}

func TestGroupedAvg(t *testing.T) {
	td := groupValSchema()
	child := &sliceOperator{&td, groupValTuples(td, [][2]int32{
		{1, 2}, {1, 4}, {2, 10}, {1, 6}, {2, 20},
	})}

	agg, err := NewAggregate(AggAvg,
		NewFieldExpr(td.Fields[1]),
		NewFieldExpr(td.Fields[0]),
		child)
	if err != nil {
		t.Fatalf("NewAggregate: %v", err)
	}

	got := resultMap(t, iterate(t, agg, NewTID()))
	want := map[int32]int32{1: 4, 2: 15}
	if len(got) != len(want) {
		t.Fatalf("got %d groups, want %d", len(got), len(want))
	}
	for g, v := range want {
		if got[g] != v {
			t.Errorf("avg(group %d) = %d, want %d (integer division)", g, got[g], v)
		}
	}
}

func TestSumMergeOrderIndependent(t *testing.T) {
	td := groupValSchema()
	pairs := [][2]int32{{1, 5}, {2, 7}, {1, -3}, {2, 1}, {1, 10}}
	reversed := make([][2]int32, len(pairs))
	for i, p := range pairs {
		reversed[len(pairs)-1-i] = p
	}

	sumOf := func(input [][2]int32) map[int32]int32 {
		agg, err := NewIntAggregator(AggSum,
			NewFieldExpr(td.Fields[1]),
			NewFieldExpr(td.Fields[0]))
		if err != nil {
			t.Fatalf("NewIntAggregator: %v", err)
		}
		for _, tup := range groupValTuples(td, input) {
			if err := agg.Merge(tup); err != nil {
				t.Fatalf("Merge: %v", err)
			}
		}
		return resultMap(t, collect(t, agg.Iterator()))
	}

	a, b := sumOf(pairs), sumOf(reversed)
	if len(a) != len(b) {
		t.Fatalf("different group counts: %v vs %v", a, b)
	}
	for g, v := range a {
		if b[g] != v {
			t.Errorf("sum(group %d) differs across merge orders: %d vs %d", g, v, b[g])
		}
	}
	if a[1] != 12 || a[2] != 8 {
		t.Errorf("sums = %v, want {1:12, 2:8}", a)
	}
}

func TestUngroupedAggregates(t *testing.T) {
	td := groupValSchema()
	tuples := groupValTuples(td, [][2]int32{{1, 3}, {1, 9}, {1, -4}, {1, 9}})
	val := NewFieldExpr(td.Fields[1])

	cases := []struct {
		op   AggOp
		want int32
	}{
		{AggMin, -4},
		{AggMax, 9},
		{AggSum, 17},
		{AggAvg, 4},
		{AggCount, 4},
	}
	for _, c := range cases {
		t.Run(c.op.String(), func(t *testing.T) {
			agg, err := NewIntAggregator(c.op, val, nil)
			if err != nil {
				t.Fatalf("NewIntAggregator: %v", err)
			}
			for _, tup := range tuples {
				if err := agg.Merge(tup); err != nil {
					t.Fatalf("Merge: %v", err)
				}
			}
			got := collect(t, agg.Iterator())
			if len(got) != 1 || len(got[0].Fields) != 1 {
				t.Fatalf("ungrouped result = %v, want one single-field tuple", got)
			}
			if v := got[0].Fields[0].(IntField).Value; v != c.want {
				t.Errorf("%s = %d, want %d", c.op, v, c.want)
			}
		})
	}
}

func TestStringAggregatorCountOnly(t *testing.T) {
	td := TupleDesc{Fields: []FieldType{
		{Fname: "grp", Ftype: IntType},
		{Fname: "name", Ftype: StringType},
	}}
	name := NewFieldExpr(td.Fields[1])

	for _, op := range []AggOp{AggMin, AggMax, AggSum, AggAvg} {
		if _, err := NewStringAggregator(op, name, nil); !HasErrorCode(err, IllegalOperationError) {
			t.Errorf("NewStringAggregator(%s) err = %v, want IllegalOperationError", op, err)
		}
	}

	agg, err := NewStringAggregator(AggCount, name, NewFieldExpr(td.Fields[0]))
	if err != nil {
		t.Fatalf("NewStringAggregator(count): %v", err)
	}
	rows := []*Tuple{
		{td, []DBValue{IntField{1}, StringField{"a"}}, nil},
		{td, []DBValue{IntField{1}, StringField{"b"}}, nil},
		{td, []DBValue{IntField{2}, StringField{"c"}}, nil},
	}
	for _, tup := range rows {
		if err := agg.Merge(tup); err != nil {
			t.Fatalf("Merge: %v", err)
		}
	}
	got := resultMap(t, collect(t, agg.Iterator()))
	if got[1] != 2 || got[2] != 1 {
		t.Errorf("counts = %v, want {1:2, 2:1}", got)
	}
}

func TestAggregateRewindReplaysMaterializedResults(t *testing.T) {
	td := groupValSchema()
	child := &sliceOperator{&td, groupValTuples(td, [][2]int32{{1, 1}, {2, 2}})}
	agg, err := NewAggregate(AggCount, NewFieldExpr(td.Fields[1]), NewFieldExpr(td.Fields[0]), child)
	if err != nil {
		t.Fatalf("NewAggregate: %v", err)
	}

	iter, err := agg.Iterator(NewTID())
	if err != nil {
		t.Fatalf("Iterator: %v", err)
	}
	if err := iter.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	first := 0
	drain(iter, func(*Tuple) error { first++; return nil })

	if err := iter.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	second := 0
	drain(iter, func(*Tuple) error { second++; return nil })
	iter.Close()

	if first != 2 || second != 2 {
		t.Errorf("rewind replay = %d then %d groups, want 2 and 2", first, second)
	}
}

func TestAggregateDescriptor(t *testing.T) {
	td := groupValSchema()
	child := &sliceOperator{&td, nil}

	grouped, err := NewAggregate(AggSum, NewFieldExpr(td.Fields[1]), NewFieldExpr(td.Fields[0]), child)
	if err != nil {
		t.Fatalf("NewAggregate: %v", err)
	}
	if got := grouped.Descriptor().NumFields(); got != 2 {
		t.Errorf("grouped descriptor has %d fields, want 2", got)
	}

	ungrouped, err := NewAggregate(AggSum, NewFieldExpr(td.Fields[1]), nil, child)
	if err != nil {
		t.Fatalf("NewAggregate: %v", err)
	}
	gtd := ungrouped.Descriptor()
	if gtd.NumFields() != 1 || gtd.Fields[0].Ftype != IntType {
		t.Errorf("ungrouped descriptor = %+v, want one int field", gtd)
	}
}
