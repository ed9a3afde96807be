package simpledb

import (
	"bytes"
	"testing"
)

func makeTestPage(t *testing.T) (*heapPage, TupleDesc, *HeapFile) {
	t.Helper()
	td := twoIntSchema()
	bp, c := makeTestDatabase(t, 10)
	_ = bp
	hf, err := c.AddTable("pages", td)
	if err != nil {
		t.Fatalf("AddTable: %v", err)
	}
	pg, err := newHeapPage(&td, 0, hf)
	if err != nil {
		t.Fatalf("newHeapPage: %v", err)
	}
	return pg, td, hf
}

func TestHeapPageSlotCount(t *testing.T) {
	pg, td, _ := makeTestPage(t)
	// Two ints are 8 bytes; with one header bit per slot a 4096-byte page
	// holds (8*4096)/(8*8+1) = 504 slots.
	if got := td.bytesPerTuple(); got != 8 {
		t.Fatalf("bytesPerTuple = %d, want 8", got)
	}
	if got := pg.getNumSlots(); got != 504 {
		t.Errorf("getNumSlots = %d, want 504", got)
	}
	if got := pg.getNumEmptySlots(); got != 504 {
		t.Errorf("getNumEmptySlots = %d, want 504", got)
	}
}

func TestHeapPageEmptySerializesToZeros(t *testing.T) {
	pg, _, _ := makeTestPage(t)
	buf, err := pg.toBuffer()
	if err != nil {
		t.Fatalf("toBuffer: %v", err)
	}
	b := buf.Bytes()
	if len(b) != PageSize {
		t.Fatalf("serialized page is %d bytes, want %d", len(b), PageSize)
	}
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d of an empty page is %d, want 0", i, v)
		}
	}
}

func TestHeapPageRoundTrip(t *testing.T) {
	pg, td, hf := makeTestPage(t)

	for _, vals := range [][2]int32{{1, 1}, {2, 2}} {
		if _, err := pg.insertTuple(intPair(td, vals[0], vals[1])); err != nil {
			t.Fatalf("insertTuple: %v", err)
		}
	}
	if got := pg.getNumEmptySlots(); got != 502 {
		t.Errorf("getNumEmptySlots = %d, want 502", got)
	}

	buf, err := pg.toBuffer()
	if err != nil {
		t.Fatalf("toBuffer: %v", err)
	}
	back, err := newHeapPage(&td, 0, hf)
	if err != nil {
		t.Fatalf("newHeapPage: %v", err)
	}
	if err := back.initFromBuffer(buf); err != nil {
		t.Fatalf("initFromBuffer: %v", err)
	}

	iter := back.tupleIter()
	var got [][2]int32
	for {
		tup, err := iter()
		if err != nil {
			t.Fatalf("tupleIter: %v", err)
		}
		if tup == nil {
			break
		}
		got = append(got, [2]int32{tup.Fields[0].(IntField).Value, tup.Fields[1].(IntField).Value})
		rid := tup.Rid.(heapFileRid)
		if rid.slotNo != len(got)-1 {
			t.Errorf("tuple %d decoded at slot %d", len(got)-1, rid.slotNo)
		}
	}
	want := [][2]int32{{1, 1}, {2, 2}}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("decoded tuples = %v, want %v", got, want)
	}
	if back.getNumEmptySlots() != 502 {
		t.Errorf("decoded getNumEmptySlots = %d, want 502", back.getNumEmptySlots())
	}

	// Header and used-slot bytes survive a second round trip unchanged.
	buf2, err := back.toBuffer()
	if err != nil {
		t.Fatalf("toBuffer: %v", err)
	}
	if !bytes.Equal(buf2.Bytes(), back.beforeImage) {
		t.Errorf("re-serialized page differs from its decode image")
	}
}

func TestHeapPageInsertUsesLowestFreeSlot(t *testing.T) {
	pg, td, _ := makeTestPage(t)
	t1 := intPair(td, 1, 1)
	t2 := intPair(td, 2, 2)
	t3 := intPair(td, 3, 3)
	for _, tup := range []*Tuple{t1, t2, t3} {
		if _, err := pg.insertTuple(tup); err != nil {
			t.Fatalf("insertTuple: %v", err)
		}
	}
	if err := pg.deleteTuple(t1); err != nil {
		t.Fatalf("deleteTuple: %v", err)
	}
	t4 := intPair(td, 4, 4)
	rid, err := pg.insertTuple(t4)
	if err != nil {
		t.Fatalf("insertTuple: %v", err)
	}
	if rid.(heapFileRid).slotNo != 0 {
		t.Errorf("insert after delete landed in slot %d, want the freed slot 0", rid.(heapFileRid).slotNo)
	}
}

func TestHeapPageSlotBookkeeping(t *testing.T) {
	pg, td, _ := makeTestPage(t)
	n := pg.getNumSlots()

	var tuples []*Tuple
	for i := 0; i < n; i++ {
		tup := intPair(td, int32(i), int32(i))
		if _, err := pg.insertTuple(tup); err != nil {
			t.Fatalf("insertTuple %d: %v", i, err)
		}
		tuples = append(tuples, tup)
	}
	if pg.getNumEmptySlots() != 0 {
		t.Fatalf("page should be full")
	}
	if _, err := pg.insertTuple(intPair(td, 0, 0)); !HasErrorCode(err, PageFullError) {
		t.Errorf("insert into full page err = %v, want PageFullError", err)
	}

	// Bitmap popcount tracks the live tuple count through deletes.
	for i, tup := range tuples[:10] {
		if err := pg.deleteTuple(tup); err != nil {
			t.Fatalf("deleteTuple %d: %v", i, err)
		}
		if got := pg.getNumEmptySlots(); got != i+1 {
			t.Fatalf("after %d deletes getNumEmptySlots = %d", i+1, got)
		}
		if tup.Rid != nil {
			t.Errorf("delete should clear the tuple's rid")
		}
	}
}

func TestHeapPageDeleteErrors(t *testing.T) {
	pg, td, hf := makeTestPage(t)
	tup := intPair(td, 7, 7)
	if _, err := pg.insertTuple(tup); err != nil {
		t.Fatalf("insertTuple: %v", err)
	}

	t.Run("no rid", func(t *testing.T) {
		other := intPair(td, 8, 8)
		if err := pg.deleteTuple(other); !HasErrorCode(err, TupleNotFoundError) {
			t.Errorf("err = %v, want TupleNotFoundError", err)
		}
	})
	t.Run("wrong page", func(t *testing.T) {
		other := intPair(td, 8, 8)
		other.Rid = heapFileRid{heapPageId{hf.id(), 3}, 0}
		if err := pg.deleteTuple(other); !HasErrorCode(err, TupleNotFoundError) {
			t.Errorf("err = %v, want TupleNotFoundError", err)
		}
	})
	t.Run("slot not in use", func(t *testing.T) {
		other := intPair(td, 8, 8)
		other.Rid = heapFileRid{pg.pid(), 9}
		if err := pg.deleteTuple(other); !HasErrorCode(err, TupleNotFoundError) {
			t.Errorf("err = %v, want TupleNotFoundError", err)
		}
	})
	t.Run("stored tuple mismatch", func(t *testing.T) {
		other := intPair(td, 8, 8)
		other.Rid = tup.Rid
		if err := pg.deleteTuple(other); !HasErrorCode(err, TupleNotFoundError) {
			t.Errorf("err = %v, want TupleNotFoundError", err)
		}
	})
	t.Run("double delete", func(t *testing.T) {
		if err := pg.deleteTuple(tup); err != nil {
			t.Fatalf("first delete: %v", err)
		}
		tup.Rid = heapFileRid{pg.pid(), 0}
		if err := pg.deleteTuple(tup); !HasErrorCode(err, TupleNotFoundError) {
			t.Errorf("second delete err = %v, want TupleNotFoundError", err)
		}
	})
}

func TestHeapPageSchemaMismatch(t *testing.T) {
	pg, _, _ := makeTestPage(t)
	other := TupleDesc{Fields: []FieldType{{Fname: "s", Ftype: StringType}}}
	tup := &Tuple{other, []DBValue{StringField{"x"}}, nil}
	if _, err := pg.insertTuple(tup); !HasErrorCode(err, TypeMismatchError) {
		t.Errorf("err = %v, want TypeMismatchError", err)
	}
}

func TestHeapPageDirtyTracking(t *testing.T) {
	pg, _, _ := makeTestPage(t)
	if pg.isDirty() {
		t.Fatalf("fresh page should be clean")
	}
	if _, dirty := pg.dirtiedBy(); dirty {
		t.Fatalf("clean page should have no dirtier")
	}
	tid := NewTID()
	pg.setDirty(tid, true)
	if dirtier, dirty := pg.dirtiedBy(); !dirty || dirtier != tid {
		t.Errorf("dirtiedBy = %v, %v; want %v, true", dirtier, dirty, tid)
	}
	pg.setDirty(tid, false)
	if pg.isDirty() {
		t.Errorf("page should be clean again")
	}
}

func TestHeapPageBeforeImage(t *testing.T) {
	pg, td, _ := makeTestPage(t)
	if _, err := pg.insertTuple(intPair(td, 1, 1)); err != nil {
		t.Fatalf("insertTuple: %v", err)
	}

	// The before-image still reflects the empty page captured at
	// construction.
	before, err := pg.getBeforeImage()
	if err != nil {
		t.Fatalf("getBeforeImage: %v", err)
	}
	if got := before.(*heapPage).getNumEmptySlots(); got != pg.getNumSlots() {
		t.Errorf("before-image has %d empty slots, want all %d", got, pg.getNumSlots())
	}

	// Refreshing the before-image captures the insert.
	pg.setBeforeImage()
	before, err = pg.getBeforeImage()
	if err != nil {
		t.Fatalf("getBeforeImage: %v", err)
	}
	if got := before.(*heapPage).getNumEmptySlots(); got != pg.getNumSlots()-1 {
		t.Errorf("refreshed before-image has %d empty slots, want %d", got, pg.getNumSlots()-1)
	}
}
