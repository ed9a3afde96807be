package simpledb

import (
	"bufio"
	"bytes"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// A HeapFile is an unordered collection of tuples, stored as a sequence of
// PageSize-byte heap pages in one backing file.
//
// HeapFile is public because external callers may wish to instantiate
// database tables using the method [HeapFile.LoadFromCSV].
type HeapFile struct {
	td          *TupleDesc
	backingFile string
	tableId     int
	bufPool     *BufferPool

	// mu serializes allocation of new pages; readers of existing pages do
	// not take it.
	mu sync.Mutex
	// lastEmptyPage is a hint for where the next free slot may be; it is
	// advisory and never forces correctness decisions.
	lastEmptyPage int
}

// heapPageId identifies a page: the owning table and the page's position in
// the file.  It is the buffer-pool cache key and the lock-manager key.
type heapPageId struct {
	tableId int
	pageNo  int
}

// heapFileRid identifies a tuple: its page plus the slot within the page.
type heapFileRid struct {
	pid    heapPageId
	slotNo int
}

// NewHeapFile opens or creates a heap file backed by fromFile, holding
// tuples described by td.  Pages read from the file are cached in bp.
func NewHeapFile(fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	f, err := os.OpenFile(fromFile, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, GoDBError{StorageError, fmt.Sprintf("open %s: %v", fromFile, err)}
	}
	f.Close()

	abs, err := filepath.Abs(fromFile)
	if err != nil {
		return nil, GoDBError{StorageError, fmt.Sprintf("resolve %s: %v", fromFile, err)}
	}
	hash := fnv.New32a()
	hash.Write([]byte(abs))

	return &HeapFile{
		td:            td.copy(),
		backingFile:   fromFile,
		tableId:       int(hash.Sum32()),
		bufPool:       bp,
		lastEmptyPage: -1,
	}, nil
}

// BackingFile returns the name of the backing file.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

// id returns the table id: a stable hash of the absolute backing file path.
func (f *HeapFile) id() int {
	return f.tableId
}

// NumPages returns the number of pages in the heap file, rounding a
// trailing partial page up.  The result is advisory: it reads the file
// length without locking and may grow under a concurrent insert.
func (f *HeapFile) NumPages() int {
	fi, err := os.Stat(f.backingFile)
	if err != nil {
		return 0
	}
	return int((fi.Size() + int64(PageSize) - 1) / int64(PageSize))
}

// Descriptor returns the TupleDesc of this HeapFile, as supplied to
// NewHeapFile.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.td
}

// pageKey returns the map key for a page of this file, used by the buffer
// pool and the lock manager.
func (f *HeapFile) pageKey(pageNo int) any {
	return heapPageId{f.tableId, pageNo}
}

func (f *HeapFile) emptyPageHint() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastEmptyPage
}

// setEmptyPageHint records that pageNo accepted an insert; earlier pages
// were full when the recording transaction scanned them.
func (f *HeapFile) setEmptyPageHint(pageNo int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastEmptyPage = pageNo
}

// noteFreedSlot pulls the hint back when a delete frees space on an
// earlier page.
func (f *HeapFile) noteFreedSlot(pageNo int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pageNo < f.lastEmptyPage {
		f.lastEmptyPage = pageNo
	}
}

// readPage reads the specified page from disk.  Called by
// [BufferPool.GetPage] on a cache miss; query code never calls it directly.
// A page entirely beyond the end of the file is reported as missing; a
// trailing partial page is tolerated and decoded zero padded.
func (f *HeapFile) readPage(pageNo int) (Page, error) {
	file, err := os.Open(f.backingFile)
	if err != nil {
		return nil, GoDBError{StorageError, fmt.Sprintf("open %s: %v", f.backingFile, err)}
	}
	defer file.Close()

	b := make([]byte, PageSize)
	n, err := file.ReadAt(b, int64(pageNo)*int64(PageSize))
	if err != nil && err != io.EOF {
		return nil, GoDBError{StorageError, fmt.Sprintf("read page %d of %s: %v", pageNo, f.backingFile, err)}
	}
	if n == 0 {
		return nil, GoDBError{NoSuchElementError, fmt.Sprintf("page %d is beyond the end of %s", pageNo, f.backingFile)}
	}

	pg, err := newHeapPage(f.td, pageNo, f)
	if err != nil {
		return nil, err
	}
	if err := pg.initFromBuffer(bytes.NewBuffer(b)); err != nil {
		return nil, err
	}
	return pg, nil
}

// flushPage writes the page back to the backing file at its offset and
// refreshes its before-image.  The buffer pool serializes flushes of a page
// with writers by holding the page's lock.
func (f *HeapFile) flushPage(p Page) error {
	hp, ok := p.(*heapPage)
	if !ok {
		return GoDBError{IncompatibleTypesError, "flushPage requires a heap page"}
	}
	buf, err := hp.toBuffer()
	if err != nil {
		return err
	}

	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return GoDBError{StorageError, fmt.Sprintf("open %s: %v", f.backingFile, err)}
	}
	defer file.Close()
	if _, err := file.WriteAt(buf.Bytes(), int64(hp.pageNo)*int64(PageSize)); err != nil {
		return GoDBError{StorageError, fmt.Sprintf("write page %d of %s: %v", hp.pageNo, f.backingFile, err)}
	}

	hp.setBeforeImage()
	return nil
}

// insertTuple adds t to the first page with a free slot, faulting pages in
// through the buffer pool under write permission.  A page found to be full
// is released immediately rather than held to end of transaction; under
// strict two-phase locking this early release is the one sanctioned
// exception, and it only applies to pages this transaction neither already
// held nor modified.  If every page is full a new page is allocated and
// written through to disk before it becomes visible to concurrent readers.
func (f *HeapFile) insertTuple(t *Tuple, tid TransactionID) error {
	start := 0
	if hint := f.emptyPageHint(); hint > 0 {
		start = hint
	}
	nPages := f.NumPages()

	for p := start; p < nPages; p++ {
		alreadyHeld := f.bufPool.holdsLock(tid, f.pageKey(p))
		pg, err := f.bufPool.GetPage(f, p, tid, WritePerm)
		if err != nil {
			return err
		}
		hp := pg.(*heapPage)
		if hp.getNumEmptySlots() == 0 {
			if dirtier, dirty := hp.dirtiedBy(); !alreadyHeld && !(dirty && dirtier == tid) {
				f.bufPool.ReleasePage(tid, f, p)
			}
			continue
		}
		if _, err := hp.insertTuple(t); err != nil {
			return err
		}
		hp.setDirty(tid, true)
		f.setEmptyPageHint(p)
		return nil
	}

	// No free slot anywhere; allocate a fresh page.  The allocation lock
	// keeps two inserters from claiming the same page number, and the
	// write-through makes the page readable before any concurrent scan
	// recomputes NumPages.
	f.mu.Lock()
	p := f.NumPages()
	empty, err := newHeapPage(f.td, p, f)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	if err := f.flushPage(empty); err != nil {
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()

	pg, err := f.bufPool.GetPage(f, p, tid, WritePerm)
	if err != nil {
		return err
	}
	hp := pg.(*heapPage)
	if _, err := hp.insertTuple(t); err != nil {
		return err
	}
	hp.setDirty(tid, true)
	f.setEmptyPageHint(p)
	return nil
}

// deleteTuple removes t, located via its record id, faulting the page in
// under write permission.
func (f *HeapFile) deleteTuple(t *Tuple, tid TransactionID) error {
	if t.Rid == nil {
		return GoDBError{TupleNotFoundError, "tuple has no record id"}
	}
	rid, ok := t.Rid.(heapFileRid)
	if !ok {
		return GoDBError{TupleNotFoundError, "tuple record id is not a heap file rid"}
	}
	if rid.pid.tableId != f.tableId {
		return GoDBError{TupleNotFoundError, "record id does not refer to this file"}
	}
	if rid.pid.pageNo < 0 || rid.pid.pageNo >= f.NumPages() {
		return GoDBError{TupleNotFoundError, fmt.Sprintf("record id page %d does not exist", rid.pid.pageNo)}
	}

	pg, err := f.bufPool.GetPage(f, rid.pid.pageNo, tid, WritePerm)
	if err != nil {
		return err
	}
	hp := pg.(*heapPage)
	if err := hp.deleteTuple(t); err != nil {
		return err
	}
	hp.setDirty(tid, true)
	f.noteFreedSlot(rid.pid.pageNo)
	return nil
}

// Iterator returns a TupleIterator over every used tuple in increasing
// (page, slot) order.  Pages are faulted in through the buffer pool under
// read permission; the locks taken stay with the transaction after the
// iterator closes.  Rewind restarts at page zero.
func (f *HeapFile) Iterator(tid TransactionID) (TupleIterator, error) {
	reset := func() (pullFunc, error) {
		nPages := f.NumPages()
		pgNo := 0
		var pgIter pullFunc
		return func() (*Tuple, error) {
			for {
				if pgIter == nil {
					if pgNo >= nPages {
						return nil, nil
					}
					p, err := f.bufPool.GetPage(f, pgNo, tid, ReadPerm)
					if err != nil {
						return nil, err
					}
					pgIter = p.(*heapPage).tupleIter()
					pgNo++
					continue
				}
				next, err := pgIter()
				if err != nil {
					return nil, err
				}
				if next == nil {
					pgIter = nil
					continue
				}
				return &Tuple{*f.td, next.Fields, next.Rid}, nil
			}
		}, nil
	}
	return newFuncIterator(f.td, reset, nil), nil
}

// LoadFromCSV loads the contents of a heap file from a CSV file.
// Parameters:
//   - hasHeader: whether the first line is a header to skip
//   - sep: the field separator
//   - skipLastField: if true, the final field of every line is dropped
//     (some TPC datasets carry a trailing separator)
//
// Each line is inserted under its own transaction, so partially loaded
// files are valid.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	desc := f.Descriptor()
	if desc == nil || desc.Fields == nil {
		return GoDBError{MalformedDataError, "heap file has no descriptor"}
	}

	scanner := bufio.NewScanner(file)
	cnt := 0
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[:len(fields)-1]
		}
		cnt++
		if cnt == 1 && hasHeader {
			continue
		}
		if len(fields) != len(desc.Fields) {
			return GoDBError{MalformedDataError, fmt.Sprintf("LoadFromCSV: line %d (%s) has %d fields, want %d", cnt, line, len(fields), len(desc.Fields))}
		}

		var newFields []DBValue
		for fno, field := range fields {
			ft := &desc.Fields[fno]
			switch ft.Ftype {
			case IntType:
				field = strings.TrimSpace(field)
				floatVal, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return GoDBError{TypeMismatchError, fmt.Sprintf("LoadFromCSV: couldn't convert value %s to int, line %d", field, cnt)}
				}
				newFields = append(newFields, IntField{int32(floatVal)})
			case StringType:
				if len(field) > ft.stringLen() {
					field = field[:ft.stringLen()]
				}
				newFields = append(newFields, StringField{field})
			}
		}
		newT := Tuple{*desc, newFields, nil}

		tid := NewTID()
		if err := f.bufPool.BeginTransaction(tid); err != nil {
			return err
		}
		if err := f.insertTuple(&newT, tid); err != nil {
			f.bufPool.AbortTransaction(tid)
			return err
		}
		if err := f.bufPool.CommitTransaction(tid); err != nil {
			return err
		}
	}
	return nil
}
