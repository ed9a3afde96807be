package simpledb

import (
	"fmt"
	"sync"
)

// BufferPool provides methods to cache pages that have been read from disk.
// It has a fixed capacity to limit the total amount of memory used by the
// engine, and it is the way transactions are enforced: every page access
// funnels through GetPage, which routes the request through the page-level
// lock manager before touching the cache.
//
// The pool is FORCE / NO-STEAL: a committing transaction's dirty pages are
// written to disk before commit returns, and a dirty page is never evicted,
// so no write of an uncommitted transaction ever reaches disk.  Abort is
// therefore purely in-memory: each page the transaction dirtied is replaced
// by its before-image.
type BufferPool struct {
	mu       sync.Mutex
	pages    map[any]Page
	order    []any // cache insertion order; eviction takes the first clean entry
	maxPages int
	lm       *LockManager
	catalog  *Catalog
	running  map[TransactionID]struct{}
}

// NewBufferPool creates a new BufferPool holding at most numPages pages.
func NewBufferPool(numPages int) (*BufferPool, error) {
	if numPages <= 0 {
		return nil, GoDBError{IllegalOperationError, "buffer pool capacity must be positive"}
	}
	return &BufferPool{
		pages:    make(map[any]Page),
		maxPages: numPages,
		lm:       newLockManager(defaultLockMinWait, defaultLockMaxWait),
		running:  make(map[TransactionID]struct{}),
	}, nil
}

// LockManager returns the pool's lock manager.
func (bp *BufferPool) LockManager() *LockManager {
	return bp.lm
}

// BeginTransaction registers a new transaction.  Returns an error if the
// transaction is already running.
func (bp *BufferPool) BeginTransaction(tid TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if _, ok := bp.running[tid]; ok {
		return GoDBError{IllegalTransactionError, fmt.Sprintf("transaction %d already running", tid)}
	}
	bp.running[tid] = struct{}{}
	return nil
}

// GetPage retrieves the specified page of file on behalf of tid, first
// acquiring the page's lock in the requested mode.  The lock acquisition
// may block, and may fail with TransactionAbortedError when its randomized
// deadline elapses; the caller must then abort the transaction — the pool
// never aborts on its own.
//
// On a cache miss the page is read through the owning file; if the pool is
// full, the first clean page in insertion order is evicted.  A pool full of
// dirty pages cannot evict without violating NO-STEAL and fails instead.
func (bp *BufferPool) GetPage(file DBFile, pageNo int, tid TransactionID, perm RWPerm) (Page, error) {
	key := file.pageKey(pageNo)

	bp.mu.Lock()
	_, alive := bp.running[tid]
	bp.mu.Unlock()
	if !alive {
		return nil, GoDBError{IllegalTransactionError, fmt.Sprintf("transaction %d is not running", tid)}
	}

	if err := bp.lm.Acquire(tid, key, perm); err != nil {
		return nil, err
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if pg, ok := bp.pages[key]; ok {
		return pg, nil
	}
	if len(bp.pages) >= bp.maxPages {
		if err := bp.evictPage(); err != nil {
			return nil, err
		}
	}
	pg, err := file.readPage(pageNo)
	if err != nil {
		return nil, err
	}
	bp.pages[key] = pg
	bp.order = append(bp.order, key)
	return pg, nil
}

// evictPage removes the first clean page in insertion order.  Caller holds
// bp.mu.
func (bp *BufferPool) evictPage() error {
	for i, key := range bp.order {
		if pg, ok := bp.pages[key]; ok && !pg.isDirty() {
			delete(bp.pages, key)
			bp.order = append(bp.order[:i], bp.order[i+1:]...)
			return nil
		}
	}
	return GoDBError{BufferPoolFullError, "all pages in buffer pool are dirty"}
}

// removeLocked drops a cache entry.  Caller holds bp.mu.
func (bp *BufferPool) removeLocked(key any) {
	delete(bp.pages, key)
	for i, k := range bp.order {
		if k == key {
			bp.order = append(bp.order[:i], bp.order[i+1:]...)
			return
		}
	}
}

// holdsLock reports whether tid holds the lock on key in any mode.
func (bp *BufferPool) holdsLock(tid TransactionID, key any) bool {
	return bp.lm.HoldsLock(tid, key)
}

// ReleasePage releases tid's lock on one page before end of transaction.
// Under strict two-phase locking this is a footgun — it forfeits
// serializability for any page the transaction read or wrote — and it
// exists for exactly one caller: the free-slot scan in
// [HeapFile.insertTuple], which releases pages it found full and did not
// touch.
func (bp *BufferPool) ReleasePage(tid TransactionID, file DBFile, pageNo int) {
	bp.lm.Release(tid, file.pageKey(pageNo))
}

// CommitTransaction commits tid: every page it dirtied is forced to disk
// and marked clean, then its locks are released.
func (bp *BufferPool) CommitTransaction(tid TransactionID) error {
	bp.mu.Lock()
	for _, key := range bp.order {
		pg := bp.pages[key]
		if dirtier, dirty := pg.dirtiedBy(); dirty && dirtier == tid {
			if err := pg.getFile().flushPage(pg); err != nil {
				bp.mu.Unlock()
				return err
			}
			pg.setDirty(tid, false)
		}
	}
	delete(bp.running, tid)
	bp.mu.Unlock()

	bp.lm.EndTransaction(tid)
	return nil
}

// AbortTransaction aborts tid: every page it dirtied is replaced in the
// cache by its before-image, then its locks are released.  NO-STEAL
// guarantees none of the discarded writes reached disk.
func (bp *BufferPool) AbortTransaction(tid TransactionID) error {
	bp.mu.Lock()
	for _, key := range append([]any{}, bp.order...) {
		pg := bp.pages[key]
		if dirtier, dirty := pg.dirtiedBy(); dirty && dirtier == tid {
			before, err := pg.getBeforeImage()
			if err != nil {
				// Unable to reconstruct in memory; drop the entry and let
				// the next reader fault the committed image in from disk.
				bp.removeLocked(key)
				continue
			}
			bp.pages[key] = before
		}
	}
	delete(bp.running, tid)
	bp.mu.Unlock()

	bp.lm.EndTransaction(tid)
	return nil
}

// FlushAllPages writes every dirty page to disk and marks it clean.  An
// administrative operation: it ignores transactions and locks, so it is
// only safe when no transaction is mid-flight.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for _, pg := range bp.pages {
		if !pg.isDirty() {
			continue
		}
		if err := pg.getFile().flushPage(pg); err != nil {
			return err
		}
		pg.setDirty(0, false)
	}
	return nil
}

// FlushPage unconditionally writes one page to disk if it is cached and
// dirty.  Administrative, like FlushAllPages.
func (bp *BufferPool) FlushPage(file DBFile, pageNo int) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	pg, ok := bp.pages[file.pageKey(pageNo)]
	if !ok || !pg.isDirty() {
		return nil
	}
	if err := pg.getFile().flushPage(pg); err != nil {
		return err
	}
	pg.setDirty(0, false)
	return nil
}

// InsertTuple adds t to the table identified by tableId, resolved through
// the catalog.  Pages modified by the insert are dirtied under tid and stay
// in the pool until commit.
func (bp *BufferPool) InsertTuple(tid TransactionID, tableId int, t *Tuple) error {
	file, err := bp.databaseFile(tableId)
	if err != nil {
		return err
	}
	return file.insertTuple(t, tid)
}

// DeleteTuple removes t from its table, located via t's record id.
func (bp *BufferPool) DeleteTuple(tid TransactionID, t *Tuple) error {
	rid, ok := t.Rid.(heapFileRid)
	if !ok {
		return GoDBError{TupleNotFoundError, "tuple record id is not a heap file rid"}
	}
	file, err := bp.databaseFile(rid.pid.tableId)
	if err != nil {
		return err
	}
	return file.deleteTuple(t, tid)
}

func (bp *BufferPool) databaseFile(tableId int) (DBFile, error) {
	if bp.catalog == nil {
		return nil, GoDBError{IllegalOperationError, "buffer pool has no catalog"}
	}
	return bp.catalog.GetDatabaseFile(tableId)
}

// cachedPage returns the cached page for a key, for tests.
func (bp *BufferPool) cachedPage(key any) (Page, bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	pg, ok := bp.pages[key]
	return pg, ok
}
