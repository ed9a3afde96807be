package simpledb

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Catalog maps table names and table ids to their heap files and schemas.
// Tables are registered programmatically with AddTable; the buffer pool
// resolves table ids through GetDatabaseFile when inserting or deleting by
// id.
type Catalog struct {
	mu       sync.Mutex
	bufPool  *BufferPool
	rootPath string
	tableMap map[string]*HeapFile
	idMap    map[int]*HeapFile
}

// NewCatalog creates an empty catalog whose table files live under
// rootPath.  The catalog registers itself with the buffer pool so that
// id-based operations can find their files.
func NewCatalog(bp *BufferPool, rootPath string) *Catalog {
	c := &Catalog{
		bufPool:  bp,
		rootPath: rootPath,
		tableMap: make(map[string]*HeapFile),
		idMap:    make(map[int]*HeapFile),
	}
	bp.catalog = c
	return c
}

func (c *Catalog) tableNameToFile(name string) string {
	return filepath.Join(c.rootPath, name+".dat")
}

// AddTable creates (or reopens) the heap file for a table and registers it
// under name.  Re-adding an existing name with an equal schema returns the
// existing file.
func (c *Catalog) AddTable(name string, td TupleDesc) (*HeapFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.tableMap[name]; ok {
		if !existing.Descriptor().equals(&td) {
			return nil, GoDBError{IllegalOperationError, fmt.Sprintf("table %s already exists with a different schema", name)}
		}
		return existing, nil
	}

	hf, err := NewHeapFile(c.tableNameToFile(name), &td, c.bufPool)
	if err != nil {
		return nil, err
	}
	c.tableMap[name] = hf
	c.idMap[hf.id()] = hf
	return hf, nil
}

// GetTable returns the heap file registered under name.
func (c *Catalog) GetTable(name string) (DBFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hf, ok := c.tableMap[name]
	if !ok {
		return nil, GoDBError{NoSuchElementError, fmt.Sprintf("no table named %s", name)}
	}
	return hf, nil
}

// GetDatabaseFile returns the heap file with the supplied table id.
func (c *Catalog) GetDatabaseFile(tableId int) (DBFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hf, ok := c.idMap[tableId]
	if !ok {
		return nil, GoDBError{NoSuchElementError, fmt.Sprintf("no table with id %d", tableId)}
	}
	return hf, nil
}

// GetTupleDesc returns the schema of the table with the supplied id.
func (c *Catalog) GetTupleDesc(tableId int) (*TupleDesc, error) {
	f, err := c.GetDatabaseFile(tableId)
	if err != nil {
		return nil, err
	}
	return f.Descriptor(), nil
}

// TableNames returns the registered table names.
func (c *Catalog) TableNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.tableMap))
	for name := range c.tableMap {
		names = append(names, name)
	}
	return names
}
