package simpledb

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries the engine's tunables.  PageSize and StringLength are
// applied to the process-wide layout parameters once, when the Database is
// constructed; they must not change while any heap file is live.
type Config struct {
	PageSize      int    `yaml:"page_size"`
	StringLength  int    `yaml:"string_length"`
	BufferPages   int    `yaml:"buffer_pages"`
	LockMinWaitMs int    `yaml:"lock_min_wait_ms"`
	LockMaxWaitMs int    `yaml:"lock_max_wait_ms"`
	DataDir       string `yaml:"data_dir"`
}

// DefaultConfig returns the stock configuration: 4096-byte pages, a
// 50-page pool, and lock waits drawn from [100ms, 1s].
func DefaultConfig() Config {
	return Config{
		PageSize:      DefaultPageSize,
		StringLength:  DefaultStringLength,
		BufferPages:   50,
		LockMinWaitMs: int(defaultLockMinWait / time.Millisecond),
		LockMaxWaitMs: int(defaultLockMaxWait / time.Millisecond),
		DataDir:       ".",
	}
}

// LoadConfig reads a YAML config file, filling unset fields from
// DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, GoDBError{StorageError, fmt.Sprintf("read config %s: %v", path, err)}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, GoDBError{MalformedDataError, fmt.Sprintf("parse config %s: %v", path, err)}
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.PageSize <= 0 {
		return GoDBError{IllegalOperationError, "page_size must be positive"}
	}
	if c.StringLength <= 0 || c.StringLength+4 > c.PageSize {
		return GoDBError{IllegalOperationError, "string_length must be positive and fit on a page"}
	}
	if c.BufferPages <= 0 {
		return GoDBError{IllegalOperationError, "buffer_pages must be positive"}
	}
	if c.LockMinWaitMs <= 0 || c.LockMaxWaitMs < c.LockMinWaitMs {
		return GoDBError{IllegalOperationError, "lock waits must satisfy 0 < lock_min_wait_ms <= lock_max_wait_ms"}
	}
	return nil
}

// Database is the top-level context object: it owns the catalog and the
// buffer pool (which in turn owns the lock manager).  Nothing in the engine
// is a process-wide singleton; threading a *Database through callers is the
// deployment choice.
type Database struct {
	cfg     Config
	bufPool *BufferPool
	catalog *Catalog
}

// NewDatabase constructs a database from cfg, applying the layout
// parameters.
func NewDatabase(cfg Config) (*Database, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	PageSize = cfg.PageSize
	StringLength = cfg.StringLength

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, GoDBError{StorageError, fmt.Sprintf("create data dir %s: %v", cfg.DataDir, err)}
	}

	bp, err := NewBufferPool(cfg.BufferPages)
	if err != nil {
		return nil, err
	}
	bp.lm = newLockManager(
		time.Duration(cfg.LockMinWaitMs)*time.Millisecond,
		time.Duration(cfg.LockMaxWaitMs)*time.Millisecond,
	)

	return &Database{
		cfg:     cfg,
		bufPool: bp,
		catalog: NewCatalog(bp, cfg.DataDir),
	}, nil
}

func (db *Database) BufferPool() *BufferPool {
	return db.bufPool
}

func (db *Database) Catalog() *Catalog {
	return db.catalog
}

// BeginTransaction allocates a fresh transaction id and registers it with
// the buffer pool.
func (db *Database) BeginTransaction() (TransactionID, error) {
	tid := NewTID()
	if err := db.bufPool.BeginTransaction(tid); err != nil {
		return 0, err
	}
	return tid, nil
}
