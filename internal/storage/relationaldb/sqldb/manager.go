package sqldb

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/LeJamon/goPresale/internal/storage/relationaldb"
)

// RepositoryManager implements relationaldb.RepositoryManager on database/sql
// for both SQLite and PostgreSQL.
type RepositoryManager struct {
	repositories

	db      *sql.DB
	config  *relationaldb.Config
	dialect dialect
}

// NewRepositoryManager creates a new repository manager
func NewRepositoryManager(config *relationaldb.Config) (*RepositoryManager, error) {
	if err := config.Validate(); err != nil {
		return nil, relationaldb.NewConfigurationError("new_repository_manager", "invalid configuration", err)
	}
	d, err := dialectFor(config.Driver)
	if err != nil {
		return nil, relationaldb.NewConfigurationError("new_repository_manager", "unsupported driver", err)
	}

	return &RepositoryManager{
		config:  config,
		dialect: d,
	}, nil
}

// OpenMemory opens a private in-memory SQLite store with the schema applied.
func OpenMemory(ctx context.Context) (*RepositoryManager, error) {
	rm, err := NewRepositoryManager(relationaldb.SQLiteConfig(relationaldb.MemoryDatabase))
	if err != nil {
		return nil, err
	}
	if err := rm.Open(ctx); err != nil {
		return nil, err
	}
	return rm, nil
}

func (rm *RepositoryManager) Open(ctx context.Context) error {
	connStr, err := rm.config.BuildConnectionString()
	if err != nil {
		return relationaldb.NewConfigurationError("open", "failed to build connection string", err)
	}

	sqlDB, err := sql.Open(rm.dialect.driverPkg, connStr)
	if err != nil {
		return relationaldb.NewConnectionError("open", "failed to open database connection", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(rm.config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(rm.config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(rm.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(rm.config.ConnMaxIdleTime)

	// Test connection
	ctxTimeout, cancel := context.WithTimeout(ctx, rm.config.DefaultTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctxTimeout); err != nil {
		sqlDB.Close()
		return relationaldb.NewConnectionError("open", "failed to ping database", err).WithCode("CONNECTION_FAILED")
	}

	if err := initSchema(ctxTimeout, sqlDB); err != nil {
		sqlDB.Close()
		return relationaldb.NewSchemaError("open", "failed to initialize schema", err)
	}

	rm.db = sqlDB
	rm.repositories = newRepositories(sqlDB, rm.dialect, false)
	return nil
}

func (rm *RepositoryManager) Close(ctx context.Context) error {
	if rm.db == nil {
		return nil
	}

	err := rm.db.Close()
	rm.db = nil
	rm.repositories = repositories{}

	if err != nil {
		return relationaldb.NewConnectionError("close", "failed to close database connection", err)
	}
	return nil
}

func (rm *RepositoryManager) Ping(ctx context.Context) error {
	if rm.db == nil {
		return relationaldb.ErrDatabaseClosed
	}
	if err := rm.db.PingContext(ctx); err != nil {
		return relationaldb.NewConnectionError("ping", "database ping failed", err)
	}
	return nil
}

// Driver returns the normalized driver name.
func (rm *RepositoryManager) Driver() string {
	return rm.dialect.name
}

func (rm *RepositoryManager) begin(ctx context.Context) (*TransactionContext, error) {
	if rm.db == nil {
		return nil, relationaldb.ErrDatabaseClosed
	}

	tx, err := rm.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, relationaldb.NewTransactionError("begin", "failed to begin transaction", err)
	}
	return newTransactionContext(tx, rm.dialect), nil
}

// WithTransaction runs fn in a transaction. The transaction is rolled back
// if fn returns an error or panics, and committed otherwise.
func (rm *RepositoryManager) WithTransaction(ctx context.Context, fn func(relationaldb.TransactionContext) error) error {
	tx, err := rm.begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		// the original error wins over a rollback failure
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}
