package store

import (
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteKV is a KV backend over a single-table SQLite database with
// semaphore-based exclusive access.
type SQLiteKV struct {
	db    *sql.DB
	mutex sync.Mutex
}

// OpenSQLite opens a SQLite-backed KV at the given file path. Use
// ":memory:" for tests.
func OpenSQLite(path string) (*SQLiteKV, error) {
	// Enable WAL mode via connection string
	dsn := path + "?_journal_mode=WAL"

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// Verify connection works
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	// Set connection pool to 1 to ensure single connection
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if _, err := sqlDB.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &SQLiteKV{db: sqlDB}, nil
}

// Get returns the value for key and whether it was found.
func (s *SQLiteKV) Get(key string) ([]byte, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set writes the value for key, replacing any previous value.
func (s *SQLiteKV) Set(key string, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Close closes the database connection.
func (s *SQLiteKV) Close() error {
	return s.db.Close()
}
