package consteval

import (
	"database/sql"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"
)

// Store persists evaluated constants across processes. Only self-contained
// values are stored: anything whose result owns allocations is skipped,
// because allocation ids are only unique within one process.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, val []byte) error
	Close() error
}

// storedConst is the on-disk record. The type is kept as its canonical
// string and checked against the declared type on load, so a stale row from
// an older build of the program is treated as a miss.
type storedConst struct {
	Bytes []byte `cbor:"b"`
	Type  string `cbor:"t"`
}

func encodeStored(bytes []byte, typeName string) ([]byte, error) {
	return cbor.Marshal(storedConst{Bytes: bytes, Type: typeName})
}

func decodeStored(raw []byte) (storedConst, error) {
	var sc storedConst
	err := cbor.Unmarshal(raw, &sc)
	return sc, err
}

// SQLiteStore keeps the records in a single-table SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS const_cache (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var val []byte
	err := s.db.QueryRow(`SELECT value FROM const_cache WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *SQLiteStore) Put(key string, val []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO const_cache (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, val,
	)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
