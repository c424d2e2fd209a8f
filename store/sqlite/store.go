// Package sqlite provides a manager.Backend persisted in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math/big"

	"github.com/blockberries/cramberry/pkg/cramberry"
	_ "github.com/mattn/go-sqlite3"

	"github.com/blockberries/eeproxy/codec"
	"github.com/blockberries/eeproxy/manager"
	"github.com/blockberries/eeproxy/types"
	"github.com/blockberries/eeproxy/wire"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - Added index on events.code
const currentSchemaVersion = 1

var _ manager.Backend = (*Store)(nil)

// Store persists state, balances, info and events in one SQLite file.
type Store struct {
	db  *sql.DB
	reg *codec.Registry
}

// Open creates or opens the database at path. reg encodes info values
// and events; nil means codec.New().
//
// The database runs in WAL mode with a single connection.
func Open(path string, reg *codec.Registry) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if reg == nil {
		reg = codec.New()
	}
	return &Store{db: db, reg: reg}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < 1 {
		if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_events_code ON events(code)"); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func (s *Store) GetValue(ctx context.Context, key []byte) (types.ValueResult, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ValueResult{Exists: false, Value: []byte{}}, nil
	}
	if err != nil {
		return types.ValueResult{}, fmt.Errorf("get value: %w", err)
	}
	if value == nil {
		value = []byte{}
	}
	return types.ValueResult{Exists: true, Value: value}, nil
}

func (s *Store) SetValue(ctx context.Context, key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("set value: %w", err)
	}
	return nil
}

func (s *Store) DeleteValue(ctx context.Context, key []byte) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete value: %w", err)
	}
	return nil
}

// SetInfo stores one entry of the info template.
func (s *Store) SetInfo(ctx context.Context, key string, value any) error {
	tag, data, err := s.reg.Encode(value)
	if err != nil {
		return fmt.Errorf("set info %q: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO info (key, tag, data) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET tag = excluded.tag, data = excluded.data",
		key, int(tag), data)
	if err != nil {
		return fmt.Errorf("set info %q: %w", key, err)
	}
	return nil
}

// GetInfo returns the info template with T.hash set to code.
func (s *Store) GetInfo(ctx context.Context, code string) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, tag, data FROM info")
	if err != nil {
		return nil, fmt.Errorf("get info: %w", err)
	}
	defer rows.Close()

	info := make(map[string]any)
	for rows.Next() {
		var (
			key  string
			tag  int
			data []byte
		)
		if err := rows.Scan(&key, &tag, &data); err != nil {
			return nil, fmt.Errorf("get info: %w", err)
		}
		v, err := s.reg.Decode(types.TypeTag(tag), data)
		if err != nil {
			return nil, fmt.Errorf("get info %q: %w", key, err)
		}
		info[key] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get info: %w", err)
	}
	info[types.InfoTxHash] = []byte(code)
	return info, nil
}

func (s *Store) GetBalance(ctx context.Context, addr types.Address) (*big.Int, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM balances WHERE address = ?", addr.Bytes()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return codec.BigIntFromBytes(value), nil
}

// SetBalance sets the balance of addr.
func (s *Store) SetBalance(ctx context.Context, addr types.Address, v *big.Int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO balances (address, value) VALUES (?, ?) ON CONFLICT(address) DO UPDATE SET value = excluded.value",
		addr.Bytes(), codec.BigIntToBytes(v))
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

func (s *Store) OnEvent(ctx context.Context, code string, ev types.Event) error {
	m, err := wire.NewEvent(s.reg, ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	payload, err := cramberry.Marshal(m.Event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	sig, _ := ev.Signature()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO events (code, signature, payload) VALUES (?, ?, ?)",
		code, sig, payload)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// EventRecord is a stored event.
type EventRecord struct {
	Seq       int64
	Code      string
	Signature string
	Event     types.Event
}

// Events returns the events emitted by the invocation code, or all
// events when code is empty, in emission order.
func (s *Store) Events(ctx context.Context, code string) ([]EventRecord, error) {
	query := "SELECT seq, code, signature, payload FROM events ORDER BY seq"
	args := []any{}
	if code != "" {
		query = "SELECT seq, code, signature, payload FROM events WHERE code = ? ORDER BY seq"
		args = append(args, code)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var (
			rec     EventRecord
			payload []byte
		)
		if err := rows.Scan(&rec.Seq, &rec.Code, &rec.Signature, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var we wire.Event
		if err := cramberry.Unmarshal(payload, &we); err != nil {
			return nil, fmt.Errorf("unmarshal event %d: %w", rec.Seq, err)
		}
		rec.Event, err = we.ToTypes(s.reg)
		if err != nil {
			return nil, fmt.Errorf("decode event %d: %w", rec.Seq, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
