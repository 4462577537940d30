package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/ace/internal/credential"
	"github.com/felixgeelhaar/ace/internal/memory"
)

// timeLayout keeps timestamps lexically ordered in TEXT affinity columns.
// RFC3339Nano would trim trailing zeros and break that.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStore struct {
	db    *sql.DB
	creds *credential.Manager
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	creds, err := credential.NewManager()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init credential manager: %w", err)
	}

	store := &SQLiteStore{db: db, creds: creds}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bullets (
			id TEXT PRIMARY KEY,
			content TEXT,
			tags TEXT,
			helpful INTEGER,
			harmful INTEGER,
			created_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS state_meta (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS trajectories (
			id TEXT PRIMARY KEY,
			query TEXT,
			outcome TEXT,
			success INTEGER,
			steps TEXT,
			used_bullets TEXT,
			digest TEXT,
			created_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS config (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// State snapshot implementation

// SaveState replaces the stored snapshot with the given one. The swap is
// transactional so a crash never leaves bullets from two versions mixed.
func (s *SQLiteStore) SaveState(st *memory.ContextState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM bullets`); err != nil {
		return fmt.Errorf("failed to clear bullets: %w", err)
	}

	insert := `INSERT INTO bullets (id, content, tags, helpful, harmful, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	for _, b := range st.Bullets() {
		tagsJSON, err := json.Marshal(b.Tags)
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		if _, err := tx.Exec(insert, b.ID, b.Content, string(tagsJSON), b.Helpful, b.Harmful, b.CreatedAt.UTC().Format(timeLayout)); err != nil {
			return fmt.Errorf("failed to insert bullet %s: %w", b.ID, err)
		}
	}

	upsert := `INSERT INTO state_meta (key, value) VALUES ('version', ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.Exec(upsert, strconv.Itoa(st.Version())); err != nil {
		return fmt.Errorf("failed to save version: %w", err)
	}

	return tx.Commit()
}

// LoadState rebuilds the last saved snapshot. A fresh database yields the
// empty state at version zero.
func (s *SQLiteStore) LoadState() (*memory.ContextState, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM state_meta WHERE key = 'version'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return memory.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load version: %w", err)
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("corrupt version value %q: %w", raw, err)
	}

	rows, err := s.db.Query(`SELECT id, content, tags, helpful, harmful, created_at FROM bullets ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load bullets: %w", err)
	}
	defer rows.Close()

	var bullets []memory.Bullet
	for rows.Next() {
		var b memory.Bullet
		var tagsJSON, createdAt string
		if err := rows.Scan(&b.ID, &b.Content, &tagsJSON, &b.Helpful, &b.Harmful, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan bullet: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &b.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags for %s: %w", b.ID, err)
		}
		b.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("corrupt timestamp for %s: %w", b.ID, err)
		}
		bullets = append(bullets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return memory.Restore(bullets, version), nil
}

// Trajectory log implementation

func (s *SQLiteStore) SaveTrajectory(tr *Trajectory) error {
	stepsJSON, err := json.Marshal(tr.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}
	usedJSON, err := json.Marshal(tr.UsedBullets)
	if err != nil {
		return fmt.Errorf("failed to marshal used bullets: %w", err)
	}

	query := `INSERT INTO trajectories (id, query, outcome, success, steps, used_bullets, digest, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query, tr.ID, tr.Query, tr.Outcome, tr.Success, string(stepsJSON), string(usedJSON), tr.Digest, tr.CreatedAt.UTC().Format(timeLayout))
	return err
}

// ListTrajectories returns the most recent records first. A limit of zero
// or less returns the whole log.
func (s *SQLiteStore) ListTrajectories(limit int) ([]*Trajectory, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `SELECT id, query, outcome, success, steps, used_bullets, digest, created_at FROM trajectories ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Trajectory
	for rows.Next() {
		var tr Trajectory
		var stepsJSON, usedJSON, createdAt string
		if err := rows.Scan(&tr.ID, &tr.Query, &tr.Outcome, &tr.Success, &stepsJSON, &usedJSON, &tr.Digest, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stepsJSON), &tr.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps for %s: %w", tr.ID, err)
		}
		if err := json.Unmarshal([]byte(usedJSON), &tr.UsedBullets); err != nil {
			return nil, fmt.Errorf("failed to unmarshal used bullets for %s: %w", tr.ID, err)
		}
		tr.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("corrupt timestamp for %s: %w", tr.ID, err)
		}
		list = append(list, &tr)
	}
	return list, rows.Err()
}

// Configuration implementation

func (s *SQLiteStore) Set(key, value string) error {
	query := `INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	_, err := s.db.Exec(query, key, value)
	return err
}

// Get returns the stored value, or the empty string when the key is unset.
func (s *SQLiteStore) Get(key string) (string, error) {
	row := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// SetSecret stores a value encrypted with the machine-derived key.
func (s *SQLiteStore) SetSecret(key, value string) error {
	sealed, err := s.creds.Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}
	return s.Set(key, sealed)
}

// GetSecret reads a value written by SetSecret. Plaintext values pass
// through, so keys set by hand before encryption still resolve.
func (s *SQLiteStore) GetSecret(key string) (string, error) {
	stored, err := s.Get(key)
	if err != nil {
		return "", err
	}
	return s.creds.Decrypt(stored)
}
