// Package slotdb stores per-slot sync progress in sqlite so a restarted
// bridge remembers what it already granted, checked, and completed before
// the server replays history.
package slotdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqGrant reqKind = iota + 1
	reqRevoke
	reqCheck
	reqGoal
)

type req struct {
	kind reqKind

	slotKey    string
	worldKey   string
	locationID int64
	ending     string
}

// Progress is everything the store remembers about one slot.
type Progress struct {
	Granted []string
	Checked []int64
	Goal    string
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db: db,
		// Writes are tiny and bursty only during a full replay; a modest
		// buffer keeps the tick goroutine from ever waiting on disk.
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS grants (
			slot_key TEXT NOT NULL,
			world_key TEXT NOT NULL,
			granted_at TEXT NOT NULL,
			PRIMARY KEY (slot_key, world_key)
		);`,
		`CREATE TABLE IF NOT EXISTS checks (
			slot_key TEXT NOT NULL,
			location_id INTEGER NOT NULL,
			checked_at TEXT NOT NULL,
			PRIMARY KEY (slot_key, location_id)
		);`,
		`CREATE TABLE IF NOT EXISTS goals (
			slot_key TEXT PRIMARY KEY,
			ending TEXT NOT NULL,
			reached_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// SaveGrant records one granted item. Non-blocking; drops if the writer
// falls behind, the server replay restores anything lost.
func (s *Store) SaveGrant(slotKey, worldKey string) {
	s.submit(req{kind: reqGrant, slotKey: slotKey, worldKey: worldKey})
}

// RevokeGrant removes one granted item, for desync recovery.
func (s *Store) RevokeGrant(slotKey, worldKey string) {
	s.submit(req{kind: reqRevoke, slotKey: slotKey, worldKey: worldKey})
}

// SaveCheck records one reported location.
func (s *Store) SaveCheck(slotKey string, locationID int64) {
	s.submit(req{kind: reqCheck, slotKey: slotKey, locationID: locationID})
}

// SaveGoal records the reached ending.
func (s *Store) SaveGoal(slotKey, ending string) {
	s.submit(req{kind: reqGoal, slotKey: slotKey, ending: ending})
}

func (s *Store) submit(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
	}
}

// Load reads everything remembered for one slot.
func (s *Store) Load(slotKey string) (Progress, error) {
	var p Progress

	rows, err := s.db.Query(`SELECT world_key FROM grants WHERE slot_key = ? ORDER BY world_key`, slotKey)
	if err != nil {
		return p, err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return p, err
		}
		p.Granted = append(p.Granted, k)
	}
	if err := rows.Err(); err != nil {
		return p, err
	}

	crows, err := s.db.Query(`SELECT location_id FROM checks WHERE slot_key = ? ORDER BY location_id`, slotKey)
	if err != nil {
		return p, err
	}
	defer crows.Close()
	for crows.Next() {
		var id int64
		if err := crows.Scan(&id); err != nil {
			return p, err
		}
		p.Checked = append(p.Checked, id)
	}
	if err := crows.Err(); err != nil {
		return p, err
	}

	err = s.db.QueryRow(`SELECT ending FROM goals WHERE slot_key = ?`, slotKey).Scan(&p.Goal)
	if err != nil && err != sql.ErrNoRows {
		return p, err
	}
	return p, nil
}

func (s *Store) loop() {
	insertGrant, _ := s.db.Prepare(`INSERT OR REPLACE INTO grants(slot_key,world_key,granted_at) VALUES(?,?,?)`)
	deleteGrant, _ := s.db.Prepare(`DELETE FROM grants WHERE slot_key = ? AND world_key = ?`)
	insertCheck, _ := s.db.Prepare(`INSERT OR REPLACE INTO checks(slot_key,location_id,checked_at) VALUES(?,?,?)`)
	insertGoal, _ := s.db.Prepare(`INSERT OR REPLACE INTO goals(slot_key,ending,reached_at) VALUES(?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertGrant, deleteGrant, insertCheck, insertGoal} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	for r := range s.ch {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		switch r.kind {
		case reqGrant:
			if insertGrant != nil {
				_, _ = insertGrant.Exec(r.slotKey, r.worldKey, now)
			}
		case reqRevoke:
			if deleteGrant != nil {
				_, _ = deleteGrant.Exec(r.slotKey, r.worldKey)
			}
		case reqCheck:
			if insertCheck != nil {
				_, _ = insertCheck.Exec(r.slotKey, r.locationID, now)
			}
		case reqGoal:
			if insertGoal != nil {
				_, _ = insertGoal.Exec(r.slotKey, r.ending, now)
			}
		}
	}
}
