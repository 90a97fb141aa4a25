package main

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database. It backs the auth collaborator and
// serves as the stats sink for match summaries.
type DB struct {
	conn *sql.DB
}

// PlayerRow represents a player account
type PlayerRow struct {
	ID        uuid.UUID
	Username  string
	PassHash  string
	IsGuest   bool
	CreatedAt time.Time
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		is_guest INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL,
		duration REAL NOT NULL DEFAULT 0,
		winner_user_id TEXT
	);

	CREATE TABLE IF NOT EXISTS match_players (
		match_id TEXT NOT NULL REFERENCES matches(id),
		user_id TEXT NOT NULL,
		slot INTEGER NOT NULL,
		ship_type TEXT NOT NULL,
		kills INTEGER NOT NULL DEFAULT 0,
		damage_dealt REAL NOT NULL DEFAULT 0,
		shots_fired INTEGER NOT NULL DEFAULT 0,
		shots_hit INTEGER NOT NULL DEFAULT 0,
		placement INTEGER NOT NULL,
		death_tick INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_match_players_user ON match_players(user_id);
	CREATE INDEX IF NOT EXISTS idx_players_username ON players(username);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		Log.Errorw("DB migration failed", "error", err)
	}
	return err
}

// GetSetting returns a settings value, empty when absent
func (db *DB) GetSetting(key string) string {
	var value string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}

// SetSetting upserts a settings value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// CreatePlayer creates an account row and returns its id
func (db *DB) CreatePlayer(username, passHash string, guest bool) (uuid.UUID, error) {
	id := uuid.New()
	g := 0
	if guest {
		g = 1
	}
	_, err := db.conn.Exec(
		"INSERT INTO players (id, username, pass_hash, is_guest) VALUES (?, ?, ?, ?)",
		id.String(), username, passHash, g,
	)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// GetPlayerByUsername returns an account by username, nil when absent
func (db *DB) GetPlayerByUsername(username string) (*PlayerRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, is_guest, created_at FROM players WHERE username = ?",
		username,
	)
	var (
		p       PlayerRow
		idStr   string
		isGuest int
	)
	err := row.Scan(&idStr, &p.Username, &p.PassHash, &isGuest, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	p.IsGuest = isGuest != 0
	return &p, nil
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM players WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// RecordMatch persists a match summary. Implements StatsSink; the
// whole summary lands in one transaction or not at all.
func (db *DB) RecordMatch(summary MatchSummary) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var winner interface{}
	if summary.WinnerUserID != nil {
		winner = summary.WinnerUserID.String()
	}
	_, err = tx.Exec(
		`INSERT INTO matches (id, seed, started_at, ended_at, duration, winner_user_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		summary.MatchID.String(), int64(summary.Seed),
		summary.StartedAt, summary.EndedAt, summary.DurationSecs, winner,
	)
	if err != nil {
		return err
	}

	for _, ps := range summary.Players {
		_, err = tx.Exec(
			`INSERT INTO match_players
			 (match_id, user_id, slot, ship_type, kills, damage_dealt, shots_fired, shots_hit, placement, death_tick)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			summary.MatchID.String(), ps.UserID.String(), ps.Slot, ps.ShipType,
			ps.Kills, ps.DamageDealt, ps.ShotsFired, ps.ShotsHit, ps.Placement, int64(ps.DeathTick),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetMatchRow reads back a persisted match header (diagnostics, tests)
func (db *DB) GetMatchRow(id uuid.UUID) (seed int64, winner *uuid.UUID, err error) {
	var w sql.NullString
	err = db.conn.QueryRow(
		"SELECT seed, winner_user_id FROM matches WHERE id = ?", id.String(),
	).Scan(&seed, &w)
	if err != nil {
		return 0, nil, err
	}
	if w.Valid {
		if u, perr := uuid.Parse(w.String); perr == nil {
			winner = &u
		}
	}
	return seed, winner, nil
}
