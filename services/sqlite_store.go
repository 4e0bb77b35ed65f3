package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"pairing_server/models"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS clients (
	client_id           TEXT PRIMARY KEY,
	credential_key      TEXT NOT NULL UNIQUE,
	name                TEXT NOT NULL DEFAULT '',
	session_nr          INTEGER NOT NULL,
	pair                INTEGER NOT NULL,
	condition_nr        INTEGER NOT NULL DEFAULT 0,
	player_condition_nr INTEGER NOT NULL DEFAULT 0,
	in_use              INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS clients_session_idx ON clients (session_nr, pair);
CREATE TABLE IF NOT EXISTS pairings (
	owner_id     TEXT PRIMARY KEY REFERENCES clients (client_id),
	pairing_id   TEXT NOT NULL UNIQUE,
	peer_id      TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	role         TEXT NOT NULL DEFAULT '',
	announced_at INTEGER NOT NULL,
	matched_at   INTEGER NOT NULL DEFAULT 0
);`

// SQLiteStore persists clients and pairings in a SQLite file
type SQLiteStore struct {
	sqlDB *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path and applies the schema
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const clientColumns = `client_id, credential_key, name, session_nr, pair, condition_nr, player_condition_nr, in_use`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (models.Client, error) {
	var c models.Client
	var inUse int
	if err := row.Scan(&c.ClientID, &c.Key, &c.Name, &c.SessionNr, &c.Pair, &c.Condition, &c.PlayerCondition, &inUse); err != nil {
		return models.Client{}, err
	}
	c.InUse = inUse != 0
	return c, nil
}

func (s *SQLiteStore) GetClient(ctx context.Context, clientID string) (models.Client, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE client_id = ?`, clientID)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Client{}, ErrNotFound
	}
	if err != nil {
		return models.Client{}, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) GetClientByKey(ctx context.Context, key string) (models.Client, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE credential_key = ?`, key)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Client{}, ErrNotFound
	}
	if err != nil {
		return models.Client{}, fmt.Errorf("get client by key: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) SetClientInUse(ctx context.Context, clientID string, inUse bool) error {
	res, err := s.sqlDB.ExecContext(ctx, `UPDATE clients SET in_use = ? WHERE client_id = ?`, boolToInt(inUse), clientID)
	if err != nil {
		return fmt.Errorf("set client in use: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) CreateClients(ctx context.Context, clients []models.Client) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, c := range clients {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ClientID, c.Key, c.Name, c.SessionNr, c.Pair, c.Condition, c.PlayerCondition, boolToInt(c.InUse),
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("key %s: %w", c.Key, ErrDuplicateKey)
		}
		if err != nil {
			return fmt.Errorf("insert client: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpdateClientDetails(ctx context.Context, c models.Client) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE clients SET name = ?, condition_nr = ?, player_condition_nr = ? WHERE client_id = ?`,
		c.Name, c.Condition, c.PlayerCondition, c.ClientID,
	)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) ListClients(ctx context.Context, sessionNr int) ([]models.Client, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE session_nr = ? ORDER BY rowid`, sessionNr)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *SQLiteStore) MaxSessionNr(ctx context.Context) (int, error) {
	var highest sql.NullInt64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT MAX(session_nr) FROM clients`).Scan(&highest); err != nil {
		return 0, fmt.Errorf("max session nr: %w", err)
	}
	return int(highest.Int64), nil
}

func (s *SQLiteStore) ListPairings(ctx context.Context) ([]models.Pairing, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT owner_id, pairing_id, peer_id, status, role, announced_at, matched_at FROM pairings ORDER BY announced_at`)
	if err != nil {
		return nil, fmt.Errorf("list pairings: %w", err)
	}
	defer rows.Close()

	var pairings []models.Pairing
	for rows.Next() {
		var p models.Pairing
		var announcedAt, matchedAt int64
		if err := rows.Scan(&p.OwnerID, &p.PairingID, &p.PeerID, &p.Status, &p.Role, &announcedAt, &matchedAt); err != nil {
			return nil, fmt.Errorf("scan pairing: %w", err)
		}
		p.AnnouncedAt = fromNanos(announcedAt)
		p.MatchedAt = fromNanos(matchedAt)
		pairings = append(pairings, p)
	}
	return pairings, rows.Err()
}

func (s *SQLiteStore) CreatePairing(ctx context.Context, p models.Pairing) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO pairings (owner_id, pairing_id, peer_id, status, role, announced_at, matched_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.OwnerID, p.PairingID, p.PeerID, p.Status, p.Role, toNanos(p.AnnouncedAt), toNanos(p.MatchedAt),
	)
	if isUniqueViolation(err) {
		return ErrPairingExists
	}
	if err != nil {
		return fmt.Errorf("insert pairing: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SavePairings(ctx context.Context, pairings ...models.Pairing) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := updatePairings(ctx, tx, pairings); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) RemovePairing(ctx context.Context, ownerID string, resets ...models.Pairing) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pairings WHERE owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("delete pairing: %w", err)
	}
	if err := updatePairings(ctx, tx, resets); err != nil {
		return err
	}
	return tx.Commit()
}

func updatePairings(ctx context.Context, tx *sql.Tx, pairings []models.Pairing) error {
	for _, p := range pairings {
		res, err := tx.ExecContext(ctx,
			`UPDATE pairings SET pairing_id = ?, peer_id = ?, status = ?, role = ?, announced_at = ?, matched_at = ? WHERE owner_id = ?`,
			p.PairingID, p.PeerID, p.Status, p.Role, toNanos(p.AnnouncedAt), toNanos(p.MatchedAt), p.OwnerID,
		)
		if err != nil {
			return fmt.Errorf("update pairing: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return fmt.Errorf("pairing for %s: %w", p.OwnerID, err)
		}
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromNanos(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}
