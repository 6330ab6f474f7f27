package trace

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// maxCalls bounds how many call records are retained; older calls (and
// their turns, via ON DELETE CASCADE) are pruned on each new call.
const maxCalls = 1000

// Store persists per-call transcripts to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to a PostgreSQL transcript database at connStr.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("trace open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateCall inserts a new call record and prunes old ones beyond maxCalls.
func (s *Store) CreateCall(id string, customParameters map[string]string) error {
	paramsJSON, err := json.Marshal(customParameters)
	if err != nil {
		return fmt.Errorf("marshal custom_parameters: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO calls (id, custom_parameters, started_at, status) VALUES ($1, $2, $3, 'active')`,
		id, paramsJSON, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`DELETE FROM calls WHERE id NOT IN (SELECT id FROM calls ORDER BY started_at DESC LIMIT $1)`,
		maxCalls,
	)
	return err
}

// AppendTurn records one conversation turn for an in-progress call.
func (s *Store) AppendTurn(callID string, index int, role, text string) error {
	_, err := s.db.Exec(
		`INSERT INTO call_turns (call_id, turn_index, role, text) VALUES ($1, $2, $3, $4)`,
		callID, index, role, text,
	)
	return err
}

// EndCall marks a call finished, replacing its persisted turns with the
// final conversation history (the tracer writes turns incrementally, but
// the gateway calls this once with the authoritative in-memory history to
// guarantee consistency even if an individual AppendTurn write was lost).
func (s *Store) EndCall(id string, history []HistoryEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.Exec(`DELETE FROM call_turns WHERE call_id = $1`, id); err != nil {
		return err
	}
	for i, h := range history {
		if _, err = tx.Exec(
			`INSERT INTO call_turns (call_id, turn_index, role, text) VALUES ($1, $2, $3, $4)`,
			id, i, h.Role, h.Text,
		); err != nil {
			return err
		}
	}
	if _, err = tx.Exec(
		`UPDATE calls SET ended_at = $1, status = 'completed' WHERE id = $2`,
		time.Now().UTC(), id,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ListCalls returns calls ordered newest first, with turn counts.
func (s *Store) ListCalls(limit, offset int) ([]Call, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM calls`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT c.id, c.custom_parameters, c.started_at, c.ended_at, c.status, c.reason, COUNT(t.id) as turn_count
		FROM calls c
		LEFT JOIN call_turns t ON t.call_id = c.id
		GROUP BY c.id
		ORDER BY c.started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var calls []Call
	for rows.Next() {
		var c Call
		var endedAt sql.NullTime
		var paramsJSON []byte
		if err = rows.Scan(&c.ID, &paramsJSON, &c.StartedAt, &endedAt, &c.Status, &c.Reason, &c.TurnCount); err != nil {
			return nil, 0, err
		}
		if endedAt.Valid {
			c.EndedAt = &endedAt.Time
		}
		_ = json.Unmarshal(paramsJSON, &c.CustomParameters)
		calls = append(calls, c)
	}
	return calls, total, rows.Err()
}

// GetCall returns a single call with its transcript turns.
func (s *Store) GetCall(id string) (*Call, []HistoryEntry, error) {
	var c Call
	var endedAt sql.NullTime
	var paramsJSON []byte
	err := s.db.QueryRow(
		`SELECT id, custom_parameters, started_at, ended_at, status, reason FROM calls WHERE id = $1`, id,
	).Scan(&c.ID, &paramsJSON, &c.StartedAt, &endedAt, &c.Status, &c.Reason)
	if err != nil {
		return nil, nil, err
	}
	if endedAt.Valid {
		c.EndedAt = &endedAt.Time
	}
	_ = json.Unmarshal(paramsJSON, &c.CustomParameters)

	rows, err := s.db.Query(
		`SELECT role, text FROM call_turns WHERE call_id = $1 ORDER BY turn_index ASC`, id,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var history []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err = rows.Scan(&h.Role, &h.Text); err != nil {
			return nil, nil, err
		}
		history = append(history, h)
	}
	return &c, history, rows.Err()
}
