// Package kb persists personas and knowledge documents in PostgreSQL and
// serves the turn pipeline's persona lookup and keyword-scored chunk
// retrieval, each behind a process-wide TTL cache.
package kb

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store is the PostgreSQL-backed persona/document store.
type Store struct {
	db *sql.DB
}

// Open connects to a PostgreSQL database at connStr and applies migrations.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("kb: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("kb: ping: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("kb: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`).Scan(&current); err != nil {
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

// Persona is a stored persona record.
type Persona struct {
	ID        int64
	Name      string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetPersona fetches the persona record by name. Returns sql.ErrNoRows if
// absent.
func (s *Store) GetPersona(name string) (*Persona, error) {
	var p Persona
	err := s.db.QueryRow(
		`SELECT id, name, content, created_at, updated_at FROM personas WHERE name = $1`, name,
	).Scan(&p.ID, &p.Name, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPersona inserts or updates the named persona's content.
func (s *Store) UpsertPersona(name, content string) (*Persona, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO personas (name, content, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (name) DO UPDATE SET content = $2, updated_at = $3
	`, name, content, now)
	if err != nil {
		return nil, fmt.Errorf("kb: upsert persona: %w", err)
	}
	return s.GetPersona(name)
}

// Document is a stored knowledge document's metadata and content.
type Document struct {
	ID         int64
	Filename   string
	Mimetype   string
	Content    string
	UploadedAt time.Time
}

// Chunk is one stored, ordered text chunk of a document.
type Chunk struct {
	DocumentID int64
	Index      int
	Content    string
}

// CreateDocument inserts a document and its pre-computed chunks in one
// transaction.
func (s *Store) CreateDocument(filename, mimetype, content string, chunks []string) (*Document, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("kb: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var id int64
	err = tx.QueryRow(
		`INSERT INTO documents (filename, mimetype, content, uploaded_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		filename, mimetype, content, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("kb: insert document: %w", err)
	}

	for i, c := range chunks {
		if _, err := tx.Exec(
			`INSERT INTO document_chunks (document_id, chunk_index, content) VALUES ($1, $2, $3)`,
			id, i, c,
		); err != nil {
			return nil, fmt.Errorf("kb: insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("kb: commit: %w", err)
	}
	return &Document{ID: id, Filename: filename, Mimetype: mimetype, Content: content, UploadedAt: now}, nil
}

// ListDocuments returns all document metadata, newest first.
func (s *Store) ListDocuments() ([]Document, error) {
	rows, err := s.db.Query(`SELECT id, filename, mimetype, uploaded_at FROM documents ORDER BY uploaded_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.Mimetype, &d.UploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetDocument fetches a document with full content.
func (s *Store) GetDocument(id int64) (*Document, error) {
	var d Document
	err := s.db.QueryRow(
		`SELECT id, filename, mimetype, content, uploaded_at FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.Filename, &d.Mimetype, &d.Content, &d.UploadedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDocument removes a document and its chunks (cascade).
func (s *Store) DeleteDocument(id int64) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE id = $1`, id)
	return err
}

// AllChunks returns every stored chunk across all documents, ordered by
// document then chunk index (the order relevant_chunks' tie-break assumes).
func (s *Store) AllChunks() ([]Chunk, error) {
	rows, err := s.db.Query(`
		SELECT document_id, chunk_index, content FROM document_chunks
		ORDER BY document_id ASC, chunk_index ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.DocumentID, &c.Index, &c.Content); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
