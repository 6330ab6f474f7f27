// Command seed bulk-loads knowledge base documents from a directory of
// .txt files into Postgres via the kb package's keyword-chunking pipeline.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"

	"github.com/hubenschmidt/voicebridge/internal/kb"
)

func main() {
	dir := flag.String("dir", "", "directory containing .txt files to seed")
	postgresURL := flag.String("postgres-url", envOr("POSTGRES_URL", ""), "Postgres connection string")
	personaName := flag.String("persona", "", "optional persona name to seed from <dir>/persona.txt")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: seed --dir ./samples/knowledge/")
		os.Exit(1)
	}
	if *postgresURL == "" {
		fmt.Fprintln(os.Stderr, "seed: POSTGRES_URL (or --postgres-url) is required")
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	store, err := kb.Open(*postgresURL)
	if err != nil {
		slog.Error("open kb store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	catalog := kb.New(store)

	if *personaName != "" {
		personaPath := filepath.Join(*dir, "persona.txt")
		if data, readErr := os.ReadFile(personaPath); readErr == nil {
			if _, upErr := catalog.UpdatePersona(*personaName, string(data)); upErr != nil {
				slog.Error("seed persona", "name", *personaName, "error", upErr)
			} else {
				slog.Info("seeded persona", "name", *personaName, "path", personaPath)
			}
		}
	}

	files, err := filepath.Glob(filepath.Join(*dir, "*.txt"))
	if err != nil {
		slog.Error("glob files", "error", err)
		os.Exit(1)
	}

	existing, err := catalog.ListDocuments()
	if err == nil && len(existing) > 0 {
		slog.Info("documents already seeded, skipping", "count", len(existing))
		return
	}

	var total int
	for _, f := range files {
		if filepath.Base(f) == "persona.txt" {
			continue
		}
		data, readErr := os.ReadFile(f)
		if readErr != nil {
			slog.Error("read file", "file", f, "error", readErr)
			continue
		}
		mimetype := mime.TypeByExtension(filepath.Ext(f))
		if mimetype == "" {
			mimetype = "text/plain"
		}
		doc, upErr := catalog.UploadDocument(filepath.Base(f), mimetype, string(data))
		if upErr != nil {
			slog.Error("upload document", "file", f, "error", upErr)
			continue
		}
		total++
		slog.Info("seeded document", "file", f, "id", doc.ID)
	}

	slog.Info("done", "documents", total)
}

func envOr(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
