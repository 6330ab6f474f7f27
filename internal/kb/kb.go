package kb

import (
	"database/sql"
	"errors"
	"time"

	"github.com/hubenschmidt/voicebridge/internal/metrics"
)

const (
	personaCacheTTL = 5 * time.Minute
	chunkCacheTTL   = 10 * time.Minute

	defaultPersonaName = "default"
	fallbackPersona    = "You are a helpful, friendly voice assistant. Keep replies brief and natural to speak aloud."
)

// KB is the facade the turn pipeline and session layer use: persona lookup
// and keyword-scored retrieval, each behind a process-wide TTL cache per
// the atomic-swap-snapshot design.
type KB struct {
	store        *Store
	personaCache *ttlCache[string]
	chunkCache   *ttlCache[[]string]
}

// New wraps store with the persona and chunk caches.
func New(store *Store) *KB {
	return &KB{
		store:        store,
		personaCache: newTTLCache[string](personaCacheTTL),
		chunkCache:   newTTLCache[[]string](chunkCacheTTL),
	}
}

// LoadPersona returns the named persona's content, seeding it from the
// built-in fallback and persisting that seed if absent. Only the default
// persona is held in the persona cache.
func (k *KB) LoadPersona(name string) (string, error) {
	if name == "" {
		name = defaultPersonaName
	}
	cacheable := name == defaultPersonaName
	if cached, ok := k.personaCache.Get(); ok && cacheable {
		return cached, nil
	}

	p, err := k.store.GetPersona(name)
	if errors.Is(err, sql.ErrNoRows) {
		seeded, seedErr := k.store.UpsertPersona(name, fallbackPersona)
		if seedErr != nil {
			return "", seedErr
		}
		if cacheable {
			k.personaCache.Set(seeded.Content)
		}
		return seeded.Content, nil
	}
	if err != nil {
		return "", err
	}
	if cacheable {
		k.personaCache.Set(p.Content)
	}
	return p.Content, nil
}

// UpdatePersona upserts name's content and invalidates the persona cache.
func (k *KB) UpdatePersona(name, content string) (*Persona, error) {
	if name == "" {
		name = defaultPersonaName
	}
	p, err := k.store.UpsertPersona(name, content)
	if err != nil {
		return nil, err
	}
	k.personaCache.Invalidate()
	return p, nil
}

// RelevantChunks returns the top-k keyword-scored chunks for query, refreshing
// the process-wide chunk cache at most once per chunkCacheTTL.
func (k *KB) RelevantChunks(query string, kTop int) ([]string, error) {
	start := time.Now()
	defer func() { metrics.KBRetrievalDuration.Observe(time.Since(start).Seconds()) }()

	all, ok := k.chunkCache.Get()
	if !ok {
		rows, err := k.store.AllChunks()
		if err != nil {
			return nil, err
		}
		all = make([]string, len(rows))
		for i, c := range rows {
			all[i] = c.Content
		}
		k.chunkCache.Set(all)
	}
	return RelevantChunks(all, query, kTop), nil
}

// UploadDocument chunks content and stores it alongside its chunks,
// invalidating the chunk cache.
func (k *KB) UploadDocument(filename, mimetype, content string) (*Document, error) {
	chunks := ChunkText(content, defaultChunkSize, defaultChunkOverlap)
	doc, err := k.store.CreateDocument(filename, mimetype, content, chunks)
	if err != nil {
		return nil, err
	}
	k.chunkCache.Invalidate()
	return doc, nil
}

// DeleteDocument removes a document and invalidates the chunk cache.
func (k *KB) DeleteDocument(id int64) error {
	if err := k.store.DeleteDocument(id); err != nil {
		return err
	}
	k.chunkCache.Invalidate()
	return nil
}

// ListDocuments and GetDocument pass through to the store; reads don't need
// cache participation since the admin surface isn't latency-sensitive.
func (k *KB) ListDocuments() ([]Document, error)      { return k.store.ListDocuments() }
func (k *KB) GetDocument(id int64) (*Document, error) { return k.store.GetDocument(id) }
