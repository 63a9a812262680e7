// Package knowledge indexes a directory of markdown and text documents into a
// SQLite FTS5 table and serves ranked passages to the retrieval agent.
package knowledge

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/genpod/internal/sqlitedb"
)

// DefaultChunkSize is the target passage length in bytes.
const DefaultChunkSize = 1500

// Document is a retrieved passage.
type Document struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Retriever returns up to k passages relevant to query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Document, error)
}

const schema = `
	CREATE TABLE IF NOT EXISTS sources (
		path   TEXT PRIMARY KEY,
		digest TEXT NOT NULL
	);

	CREATE VIRTUAL TABLE IF NOT EXISTS passages_fts USING fts5(
		source UNINDEXED,
		content,
		tokenize = 'porter unicode61'
	);
`

// Index is a Retriever over an FTS5 table.
type Index struct {
	db        *sql.DB
	chunkSize int
}

// Open opens or creates the index at path. Use sqlitedb.MemoryPath for a
// throwaway index.
func Open(ctx context.Context, path string) (*Index, error) {
	db, err := sqlitedb.Open(ctx, path, schema)
	if err != nil {
		return nil, fmt.Errorf("knowledge index: %w", err)
	}
	return &Index{db: db, chunkSize: DefaultChunkSize}, nil
}

// Close closes the database.
func (x *Index) Close() error {
	return x.db.Close()
}

// IndexDir adds every .md and .txt file under dir. Files whose content is
// unchanged since the last run are skipped. It returns the number of files
// (re)indexed.
func (x *Index) IndexDir(ctx context.Context, dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}

	var indexed int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown", ".txt":
		default:
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}

		changed, err := x.IndexDocument(ctx, filepath.ToSlash(rel), string(data))
		if err != nil {
			return err
		}
		if changed {
			indexed++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	return indexed, err
}

// IndexDocument stores content under source, replacing any previous passages.
// It reports false when the stored content is already identical.
func (x *Index) IndexDocument(ctx context.Context, source, content string) (bool, error) {
	sum := blake3.Sum256([]byte(content))
	digest := hex.EncodeToString(sum[:])

	var existing string
	err := x.db.QueryRowContext(ctx, `SELECT digest FROM sources WHERE path = ?`, source).Scan(&existing)
	if err == nil && existing == digest {
		return false, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("lookup %s: %w", source, err)
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages_fts WHERE source = ?`, source); err != nil {
		return false, fmt.Errorf("clear %s: %w", source, err)
	}
	for _, chunk := range Chunk(content, x.chunkSize) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO passages_fts (source, content) VALUES (?, ?)`, source, chunk); err != nil {
			return false, fmt.Errorf("insert %s: %w", source, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sources (path, digest) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET digest = excluded.digest`, source, digest); err != nil {
		return false, fmt.Errorf("record %s: %w", source, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Retrieve implements Retriever using bm25 ranking. Lower bm25 is better; the
// returned Score is negated so that higher is better.
func (x *Index) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	match := sqlitedb.QuoteFTS(query)
	if match == "" || k <= 0 {
		return []Document{}, nil
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT source, content, bm25(passages_fts)
		FROM passages_fts
		WHERE passages_fts MATCH ?
		ORDER BY bm25(passages_fts)
		LIMIT ?`, match, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := []Document{}
	for rows.Next() {
		var (
			doc  Document
			rank float64
		)
		if err := rows.Scan(&doc.Source, &doc.Content, &rank); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		doc.Score = -rank
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Chunk splits text on blank lines into passages of roughly size bytes.
// A single paragraph longer than size is kept whole.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}

	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(para)+2 > size {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return out
}

// Static is a Retriever over a fixed set of documents, matching by shared words.
// It serves runs without a knowledge directory.
type Static []Document

// Retrieve returns the documents that share at least one word with query,
// ordered by the number of shared words.
func (s Static) Retrieve(_ context.Context, query string, k int) ([]Document, error) {
	terms := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		terms[strings.Trim(w, ".,;:!?\"'()")] = true
	}

	var out []Document
	for _, doc := range s {
		score := 0
		for _, w := range strings.Fields(strings.ToLower(doc.Content)) {
			if terms[strings.Trim(w, ".,;:!?\"'()")] {
				score++
			}
		}
		if score > 0 {
			doc.Score = float64(score)
			out = append(out, doc)
		}
	}

	// insertion sort keeps equal scores in input order
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Score > out[j-1].Score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
