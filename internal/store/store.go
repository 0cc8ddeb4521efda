package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/modfin/henry/slicez"
	"github.com/sandrev/curate/internal/store/vec"
)

// ErrNotFound is returned when no bookmark matches the given url.
var ErrNotFound = errors.New("bookmark not found")

// ErrInvalidBookmark is returned when a bookmark fails validation on Add.
var ErrInvalidBookmark = errors.New("invalid bookmark")

// Bookmark is a stored record of a url along with its generated summary,
// its hierarchical category path ("/"-separated) and the embedding of its
// content string.
type Bookmark struct {
	ID             int
	URL            string
	Title          string
	Summary        string
	Category       string
	EmbeddingModel string
	Embedding      []float64
	CreatedAt      int64
	UpdatedAt      int64
}

// ContentString is the text representation of a bookmark that gets embedded
// and that search queries are compared against.
func (b Bookmark) ContentString() string {
	return fmt.Sprintf("Title: %s\n\nCategory: %s\n\nURL: %s\n\nSummary: %s",
		b.Title, b.Category, b.URL, b.Summary)
}

// ValidateURL requires an absolute http or https url with a host.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty url", ErrInvalidBookmark)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBookmark, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidBookmark, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidBookmark)
	}
	return nil
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if needed) the sqlite database at path and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database file, %s: %w", "file://"+path, err)
	}
	_, err = conn.ExecContext(ctx, Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return New(conn), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const bookmarkColumns = `id, url, title, summary, category, embedding_model, embedding_vector, created_at, updated_at`

func scanBookmark(row interface{ Scan(...any) error }) (Bookmark, error) {
	var b Bookmark
	var vecbin []byte
	err := row.Scan(
		&b.ID,
		&b.URL,
		&b.Title,
		&b.Summary,
		&b.Category,
		&b.EmbeddingModel,
		&vecbin,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return Bookmark{}, err
	}
	b.Embedding, err = vec.DecodeVector(vecbin)
	if err != nil {
		return Bookmark{}, fmt.Errorf("failed decoding embedding vector: %w", err)
	}
	return b, nil
}

// Add upserts a bookmark keyed on url. Re-adding a url replaces the stored
// record, so summary or category changes land without a separate update path.
func (s *Store) Add(ctx context.Context, b Bookmark) (Bookmark, error) {
	if err := ValidateURL(b.URL); err != nil {
		return Bookmark{}, err
	}
	if len(b.Embedding) == 0 {
		return Bookmark{}, fmt.Errorf("%w: empty embedding", ErrInvalidBookmark)
	}

	const addBookmark = `
INSERT INTO bookmarks (url, title, summary, category, embedding_model, embedding_vector)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (url) DO
	UPDATE
	SET title = excluded.title,
		summary = excluded.summary,
		category = excluded.category,
		embedding_model = excluded.embedding_model,
		embedding_vector = excluded.embedding_vector,
		updated_at = strftime('%s', 'now')
RETURNING ` + bookmarkColumns

	row := s.db.QueryRowContext(ctx, addBookmark,
		b.URL,
		b.Title,
		b.Summary,
		b.Category,
		b.EmbeddingModel,
		vec.EncodeVector(b.Embedding),
	)

	stored, err := scanBookmark(row)
	if err != nil {
		return Bookmark{}, fmt.Errorf("insert bookmark: %w", err)
	}
	return stored, nil
}

// GetByURL returns the bookmark for url, or ErrNotFound.
func (s *Store) GetByURL(ctx context.Context, url string) (Bookmark, error) {
	const getByURL = `
SELECT ` + bookmarkColumns + `
FROM bookmarks
WHERE url = ?
LIMIT 1`

	b, err := scanBookmark(s.db.QueryRowContext(ctx, getByURL, url))
	if errors.Is(err, sql.ErrNoRows) {
		return Bookmark{}, ErrNotFound
	}
	if err != nil {
		return Bookmark{}, fmt.Errorf("get bookmark: %w", err)
	}
	return b, nil
}

// Delete removes the bookmark for url. Deleting an unknown url returns
// ErrNotFound.
func (s *Store) Delete(ctx context.Context, url string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE url = ?`, url)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCategory moves the bookmark for url to a new category path.
func (s *Store) SetCategory(ctx context.Context, url string, category string) error {
	const setCategory = `
UPDATE bookmarks
SET category = ?, updated_at = strftime('%s', 'now')
WHERE url = ?`

	res, err := s.db.ExecContext(ctx, setCategory, category, url)
	if err != nil {
		return fmt.Errorf("set category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set category: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Search returns the limit nearest bookmarks to the query vector by cosine
// distance. An empty store yields an empty result, not an error.
func (s *Store) Search(ctx context.Context, vector []float64, limit int) ([]Bookmark, error) {
	if limit <= 0 {
		limit = 5
	}

	const kNN = `
SELECT ` + bookmarkColumns + `
FROM bookmarks
ORDER BY vec_dist(?, embedding_vector)
LIMIT ?`

	rows, err := s.db.QueryContext(ctx, kNN, vec.EncodeVector(vector), limit)
	if err != nil {
		return nil, err
	}
	return collectBookmarks(rows)
}

// ByCategory returns bookmarks whose category path matches exactly.
func (s *Store) ByCategory(ctx context.Context, category string) ([]Bookmark, error) {
	const byCategory = `
SELECT ` + bookmarkColumns + `
FROM bookmarks
WHERE category = ?
ORDER BY id`

	rows, err := s.db.QueryContext(ctx, byCategory, category)
	if err != nil {
		return nil, err
	}
	return collectBookmarks(rows)
}

// ByCategoryPrefix returns bookmarks in a category and all its subcategories.
func (s *Store) ByCategoryPrefix(ctx context.Context, prefix string) ([]Bookmark, error) {
	const byPrefix = `
SELECT ` + bookmarkColumns + `
FROM bookmarks
WHERE category = ? OR category LIKE ? || '/%'
ORDER BY id`

	rows, err := s.db.QueryContext(ctx, byPrefix, prefix, prefix)
	if err != nil {
		return nil, err
	}
	return collectBookmarks(rows)
}

// All returns every stored bookmark in insertion order.
func (s *Store) All(ctx context.Context) ([]Bookmark, error) {
	const all = `
SELECT ` + bookmarkColumns + `
FROM bookmarks
ORDER BY id`

	rows, err := s.db.QueryContext(ctx, all)
	if err != nil {
		return nil, err
	}
	return collectBookmarks(rows)
}

// Categories returns the sorted set of all category paths in use, including
// every intermediate prefix, so "Tech/Go" contributes both "Tech" and
// "Tech/Go".
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT category FROM bookmarks WHERE category != ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		paths = append(paths, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	categories := slicez.FlatMap(paths, func(path string) []string {
		parts := strings.Split(path, "/")
		prefixes := make([]string, 0, len(parts))
		for i := range parts {
			prefixes = append(prefixes, strings.Join(parts[:i+1], "/"))
		}
		return prefixes
	})
	categories = slicez.Uniq(categories)
	sort.Strings(categories)
	return categories, nil
}

// CategoryTree returns the category paths as a nested map, one level of
// nesting per path segment.
func (s *Store) CategoryTree(ctx context.Context) (map[string]any, error) {
	categories, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}

	tree := map[string]any{}
	for _, category := range categories {
		current := tree
		for _, part := range strings.Split(category, "/") {
			next, ok := current[part].(map[string]any)
			if !ok {
				next = map[string]any{}
				current[part] = next
			}
			current = next
		}
	}
	return tree, nil
}

func collectBookmarks(rows *sql.Rows) ([]Bookmark, error) {
	defer rows.Close()
	var items []Bookmark
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
