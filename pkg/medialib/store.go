// Package medialib is the device media store: a directory of captured
// files indexed by a SQLite database.
package medialib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

type Kind string

const (
	KindPhoto Kind = "photo"
	KindVideo Kind = "video"
)

// Asset is one stored media file.
type Asset struct {
	ID        string    `db:"id"`
	URI       string    `db:"uri"`
	Kind      Kind      `db:"kind"`
	CreatedAt time.Time `db:"created_at"`
}

// Library is the media-library capability consumed by the screen.
type Library interface {
	RequestPermission(ctx context.Context) (bool, error)
	// ListAssets returns stored assets newest first.
	ListAssets(ctx context.Context) ([]Asset, error)
	// Persist copies the file at locator into the library. Best effort.
	Persist(ctx context.Context, locator string, kind Kind) error
}

const indexName = "library.db"

var _ Library = (*Store)(nil)

type Store struct {
	dir        string
	db         *sqlx.DB
	permission string
}

type Option func(*Store)

// WithPermission pins the answer RequestPermission gives: "granted",
// "denied" or "unreachable". Without it access is probed on disk.
func WithPermission(answer string) Option {
	return func(s *Store) { s.permission = answer }
}

// Open creates dir if needed and opens its index.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", filepath.Join(dir, indexName))
	if err != nil {
		return nil, fmt.Errorf("failed to open library index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping library index: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := &Store{dir: dir, db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) RequestPermission(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	switch s.permission {
	case "granted":
		return true, nil
	case "denied":
		return false, nil
	case "unreachable":
		return false, fmt.Errorf("media library permission service unreachable")
	}

	probe, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return false, nil
		}
		return false, fmt.Errorf("failed to probe library directory: %w", err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return true, nil
}

const listAssetsQuery = `
	SELECT id, uri, kind, created_at
	FROM assets
	ORDER BY created_at DESC, rowid DESC
`

func (s *Store) ListAssets(ctx context.Context) ([]Asset, error) {
	var assets []Asset
	if err := s.db.SelectContext(ctx, &assets, listAssetsQuery); err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

const insertAssetQuery = `
	INSERT INTO assets (id, uri, kind, created_at)
	VALUES (:id, :uri, :kind, :created_at)
	ON CONFLICT(uri) DO NOTHING
`

func (s *Store) Persist(ctx context.Context, locator string, kind Kind) error {
	if locator == "" {
		return fmt.Errorf("locator cannot be empty")
	}
	if kind != KindPhoto && kind != KindVideo {
		return fmt.Errorf("unknown media kind %q", kind)
	}

	dest, err := s.importFile(locator)
	if err != nil {
		return err
	}

	asset := Asset{
		ID:        uuid.NewString(),
		URI:       dest,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.NamedExecContext(ctx, insertAssetQuery, asset); err != nil {
		return fmt.Errorf("failed to index asset: %w", err)
	}
	return nil
}

// importFile copies locator into the library directory unless it already
// lives there, returning the stored path.
func (s *Store) importFile(locator string) (string, error) {
	src, err := filepath.Abs(locator)
	if err != nil {
		return "", fmt.Errorf("failed to resolve locator: %w", err)
	}
	dir, err := filepath.Abs(s.dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve library directory: %w", err)
	}
	if strings.HasPrefix(src, dir+string(filepath.Separator)) {
		return src, nil
	}

	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("failed to open capture: %w", err)
	}
	defer in.Close()

	dest := filepath.Join(dir, filepath.Base(src))
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if errors.Is(err, fs.ErrExist) {
		ext := filepath.Ext(dest)
		dest = strings.TrimSuffix(dest, ext) + "_" + uuid.NewString()[:8] + ext
		out, err = os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create library file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return "", fmt.Errorf("failed to copy capture: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to close library file: %w", err)
	}
	return dest, nil
}
