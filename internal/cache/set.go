package cache

import (
	"context"
	"io"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrich/internal/config"
	"github.com/sells-group/lead-enrich/internal/model"
)

// Cache kinds, also used as the SQLite kind column.
const (
	KindURL    = "url"
	KindSocial = "social"
	KindEmail  = "email"
)

// File names used by the file driver.
const (
	URLFile    = "url_cache.json"
	SocialFile = "social_cache.json"
	EmailFile  = "email_cache.json"
)

// Set holds the three independent stage caches.
type Set struct {
	URLs    Store[string]
	Socials Store[model.Socials]
	Emails  Store[[]string]

	closer io.Closer
}

// FileSet returns a Set of JSON files under dir.
func FileSet(dir string) *Set {
	return &Set{
		URLs:    NewFileStore[string](filepath.Join(dir, URLFile)),
		Socials: NewFileStore[model.Socials](filepath.Join(dir, SocialFile)),
		Emails:  NewFileStore[[]string](filepath.Join(dir, EmailFile)),
	}
}

// SQLiteSet returns a Set backed by one SQLite database. Close releases it.
func SQLiteSet(db *DB) *Set {
	return &Set{
		URLs:    NewSQLiteStore[string](db, KindURL),
		Socials: NewSQLiteStore[model.Socials](db, KindSocial),
		Emails:  NewSQLiteStore[[]string](db, KindEmail),
		closer:  db,
	}
}

// NewSet builds the Set selected by cfg.Driver.
func NewSet(ctx context.Context, cfg config.CacheConfig) (*Set, error) {
	switch cfg.Driver {
	case "", "file":
		return FileSet(cfg.Dir), nil
	case "sqlite":
		db, err := OpenSQLite(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return SQLiteSet(db), nil
	default:
		return nil, eris.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

// Close releases any database behind the set.
func (s *Set) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Stats is the number of keys held per kind.
type Stats struct {
	URLs    int `json:"urls" yaml:"urls"`
	Socials int `json:"socials" yaml:"socials"`
	Emails  int `json:"emails" yaml:"emails"`
}

// Stats loads each kind and counts its keys.
func (s *Set) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	urls, err := s.URLs.Load(ctx)
	if err != nil {
		return st, err
	}
	socials, err := s.Socials.Load(ctx)
	if err != nil {
		return st, err
	}
	emails, err := s.Emails.Load(ctx)
	if err != nil {
		return st, err
	}
	st.URLs, st.Socials, st.Emails = len(urls), len(socials), len(emails)
	return st, nil
}
