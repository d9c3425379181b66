package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-enrich/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
	q  queries
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sqlite: mkdir %s", dir)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer; the pipeline and the API share this handle.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, q: newQueries(sq.Question)}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	nmlsid                TEXT NOT NULL UNIQUE,
	name                  TEXT NOT NULL DEFAULT '',
	lo_role               TEXT NOT NULL DEFAULT '',
	company_nmls          TEXT NOT NULL DEFAULT '',
	company               TEXT NOT NULL DEFAULT '',
	type                  TEXT NOT NULL DEFAULT '',
	city                  TEXT NOT NULL DEFAULT '',
	state                 TEXT NOT NULL DEFAULT '',
	office_type           TEXT NOT NULL DEFAULT '',
	company_details       TEXT NOT NULL DEFAULT '',
	rank                  INTEGER NOT NULL DEFAULT 0,
	volume                TEXT NOT NULL DEFAULT '',
	units                 INTEGER NOT NULL DEFAULT 0,
	monthly_volume        TEXT NOT NULL DEFAULT '',
	monthly_units         INTEGER NOT NULL DEFAULT 0,
	purchase_percent      TEXT NOT NULL DEFAULT '',
	monthly_volume_export TEXT NOT NULL DEFAULT '',
	volume_export         TEXT NOT NULL DEFAULT '',
	company_website       TEXT NOT NULL DEFAULT '',
	email                 TEXT NOT NULL DEFAULT '',
	facebook              TEXT NOT NULL DEFAULT '',
	linkedin              TEXT NOT NULL DEFAULT '',
	instagram             TEXT NOT NULL DEFAULT '',
	twitter_x             TEXT NOT NULL DEFAULT '',
	youtube               TEXT NOT NULL DEFAULT '',
	tiktok                TEXT NOT NULL DEFAULT '',
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS lists (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	name              TEXT NOT NULL,
	filename          TEXT NOT NULL DEFAULT '',
	row_count         INTEGER NOT NULL DEFAULT 0,
	enrichment_status TEXT NOT NULL DEFAULT 'none',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS list_leads (
	list_id INTEGER NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
	lead_id INTEGER NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	PRIMARY KEY (list_id, lead_id)
);

CREATE INDEX IF NOT EXISTS idx_leads_company ON leads(company);
CREATE INDEX IF NOT EXISTS idx_lists_status ON lists(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_list_leads_lead ON list_leads(lead_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateList(ctx context.Context, list model.List) (*model.List, error) {
	if list.EnrichmentStatus == "" {
		list.EnrichmentStatus = model.StatusNone
	}
	if list.CreatedAt.IsZero() {
		list.CreatedAt = time.Now().UTC()
	}

	query, args, err := s.q.insertList(list)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build insert list")
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&list.ID); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert list")
	}
	return &list, nil
}

func (s *SQLiteStore) GetList(ctx context.Context, listID int64) (*model.List, error) {
	query, args, err := s.q.selectList(listID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build get list")
	}
	l, err := scanList(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: list %d", listID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get list %d", listID)
	}
	return l, nil
}

func (s *SQLiteStore) ListLists(ctx context.Context) ([]model.List, error) {
	return s.ListListsByStatus(ctx)
}

func (s *SQLiteStore) ListListsByStatus(ctx context.Context, statuses ...model.EnrichmentStatus) ([]model.List, error) {
	query, args, err := s.q.selectLists(statuses)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list lists")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list lists")
	}
	defer rows.Close()

	var lists []model.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan list")
		}
		lists = append(lists, *l)
	}
	return lists, eris.Wrap(rows.Err(), "sqlite: list lists iterate")
}

func (s *SQLiteStore) SetListStatus(ctx context.Context, listID int64, status model.EnrichmentStatus) error {
	query, args, err := s.q.updateListStatus(listID, status)
	if err != nil {
		return eris.Wrap(err, "sqlite: build set status")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set status of list %d", listID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: list %d", listID)
	}
	return nil
}

func (s *SQLiteStore) ListProgress(ctx context.Context, listID int64) (model.Progress, error) {
	l, err := s.GetList(ctx, listID)
	if err != nil {
		return model.Progress{}, err
	}
	query, args, err := s.q.listCounts(listID)
	if err != nil {
		return model.Progress{}, eris.Wrap(err, "sqlite: build progress")
	}
	var total, enriched int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total, &enriched); err != nil {
		return model.Progress{}, eris.Wrapf(err, "sqlite: progress of list %d", listID)
	}
	return progressFrom(l.EnrichmentStatus, total, enriched), nil
}

func (s *SQLiteStore) UpsertLeads(ctx context.Context, listID int64, columns []string, leads []model.Lead) (int, error) {
	cols, err := upsertColumns(columns)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	n, err := s.upsertLeads(ctx, tx, listID, cols, leads)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return n, nil
}

func (s *SQLiteStore) ImportList(ctx context.Context, list model.List, columns []string, leads []model.Lead) (*model.List, int, error) {
	cols, err := upsertColumns(columns)
	if err != nil {
		return nil, 0, err
	}
	if list.EnrichmentStatus == "" {
		list.EnrichmentStatus = model.StatusNone
	}
	if list.CreatedAt.IsZero() {
		list.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback() //nolint:errcheck

	query, args, err := s.q.insertList(list)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: build insert list")
	}
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&list.ID); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: insert list")
	}

	n, err := s.upsertLeads(ctx, tx, list.ID, cols, leads)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: commit import")
	}
	return &list, n, nil
}

// upsertLeads writes leads with NMLSIDs and links them to listID inside tx.
func (s *SQLiteStore) upsertLeads(ctx context.Context, tx *sql.Tx, listID int64, cols []string, leads []model.Lead) (int, error) {
	now := time.Now().UTC()
	n := 0
	for i := range leads {
		if leads[i].NMLSID == "" {
			continue
		}
		query, args, err := s.q.upsertLead(cols, &leads[i], now)
		if err != nil {
			return 0, err
		}
		var id int64
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert lead %s", leads[i].NMLSID)
		}
		leads[i].ID = id

		query, args, err = s.q.linkLead(listID, id)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: link lead %d to list %d", id, listID)
		}
		n++
	}
	return n, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, listID int64) ([]model.Lead, error) {
	query, args, err := s.q.selectLeads(listID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: build list leads")
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list leads of %d", listID)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(scanTargets(&l)...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) FillLeads(ctx context.Context, fills []model.Fill) (int, error) {
	if len(fills) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin fill")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	changed := 0
	for _, f := range fills {
		touched := false
		for _, cv := range fillColumns(f) {
			query, args, err := s.q.fillLead(f.LeadID, cv[0], cv[1], now)
			if err != nil {
				return 0, err
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return 0, eris.Wrapf(err, "sqlite: fill lead %d %s", f.LeadID, cv[0])
			}
			if n, _ := res.RowsAffected(); n > 0 {
				touched = true
			}
		}
		if touched {
			changed++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit fill")
	}
	return changed, nil
}

func (s *SQLiteStore) Coverage(ctx context.Context) (model.Coverage, error) {
	counts := make([]int, 1+len(model.EnrichmentColumns()))
	dest := make([]any, len(counts))
	for i := range counts {
		dest[i] = &counts[i]
	}
	if err := s.db.QueryRowContext(ctx, coverageQuery()).Scan(dest...); err != nil {
		return model.Coverage{}, eris.Wrap(err, "sqlite: coverage")
	}
	return coverageFrom(counts), nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanList(row scannable) (*model.List, error) {
	var l model.List
	var status string
	if err := row.Scan(&l.ID, &l.Name, &l.Filename, &l.RowCount, &status, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.EnrichmentStatus = model.EnrichmentStatus(status)
	return &l, nil
}
