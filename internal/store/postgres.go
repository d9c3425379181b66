package store

import (
	"context"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrich/internal/db"
	"github.com/sells-group/lead-enrich/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	q       queries
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool, pool.Close), nil
}

func newPostgresStore(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, q: newQueries(sq.Dollar), closeFn: closeFn}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                    BIGSERIAL PRIMARY KEY,
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
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lists (
	id                BIGSERIAL PRIMARY KEY,
	name              TEXT NOT NULL,
	filename          TEXT NOT NULL DEFAULT '',
	row_count         INTEGER NOT NULL DEFAULT 0,
	enrichment_status TEXT NOT NULL DEFAULT 'none',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS list_leads (
	list_id BIGINT NOT NULL REFERENCES lists(id) ON DELETE CASCADE,
	lead_id BIGINT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	PRIMARY KEY (list_id, lead_id)
);

CREATE INDEX IF NOT EXISTS idx_leads_company ON leads(company);
CREATE INDEX IF NOT EXISTS idx_lists_status ON lists(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_list_leads_lead ON list_leads(lead_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateList(ctx context.Context, list model.List) (*model.List, error) {
	if list.EnrichmentStatus == "" {
		list.EnrichmentStatus = model.StatusNone
	}
	if list.CreatedAt.IsZero() {
		list.CreatedAt = time.Now().UTC()
	}

	query, args, err := s.q.insertList(list)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build insert list")
	}
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&list.ID); err != nil {
		return nil, eris.Wrap(err, "postgres: insert list")
	}
	return &list, nil
}

func (s *PostgresStore) GetList(ctx context.Context, listID int64) (*model.List, error) {
	query, args, err := s.q.selectList(listID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build get list")
	}
	l, err := scanList(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: list %d", listID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get list %d", listID)
	}
	return l, nil
}

func (s *PostgresStore) ListLists(ctx context.Context) ([]model.List, error) {
	return s.ListListsByStatus(ctx)
}

func (s *PostgresStore) ListListsByStatus(ctx context.Context, statuses ...model.EnrichmentStatus) ([]model.List, error) {
	query, args, err := s.q.selectLists(statuses)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list lists")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list lists")
	}
	defer rows.Close()

	var lists []model.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan list")
		}
		lists = append(lists, *l)
	}
	return lists, eris.Wrap(rows.Err(), "postgres: list lists iterate")
}

func (s *PostgresStore) SetListStatus(ctx context.Context, listID int64, status model.EnrichmentStatus) error {
	query, args, err := s.q.updateListStatus(listID, status)
	if err != nil {
		return eris.Wrap(err, "postgres: build set status")
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: set status of list %d", listID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: list %d", listID)
	}
	return nil
}

func (s *PostgresStore) ListProgress(ctx context.Context, listID int64) (model.Progress, error) {
	l, err := s.GetList(ctx, listID)
	if err != nil {
		return model.Progress{}, err
	}
	query, args, err := s.q.listCounts(listID)
	if err != nil {
		return model.Progress{}, eris.Wrap(err, "postgres: build progress")
	}
	var total, enriched int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&total, &enriched); err != nil {
		return model.Progress{}, eris.Wrapf(err, "postgres: progress of list %d", listID)
	}
	return progressFrom(l.EnrichmentStatus, total, enriched), nil
}

func (s *PostgresStore) UpsertLeads(ctx context.Context, listID int64, columns []string, leads []model.Lead) (int, error) {
	cols, err := upsertColumns(columns)
	if err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin upsert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	n, err := s.upsertLeads(ctx, tx, listID, cols, leads)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit upsert")
	}
	return n, nil
}

func (s *PostgresStore) ImportList(ctx context.Context, list model.List, columns []string, leads []model.Lead) (*model.List, int, error) {
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: begin import")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query, args, err := s.q.insertList(list)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: build insert list")
	}
	if err := tx.QueryRow(ctx, query, args...).Scan(&list.ID); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: insert list")
	}

	n, err := s.upsertLeads(ctx, tx, list.ID, cols, leads)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: commit import")
	}
	return &list, n, nil
}

func (s *PostgresStore) upsertLeads(ctx context.Context, tx pgx.Tx, listID int64, cols []string, leads []model.Lead) (int, error) {
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
		if err := tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return 0, eris.Wrapf(err, "postgres: upsert lead %s", leads[i].NMLSID)
		}
		leads[i].ID = id

		query, args, err = s.q.linkLead(listID, id)
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return 0, eris.Wrapf(err, "postgres: link lead %d to list %d", id, listID)
		}
		n++
	}
	return n, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, listID int64) ([]model.Lead, error) {
	query, args, err := s.q.selectLeads(listID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list leads")
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list leads of %d", listID)
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(scanTargets(&l)...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) FillLeads(ctx context.Context, fills []model.Fill) (int, error) {
	if len(fills) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin fill")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	changed := 0
	for _, f := range fills {
		touched := false
		for _, cv := range fillColumns(f) {
			query, args, err := s.q.fillLead(f.LeadID, cv[0], cv[1], now)
			if err != nil {
				return 0, err
			}
			tag, err := tx.Exec(ctx, query, args...)
			if err != nil {
				return 0, eris.Wrapf(err, "postgres: fill lead %d %s", f.LeadID, cv[0])
			}
			if tag.RowsAffected() > 0 {
				touched = true
			}
		}
		if touched {
			changed++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit fill")
	}
	return changed, nil
}

func (s *PostgresStore) Coverage(ctx context.Context) (model.Coverage, error) {
	counts := make([]int, 1+len(model.EnrichmentColumns()))
	dest := make([]any, len(counts))
	for i := range counts {
		dest[i] = &counts[i]
	}
	if err := s.pool.QueryRow(ctx, coverageQuery()).Scan(dest...); err != nil {
		return model.Coverage{}, eris.Wrap(err, "postgres: coverage")
	}
	return coverageFrom(counts), nil
}
