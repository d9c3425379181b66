package db

import (
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig defines the parameters for a single-row upsert.
type UpsertConfig struct {
	Table        string   // target table (e.g., "leads")
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	UpdateCols   []string // columns to update on conflict; nil = all non-conflict columns
	KeepExisting []string // update columns only written while the stored value is NULL or ''
	Returning    []string // optional RETURNING columns
}

// Upsert builds INSERT ... ON CONFLICT (keys) DO UPDATE for one row of
// values. The statement is valid for both PostgreSQL and SQLite; format
// picks the placeholder style (sq.Dollar or sq.Question).
func Upsert(cfg UpsertConfig, format sq.PlaceholderFormat, values ...any) (string, []any, error) {
	if len(cfg.Columns) == 0 {
		return "", nil, eris.New("db: upsert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return "", nil, eris.New("db: upsert: no conflict keys specified")
	}
	if len(values) != len(cfg.Columns) {
		return "", nil, eris.Errorf("db: upsert: %d values for %d columns", len(values), len(cfg.Columns))
	}

	updateCols := cfg.UpdateCols
	if updateCols == nil {
		for _, c := range cfg.Columns {
			if !slices.Contains(cfg.ConflictKeys, c) {
				updateCols = append(updateCols, c)
			}
		}
	}

	table := sanitizeTable(cfg.Table)
	var setClauses []string
	for _, col := range updateCols {
		c := pgx.Identifier{col}.Sanitize()
		if slices.Contains(cfg.KeepExisting, col) {
			setClauses = append(setClauses, fmt.Sprintf(
				"%[2]s = CASE WHEN %[1]s.%[2]s IS NULL OR %[1]s.%[2]s = '' THEN EXCLUDED.%[2]s ELSE %[1]s.%[2]s END",
				table, c))
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}

	suffix := fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", quoteAndJoin(cfg.ConflictKeys))
	if len(setClauses) > 0 {
		suffix = fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
			quoteAndJoin(cfg.ConflictKeys), strings.Join(setClauses, ", "))
	}
	if len(cfg.Returning) > 0 {
		suffix += " RETURNING " + quoteAndJoin(cfg.Returning)
	}

	query, args, err := sq.Insert(table).
		Columns(quoteAll(cfg.Columns)...).
		Values(values...).
		Suffix(suffix).
		PlaceholderFormat(format).
		ToSql()
	if err != nil {
		return "", nil, eris.Wrapf(err, "db: upsert: build for %s", cfg.Table)
	}
	return query, args, nil
}

// sanitizeTable handles schema-qualified table names like "public.leads".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAll(cols []string) []string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return quoted
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	return strings.Join(quoteAll(cols), ", ")
}
