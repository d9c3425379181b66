package store

import (
	"fmt"
	"slices"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrich/internal/db"
	"github.com/sells-group/lead-enrich/internal/model"
)

// queries builds the SQL shared by both drivers; only the placeholder
// format differs.
type queries struct {
	sb     sq.StatementBuilderType
	format sq.PlaceholderFormat
}

func newQueries(format sq.PlaceholderFormat) queries {
	return queries{sb: sq.StatementBuilder.PlaceholderFormat(format), format: format}
}

var listColumns = []string{"id", "name", "filename", "row_count", "enrichment_status", "created_at"}

func quote(col string) string {
	return pgx.Identifier{col}.Sanitize()
}

func (q queries) insertList(l model.List) (string, []any, error) {
	return q.sb.Insert("lists").
		Columns("name", "filename", "row_count", "enrichment_status", "created_at").
		Values(l.Name, l.Filename, l.RowCount, string(l.EnrichmentStatus), l.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
}

func (q queries) selectLists(statuses []model.EnrichmentStatus) (string, []any, error) {
	b := q.sb.Select(listColumns...).From("lists").OrderBy("id")
	if len(statuses) > 0 {
		strs := make([]string, len(statuses))
		for i, s := range statuses {
			strs[i] = string(s)
		}
		b = b.Where(sq.Eq{"enrichment_status": strs})
	}
	return b.ToSql()
}

func (q queries) selectList(listID int64) (string, []any, error) {
	return q.sb.Select(listColumns...).From("lists").Where(sq.Eq{"id": listID}).ToSql()
}

func (q queries) updateListStatus(listID int64, status model.EnrichmentStatus) (string, []any, error) {
	return q.sb.Update("lists").
		Set("enrichment_status", string(status)).
		Where(sq.Eq{"id": listID}).
		ToSql()
}

func (q queries) listCounts(listID int64) (string, []any, error) {
	return q.sb.Select(
		"COUNT(*)",
		"COALESCE(SUM(CASE WHEN l.company_website <> '' THEN 1 ELSE 0 END), 0)",
	).
		From("list_leads ll").
		Join("leads l ON l.id = ll.lead_id").
		Where(sq.Eq{"ll.list_id": listID}).
		ToSql()
}

func leadSelectColumns() []string {
	cols := []string{"l.id"}
	for _, c := range model.LeadColumns() {
		cols = append(cols, "l."+quote(c))
	}
	return cols
}

// scanTargets returns the destinations matching leadSelectColumns.
func scanTargets(l *model.Lead) []any {
	dest := []any{&l.ID}
	for _, c := range model.LeadColumns() {
		dest = append(dest, l.Ptr(c))
	}
	return dest
}

func (q queries) selectLeads(listID int64) (string, []any, error) {
	return q.sb.Select(leadSelectColumns()...).
		From("leads l").
		Join("list_leads ll ON ll.lead_id = l.id").
		Where(sq.Eq{"ll.list_id": listID}).
		OrderBy(`l."rank"`, "l.id").
		ToSql()
}

// upsertColumns validates cols and returns them with nmlsid first and
// duplicates removed.
func upsertColumns(cols []string) ([]string, error) {
	out := []string{model.ColNMLSID}
	for _, c := range cols {
		if c == model.ColNMLSID || slices.Contains(out, c) {
			continue
		}
		if !slices.Contains(model.LeadColumns(), c) {
			return nil, eris.Errorf("store: unknown lead column %q", c)
		}
		out = append(out, c)
	}
	return out, nil
}

func (q queries) upsertLead(cols []string, l *model.Lead, now time.Time) (string, []any, error) {
	var keep []string
	values := make([]any, 0, len(cols)+1)
	for _, c := range cols {
		if model.IsEnrichmentColumn(c) {
			keep = append(keep, c)
		}
		values = append(values, l.ColumnValue(c))
	}
	values = append(values, now)

	return db.Upsert(db.UpsertConfig{
		Table:        "leads",
		Columns:      append(slices.Clone(cols), "updated_at"),
		ConflictKeys: []string{model.ColNMLSID},
		KeepExisting: keep,
		Returning:    []string{"id"},
	}, q.format, values...)
}

func (q queries) linkLead(listID, leadID int64) (string, []any, error) {
	return db.Upsert(db.UpsertConfig{
		Table:        "list_leads",
		Columns:      []string{"list_id", "lead_id"},
		ConflictKeys: []string{"list_id", "lead_id"},
	}, q.format, listID, leadID)
}

// fillColumns returns the fill's column/value pairs sorted by column so
// statements are issued in a stable order.
func fillColumns(f model.Fill) [][2]string {
	cols := f.Columns()
	out := make([][2]string, 0, len(cols))
	for c, v := range cols {
		out = append(out, [2]string{c, v})
	}
	slices.SortFunc(out, func(a, b [2]string) int { return strings.Compare(a[0], b[0]) })
	return out
}

func (q queries) fillLead(leadID int64, col, value string, now time.Time) (string, []any, error) {
	if !model.IsEnrichmentColumn(col) {
		return "", nil, eris.Errorf("store: %q is not an enrichment column", col)
	}
	return q.sb.Update("leads").
		Set(col, value).
		Set("updated_at", now).
		Where(sq.Eq{"id": leadID}).
		Where(sq.Or{sq.Eq{col: nil}, sq.Eq{col: ""}}).
		ToSql()
}

func coverageQuery() string {
	parts := []string{"COUNT(*)"}
	for _, c := range model.EnrichmentColumns() {
		parts = append(parts, fmt.Sprintf("COALESCE(SUM(CASE WHEN %s <> '' THEN 1 ELSE 0 END), 0)", quote(c)))
	}
	return "SELECT " + strings.Join(parts, ", ") + " FROM leads"
}

// coverageFrom maps the scanned coverageQuery row into a Coverage.
func coverageFrom(counts []int) model.Coverage {
	cov := model.Coverage{Columns: make(map[string]int)}
	if len(counts) == 0 {
		return cov
	}
	cov.Leads = counts[0]
	for i, c := range model.EnrichmentColumns() {
		cov.Columns[c] = counts[i+1]
	}
	return cov
}

func progressFrom(status model.EnrichmentStatus, total, enriched int) model.Progress {
	if !status.Started() {
		enriched = 0
	}
	return model.NewProgress(status, total, enriched)
}
