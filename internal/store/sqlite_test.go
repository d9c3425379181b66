package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enrich/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func importCols() []string {
	return []string{model.ColNMLSID, model.ColName, model.ColCompany, model.ColRank}
}

// seedList creates a list and upserts leads into it.
func seedList(t *testing.T, st Store, cols []string, leads ...model.Lead) (*model.List, []model.Lead) {
	t.Helper()
	ctx := context.Background()
	l, err := st.CreateList(ctx, model.List{Name: "Texas brokers", Filename: "tx.csv", RowCount: len(leads)})
	require.NoError(t, err)
	n, err := st.UpsertLeads(ctx, l.ID, cols, leads)
	require.NoError(t, err)
	require.Equal(t, len(leads), n)
	got, err := st.ListLeads(ctx, l.ID)
	require.NoError(t, err)
	return l, got
}

func TestSQLite_CreateAndGetList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l, err := st.CreateList(ctx, model.List{Name: "Q1", Filename: "q1.csv", RowCount: 3})
	require.NoError(t, err)
	assert.NotZero(t, l.ID)
	assert.Equal(t, model.StatusNone, l.EnrichmentStatus)

	got, err := st.GetList(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Q1", got.Name)
	assert.Equal(t, "q1.csv", got.Filename)
	assert.Equal(t, 3, got.RowCount)
	assert.Equal(t, model.StatusNone, got.EnrichmentStatus)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLite_GetList_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetList(context.Background(), 404)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_SetListStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l, err := st.CreateList(ctx, model.List{Name: "a"})
	require.NoError(t, err)
	require.NoError(t, st.SetListStatus(ctx, l.ID, model.StatusEnrichingURLs))

	got, err := st.GetList(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEnrichingURLs, got.EnrichmentStatus)

	err = st.SetListStatus(ctx, 999, model.StatusComplete)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListListsByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, s := range []model.EnrichmentStatus{model.StatusNone, model.StatusEnrichingSocials, model.StatusComplete, model.StatusPending} {
		_, err := st.CreateList(ctx, model.List{Name: string(s), EnrichmentStatus: s})
		require.NoError(t, err)
	}

	all, err := st.ListLists(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "none", all[0].Name)

	resumable, err := st.ListListsByStatus(ctx, model.StatusPending, model.StatusEnrichingSocials)
	require.NoError(t, err)
	require.Len(t, resumable, 2)
	assert.Equal(t, model.StatusEnrichingSocials, resumable[0].EnrichmentStatus)
	assert.Equal(t, model.StatusPending, resumable[1].EnrichmentStatus)
}

func TestSQLite_UpsertLeads_OrderedByRank(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, leads := seedList(t, st, importCols(),
		model.Lead{NMLSID: "3", Name: "Cara", Company: "Gamma", Rank: 3},
		model.Lead{NMLSID: "1", Name: "Abe", Company: "Alpha", Rank: 1},
		model.Lead{NMLSID: "2", Name: "Bea", Company: "Beta", Rank: 2},
	)
	require.Len(t, leads, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{leads[0].NMLSID, leads[1].NMLSID, leads[2].NMLSID})
	assert.Equal(t, "Alpha", leads[0].Company)
	assert.NotZero(t, leads[0].ID)
}

func TestSQLite_UpsertLeads_SkipsBlankNMLSID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	l, err := st.CreateList(ctx, model.List{Name: "x"})
	require.NoError(t, err)

	n, err := st.UpsertLeads(ctx, l.ID, importCols(), []model.Lead{{NMLSID: ""}, {NMLSID: "9", Name: "Nine"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_UpsertLeads_UnknownColumn(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.UpsertLeads(context.Background(), 1, []string{"bogus"}, []model.Lead{{NMLSID: "1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown lead column")
}

func TestSQLite_UpsertLeads_ReimportKeepsEnrichment(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	cols := append(importCols(), model.ColWebsite, model.ColEmail)

	first, _ := seedList(t, st, cols, model.Lead{
		NMLSID: "42", Name: "Old Name", Company: "Acme", CompanyWebsite: "https://acme.com",
	})

	second, leads := seedList(t, st, cols, model.Lead{
		NMLSID: "42", Name: "New Name", Company: "Acme", CompanyWebsite: "https://wrong.com", Email: "info@acme.com",
	})
	require.Len(t, leads, 1)
	assert.Equal(t, "New Name", leads[0].Name, "descriptive columns are overwritten")
	assert.Equal(t, "https://acme.com", leads[0].CompanyWebsite, "stored enrichment survives re-import")
	assert.Equal(t, "info@acme.com", leads[0].Email, "empty enrichment is filled by import")

	// The lead is shared by both lists.
	again, err := st.ListLeads(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, leads[0].ID, again[0].ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSQLite_FillLeads_WriteOnce(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	cols := append(importCols(), model.ColFacebook)

	l, leads := seedList(t, st, cols,
		model.Lead{NMLSID: "1", Company: "Alpha", Rank: 1, Facebook: "https://facebook.com/alpha"},
		model.Lead{NMLSID: "2", Company: "Beta", Rank: 2},
	)

	n, err := st.FillLeads(ctx, []model.Fill{
		{LeadID: leads[0].ID, Enrichment: model.Enrichment{
			Website: "https://alpha.com",
			Socials: model.Socials{model.PlatformFacebook: "https://facebook.com/other"},
		}},
		{LeadID: leads[1].ID, Enrichment: model.Enrichment{Website: "https://beta.com"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Second fill cannot overwrite anything.
	n, err = st.FillLeads(ctx, []model.Fill{
		{LeadID: leads[0].ID, Enrichment: model.Enrichment{Website: "https://evil.com"}},
		{LeadID: leads[1].ID, Enrichment: model.Enrichment{}},
	})
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := st.ListLeads(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://alpha.com", got[0].CompanyWebsite)
	assert.Equal(t, "https://facebook.com/alpha", got[0].Facebook)
	assert.Equal(t, "https://beta.com", got[1].CompanyWebsite)
}

func TestSQLite_FillLeads_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.FillLeads(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_ListProgress(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	cols := append(importCols(), model.ColWebsite)

	l, _ := seedList(t, st, cols,
		model.Lead{NMLSID: "1", CompanyWebsite: "https://a.com"},
		model.Lead{NMLSID: "2"},
		model.Lead{NMLSID: "3"},
	)

	p, err := st.ListProgress(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Progress{Status: model.StatusNone, Total: 3}, p, "enriched stays 0 before a run")

	require.NoError(t, st.SetListStatus(ctx, l.ID, model.StatusEnrichingSocials))
	p, err = st.ListProgress(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 1, p.Enriched)
	assert.Equal(t, 33.3, p.ProgressPct)

	_, err = st.ListProgress(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Coverage(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cov, err := st.Coverage(ctx)
	require.NoError(t, err)
	assert.Zero(t, cov.Leads)
	assert.Zero(t, cov.Columns[model.ColWebsite])

	cols := append(importCols(), model.ColWebsite, model.ColEmail, model.ColTwitterX)
	seedList(t, st, cols,
		model.Lead{NMLSID: "1", CompanyWebsite: "https://a.com", Email: "info@a.com"},
		model.Lead{NMLSID: "2", CompanyWebsite: "https://b.com", TwitterX: "https://x.com/b"},
		model.Lead{NMLSID: "3"},
	)

	cov, err = st.Coverage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cov.Leads)
	assert.Equal(t, 2, cov.Columns[model.ColWebsite])
	assert.Equal(t, 1, cov.Columns[model.ColEmail])
	assert.Equal(t, 1, cov.Columns[model.ColTwitterX])
	assert.Zero(t, cov.Columns[model.ColTikTok])
	assert.Len(t, cov.Columns, len(model.EnrichmentColumns()))
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_ImportList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l, n, err := st.ImportList(ctx, model.List{Name: "Q1", Filename: "q1.csv", RowCount: 3}, importCols(), []model.Lead{
		{NMLSID: "2", Company: "Beta", Rank: 2},
		{NMLSID: "1", Company: "Acme", Rank: 1},
		{Company: "No id"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotZero(t, l.ID)
	assert.Equal(t, model.StatusNone, l.EnrichmentStatus)
	assert.Equal(t, 3, l.RowCount)

	leads, err := st.ListLeads(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.Equal(t, "Acme", leads[0].Company)
}

func TestSQLite_ImportList_RollsBackList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	// Linking leads fails after the list row has been inserted.
	_, err := st.db.ExecContext(ctx, "DROP TABLE list_leads")
	require.NoError(t, err)

	_, _, err = st.ImportList(ctx, model.List{Name: "Q1", RowCount: 1}, importCols(), []model.Lead{{NMLSID: "1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "link lead")

	lists, err := st.ListLists(ctx)
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func TestSQLite_ImportList_UnknownColumn(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, _, err := st.ImportList(context.Background(), model.List{Name: "Q1"}, []string{"bogus"}, nil)
	require.Error(t, err)

	lists, err := st.ListLists(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lists)
}
