package db

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsert_NoColumns(t *testing.T) {
	_, _, err := Upsert(UpsertConfig{
		Table:        "leads",
		ConflictKeys: []string{"nmlsid"},
	}, sq.Question)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestUpsert_NoConflictKeys(t *testing.T) {
	_, _, err := Upsert(UpsertConfig{
		Table:   "leads",
		Columns: []string{"nmlsid", "name"},
	}, sq.Question, "1", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestUpsert_ValueCountMismatch(t *testing.T) {
	_, _, err := Upsert(UpsertConfig{
		Table:        "leads",
		Columns:      []string{"nmlsid", "name"},
		ConflictKeys: []string{"nmlsid"},
	}, sq.Question, "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 values for 2 columns")
}

func TestUpsert_Dollar(t *testing.T) {
	query, args, err := Upsert(UpsertConfig{
		Table:        "leads",
		Columns:      []string{"nmlsid", "name", "email"},
		ConflictKeys: []string{"nmlsid"},
		KeepExisting: []string{"email"},
		Returning:    []string{"id"},
	}, sq.Dollar, "123", "Jane", "jane@acme.com")
	require.NoError(t, err)

	assert.Equal(t,
		`INSERT INTO "leads" ("nmlsid","name","email") VALUES ($1,$2,$3) `+
			`ON CONFLICT ("nmlsid") DO UPDATE SET "name" = EXCLUDED."name", `+
			`"email" = CASE WHEN "leads"."email" IS NULL OR "leads"."email" = '' THEN EXCLUDED."email" ELSE "leads"."email" END `+
			`RETURNING "id"`,
		query)
	assert.Equal(t, []any{"123", "Jane", "jane@acme.com"}, args)
}

func TestUpsert_DoNothingWhenNoUpdateColumns(t *testing.T) {
	query, _, err := Upsert(UpsertConfig{
		Table:        "list_leads",
		Columns:      []string{"list_id", "lead_id"},
		ConflictKeys: []string{"list_id", "lead_id"},
	}, sq.Question, 1, 2)
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "list_leads" ("list_id","lead_id") VALUES (?,?) ON CONFLICT ("list_id", "lead_id") DO NOTHING`,
		query)
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.leads", `"public"."leads"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"id", "name", "value"})
	assert.Equal(t, `"id", "name", "value"`, result)
}
