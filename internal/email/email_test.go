package email

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-enrich/internal/fetch"
	fetchmocks "github.com/sells-group/lead-enrich/internal/fetch/mocks"
	"github.com/sells-group/lead-enrich/internal/model"
	"github.com/sells-group/lead-enrich/internal/search"
	searchmocks "github.com/sells-group/lead-enrich/internal/search/mocks"
)

func TestScore(t *testing.T) {
	tests := []struct {
		addr string
		want int
	}{
		{"info@x.com", 10},
		{"Loans@x.com", 10},
		{"jane.smith@x.com", 8},
		{"j.s@x.com", 5},
		{"jane@x.com", 5},
		{"noreply@x.com", 1},
		{"webmaster@x.com", 1},
		{"support@x.com", 1},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.addr))
		})
	}
}

func TestRank_NoreplyIsNeverFirst(t *testing.T) {
	got := Rank([]string{"noreply@x.com", "info@x.com", "jane.smith@x.com"})
	assert.NotEqual(t, "noreply@x.com", got[0])
	assert.Equal(t, []string{"info@x.com", "jane.smith@x.com", "noreply@x.com"}, got)
}

func TestRank_DedupsCaseInsensitivelyAndDropsJunk(t *testing.T) {
	got := Rank([]string{
		"Jane@Acme.com", "jane@acme.com",
		"user@example.com", "logo@2x.png", "bob@acme.com",
	})
	assert.Equal(t, []string{"jane@acme.com", "bob@acme.com"}, got)
}

func TestIsJunk(t *testing.T) {
	assert.True(t, IsJunk("support@wixpress.com"))
	assert.True(t, IsJunk("you@yourdomain.com"))
	assert.True(t, IsJunk("icon@sprite.svg"))
	assert.True(t, IsJunk("not-an-address"))
	assert.False(t, IsJunk("noreply@acmelending.com"))
	assert.False(t, IsJunk("info@acmelending.com"))
}

func TestFromHTML(t *testing.T) {
	markup := `<html><body>
	<a href="MAILTO:Info@AcmeLending.com?subject=Loan">Email us</a>
	<p>Or write to jane.smith@acmelending.com</p>
	<img src="logo@2x.png">
	</body></html>`

	got := FromHTML(markup)
	assert.Equal(t, "Info@AcmeLending.com", got[0])
	assert.Contains(t, got, "jane.smith@acmelending.com")
	assert.Equal(t, []string{"info@acmelending.com", "jane.smith@acmelending.com"}, Rank(got))
}

func TestFromWebsite_Homepage(t *testing.T) {
	f := fetchmocks.NewMockFetcher(t)
	f.On("Fetch", mock.Anything, "https://acme.com/").
		Return(&fetch.Page{Body: `<a href="mailto:loans@acme.com">x</a> admin@acme.com`}, nil).Once()

	got := New(f, nil, WithProbePause(0)).FromWebsite(context.Background(), "https://acme.com/")
	assert.Equal(t, model.LookupFound, got.Status)
	assert.Equal(t, []string{"loans@acme.com", "admin@acme.com"}, got.Value)
}

func TestFromWebsite_ProbesContactPagesUntilFound(t *testing.T) {
	f := fetchmocks.NewMockFetcher(t)
	f.On("Fetch", mock.Anything, "https://acme.com/").Return(&fetch.Page{Body: "<p>Welcome</p>"}, nil).Once()
	f.On("Fetch", mock.Anything, "https://acme.com/contact").Return(nil, errors.New("404")).Once()
	f.On("Fetch", mock.Anything, "https://acme.com/contact-us").
		Return(&fetch.Page{Body: "reach us: hello@acme.com"}, nil).Once()

	got := New(f, nil, WithProbePause(0)).FromWebsite(context.Background(), "https://acme.com/")
	assert.Equal(t, model.LookupFound, got.Status)
	assert.Equal(t, []string{"hello@acme.com"}, got.Value)
	f.AssertNotCalled(t, "Fetch", mock.Anything, "https://acme.com/about")
}

func TestFromWebsite_NothingAnywhere(t *testing.T) {
	f := fetchmocks.NewMockFetcher(t)
	f.On("Fetch", mock.Anything, mock.Anything).Return(&fetch.Page{Body: "<p>nothing</p>"}, nil).Times(5)

	got := New(f, nil, WithProbePause(0)).FromWebsite(context.Background(), "https://acme.com")
	assert.Equal(t, model.LookupEmpty, got.Status)
	assert.Empty(t, got.Value)
}

func TestFromWebsite_HomepageFailureSkipsProbes(t *testing.T) {
	f := fetchmocks.NewMockFetcher(t)
	f.On("Fetch", mock.Anything, "https://down.com").Return(nil, errors.New("dial tcp: refused")).Once()

	got := New(f, nil).FromWebsite(context.Background(), "https://down.com")
	assert.Equal(t, model.LookupFailed, got.Status)
	assert.Error(t, got.Err)
}

func TestFromWebsite_CancelledDuringProbePause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := fetchmocks.NewMockFetcher(t)
	f.On("Fetch", mock.Anything, "https://acme.com").Return(&fetch.Page{Body: "none"}, nil).Once()
	f.On("Fetch", mock.Anything, "https://acme.com/contact").
		Run(func(mock.Arguments) { cancel() }).
		Return(&fetch.Page{Body: "none"}, nil).Once()

	got := New(f, nil).FromWebsite(ctx, "https://acme.com")
	assert.Equal(t, model.LookupFailed, got.Status)
	assert.ErrorIs(t, got.Err, context.Canceled)
}

func TestFromCompany(t *testing.T) {
	s := searchmocks.NewMockSearcher(t)
	s.On("Search", mock.Anything, `"Acme Lending" mortgage email contact Texas`, 5).Return([]search.Result{
		{Title: "Acme Lending", Snippet: "Call or email noreply@acme.com"},
		{Title: "Contact jane.smith@acme.com", Snippet: "Licensed in TX. info@acme.com"},
		{Title: "placeholder", Snippet: "you@example.com"},
	}, nil).Once()

	got := New(nil, s).FromCompany(context.Background(), "Acme Lending")
	assert.Equal(t, model.LookupFound, got.Status)
	assert.Equal(t, []string{"info@acme.com", "jane.smith@acme.com", "noreply@acme.com"}, got.Value)
}

func TestFromCompany_SearchFailure(t *testing.T) {
	s := searchmocks.NewMockSearcher(t)
	s.On("Search", mock.Anything, mock.Anything, 3).Return(nil, errors.New("rate limited")).Once()

	got := New(nil, s, WithMaxResults(3)).FromCompany(context.Background(), "Acme")
	assert.Equal(t, model.LookupFailed, got.Status)
	assert.Nil(t, got.Value)
}

func TestFromCompany_BlankName(t *testing.T) {
	s := searchmocks.NewMockSearcher(t)
	got := New(nil, s).FromCompany(context.Background(), "")
	assert.Equal(t, model.LookupEmpty, got.Status)
}
