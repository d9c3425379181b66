package leadimport

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrich/internal/model"
)

// HeaderColumns maps file headers to lead columns.
var HeaderColumns = map[string]string{
	"NMLSID":                model.ColNMLSID,
	"Name":                  model.ColName,
	"LO Role":               model.ColLORole,
	"Company NMLS":          model.ColCompanyNMLS,
	"Company":               model.ColCompany,
	"Type":                  model.ColType,
	"City":                  model.ColCity,
	"State":                 model.ColState,
	"Office Type":           model.ColOfficeType,
	"Company Details":       model.ColCompanyDetails,
	"#":                     model.ColRank,
	"Volume":                model.ColVolume,
	"Units":                 model.ColUnits,
	"Monthly Volume":        model.ColMonthlyVolume,
	"Monthly Units":         model.ColMonthlyUnits,
	"Purchase Percent":      model.ColPurchasePercent,
	"Monthly Volume Export": model.ColMonthlyVolumeExport,
	"Volume Export":         model.ColVolumeExport,
	"Company Website":       model.ColWebsite,
	"Email":                 model.ColEmail,
	"Facebook":              model.ColFacebook,
	"LinkedIn":              model.ColLinkedIn,
	"Instagram":             model.ColInstagram,
	"Twitter/X":             model.ColTwitterX,
	"YouTube":               model.ColYouTube,
	"TikTok":                model.ColTikTok,
}

// Parsed is the content of a lead file mapped onto lead columns.
type Parsed struct {
	// Columns are the mapped columns present in the header, in header order.
	Columns []string
	Leads   []model.Lead
	// Rows counts data rows, including the ones skipped.
	Rows int
	// Skipped counts rows without an NMLSID.
	Skipped int
	// Enriched is set when the file already carries website and social data.
	Enriched bool
}

// Parse maps header and rows onto leads. Unknown headers are ignored; a
// header repeated later in the row is ignored too.
func Parse(header []string, rows [][]string) (*Parsed, error) {
	index := make(map[int]string)
	seen := make(map[string]bool)
	var cols []string
	for i, h := range header {
		col, ok := HeaderColumns[strings.TrimSpace(h)]
		if !ok || seen[col] {
			continue
		}
		seen[col] = true
		index[i] = col
		cols = append(cols, col)
	}
	if !seen[model.ColNMLSID] {
		return nil, eris.New("leadimport: header has no NMLSID column")
	}

	p := &Parsed{
		Columns:  cols,
		Rows:     len(rows),
		Enriched: seen[model.ColWebsite] && seen[model.ColFacebook],
	}
	for _, row := range rows {
		var l model.Lead
		for i, col := range index {
			if i >= len(row) {
				continue
			}
			setColumn(&l, col, row[i])
		}
		if l.NMLSID == "" {
			p.Skipped++
			continue
		}
		p.Leads = append(p.Leads, l)
	}
	return p, nil
}

func setColumn(l *model.Lead, col, raw string) {
	v := strings.TrimSpace(raw)
	switch f := l.Ptr(col).(type) {
	case *int:
		*f = parseInt(v)
	case *string:
		*f = v
	}
}

// parseInt reads counts such as "12", "1,204" or "3.0". Anything else is 0.
func parseInt(s string) int {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
