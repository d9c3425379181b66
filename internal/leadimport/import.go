package leadimport

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/model"
)

// Store is the part of the lead store an import writes to.
type Store interface {
	ImportList(ctx context.Context, list model.List, columns []string, leads []model.Lead) (*model.List, int, error)
}

// FileError reports a file that could not be read or parsed as leads, as
// opposed to a failure of the store.
type FileError struct {
	Err error
}

func (e *FileError) Error() string {
	return e.Err.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// IsFileError reports whether err was caused by the imported file itself.
func IsFileError(err error) bool {
	var fe *FileError
	return errors.As(err, &fe)
}

// Options names the list an import creates.
type Options struct {
	// Name is the list name; it defaults to the file name.
	Name string
	// Filename is recorded on the list; it defaults to the base of path.
	Filename string
}

// Result reports what an import did.
type Result struct {
	List     *model.List `json:"list" yaml:"list"`
	Rows     int         `json:"rows" yaml:"rows"`
	Imported int         `json:"imported" yaml:"imported"`
	Skipped  int         `json:"skipped" yaml:"skipped"`
}

// Import reads the file at path, creates a list for it and upserts its
// leads by NMLSID. A file that already carries website and Facebook
// columns produces a list marked complete. Problems with the file are
// returned as *FileError; a failed write leaves no list behind.
func Import(ctx context.Context, st Store, path string, opts Options) (*Result, error) {
	header, rows, err := ReadFile(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &FileError{Err: err}
	}
	parsed, err := Parse(header, rows)
	if err != nil {
		return nil, &FileError{Err: err}
	}

	if opts.Filename == "" {
		opts.Filename = filepath.Base(path)
	}
	if strings.TrimSpace(opts.Name) == "" {
		opts.Name = opts.Filename
	}

	status := model.StatusNone
	if parsed.Enriched {
		status = model.StatusComplete
	}
	list, n, err := st.ImportList(ctx, model.List{
		Name:             strings.TrimSpace(opts.Name),
		Filename:         opts.Filename,
		RowCount:         parsed.Rows,
		EnrichmentStatus: status,
	}, parsed.Columns, parsed.Leads)
	if err != nil {
		return nil, eris.Wrap(err, "leadimport: import list")
	}

	zap.L().Info("leadimport: import complete",
		zap.Int64("list_id", list.ID),
		zap.String("file", opts.Filename),
		zap.Int("rows", parsed.Rows),
		zap.Int("imported", n),
		zap.Int("skipped", parsed.Skipped),
		zap.String("status", string(status)),
	)
	return &Result{
		List:     list,
		Rows:     parsed.Rows,
		Imported: n,
		Skipped:  parsed.Skipped,
	}, nil
}
