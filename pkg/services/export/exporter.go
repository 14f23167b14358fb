package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/de-tools/msp-atlas/pkg/models/domain"
	"github.com/de-tools/msp-atlas/pkg/store/files"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Renderer writes a report in one file format.
type Renderer interface {
	Render(w io.Writer, report *domain.Report) error
	Extension() string
	MimeType() string
}

// Exporter renders reports and stores the resulting files.
type Exporter interface {
	Export(ctx context.Context, report domain.Report, format domain.ExportFormat) (domain.ExportedFile, error)
	// Render writes the report without storing it.
	Render(w io.Writer, report domain.Report, format domain.ExportFormat) error
}

type Options struct {
	// DefaultFormat replaces unknown formats when set
	DefaultFormat domain.ExportFormat
	Now           func() time.Time
}

type exporter struct {
	store         files.Store
	renderers     map[domain.ExportFormat]Renderer
	defaultFormat domain.ExportFormat
	now           func() time.Time
}

func NewExporter(store files.Store, opts Options) (Exporter, error) {
	if store == nil {
		return nil, fmt.Errorf("file store is nil")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &exporter{
		store:         store,
		renderers:     Renderers(),
		defaultFormat: opts.DefaultFormat,
		now:           opts.Now,
	}, nil
}

// Renderers returns one renderer per supported format.
func Renderers() map[domain.ExportFormat]Renderer {
	return map[domain.ExportFormat]Renderer{
		domain.ExportPDF:  NewPDFRenderer(),
		domain.ExportCSV:  NewCSVRenderer(),
		domain.ExportXLSX: NewXLSXRenderer(),
		domain.ExportJSON: NewJSONRenderer(),
		domain.ExportYAML: NewYAMLRenderer(),
		domain.ExportText: NewTextRenderer(),
	}
}

func (e *exporter) renderer(format domain.ExportFormat) (Renderer, domain.ExportFormat, error) {
	if r, ok := e.renderers[format]; ok {
		return r, format, nil
	}
	if r, ok := e.renderers[e.defaultFormat]; ok {
		return r, e.defaultFormat, nil
	}
	return nil, "", fmt.Errorf("%w: %q", domain.ErrUnknownExportFormat, format)
}

func (e *exporter) Render(w io.Writer, report domain.Report, format domain.ExportFormat) error {
	r, _, err := e.renderer(format)
	if err != nil {
		return err
	}
	return r.Render(w, &report)
}

func (e *exporter) Export(ctx context.Context, report domain.Report, format domain.ExportFormat) (domain.ExportedFile, error) {
	r, resolved, err := e.renderer(format)
	if err != nil {
		return domain.ExportedFile{}, err
	}

	var buf bytes.Buffer
	if err := r.Render(&buf, &report); err != nil {
		return domain.ExportedFile{}, fmt.Errorf("render %s: %w", resolved, err)
	}

	name := fmt.Sprintf("%s-%s-%s.%s",
		Slug(report.Title), e.now().UTC().Format("20060102"), uuid.NewString()[:8], r.Extension())
	key := fmt.Sprintf("tenant-%d/%s", report.TenantID, name)

	obj, err := e.store.Put(ctx, key, buf.Bytes(), r.MimeType())
	if err != nil {
		return domain.ExportedFile{}, fmt.Errorf("store export: %w", err)
	}

	zerolog.Ctx(ctx).Debug().
		Int64("tenant", int64(report.TenantID)).
		Str("format", string(resolved)).
		Str("path", obj.Path).
		Int("size", buf.Len()).
		Msg("report exported")

	return domain.ExportedFile{
		Name:     name,
		Path:     obj.Path,
		URL:      obj.URL,
		MimeType: r.MimeType(),
		Size:     int64(buf.Len()),
		Content:  buf.Bytes(),
	}, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a report title into a file-name-safe token.
func Slug(s string) string {
	out := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if out == "" {
		return "report"
	}
	return out
}
