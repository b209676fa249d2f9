// Package render превращает ReviewPayload в документ для человека: PDF для
// режима full и HTML со ссылками на скопированные файлы для режима extract.
package render

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"procedure-review/shared/models"
)

// Renderer рендерит payload в заданный формат.
type Renderer interface {
	Render(ctx context.Context, p *models.ReviewPayload, format models.Format) ([]byte, error)
}

// Document выбирает конкретный рендерер по формату.
type Document struct {
	html   *HTMLRenderer
	pdf    *PDFRenderer
	logger *zap.Logger
}

var _ Renderer = (*Document)(nil)

func NewDocument(logger *zap.Logger) (*Document, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	html, err := NewHTMLRenderer()
	if err != nil {
		return nil, err
	}
	return &Document{html: html, pdf: NewPDFRenderer(), logger: logger.Named("render")}, nil
}

func (d *Document) Render(ctx context.Context, p *models.ReviewPayload, format models.Format) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", models.ErrInvalidPayload)
	}

	var (
		out []byte
		err error
	)
	switch format {
	case models.FormatHTML:
		out, err = d.html.Render(p)
	case models.FormatPDF:
		out, err = d.pdf.Render(ctx, p)
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
	if err != nil {
		return nil, err
	}
	d.logger.Debug("Document rendered",
		zap.String("procedure", p.ProcedureName),
		zap.String("format", string(format)),
		zap.Int("bytes", len(out)),
	)
	return out, nil
}
