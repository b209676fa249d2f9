package render

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/go-pdf/fpdf"

	"procedure-review/shared/models"
)

// DejaVu Sans покрывает кириллицу и прочий UTF-8 текст, который
// встроенные шрифты PDF (cp1252) передают с искажениями.
var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	fontRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	fontBold []byte
)

const pdfFont = "DejaVuSans"

const (
	pdfMaxImageWidth  = 180.0 // мм, ширина A4 минус поля
	pdfMaxImageHeight = 110.0
	pdfLineHeight     = 6.0
)

// PDFRenderer рендерит payload в PDF (A4, встроенные кадры).
type PDFRenderer struct{}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

func (r *PDFRenderer) Render(ctx context.Context, p *models.ReviewPayload) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(p.DisplayTitle(), true)
	pdf.SetCreator("procedure-review", true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddUTF8FontFromBytes(pdfFont, "", fontRegular)
	pdf.AddUTF8FontFromBytes(pdfFont, "B", fontBold)

	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", 18)
	pdf.MultiCell(0, 9, p.DisplayTitle(), "", "L", false)
	if p.Description != "" {
		pdf.SetFont(pdfFont, "", 11)
		pdf.MultiCell(0, pdfLineHeight, p.Description, "", "L", false)
	}
	pdf.SetFont(pdfFont, "", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.MultiCell(0, 5, fmt.Sprintf("%s / %s / %d assets / generated %s", p.ProcedureName, p.Mode, p.AssetCount, p.GeneratedAt), "", "L", false)
	pdf.SetTextColor(0, 0, 0)

	for _, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pdf.Ln(4)
		header := "Step " + strconv.Itoa(step.Ordinal)
		if step.Title != "" {
			header += ": " + step.Title
		}
		pdf.SetFont(pdfFont, "B", 13)
		pdf.MultiCell(0, 7, header, "", "L", false)
		pdf.SetFont(pdfFont, "", 11)
		pdf.MultiCell(0, pdfLineHeight, step.Instruction, "", "L", false)

		for _, asset := range step.Assets {
			if err := r.writeAsset(pdf, asset); err != nil {
				return nil, err
			}
		}
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) writeAsset(pdf *fpdf.Fpdf, asset models.PayloadAsset) error {
	caption := asset.ID + " - " + asset.Source
	if asset.File != "" {
		caption += " (" + asset.File + ")"
	}

	for i, frame := range asset.Frames {
		imageType, ok := pdfImageType(frame.MediaType)
		if !ok {
			caption += " [" + frame.MediaType + " not embeddable]"
			continue
		}
		data, err := base64.StdEncoding.DecodeString(frame.Data)
		if err != nil {
			return fmt.Errorf("decode frame of %s: %w", asset.ID, err)
		}
		name := asset.ID + "-" + strconv.Itoa(i)
		opts := fpdf.ImageOptions{ImageType: imageType}
		info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		if pdf.Err() || info == nil {
			return fmt.Errorf("embed frame of %s: %w", asset.ID, pdf.Error())
		}

		w, h := fitImage(info.Width(), info.Height())
		_, pageH := pdf.GetPageSize()
		_, _, _, bottom := pdf.GetMargins()
		if pdf.GetY()+h > pageH-bottom {
			pdf.AddPage()
		}
		left, _, _, _ := pdf.GetMargins()
		y := pdf.GetY() + 2
		pdf.ImageOptions(name, left, y, w, h, false, opts, 0, "")
		pdf.SetY(y + h + 1)
		if frame.Offset != nil {
			caption += " @ " + strconv.FormatFloat(*frame.Offset, 'f', -1, 64) + "s"
		}
	}

	pdf.SetFont(pdfFont, "", 8)
	pdf.MultiCell(0, 4, caption, "", "L", false)
	pdf.SetFont(pdfFont, "", 11)
	return nil
}

func pdfImageType(mediaType string) (string, bool) {
	switch mediaType {
	case "image/png":
		return "PNG", true
	case "image/jpeg":
		return "JPG", true
	case "image/gif":
		return "GIF", true
	default:
		return "", false
	}
}

// fitImage масштабирует изображение в рамку страницы с сохранением пропорций.
func fitImage(w, h float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return pdfMaxImageWidth, pdfMaxImageHeight
	}
	scale := 1.0
	if w > pdfMaxImageWidth {
		scale = pdfMaxImageWidth / w
	}
	if h*scale > pdfMaxImageHeight {
		scale = pdfMaxImageHeight / h
	}
	return w * scale, h * scale
}
