package render_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procedure-review/internal/render"
	"procedure-review/shared/models"
)

func pngFrame(t *testing.T) models.PayloadFrame {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return models.PayloadFrame{MediaType: "image/png", Data: base64.StdEncoding.EncodeToString(buf.Bytes())}
}

func fullPayload(t *testing.T) *models.ReviewPayload {
	offset := 1.5
	frame := pngFrame(t)
	videoFrame := frame
	videoFrame.Offset = &offset
	return &models.ReviewPayload{
		ProcedureName: "replace-filter",
		Title:         "Replace the water filter",
		Description:   "Quarterly maintenance",
		Mode:          models.ModeFull,
		GeneratedAt:   "2025-03-14T06:26:53Z",
		AssetCount:    3,
		Steps: []models.PayloadStep{
			{
				Ordinal:     1,
				Title:       "Open",
				Instruction: "Turn the housing <counter-clockwise>.",
				Assets: []models.PayloadAsset{
					{ID: "s01-a01-aaaaaaaa", Kind: models.AssetKindImage, Source: "images/housing.png", Frames: []models.PayloadFrame{frame}},
					{ID: "s01-a02-bbbbbbbb", Kind: models.AssetKindVideo, Source: "videos/turn.mp4", Frames: []models.PayloadFrame{videoFrame}},
				},
			},
			{
				Ordinal:     2,
				Instruction: "Check the seal.",
				Assets: []models.PayloadAsset{
					{ID: "s02-a01-cccccccc", Kind: models.AssetKindImage, Source: "images/seal.webp", Frames: []models.PayloadFrame{{MediaType: "image/webp", Data: "UklGRg=="}}},
				},
			},
		},
	}
}

func extractPayload() *models.ReviewPayload {
	return &models.ReviewPayload{
		ProcedureName: "replace-filter",
		Mode:          models.ModeExtract,
		AssetCount:    2,
		Steps: []models.PayloadStep{{
			Ordinal:     1,
			Instruction: "Open the housing.",
			Assets: []models.PayloadAsset{
				{ID: "s01-a01-aaaaaaaa", Kind: models.AssetKindImage, Source: "images/housing.png", File: "procedure_assets/s01-a01-aaaaaaaa.png"},
				{ID: "s01-a02-bbbbbbbb", Kind: models.AssetKindVideo, Source: "videos/turn.mp4", File: "procedure_assets/s01-a02-bbbbbbbb.mp4"},
			},
		}},
	}
}

func newDocument(t *testing.T) *render.Document {
	t.Helper()
	doc, err := render.NewDocument(nil)
	require.NoError(t, err)
	return doc
}

func TestRender_HTMLFull(t *testing.T) {
	p := fullPayload(t)
	out, err := newDocument(t).Render(context.Background(), p, models.FormatHTML)
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, "<title>Replace the water filter</title>")
	assert.Contains(t, html, `src="data:image/png;base64,`+p.Steps[0].Assets[0].Frames[0].Data+`"`)
	assert.NotContains(t, html, "ZgotmplZ")
	assert.Contains(t, html, "Turn the housing &lt;counter-clockwise&gt;.")
	assert.Contains(t, html, `id="s02-a01-cccccccc"`)
	assert.Contains(t, html, "@ 1.5s")
}

func TestRender_HTMLExtractLinksFiles(t *testing.T) {
	out, err := newDocument(t).Render(context.Background(), extractPayload(), models.FormatHTML)
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, `<img src="procedure_assets/s01-a01-aaaaaaaa.png"`)
	assert.Contains(t, html, `<video controls src="procedure_assets/s01-a02-bbbbbbbb.mp4">`)
	assert.NotContains(t, html, "base64")
	assert.Contains(t, html, "<title>replace-filter</title>")
}

func TestRender_PDF(t *testing.T) {
	out, err := newDocument(t).Render(context.Background(), fullPayload(t), models.FormatPDF)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(out), "%%EOF")
}

func TestRender_PDFUnicodeText(t *testing.T) {
	p := fullPayload(t)
	p.Title = "Замена фильтра"
	p.Steps[0].Instruction = "Поверните корпус против часовой стрелки."

	out, err := newDocument(t).Render(context.Background(), p, models.FormatPDF)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(out), "/BaseFont /utf8")
	assert.Contains(t, string(out), "/Encoding /Identity-H")
	assert.NotContains(t, string(out), "/BaseFont /Helvetica")
}

func TestRender_PDFExtractWithoutFrames(t *testing.T) {
	out, err := newDocument(t).Render(context.Background(), extractPayload(), models.FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRender_PDFCorruptFrame(t *testing.T) {
	p := fullPayload(t)
	p.Steps[0].Assets[0].Frames[0].Data = "not base64!"

	_, err := newDocument(t).Render(context.Background(), p, models.FormatPDF)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s01-a01-aaaaaaaa")
}

func TestRender_Errors(t *testing.T) {
	doc := newDocument(t)

	_, err := doc.Render(context.Background(), extractPayload(), models.Format("docx"))
	assert.Error(t, err)

	_, err = doc.Render(context.Background(), nil, models.FormatHTML)
	assert.ErrorIs(t, err, models.ErrInvalidPayload)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = doc.Render(ctx, extractPayload(), models.FormatPDF)
	assert.ErrorIs(t, err, context.Canceled)
}
