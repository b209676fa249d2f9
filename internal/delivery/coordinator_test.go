package delivery_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"procedure-review/internal/delivery"
	"procedure-review/internal/mocks"
	"procedure-review/shared/models"
)

func payloadFor(mode models.Mode) *models.ReviewPayload {
	p := &models.ReviewPayload{
		ProcedureName: "replace filter/v2",
		Mode:          mode,
		GeneratedAt:   "2025-03-14T06:26:53Z",
		AssetCount:    1,
		Steps: []models.PayloadStep{{
			Ordinal:     1,
			Instruction: "Open the housing.",
			Assets:      []models.PayloadAsset{{ID: "s01-a01-1a2b3c4d", Kind: models.AssetKindImage, Source: "housing.png"}},
		}},
	}
	if mode == models.ModeExtract {
		p.Steps[0].Assets[0].File = "procedure_assets/s01-a01-1a2b3c4d.png"
	} else {
		p.Steps[0].Assets[0].Frames = []models.PayloadFrame{{MediaType: "image/png", Data: "iVBORw0="}}
	}
	return p
}

func TestDestinationPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "replace_filter_v2.pdf"), delivery.DestinationPath("out", payloadFor(models.ModeFull)))
	assert.Equal(t, filepath.Join("out", "replace_filter_v2.html"), delivery.DestinationPath("out", payloadFor(models.ModeExtract)))
	assert.Equal(t, "procedure", delivery.SanitizeName(" ../ "))
}

// Scenario A: локальная запись в режиме full, удалённая доставка не запрошена.
func TestDeliver_LocalOnly(t *testing.T) {
	out := t.TempDir()
	p := payloadFor(models.ModeFull)
	renderer := mocks.NewMockRenderer(t)
	renderer.On("Render", mock.Anything, p, models.FormatPDF).Return([]byte("%PDF-1.3 test"), nil).Once()

	c := delivery.NewCoordinator(delivery.Config{OutputDir: out, Local: true}, renderer, nil, nil, nil)
	outcome := c.Deliver(context.Background(), p, nil)

	dest := filepath.Join(out, "replace_filter_v2.pdf")
	assert.Equal(t, models.Succeeded(dest), outcome.Local)
	assert.Equal(t, models.SinkSkipped, outcome.Remote.Status)
	assert.False(t, outcome.Failed())
	assert.NoError(t, outcome.Err())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 test", string(data))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestDeliver_ExtractCopiesAssets(t *testing.T) {
	src := filepath.Join(t.TempDir(), "housing.PNG")
	require.NoError(t, os.WriteFile(src, []byte("png-bytes"), 0o644))
	out := filepath.Join(t.TempDir(), "nested", "out")

	p := payloadFor(models.ModeExtract)
	renderer := mocks.NewMockRenderer(t)
	renderer.On("Render", mock.Anything, p, models.FormatHTML).Return([]byte("<html></html>"), nil).Once()

	c := delivery.NewCoordinator(delivery.Config{OutputDir: out, Local: true}, renderer, nil, nil, nil)
	outcome := c.Deliver(context.Background(), p, delivery.AssetSources{"s01-a01-1a2b3c4d": src})

	require.Equal(t, models.SinkSucceeded, outcome.Local.Status, outcome.Local.Error)
	assert.Equal(t, filepath.Join(out, "replace_filter_v2.html"), outcome.Local.Path)

	copied, err := os.ReadFile(filepath.Join(out, "procedure_assets", "s01-a01-1a2b3c4d.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(copied))
}

func TestDeliver_ExtractMissingSource(t *testing.T) {
	renderer := mocks.NewMockRenderer(t)
	c := delivery.NewCoordinator(delivery.Config{OutputDir: t.TempDir(), Local: true}, renderer, nil, nil, nil)

	outcome := c.Deliver(context.Background(), payloadFor(models.ModeExtract), delivery.AssetSources{})
	assert.Equal(t, models.SinkFailed, outcome.Local.Status)
	assert.Equal(t, models.FailureWrite, outcome.Local.Kind)
	renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything, mock.Anything)
}

// Только удалённая доставка в режиме extract: HTML сервиса ссылается на procedure_assets.
func TestDeliver_RemoteOnlyExtractCopiesAssets(t *testing.T) {
	src := filepath.Join(t.TempDir(), "housing.png")
	require.NoError(t, os.WriteFile(src, []byte("png-bytes"), 0o644))
	out := t.TempDir()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<img src="procedure_assets/s01-a01-1a2b3c4d.png">`))
	}))
	defer srv.Close()

	renderer := mocks.NewMockRenderer(t)
	client := delivery.NewReviewClient(srv.URL, time.Second, nil, nil)
	c := delivery.NewCoordinator(delivery.Config{OutputDir: out, Local: false}, renderer, client, nil, nil)

	outcome := c.Deliver(context.Background(), payloadFor(models.ModeExtract), delivery.AssetSources{"s01-a01-1a2b3c4d": src})

	assert.Equal(t, models.SinkSkipped, outcome.Local.Status)
	require.Equal(t, models.SinkSucceeded, outcome.Remote.Status, outcome.Remote.Error)
	assert.Equal(t, filepath.Join(out, "replace_filter_v2.html"), outcome.Remote.Path)

	copied, err := os.ReadFile(filepath.Join(out, "procedure_assets", "s01-a01-1a2b3c4d.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(copied))
	renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliver_RemoteOnlyExtractMissingSource(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	out := t.TempDir()
	client := delivery.NewReviewClient(srv.URL, time.Second, nil, nil)
	c := delivery.NewCoordinator(delivery.Config{OutputDir: out, Local: false}, mocks.NewMockRenderer(t), client, nil, nil)

	outcome := c.Deliver(context.Background(), payloadFor(models.ModeExtract), delivery.AssetSources{})

	assert.Equal(t, models.SinkSkipped, outcome.Local.Status)
	assert.Equal(t, models.SinkFailed, outcome.Remote.Status)
	assert.Equal(t, models.FailureWrite, outcome.Remote.Kind)
	assert.Zero(t, calls)
	_, err := os.Stat(filepath.Join(out, "replace_filter_v2.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeliver_RenderFailure(t *testing.T) {
	out := t.TempDir()
	renderer := mocks.NewMockRenderer(t)
	renderer.On("Render", mock.Anything, mock.Anything, models.FormatPDF).Return(nil, errors.New("font missing")).Once()

	c := delivery.NewCoordinator(delivery.Config{OutputDir: out, Local: true}, renderer, nil, nil, nil)
	outcome := c.Deliver(context.Background(), payloadFor(models.ModeFull), nil)

	assert.Equal(t, models.SinkFailed, outcome.Local.Status)
	assert.Equal(t, models.FailureRender, outcome.Local.Kind)
	assert.Contains(t, outcome.Local.Error, "font missing")
	assert.ErrorIs(t, outcome.Err(), models.ErrDeliveryFailed)
	_, err := os.Stat(filepath.Join(out, "replace_filter_v2.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeliver_WriteFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	renderer := mocks.NewMockRenderer(t)
	renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return([]byte("doc"), nil).Once()

	// Каталог вывода лежит "внутри" обычного файла - создать его нельзя.
	c := delivery.NewCoordinator(delivery.Config{OutputDir: filepath.Join(blocker, "out"), Local: true}, renderer, nil, nil, nil)
	outcome := c.Deliver(context.Background(), payloadFor(models.ModeFull), nil)

	assert.Equal(t, models.SinkFailed, outcome.Local.Status)
	assert.Equal(t, models.FailureWrite, outcome.Local.Kind)
}

// Scenario D: обе доставки запрошены и успешны; ответ сервиса сохраняется по тому же пути.
func TestDeliver_BothSinks(t *testing.T) {
	var received []*models.ReviewPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &received))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-remote"))
	}))
	defer srv.Close()

	out := t.TempDir()
	p := payloadFor(models.ModeFull)
	renderer := mocks.NewMockRenderer(t)
	renderer.On("Render", mock.Anything, p, models.FormatPDF).Return([]byte("%PDF-local"), nil).Once()

	client := delivery.NewReviewClient(srv.URL, time.Second, nil, nil)
	c := delivery.NewCoordinator(delivery.Config{OutputDir: out, Local: true}, renderer, client, nil, nil)
	outcome := c.Deliver(context.Background(), p, nil)

	dest := filepath.Join(out, "replace_filter_v2.pdf")
	assert.Equal(t, models.Succeeded(dest), outcome.Local)
	assert.Equal(t, models.Succeeded(dest), outcome.Remote)

	require.Len(t, received, 1)
	assert.Equal(t, *p, *received[0])

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-remote", string(data))
}

// Scenario C: сервис не отвечает в пределах таймаута, локальный документ остаётся.
func TestDeliver_RemoteTimeoutKeepsLocal(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	out := t.TempDir()
	renderer := mocks.NewMockRenderer(t)
	renderer.On("Render", mock.Anything, mock.Anything, models.FormatPDF).Return([]byte("%PDF-local"), nil).Once()

	client := delivery.NewReviewClient(srv.URL, 50*time.Millisecond, nil, nil)
	c := delivery.NewCoordinator(delivery.Config{OutputDir: out, Local: true}, renderer, client, nil, nil)
	outcome := c.Deliver(context.Background(), payloadFor(models.ModeFull), nil)

	assert.Equal(t, models.SinkSucceeded, outcome.Local.Status)
	assert.Equal(t, models.SinkFailed, outcome.Remote.Status)
	assert.Equal(t, models.FailureTimeout, outcome.Remote.Kind)
	assert.True(t, outcome.Failed())

	data, err := os.ReadFile(outcome.Local.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-local", string(data))
}

func TestDeliver_RemoteHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "schema mismatch", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	out := t.TempDir()
	client := delivery.NewReviewClient(srv.URL, time.Second, nil, nil)
	c := delivery.NewCoordinator(delivery.Config{OutputDir: out}, mocks.NewMockRenderer(t), client, nil, nil)
	outcome := c.Deliver(context.Background(), payloadFor(models.ModeFull), nil)

	assert.Equal(t, models.SinkSkipped, outcome.Local.Status)
	assert.Equal(t, models.SinkFailed, outcome.Remote.Status)
	assert.Equal(t, models.FailureHTTPStatus, outcome.Remote.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, outcome.Remote.StatusCode)
	assert.Contains(t, outcome.Remote.Error, "schema mismatch")

	_, err := os.Stat(delivery.DestinationPath(out, payloadFor(models.ModeFull)))
	assert.True(t, os.IsNotExist(err))
}

func TestDeliver_RemoteConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	client := delivery.NewReviewClient(endpoint, time.Second, nil, nil)
	c := delivery.NewCoordinator(delivery.Config{OutputDir: t.TempDir()}, mocks.NewMockRenderer(t), client, nil, nil)
	outcome := c.Deliver(context.Background(), payloadFor(models.ModeFull), nil)

	assert.Equal(t, models.SinkFailed, outcome.Remote.Status)
	assert.Equal(t, models.FailureConnection, outcome.Remote.Kind)
}

func TestSourcesOf(t *testing.T) {
	resolved := &models.ResolvedProcedure{Steps: []models.ResolvedStep{{
		Assets: []models.ResolvedAsset{{ID: "a", SourcePath: "/x/a.png"}, {ID: "b", SourcePath: "/x/b.mp4"}},
	}}}
	assert.Equal(t, delivery.AssetSources{"a": "/x/a.png", "b": "/x/b.mp4"}, delivery.SourcesOf(resolved))
	assert.Empty(t, delivery.SourcesOf(nil))
}
