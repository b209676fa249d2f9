// Package reviewstub - локальная замена review-сервиса для режима -dev:
// принимает массив payload и отвечает отрендеренным документом первого из них.
package reviewstub

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"procedure-review/internal/render"
	"procedure-review/shared/middleware"
	"procedure-review/shared/models"
)

// maxBodyBytes ограничивает размер принимаемого запроса.
const maxBodyBytes = 256 << 20

// Handler обслуживает POST /review.
type Handler struct {
	renderer render.Renderer
	logger   *zap.Logger
}

func NewHandler(renderer render.Renderer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{renderer: renderer, logger: logger}
}

// RegisterRoutes регистрирует маршруты стаба.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.POST("/review", h.Review)
	router.GET("/health", h.Health)
}

// Health - проверка живости.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Review рендерит первый payload массива. Формат ответа определяется режимом
// payload: pdf для full, html для extract; ?format= переопределяет его.
func (h *Handler) Review(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		h.fail(c, http.StatusRequestEntityTooLarge, fmt.Errorf("read body: %w", err))
		return
	}

	var payloads []*models.ReviewPayload
	if err := json.Unmarshal(body, &payloads); err != nil {
		h.fail(c, http.StatusBadRequest, fmt.Errorf("decode payload array: %w", err))
		return
	}
	if len(payloads) == 0 || payloads[0] == nil {
		h.fail(c, http.StatusBadRequest, errors.New("empty payload array"))
		return
	}
	p := payloads[0]
	c.Set(middleware.ProcedureKey, p.ProcedureName)
	if err := p.Validate(); err != nil {
		h.fail(c, http.StatusUnprocessableEntity, err)
		return
	}

	format := p.Mode.Format()
	switch f := models.Format(c.Query("format")); f {
	case "":
	case models.FormatHTML, models.FormatPDF:
		format = f
	default:
		h.fail(c, http.StatusBadRequest, fmt.Errorf("unsupported format %q", f))
		return
	}

	doc, err := h.renderer.Render(c.Request.Context(), p, format)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, fmt.Errorf("render: %w", err))
		return
	}
	if len(payloads) > 1 {
		h.logger.Warn("Only the first payload is rendered", zap.Int("received", len(payloads)))
	}

	contentType := "application/pdf"
	if format == models.FormatHTML {
		contentType = "text/html; charset=utf-8"
	}
	c.Data(http.StatusOK, contentType, doc)
}

func (h *Handler) fail(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
