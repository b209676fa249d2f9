package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"procedure-review/shared/models"
)

// DefaultTimeout - таймаут запроса к review-сервису по умолчанию.
const DefaultTimeout = 60 * time.Second

// maxErrorBody ограничивает фрагмент тела ответа в сообщении об ошибке.
const maxErrorBody = 512

// ReviewClient отправляет payload в review-сервис и возвращает тело ответа (готовый документ).
type ReviewClient struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	logger   *zap.Logger
}

// NewReviewClient создаёт клиента. httpClient может быть nil.
func NewReviewClient(endpoint string, timeout time.Duration, httpClient *http.Client, logger *zap.Logger) *ReviewClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewClient{
		endpoint: endpoint,
		timeout:  timeout,
		client:   httpClient,
		logger:   logger.With(zap.String("api_url", endpoint)),
	}
}

// Endpoint returns the configured review endpoint.
func (c *ReviewClient) Endpoint() string {
	return c.endpoint
}

// Post отправляет JSON-массив из одного payload. Ошибки - *models.DeliveryError
// с видом timeout, connection, http_status или encode.
func (c *ReviewClient) Post(ctx context.Context, p *models.ReviewPayload) ([]byte, error) {
	reqBodyBytes, err := json.Marshal([]*models.ReviewPayload{p})
	if err != nil {
		c.logger.Error("Failed to marshal review payload", zap.Error(err))
		return nil, c.fail(models.FailureEncode, 0, fmt.Errorf("failed to marshal payload: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBodyBytes))
	if err != nil {
		c.logger.Error("Failed to create review request", zap.Error(err))
		return nil, c.fail(models.FailureConnection, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf, text/html, */*")

	c.logger.Debug("Sending payload to review service", zap.Int("body_bytes", len(reqBodyBytes)))
	resp, err := c.client.Do(req)
	if err != nil {
		kind := classify(err)
		c.logger.Error("Review request failed", zap.String("kind", string(kind)), zap.Error(err))
		return nil, c.fail(kind, 0, fmt.Errorf("http request failed: %w", err))
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := bodyBytes
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		c.logger.Error("Review service returned non-OK status",
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("response_body", snippet),
		)
		return nil, c.fail(models.FailureHTTPStatus, resp.StatusCode, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(snippet)))
	}

	if readErr != nil {
		kind := classify(readErr)
		c.logger.Error("Failed to read review response body", zap.Error(readErr))
		return nil, c.fail(kind, resp.StatusCode, fmt.Errorf("failed to read response body: %w", readErr))
	}

	c.logger.Debug("Review service call successful", zap.Int("response_bytes", len(bodyBytes)))
	return bodyBytes, nil
}

func (c *ReviewClient) fail(kind models.FailureKind, status int, err error) error {
	return &models.DeliveryError{Sink: models.SinkRemote, Kind: kind, StatusCode: status, Err: err}
}

// classify отделяет истечение таймаута от прочих сетевых ошибок.
func classify(err error) models.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.FailureTimeout
	}
	return models.FailureConnection
}
