package inference

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

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/mediassist/backend/internal/apperrors"
	"github.com/mediassist/backend/pkg/logger"
)

// maxOutputBytes caps how much classifier output is read.
const maxOutputBytes = 1 << 20

type predictRequest struct {
	Symptoms []string `json:"symptoms"`
}

// HTTPPredictor POSTs the symptom list to a remote classifier.
type HTTPPredictor struct {
	url        string
	timeout    time.Duration
	scale      Scale
	httpClient *http.Client
}

func NewHTTPPredictor(url string, timeout time.Duration, scale Scale) *HTTPPredictor {
	return &HTTPPredictor{
		url:     url,
		timeout: timeout,
		scale:   scale,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *HTTPPredictor) Predict(ctx context.Context, symptoms []string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payload, err := json.Marshal(predictRequest{Symptoms: symptoms})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w: %w", err, apperrors.ErrUnreachable)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err, p.timeout)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOutputBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, err, p.timeout)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("classifier rejected request (%d): %s: %w", resp.StatusCode, msg, apperrors.ErrInvalidInput)
	default:
		logger.Warn("Classifier returned error status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(body, 512)),
		)
		return nil, fmt.Errorf("classifier returned status %d: %w", resp.StatusCode, apperrors.ErrUnreachable)
	}

	return ParseOutput(body, p.scale)
}

func classifyTransportError(ctx context.Context, err error, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("no response within %s: %w", timeout, apperrors.ErrTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("no response within %s: %w", timeout, apperrors.ErrTimeout)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("prediction cancelled: %w", err)
	}
	return fmt.Errorf("%v: %w", err, apperrors.ErrUnreachable)
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
