package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"log/slog"
)

// Failure classes the extractor maps to placeholder text instead of
// propagating.
var (
	ErrOCRNetwork   = errors.New("ocr network error")
	ErrOCRBadStatus = errors.New("ocr non-success status")
)

// OCRClient calls a remote OCR endpoint for files without a usable local
// text layer. Configured is false when no endpoint/key was provided.
type OCRClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewOCRClient(endpoint, apiKey string, timeout time.Duration, logger *slog.Logger) *OCRClient {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OCRClient{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Configured reports whether the remote OCR call can be made at all.
func (c *OCRClient) Configured() bool {
	return c != nil && c.endpoint != "" && c.apiKey != ""
}

type ocrRequest struct {
	File         string `json:"file"`
	ContentType  string `json:"content_type"`
	Language     string `json:"language"`
	OutputFormat string `json:"output_format"`
}

type ocrResponse struct {
	Text string `json:"text"`
}

// Recognize sends the file to the remote OCR endpoint and returns the
// recognized text. Callers convert errors to placeholder text; this method
// only reports them.
func (c *OCRClient) Recognize(ctx context.Context, content []byte, contentType string) (string, error) {
	start := time.Now()

	body, err := json.Marshal(ocrRequest{
		File:         base64.StdEncoding.EncodeToString(content),
		ContentType:  contentType,
		Language:     "auto",
		OutputFormat: "text",
	})
	if err != nil {
		return "", fmt.Errorf("marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ocr.request.network_error", "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("%w: %v", ErrOCRNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("ocr.request.bad_status", "status", resp.StatusCode,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("%w: %d", ErrOCRBadStatus, resp.StatusCode)
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}

	c.logger.Info("ocr.request.ok", "text_len", len(out.Text),
		"elapsed_ms", time.Since(start).Milliseconds())
	return out.Text, nil
}
