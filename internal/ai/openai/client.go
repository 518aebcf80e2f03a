package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/filestodata/filestodata/internal/ai"
)

const documentSystemPrompt = "You are a document data extractor. Return ONLY a JSON object " +
	"describing the document: document type, parties, dates, line items, amounts, totals and " +
	"any other structured data you can identify. " +
	"The text contains placeholder tokens like [EMAIL_1] or [PERSON_2] in place of sensitive values. " +
	"Treat each token as an opaque value: copy it into your output EXACTLY as written, character for " +
	"character, and never invent, expand or reformat it. " +
	"Use ISO-8601 dates (YYYY-MM-DD). Never output null; omit fields you cannot determine."

const designSystemPrompt = "You are a design analyst. Return ONLY a JSON object describing the " +
	"image: layout, color palette, typography, visual elements, style and any text visible in the " +
	"design. Never output null; omit fields you cannot determine."

// maxDocumentChars caps the masked text sent per request.
const maxDocumentChars = 12000

// truncateForPrompt cuts s to at most max bytes without splitting a UTF-8
// rune or a placeholder token. A half token like "[EMAIL_" would no longer
// match the masking log, so the cut backs off to before the opening bracket.
func truncateForPrompt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if idx := strings.LastIndexByte(s[:cut], '['); idx >= 0 && !strings.ContainsRune(s[idx:cut], ']') {
		cut = idx
	}
	return s[:cut]
}

// ExtractDocumentData implements ai.DocumentExtractor using text-only
// chat/completions. maskedText must already have sensitive values replaced
// by tokens; this client never sees originals.
func (c *Client) ExtractDocumentData(ctx context.Context, maskedText string) (json.RawMessage, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("ai.document.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(maskedText),
	)

	maskedText = truncateForPrompt(maskedText, maxDocumentChars)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": documentSystemPrompt},
			{"role": "user", "content": "Document text:\n\n" + maskedText},
		},
	}

	content, err := c.complete(ctx, rid, body)
	if err != nil {
		c.log.Error("ai.document.error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	if err := ai.ValidateResultObject(content); err != nil {
		c.log.Error("ai.document.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	c.log.Info("ai.document.ok",
		"req_id", rid,
		"result_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// AnalyzeDesignImage implements ai.DocumentExtractor for the design path. The
// image is sent inline as a data URI; design images carry no PII masking.
func (c *Client) AnalyzeDesignImage(ctx context.Context, image []byte, fileName string) (json.RawMessage, error) {
	rid := uuid.New().String()
	start := time.Now()

	contentType := mime.TypeByExtension(filepath.Ext(fileName))
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = "image/png"
	}

	c.log.Info("ai.design.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"file_name", fileName,
		"content_type", contentType,
		"bytes", len(image),
	)

	dataURI := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image)
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": designSystemPrompt},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": "Analyze this design image."},
				{"type": "image_url", "image_url": map[string]any{"url": dataURI}},
			}},
		},
	}

	content, err := c.complete(ctx, rid, body)
	if err != nil {
		c.log.Error("ai.design.error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	if err := ai.ValidateResultObject(content); err != nil {
		c.log.Error("ai.design.schema_validation_failed",
			"req_id", rid, "error", err, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	c.log.Info("ai.design.ok",
		"req_id", rid,
		"result_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// complete posts a chat/completions body and returns the trimmed content of
// the first choice.
func (c *Client) complete(ctx context.Context, rid string, body map[string]any) ([]byte, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("ai.completion.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return nil, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("ai.completion.no_choices", "req_id", rid, "raw", string(raw))
		return nil, fmt.Errorf("no choices in openai response")
	}
	return []byte(strings.TrimSpace(cc.Choices[0].Message.Content)), nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.log.Warn("openai response body close error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
	}

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	return buf.Bytes(), nil
}
