package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/filestodata/filestodata/constants"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	MaxPages  int    // 0 = no limit
}

// Extractor dispatches by file extension: PDFs get a local text-layer pass
// first, everything else goes straight to remote OCR (or placeholder text
// when OCR is not configured).
type Extractor struct {
	cfg    Config
	runner Runner
	ocr    *OCRClient
	logger *slog.Logger
}

func NewExtractor(cfg Config, ocr *OCRClient, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, ocr: ocr, logger: logger}
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, content []byte, fileName string) (string, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(fileName))
	e.logger.Debug("extract.start", "file_name", fileName, "ext", ext, "bytes", len(content))

	var (
		text string
		err  error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		text, err = e.extractPDF(ctx, content)
	default:
		// Unknown extensions are treated as images: best-effort OCR.
		text, err = e.extractImage(ctx, content, ext)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("extract.ok",
		"file_name", fileName,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (e *Extractor) extractPDF(ctx context.Context, content []byte) (string, error) {
	text, err := e.pdfTextLayer(ctx, content)
	if err != nil {
		e.logger.Warn("extract.pdf.text_layer_failed", "error", err)
	} else if text != "" {
		e.logger.Info("extract.pdf.text_layer_ok")
		return text, nil
	}

	e.logger.Info("extract.pdf.no_text_layer")
	if !e.ocr.Configured() {
		e.logger.Warn("extract.pdf.ocr_not_configured")
		return PlaceholderNoTextLayer, nil
	}
	return e.recognize(ctx, content, "application/pdf")
}

// pdfTextLayer extracts the embedded text layer page by page. Returns ""
// when the document has no non-whitespace text at all.
func (e *Extractor) pdfTextLayer(ctx context.Context, content []byte) (string, error) {
	tmp, err := os.CreateTemp("", "ftd-pdf-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp pdf: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil {
			e.logger.Warn("extract.pdf.tmp_remove_failed", "path", tmp.Name(), "error", err)
		}
	}()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp pdf: %w", err)
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", tmp.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 512))
	}

	// A form-feed \f is the page separator.
	pages := strings.Split(string(out), "\f")
	if e.cfg.MaxPages > 0 && len(pages) > e.cfg.MaxPages {
		pages = pages[:e.cfg.MaxPages]
	}

	hasText := false
	var b strings.Builder
	for i, page := range pages {
		fmt.Fprintf(&b, "--- PAGE %d ---\n", i+1)
		page = strings.TrimSpace(page)
		if page != "" {
			hasText = true
			b.WriteString(page)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if !hasText {
		return "", nil
	}
	return strings.TrimSpace(b.String()), nil
}

func (e *Extractor) extractImage(ctx context.Context, content []byte, ext string) (string, error) {
	if !e.ocr.Configured() {
		e.logger.Warn("extract.image.ocr_not_configured")
		return PlaceholderNoOCR, nil
	}

	contentType := mime.TypeByExtension("." + ext)
	if contentType == "" {
		contentType = "image/png"
	}
	return e.recognize(ctx, content, contentType)
}

// recognize calls remote OCR and degrades network/status failures to
// placeholder text so the pipeline keeps going with whatever it has.
func (e *Extractor) recognize(ctx context.Context, content []byte, contentType string) (string, error) {
	text, err := e.ocr.Recognize(ctx, content, contentType)
	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, ErrOCRBadStatus):
		return PlaceholderOCRError, nil
	case errors.Is(err, ErrOCRNetwork):
		return PlaceholderOCRNetwork, nil
	default:
		return "", err
	}
}
