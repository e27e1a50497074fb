package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// ocrDPI is the render resolution for recognition. Tesseract accuracy drops
// sharply below 300 DPI.
const ocrDPI = 300

// OCR recognises the text of one rendered page image (PNG).
type OCR interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

// TesseractOCR runs the tesseract CLI, reading the image from stdin.
type TesseractOCR struct {
	Bin  string // default "tesseract"
	Lang string // tesseract language code, default "eng"
}

func (t TesseractOCR) Recognize(ctx context.Context, png []byte) (string, error) {
	bin := t.Bin
	if bin == "" {
		bin = "tesseract"
	}
	args := []string{"stdin", "stdout"}
	if t.Lang != "" {
		args = append(args, "-l", t.Lang)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = bytes.NewReader(png)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%s not installed: %w", bin, err)
		}
		return "", fmt.Errorf("%s: %w: %s", bin, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// recognizeDocument renders every page with MuPDF and runs ocr on it.
// Pages are joined with blank lines so paragraph breaks survive.
func recognizeDocument(ctx context.Context, data []byte, ocr OCR) (string, int, error) {
	doc, err := openDocument(data)
	if err != nil {
		return "", 0, fmt.Errorf("open: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	parts := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		img, err := doc.ImagePNG(i, ocrDPI)
		if err != nil {
			return "", 0, fmt.Errorf("render page %d: %w", i+1, err)
		}
		text, err := ocr.Recognize(ctx, img)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i+1, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
		slog.Debug("pdf: page recognised", slog.Int("page", i+1), slog.Int("chars", len(text)))
	}
	return strings.Join(parts, "\n\n"), pages, nil
}
