package sources

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/anatolykoptev/go_notes/internal/engine"
	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// PDFOptions controls ExtractPDF.
type PDFOptions struct {
	MaxBytes int64 // 0 uses engine.Cfg.MaxUploadBytes
	OCR      bool  // recognise rendered pages when there is no text layer
	Engine   OCR   // nil uses tesseract from engine.Cfg.TesseractBin
}

// PDFResult is the text of a document.
type PDFResult struct {
	Text    string `json:"text"`
	Pages   int    `json:"pages"`
	OCRUsed bool   `json:"ocr_used"`
	Cached  bool   `json:"-"`
}

// document is the subset of *fitz.Document used here.
type document interface {
	NumPage() int
	Text(pageNumber int) (string, error)
	ImagePNG(pageNumber int, dpi float64) ([]byte, error)
	Close() error
}

// openDocument is swapped out in tests.
var openDocument = func(data []byte) (document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// textExtractor returns the text layer of a PDF and its page count.
type textExtractor struct {
	name string
	fn   func(data []byte) (string, int, error)
}

// textLayers run in order until one yields text. The pure-Go reader comes
// first; MuPDF covers files it cannot parse or decode.
var textLayers = []textExtractor{
	{"pdf", plainText},
	{"mupdf", mupdfText},
}

func maxUpload(n int64) int64 {
	if n > 0 {
		return n
	}
	if engine.Cfg.MaxUploadBytes > 0 {
		return engine.Cfg.MaxUploadBytes
	}
	return engine.DefaultMaxUploadBytes
}

// ExtractPDF returns the text of a PDF. A document without a text layer fails
// with ReasonNoText unless opts.OCR is set, in which case its pages are
// rendered and recognised.
func ExtractPDF(ctx context.Context, data []byte, opts PDFOptions) (PDFResult, error) {
	engine.IncrPDFExtractions()

	limit := maxUpload(opts.MaxBytes)
	if int64(len(data)) > limit {
		return PDFResult{}, unavailable("pdf", ReasonTooLarge,
			fmt.Errorf("%d bytes, limit %d", len(data), limit))
	}
	if !bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF-")) {
		return PDFResult{}, unavailable("pdf", ReasonInvalid, errors.New("missing %PDF- header"))
	}

	var (
		pages     int
		extracted bool
		errs      []error
	)
	for _, ex := range textLayers {
		t, n, err := ex.fn(data)
		if err != nil {
			slog.Debug("pdf: text layer failed", slog.String("reader", ex.name), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", ex.name, err))
			continue
		}
		extracted = true
		pages = max(pages, n)
		if text := engine.NormalizeText(t); text != "" {
			return PDFResult{Text: text, Pages: n}, nil
		}
	}
	if !extracted {
		return PDFResult{}, unavailable("pdf", ReasonInvalid, errors.Join(errs...))
	}

	if !opts.OCR {
		return PDFResult{Pages: pages}, unavailable("pdf", ReasonNoText,
			errors.New("document has no text layer; enable OCR for scanned files"))
	}

	engine.IncrPDFOCRFallbacks()
	ocr := opts.Engine
	if ocr == nil {
		ocr = TesseractOCR{Bin: engine.Cfg.TesseractBin}
	}
	text, pages, err := recognizeDocument(ctx, data, ocr)
	if err != nil {
		return PDFResult{}, unavailable("pdf", ReasonNoText, fmt.Errorf("ocr: %w", err))
	}
	text = engine.NormalizeText(text)
	if text == "" {
		return PDFResult{}, unavailable("pdf", ReasonNoText, errors.New("ocr found no text"))
	}
	return PDFResult{Text: text, Pages: pages, OCRUsed: true}, nil
}

// plainText reads the text layer with the pure-Go reader. The reader panics
// on some malformed files, so panics are turned into errors.
func plainText(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}
	pages = r.NumPage()
	parts := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		t, err := p.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n"), pages, nil
}

// mupdfText reads the text layer through MuPDF.
func mupdfText(data []byte) (string, int, error) {
	doc, err := openDocument(data)
	if err != nil {
		return "", 0, err
	}
	defer doc.Close()

	pages := doc.NumPage()
	parts := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		t, err := doc.Text(i)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i+1, err)
		}
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n"), pages, nil
}

// DecodePDFBase64 decodes an uploaded document, accepting an optional data URL prefix.
func DecodePDFBase64(s string, maxBytes int64) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	s = strings.TrimSpace(s)
	limit := maxUpload(maxBytes)
	if int64(base64.StdEncoding.DecodedLen(len(s))) > limit+2 {
		return nil, unavailable("pdf", ReasonTooLarge, fmt.Errorf("upload exceeds %d bytes", limit))
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, unavailable("pdf", ReasonInvalid, fmt.Errorf("base64: %w", err))
	}
	if int64(len(data)) > limit {
		return nil, unavailable("pdf", ReasonTooLarge, fmt.Errorf("%d bytes, limit %d", len(data), limit))
	}
	return data, nil
}

// LoadPDF reads a document from a local path or downloads an http(s) URL.
func LoadPDF(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, unavailable("pdf", ReasonInvalid, errors.New("empty path"))
	}
	limit := maxUpload(0)

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		data, _, err := engine.FetchBytes(ctx, ref, limit)
		switch {
		case errors.Is(err, engine.ErrTooLarge):
			return nil, unavailable("pdf", ReasonTooLarge, err)
		case err != nil:
			return nil, unavailable("pdf", ReasonUnreachable, err)
		}
		return data, nil
	}

	fi, err := os.Stat(ref)
	if err != nil {
		return nil, unavailable("pdf", ReasonUnreachable, err)
	}
	if fi.IsDir() {
		return nil, unavailable("pdf", ReasonInvalid, fmt.Errorf("%s is a directory", ref))
	}
	if fi.Size() > limit {
		return nil, unavailable("pdf", ReasonTooLarge, fmt.Errorf("%d bytes, limit %d", fi.Size(), limit))
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, unavailable("pdf", ReasonUnreachable, err)
	}
	return data, nil
}
