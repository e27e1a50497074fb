package studyserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/anatolykoptev/go_notes/internal/engine"
	"github.com/anatolykoptev/go_notes/internal/engine/sources"
	"github.com/anatolykoptev/go_notes/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerYouTubeTranscript(server *mcp.Server, s *service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "youtube_transcript",
		Description: "Fetch the caption transcript of a YouTube video as plain text. Accepts watch, youtu.be, shorts, embed and live URLs or a bare video ID. Tries manual captions in the preferred languages first, then auto-generated ones.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, s.youtubeTranscript)
}

func (s *service) youtubeTranscript(ctx context.Context, _ *mcp.CallToolRequest, input engine.YouTubeTranscriptInput) (*mcp.CallToolResult, engine.YouTubeTranscriptOutput, error) {
	if strings.TrimSpace(input.URL) == "" {
		return nil, engine.YouTubeTranscriptOutput{}, errors.New("url is required")
	}
	tr, err := loadTranscript(ctx, input.URL, toolutil.NormLangs(input.Languages, engine.Cfg.TranscriptLangs))
	if err != nil {
		return nil, engine.YouTubeTranscriptOutput{}, err
	}
	return nil, engine.YouTubeTranscriptOutput{
		VideoID:    tr.VideoID,
		Transcript: tr.Text,
		Chars:      utf8.RuneCountInString(tr.Text),
		Cached:     tr.Cached,
	}, nil
}

func registerPDFText(server *mcp.Server, s *service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "pdf_text",
		Description: "Extract the text of a PDF given as a local path, an http(s) URL or a base64 upload. Scanned documents without a text layer need ocr=true.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, s.pdfTextTool)
}

func (s *service) pdfTextTool(ctx context.Context, _ *mcp.CallToolRequest, input engine.PDFTextInput) (*mcp.CallToolResult, engine.PDFTextOutput, error) {
	if toolutil.CountSet(input.Path, input.Base64) != 1 {
		return nil, engine.PDFTextOutput{}, errors.New("exactly one of path, base64 is required")
	}
	res, _, err := s.pdfText(ctx, input.Path, input.Base64, input.OCR)
	if err != nil {
		return nil, engine.PDFTextOutput{}, err
	}
	return nil, engine.PDFTextOutput{
		Pages:   res.Pages,
		Chars:   utf8.RuneCountInString(res.Text),
		OCRUsed: res.OCRUsed,
		Cached:  res.Cached,
		Text:    res.Text,
	}, nil
}

// pdfText loads and extracts a PDF from a path/URL or a base64 upload.
// OCR runs when requested or enabled server-wide. Extracted text is cached
// by document content, so the same bytes behind another path hit the cache.
func (s *service) pdfText(ctx context.Context, ref, b64 string, ocr bool) (sources.PDFResult, string, error) {
	var (
		data  []byte
		label string
		err   error
	)
	if strings.TrimSpace(b64) != "" {
		data, err = sources.DecodePDFBase64(b64, 0)
		label = "pdf:upload"
	} else {
		data, err = sources.LoadPDF(ctx, ref)
		label = "pdf:" + path.Base(strings.TrimSpace(ref))
	}
	if err != nil {
		return sources.PDFResult{}, "", err
	}

	ocr = ocr || engine.Cfg.OCREnabled
	sum := sha256.Sum256(data)
	key := engine.CacheKey("pdf", hex.EncodeToString(sum[:]), strconv.FormatBool(ocr))
	if res, ok := engine.CacheLoadJSON[sources.PDFResult](ctx, key); ok && res.Text != "" {
		slog.Debug("pdf: text cache hit", slog.String("source", label))
		res.Cached = true
		return res, label, nil
	}

	res, err := extractPDF(ctx, data, sources.PDFOptions{
		OCR:    ocr,
		Engine: s.deps.OCR,
	})
	if err != nil {
		return sources.PDFResult{}, "", err
	}
	engine.CacheStoreJSON(ctx, key, res)
	return res, label, nil
}
