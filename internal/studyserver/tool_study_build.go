package studyserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/anatolykoptev/go_notes/internal/engine"
	"github.com/anatolykoptev/go_notes/internal/engine/study"
	"github.com/anatolykoptev/go_notes/internal/toolutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerStudyBuild(server *mcp.Server, s *service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "study_build",
		Description: "Turn a YouTube video, a PDF or raw text into study materials. The source is split into overlapping chunks, each chunk is summarized in parallel, the summaries are merged into a Markdown study guide and a quiz is written from the guide. Provide exactly one of youtube_url, pdf_path, pdf_base64, text. Returns the study guide, the quiz and a progress log.",
	}, s.studyBuild)
}

func (s *service) studyBuild(ctx context.Context, _ *mcp.CallToolRequest, input engine.StudyBuildInput) (*mcp.CallToolResult, engine.StudyBuildOutput, error) {
	if toolutil.CountSet(input.YouTubeURL, input.PDFPath, input.PDFBase64, input.Text) != 1 {
		return nil, engine.StudyBuildOutput{}, errors.New("exactly one of youtube_url, pdf_path, pdf_base64, text is required")
	}

	chunker, err := s.chunkerFor(input.ChunkSize, input.ChunkOverlap)
	if err != nil {
		return nil, engine.StudyBuildOutput{}, err
	}

	var progress toolutil.ProgressLog
	text, label, err := s.loadSource(ctx, input)
	if err != nil {
		return nil, engine.StudyBuildOutput{}, err
	}
	chars := utf8.RuneCountInString(text)
	progress.Add(fmt.Sprintf("source %s: %d chars", label, chars))
	slog.Info("study_build: source loaded", slog.String("source", label), slog.Int("chars", chars))

	mats, err := s.pipeline(chunker, progress.Observe).Build(study.WithSource(ctx, label), text)
	if err != nil {
		return nil, engine.StudyBuildOutput{}, fmt.Errorf("study_build: %w", err)
	}

	return nil, engine.StudyBuildOutput{
		RunID:      mats.RunID,
		Source:     label,
		Chars:      chars,
		Chunks:     mats.Chunks,
		StudyGuide: mats.StudyGuide,
		Quiz:       mats.Quiz,
		Log:        progress.Lines(),
	}, nil
}

// chunkerFor applies per-request overrides on top of the configured window.
// A size override without an overlap keeps the configured overlap ratio.
func (s *service) chunkerFor(size int, overlap *int) (engine.Chunker, error) {
	c := s.deps.Chunker
	if size <= 0 && overlap == nil {
		return c, nil
	}
	if size > 0 {
		if overlap == nil && c.Size > 0 {
			c.Overlap = c.Overlap * size / c.Size
		}
		c.Size = size
	}
	if overlap != nil {
		c.Overlap = *overlap
	}
	return engine.NewChunker(c.Size, c.Overlap)
}

// loadSource returns the text of the single source set in input and a label
// for the run log.
func (s *service) loadSource(ctx context.Context, input engine.StudyBuildInput) (string, string, error) {
	switch {
	case input.YouTubeURL != "":
		tr, err := loadTranscript(ctx, input.YouTubeURL, toolutil.NormLangs(input.Languages, engine.Cfg.TranscriptLangs))
		if err != nil {
			return "", "", err
		}
		return tr.Text, "youtube:" + tr.VideoID, nil

	case input.PDFPath != "" || input.PDFBase64 != "":
		res, label, err := s.pdfText(ctx, input.PDFPath, input.PDFBase64, input.OCR)
		if err != nil {
			return "", "", err
		}
		return res.Text, label, nil

	default:
		if limit := engine.Cfg.MaxUploadBytes; limit > 0 && int64(len(input.Text)) > limit {
			return "", "", fmt.Errorf("text exceeds %d bytes", limit)
		}
		return input.Text, "text", nil
	}
}
