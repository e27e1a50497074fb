package studyserver

import (
	"github.com/anatolykoptev/go_notes/internal/engine"
	"github.com/anatolykoptev/go_notes/internal/engine/sources"
	"github.com/anatolykoptev/go_notes/internal/engine/study"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Deps are the collaborators shared by all tools.
type Deps struct {
	Invoker engine.Invoker
	Prompts engine.Prompts
	Chunker engine.Chunker
	RunLog  *engine.RunLog // nil disables run journaling and study_runs
	OCR     sources.OCR    // nil uses tesseract
}

// Loaders are swapped out in tests.
var (
	loadTranscript = sources.TranscriptFromURL
	extractPDF     = sources.ExtractPDF
)

type service struct {
	deps Deps
}

// RegisterTools registers all study tools on the given MCP server:
// study_build, youtube_transcript, pdf_text, study_runs.
func RegisterTools(server *mcp.Server, deps Deps) {
	s := newService(deps)
	registerStudyBuild(server, s)
	registerYouTubeTranscript(server, s)
	registerPDFText(server, s)
	registerStudyRuns(server, s)
}

func newService(deps Deps) *service {
	if deps.Chunker.Size == 0 {
		deps.Chunker = engine.DefaultChunker()
	}
	if deps.Prompts == (engine.Prompts{}) {
		deps.Prompts = engine.DefaultPrompts()
	}
	return &service{deps: deps}
}

// pipeline builds a per-request pipeline so each call gets its own observer.
func (s *service) pipeline(c engine.Chunker, obs study.Observer) *study.Pipeline {
	opts := []study.Option{
		study.WithChunker(c),
		study.WithPrompts(s.deps.Prompts),
		study.WithObserver(obs),
	}
	if s.deps.RunLog != nil {
		opts = append(opts, study.WithRunLog(s.deps.RunLog))
	}
	return study.New(s.deps.Invoker, opts...)
}
