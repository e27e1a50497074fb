package study

import (
	"context"
	"strings"

	"github.com/anatolykoptev/go_notes/internal/engine"
)

// summarySeparator joins chunk summaries into the synthesize prompt.
const summarySeparator = "\n\n---\n\n"

// Env is what the stages need besides the state.
type Env struct {
	Invoker engine.Invoker
	Chunker engine.Chunker
	Prompts engine.Prompts
}

// StageFunc reads the fields it depends on and returns an Update setting only
// the field it owns.
type StageFunc func(ctx context.Context, env Env, s State) (Update, error)

// ChunkText splits the source text into overlapping windows.
func ChunkText(_ context.Context, env Env, s State) (Update, error) {
	chunks, err := env.Chunker.Split(s.TextContent)
	if err != nil {
		return Update{}, err
	}
	return Update{Chunks: chunks}, nil
}

// SummarizeChunks summarizes every chunk in one batch. Summary i belongs to chunk i.
func SummarizeChunks(ctx context.Context, env Env, s State) (Update, error) {
	if len(s.Chunks) == 0 {
		return Update{Summaries: []string{}}, nil
	}
	batch := make([]map[string]string, len(s.Chunks))
	for i, c := range s.Chunks {
		batch[i] = map[string]string{engine.VarText: c}
	}
	out, err := env.Invoker.InvokeBatch(ctx, env.Prompts.Summarize, batch)
	if err != nil {
		return Update{}, err
	}
	if out == nil {
		out = []string{}
	}
	return Update{Summaries: out}, nil
}

// SynthesizeGuide merges all summaries into one Markdown study guide.
func SynthesizeGuide(ctx context.Context, env Env, s State) (Update, error) {
	if len(s.Summaries) == 0 {
		return Update{}, ErrNoContent
	}
	guide, err := env.Invoker.Invoke(ctx, env.Prompts.Synthesize, map[string]string{
		engine.VarSummaries: strings.Join(s.Summaries, summarySeparator),
	})
	if err != nil {
		return Update{}, err
	}
	return Update{StudyGuide: guide}, nil
}

// CreateQuiz writes a multiple-choice quiz from the study guide.
func CreateQuiz(ctx context.Context, env Env, s State) (Update, error) {
	quiz, err := env.Invoker.Invoke(ctx, env.Prompts.Quiz, map[string]string{
		engine.VarGuide: s.StudyGuide,
	})
	if err != nil {
		return Update{}, err
	}
	return Update{Quiz: quiz}, nil
}

// stageTable maps each step to its stage.
var stageTable = map[Step]StageFunc{
	NeedsChunks:    ChunkText,
	NeedsSummaries: SummarizeChunks,
	NeedsGuide:     SynthesizeGuide,
	NeedsQuiz:      CreateQuiz,
}
