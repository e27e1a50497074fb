package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/anatolykoptev/go_notes/internal/engine"
	"github.com/google/uuid"
)

// Phase marks where in a stage an Event was emitted.
type Phase string

const (
	PhaseStart  Phase = "start"
	PhaseDone   Phase = "done"
	PhaseFailed Phase = "failed"
)

// Event describes one stage transition of a run.
type Event struct {
	RunID   string
	Step    Step
	Stage   string
	Phase   Phase
	Elapsed time.Duration // zero for PhaseStart
	Items   int           // chunks or summaries produced, 1 for single artifacts
	Err     error
}

// Observer receives events synchronously from the goroutine running the pipeline.
type Observer func(Event)

// Recorder journals run metadata. *engine.RunLog implements it.
type Recorder interface {
	Record(ctx context.Context, rec engine.RunRecord) error
}

// Pipeline drives a State from raw text to finished study materials. The
// stages run one at a time; only the summarize stage fans out internally.
// A Pipeline holds no per-run state and may serve concurrent runs.
type Pipeline struct {
	env      Env
	observer Observer
	recorder Recorder
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithChunker overrides the default chunk window.
func WithChunker(c engine.Chunker) Option {
	return func(p *Pipeline) { p.env.Chunker = c }
}

// WithPrompts overrides the default templates.
func WithPrompts(ps engine.Prompts) Option {
	return func(p *Pipeline) { p.env.Prompts = ps }
}

// WithObserver registers a progress callback.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithRunLog journals every finished or failed run to r.
func WithRunLog(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// New builds a Pipeline that generates text through inv.
func New(inv engine.Invoker, opts ...Option) *Pipeline {
	p := &Pipeline{env: Env{
		Invoker: inv,
		Chunker: engine.DefaultChunker(),
		Prompts: engine.DefaultPrompts(),
	}}
	for _, o := range opts {
		o(p)
	}
	return p
}

type sourceKey struct{}

// WithSource labels runs started with ctx, e.g. "youtube:dQw4w9WgXcQ".
// The label is stored in the run log only.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFromContext(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}

// Build runs a fresh state built from text and returns the finished materials.
// Blank text fails with ErrNoContent before any stage runs.
func (p *Pipeline) Build(ctx context.Context, text string) (Materials, error) {
	if strings.TrimSpace(text) == "" {
		return Materials{}, ErrNoContent
	}
	id := uuid.NewString()
	final, err := p.run(ctx, id, State{TextContent: text})
	if err != nil {
		return Materials{}, err
	}
	return Materials{
		RunID:      id,
		StudyGuide: final.StudyGuide,
		Quiz:       final.Quiz,
		Chunks:     len(final.Chunks),
	}, nil
}

// Run advances s until the router reports Done. Fields already populated in s
// are kept and their stages skipped. On failure the partial state is dropped
// and the error is a *PipelineError naming the failing stage.
func (p *Pipeline) Run(ctx context.Context, s State) (State, error) {
	return p.run(ctx, uuid.NewString(), s)
}

func (p *Pipeline) run(ctx context.Context, runID string, s State) (State, error) {
	engine.IncrPipelineRuns()
	started := time.Now()

	calls := &countingInvoker{Invoker: p.env.Invoker}
	env := p.env
	env.Invoker = calls

	rec := engine.RunRecord{
		ID:        runID,
		Source:    sourceFromContext(ctx),
		Chars:     utf8.RuneCountInString(s.TextContent),
		StartedAt: started.UTC().Format(time.RFC3339),
	}

	slog.Info("study: run started", slog.String("run_id", runID), slog.Int("chars", rec.Chars))

	for step := Next(s); step != Done; step = Next(s) {
		stage := StageFor(step)
		next, err := p.runStage(ctx, env, runID, step, s)
		if err != nil {
			engine.IncrPipelineFailures()
			perr := &PipelineError{Stage: stage, Err: err}
			rec.Status, rec.Stage, rec.Error = engine.RunFailed, stage, err.Error()
			p.finish(ctx, rec, s, calls, started)
			slog.Warn("study: run failed", slog.String("run_id", runID), slog.String("stage", stage), slog.Any("error", err))
			return State{}, perr
		}
		s = next
	}

	rec.Status = engine.RunDone
	p.finish(ctx, rec, s, calls, started)
	slog.Info("study: run done", slog.String("run_id", runID),
		slog.Int("chunks", len(s.Chunks)), slog.Duration("elapsed", time.Since(started)))
	return s, nil
}

// runStage executes the stage for step and merges its update into s.
func (p *Pipeline) runStage(ctx context.Context, env Env, runID string, step Step, s State) (State, error) {
	stage := StageFor(step)
	fn, ok := stageTable[step]
	if !ok {
		return State{}, fmt.Errorf("no stage for step %s", step)
	}

	p.emit(Event{RunID: runID, Step: step, Stage: stage, Phase: PhaseStart})
	start := time.Now()
	engine.IncrStageRuns()

	var u Update
	err := engine.TrackOperation(ctx, "study:"+stage, func(ctx context.Context) error {
		var err error
		u, err = fn(ctx, env, s)
		return err
	})
	if err == nil && u.empty() {
		err = errors.New("stage produced no output")
	}
	var next State
	if err == nil {
		next, err = Merge(s, u)
	}
	if err == nil && Next(next) == step {
		err = errors.New("stage did not advance the state")
	}
	elapsed := time.Since(start)
	if err != nil {
		p.emit(Event{RunID: runID, Step: step, Stage: stage, Phase: PhaseFailed, Elapsed: elapsed, Err: err})
		return State{}, err
	}

	items := 1
	switch step {
	case NeedsChunks:
		items = len(next.Chunks)
	case NeedsSummaries:
		items = len(next.Summaries)
	}
	slog.Info("study: stage done", slog.String("run_id", runID), slog.String("stage", stage),
		slog.Int("items", items), slog.Duration("elapsed", elapsed))
	p.emit(Event{RunID: runID, Step: step, Stage: stage, Phase: PhaseDone, Elapsed: elapsed, Items: items})
	return next, nil
}

func (p *Pipeline) emit(e Event) {
	if p.observer != nil {
		p.observer(e)
	}
}

// finish writes the run record. Journal failures are logged, never returned.
func (p *Pipeline) finish(ctx context.Context, rec engine.RunRecord, s State, calls *countingInvoker, started time.Time) {
	if p.recorder == nil {
		return
	}
	rec.Chunks = len(s.Chunks)
	rec.LLMCalls = int(calls.n.Load())
	rec.DurationMS = time.Since(started).Milliseconds()
	if err := p.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("study: run log write failed", slog.String("run_id", rec.ID), slog.Any("error", err))
	}
}

// countingInvoker counts model calls made during one run.
type countingInvoker struct {
	engine.Invoker
	n atomic.Int64
}

func (c *countingInvoker) Invoke(ctx context.Context, p engine.Prompt, vars map[string]string) (string, error) {
	c.n.Add(1)
	return c.Invoker.Invoke(ctx, p, vars)
}

func (c *countingInvoker) InvokeBatch(ctx context.Context, p engine.Prompt, batch []map[string]string) ([]string, error) {
	c.n.Add(int64(len(batch)))
	return c.Invoker.InvokeBatch(ctx, p, batch)
}
