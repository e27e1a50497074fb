package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ErrEmptyCompletion marks a completion with no usable text.
var ErrEmptyCompletion = errors.New("empty completion")

// GenerationError is returned when a model call fails. Index is the position
// in a batch, or -1 for a single call.
type GenerationError struct {
	Prompt string
	Index  int
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("generate %s[%d]: %v", e.Prompt, e.Index, e.Err)
	}
	return fmt.Sprintf("generate %s: %v", e.Prompt, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Invoker renders a prompt template and runs one generation per variable set.
type Invoker interface {
	Invoke(ctx context.Context, p Prompt, vars map[string]string) (string, error)
	// InvokeBatch returns one output per input, in input order.
	InvokeBatch(ctx context.Context, p Prompt, batch []map[string]string) ([]string, error)
}

// Completer is a single text generation call.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type kitCompleter struct {
	client *llm.Client
}

// NewKitCompleter adapts a go-kit LLM client to Completer.
func NewKitCompleter(c *llm.Client) Completer {
	return kitCompleter{client: c}
}

func (k kitCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	return k.client.Complete(ctx, system, prompt)
}

// LLMInvoker is the Invoker backed by a Completer. It never retries and never caches.
type LLMInvoker struct {
	completer   Completer
	system      string
	concurrency int
	limiter     *rate.Limiter
}

// InvokerOption configures an LLMInvoker.
type InvokerOption func(*LLMInvoker)

// WithConcurrency caps parallel calls inside one batch (default 4).
func WithConcurrency(n int) InvokerOption {
	return func(inv *LLMInvoker) {
		if n > 0 {
			inv.concurrency = n
		}
	}
}

// WithRateLimit paces calls to rps requests per second across all batches.
// rps <= 0 disables pacing.
func WithRateLimit(rps float64) InvokerOption {
	return func(inv *LLMInvoker) {
		if rps > 0 {
			inv.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithSystemPrompt sets the system message sent with every call.
func WithSystemPrompt(s string) InvokerOption {
	return func(inv *LLMInvoker) { inv.system = s }
}

// NewInvoker builds an LLMInvoker. The result is safe for concurrent use.
func NewInvoker(c Completer, opts ...InvokerOption) *LLMInvoker {
	inv := &LLMInvoker{completer: c, concurrency: 4}
	for _, o := range opts {
		o(inv)
	}
	return inv
}

// Invoke runs a single generation.
func (inv *LLMInvoker) Invoke(ctx context.Context, p Prompt, vars map[string]string) (string, error) {
	return inv.call(ctx, p, vars, -1)
}

// InvokeBatch fans out one call per variable set and joins them. The first
// failure cancels the calls still in flight and fails the whole batch.
func (inv *LLMInvoker) InvokeBatch(ctx context.Context, p Prompt, batch []map[string]string) ([]string, error) {
	out := make([]string, len(batch))
	if len(batch) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inv.concurrency)
	for i, vars := range batch {
		g.Go(func() error {
			text, err := inv.call(gctx, p, vars, i)
			if err != nil {
				return err
			}
			out[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (inv *LLMInvoker) call(ctx context.Context, p Prompt, vars map[string]string, idx int) (string, error) {
	prompt, err := p.Render(vars)
	if err != nil {
		return "", &GenerationError{Prompt: p.Name, Index: idx, Err: err}
	}
	if inv.limiter != nil {
		if err := inv.limiter.Wait(ctx); err != nil {
			return "", &GenerationError{Prompt: p.Name, Index: idx, Err: err}
		}
	}

	metrics.LLMCalls.Add(1)
	raw, err := inv.completer.Complete(ctx, inv.system, prompt)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", &GenerationError{Prompt: p.Name, Index: idx, Err: err}
	}
	text := stripFences(raw)
	if text == "" {
		metrics.LLMErrors.Add(1)
		return "", &GenerationError{Prompt: p.Name, Index: idx, Err: ErrEmptyCompletion}
	}
	return text, nil
}

// stripFences removes a code fence wrapping the whole completion
// (```markdown ... ```), keeping fences that only appear inside it.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := strings.TrimSuffix(s, "```")
	nl := strings.IndexByte(body, '\n')
	if nl < 0 {
		return strings.TrimSpace(strings.TrimPrefix(body, "```"))
	}
	if strings.Contains(body[nl:], "\n```") {
		return s
	}
	return strings.TrimSpace(body[nl+1:])
}
