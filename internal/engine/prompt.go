package engine

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// LLM prompt templates. Placeholders use {name} and are filled by Prompt.Render.

// SystemPrompt is sent with every study pipeline call.
const SystemPrompt = "You are an expert educator. Write accurate, well-structured study material in Markdown. Use only facts present in the provided text."

const summarizePrompt = `You are an expert summarizer. Summarize this text chunk clearly:

{text}`

const synthesizePrompt = `You are a skilled academic writer. Synthesize the following summaries into a single, cohesive study guide in Markdown:

{summaries}`

const quizPrompt = `You are an expert exam writer. Based on the following study guide, write a 5-question multiple-choice quiz with answers at the end:

{guide}`

// Placeholder names required by each stage template.
const (
	VarText      = "text"
	VarSummaries = "summaries"
	VarGuide     = "guide"
)

// ErrMissingVar is returned when a template placeholder has no value.
var ErrMissingVar = errors.New("missing template variable")

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Prompt is a named template with {name} placeholders.
type Prompt struct {
	Name string
	Text string
}

// Render substitutes every placeholder. Unused vars are ignored; values are
// inserted verbatim and never re-scanned for placeholders.
func (p Prompt) Render(vars map[string]string) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(p.Text, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := vars[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("%w {%s} in prompt %q", ErrMissingVar, missing, p.Name)
	}
	return out, nil
}

// Placeholders lists placeholder names in order of first appearance.
func (p Prompt) Placeholders() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(p.Text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

func (p Prompt) has(name string) bool {
	for _, n := range p.Placeholders() {
		if n == name {
			return true
		}
	}
	return false
}

// Prompts is the template set used by the study pipeline stages.
type Prompts struct {
	Summarize  Prompt
	Synthesize Prompt
	Quiz       Prompt
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() Prompts {
	return Prompts{
		Summarize:  Prompt{Name: "summarize", Text: summarizePrompt},
		Synthesize: Prompt{Name: "synthesize", Text: synthesizePrompt},
		Quiz:       Prompt{Name: "quiz", Text: quizPrompt},
	}
}

// Validate checks that each template carries the placeholder its stage fills.
func (ps Prompts) Validate() error {
	checks := []struct {
		p   Prompt
		req string
	}{
		{ps.Summarize, VarText},
		{ps.Synthesize, VarSummaries},
		{ps.Quiz, VarGuide},
	}
	for _, c := range checks {
		if !c.p.has(c.req) {
			return fmt.Errorf("prompt %q must contain {%s}", c.p.Name, c.req)
		}
	}
	return nil
}

type promptFile struct {
	Summarize  string `yaml:"summarize"`
	Synthesize string `yaml:"synthesize"`
	Quiz       string `yaml:"quiz"`
}

// LoadPrompts reads YAML overrides from path on top of DefaultPrompts.
// Keys: summarize, synthesize, quiz. Missing keys keep their default.
func LoadPrompts(path string) (Prompts, error) {
	ps := DefaultPrompts()
	if path == "" {
		return ps, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, fmt.Errorf("prompts: read %s: %w", path, err)
	}
	var f promptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Prompts{}, fmt.Errorf("prompts: parse %s: %w", path, err)
	}
	if f.Summarize != "" {
		ps.Summarize.Text = f.Summarize
	}
	if f.Synthesize != "" {
		ps.Synthesize.Text = f.Synthesize
	}
	if f.Quiz != "" {
		ps.Quiz.Text = f.Quiz
	}
	if err := ps.Validate(); err != nil {
		return Prompts{}, fmt.Errorf("prompts: %s: %w", path, err)
	}
	return ps, nil
}
