package study

import "fmt"

// State is the working memory of one pipeline run. A nil slice means the
// field has not been produced yet; a non-nil empty slice means it was produced
// with zero items. Fields populate in declaration order and are never cleared.
type State struct {
	TextContent string   `json:"text_content"`
	Chunks      []string `json:"chunks,omitempty"`
	Summaries   []string `json:"summaries,omitempty"`
	StudyGuide  string   `json:"study_guide,omitempty"`
	Quiz        string   `json:"quiz,omitempty"`
}

// Update is the partial state returned by a stage. Only the field owned by
// the stage is set; the rest stay at their zero value.
type Update struct {
	Chunks     []string
	Summaries  []string
	StudyGuide string
	Quiz       string
}

// Materials are the two study artifacts of a finished run.
type Materials struct {
	RunID      string `json:"run_id"`
	StudyGuide string `json:"study_guide"`
	Quiz       string `json:"quiz"`
	Chunks     int    `json:"chunks"`
}

// Merge applies u to s and returns the result. s is not modified. A field in u
// that is already populated in s, or that would populate out of order, fails
// with ErrFieldOverwrite.
func Merge(s State, u Update) (State, error) {
	out := s
	if u.Chunks != nil {
		if s.Chunks != nil {
			return State{}, fmt.Errorf("chunks: %w", ErrFieldOverwrite)
		}
		out.Chunks = u.Chunks
	}
	if u.Summaries != nil {
		switch {
		case s.Summaries != nil:
			return State{}, fmt.Errorf("summaries: %w", ErrFieldOverwrite)
		case out.Chunks == nil:
			return State{}, fmt.Errorf("summaries before chunks: %w", ErrFieldOverwrite)
		case len(u.Summaries) != len(out.Chunks):
			return State{}, fmt.Errorf("got %d summaries for %d chunks", len(u.Summaries), len(out.Chunks))
		}
		out.Summaries = u.Summaries
	}
	if u.StudyGuide != "" {
		switch {
		case s.StudyGuide != "":
			return State{}, fmt.Errorf("study guide: %w", ErrFieldOverwrite)
		case out.Summaries == nil:
			return State{}, fmt.Errorf("study guide before summaries: %w", ErrFieldOverwrite)
		}
		out.StudyGuide = u.StudyGuide
	}
	if u.Quiz != "" {
		switch {
		case s.Quiz != "":
			return State{}, fmt.Errorf("quiz: %w", ErrFieldOverwrite)
		case out.StudyGuide == "":
			return State{}, fmt.Errorf("quiz before study guide: %w", ErrFieldOverwrite)
		}
		out.Quiz = u.Quiz
	}
	return out, nil
}

func (u Update) empty() bool {
	return u.Chunks == nil && u.Summaries == nil && u.StudyGuide == "" && u.Quiz == ""
}
