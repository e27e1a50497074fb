package study

// Step is the router's decision for a state.
type Step int

const (
	NeedsChunks Step = iota
	NeedsSummaries
	NeedsGuide
	NeedsQuiz
	Done
)

// Stage names, as reported in PipelineError and run records.
const (
	StageChunk      = "chunk_text"
	StageSummarize  = "summarize_chunks"
	StageSynthesize = "synthesize_guide"
	StageQuiz       = "create_quiz"
)

func (s Step) String() string {
	switch s {
	case NeedsChunks:
		return "needs_chunks"
	case NeedsSummaries:
		return "needs_summaries"
	case NeedsGuide:
		return "needs_guide"
	case NeedsQuiz:
		return "needs_quiz"
	case Done:
		return "done"
	}
	return "unknown"
}

// Next reports the first unpopulated field of s. It has no side effects.
func Next(s State) Step {
	switch {
	case s.Chunks == nil:
		return NeedsChunks
	case s.Summaries == nil:
		return NeedsSummaries
	case s.StudyGuide == "":
		return NeedsGuide
	case s.Quiz == "":
		return NeedsQuiz
	}
	return Done
}

// StageFor returns the name of the stage that handles step, or "" for Done.
func StageFor(step Step) string {
	switch step {
	case NeedsChunks:
		return StageChunk
	case NeedsSummaries:
		return StageSummarize
	case NeedsGuide:
		return StageSynthesize
	case NeedsQuiz:
		return StageQuiz
	}
	return ""
}
