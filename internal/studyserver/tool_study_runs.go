package studyserver

import (
	"context"
	"errors"

	"github.com/anatolykoptev/go_notes/internal/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func registerStudyRuns(server *mcp.Server, s *service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "study_runs",
		Description: "List recent study_build runs from the local run log (SQLite): source, status, failing stage, chunk count, model calls and duration. Generated materials are not stored. Optionally filter by status: done, failed.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, s.studyRuns)
}

func (s *service) studyRuns(ctx context.Context, _ *mcp.CallToolRequest, input engine.StudyRunsInput) (*mcp.CallToolResult, engine.StudyRunsOutput, error) {
	if s.deps.RunLog == nil {
		return nil, engine.StudyRunsOutput{}, errors.New("run log is disabled")
	}
	runs, err := s.deps.RunLog.List(ctx, input.Status, input.Limit)
	if err != nil {
		return nil, engine.StudyRunsOutput{}, err
	}
	return nil, engine.StudyRunsOutput{Runs: runs, Total: len(runs)}, nil
}
