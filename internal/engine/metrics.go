package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	PipelineRuns              atomic.Int64
	PipelineFailures          atomic.Int64
	StageRuns                 atomic.Int64
	LLMCalls                  atomic.Int64
	LLMErrors                 atomic.Int64
	YouTubeTranscriptRequests atomic.Int64
	PDFExtractions            atomic.Int64
	PDFOCRFallbacks           atomic.Int64
}

// metricKeys fixes the output order of FormatMetrics.
var metricKeys = []string{
	"pipeline_runs", "pipeline_failures", "stage_runs",
	"llm_calls", "llm_errors",
	"youtube_transcript_requests",
	"pdf_extractions", "pdf_ocr_fallbacks",
	"cache_hits", "cache_misses",
}

// GetMetrics returns a snapshot of all metrics including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"pipeline_runs":               metrics.PipelineRuns.Load(),
		"pipeline_failures":           metrics.PipelineFailures.Load(),
		"stage_runs":                  metrics.StageRuns.Load(),
		"llm_calls":                   metrics.LLMCalls.Load(),
		"llm_errors":                  metrics.LLMErrors.Load(),
		"youtube_transcript_requests": metrics.YouTubeTranscriptRequests.Load(),
		"pdf_extractions":             metrics.PDFExtractions.Load(),
		"pdf_ocr_fallbacks":           metrics.PDFOCRFallbacks.Load(),
		"cache_hits":                  hits,
		"cache_misses":                misses,
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for the study and sources sub-packages.
func IncrPipelineRuns()      { metrics.PipelineRuns.Add(1) }
func IncrPipelineFailures()  { metrics.PipelineFailures.Add(1) }
func IncrStageRuns()         { metrics.StageRuns.Add(1) }
func IncrYouTubeTranscript() { metrics.YouTubeTranscriptRequests.Add(1) }
func IncrPDFExtractions()    { metrics.PDFExtractions.Add(1) }
func IncrPDFOCRFallbacks()   { metrics.PDFOCRFallbacks.Add(1) }

// SlowOperation is the threshold above which TrackOperation logs a warning.
var SlowOperation = 5 * time.Second

// TrackOperation logs a warning if an operation takes longer than SlowOperation.
func TrackOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > SlowOperation {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
