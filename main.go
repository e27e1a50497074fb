// go_notes: Study Notes MCP server.
//
// Turns a YouTube video, a PDF or raw text into a Markdown study guide and a
// quiz through a chunk, summarize, synthesize, quiz pipeline.
// Exposes four MCP tools: study_build, youtube_transcript, pdf_text, study_runs.
// Runs as HTTP MCP server or stdio transport.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
	"github.com/anatolykoptev/go_notes/internal/engine"
	"github.com/anatolykoptev/go_notes/internal/engine/sources"
	"github.com/anatolykoptev/go_notes/internal/studyserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version = "dev"
	mcpPort = env.Str("MCP_PORT", "8893")
)

func main() {
	c := initEngine()

	deps, err := initStudy(c)
	if err != nil {
		slog.Error("study init failed", slog.Any("error", err))
		os.Exit(1)
	}
	if deps.RunLog != nil {
		defer deps.RunLog.Close()
	}

	slog.Info("starting go_notes",
		slog.String("port", mcpPort),
		slog.String("model", c.LLMModel),
		slog.Int("chunk_size", deps.Chunker.Size),
		slog.Int("chunk_overlap", deps.Chunker.Overlap),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_notes",
		Version: version,
	}, nil)

	studyserver.RegisterTools(server, deps)
	slog.Info("tools registered", slog.Int("count", 4))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_notes",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 900 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func initEngine() engine.Config {
	c := engine.Config{
		LLMAPIKey:            env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks:   env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:           env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:             env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMTemperature:       env.Float("LLM_TEMPERATURE", 0.3),
		LLMMaxTokens:         env.Int("LLM_MAX_TOKENS", 8192),
		LLMRPS:               env.Float("LLM_RPS", 0),
		SummaryConcurrency:   env.Int("SUMMARY_CONCURRENCY", 4),
		ChunkSize:            env.Int("CHUNK_SIZE", engine.DefaultChunkSize),
		ChunkOverlap:         env.Int("CHUNK_OVERLAP", engine.DefaultChunkOverlap),
		PromptsFile:          env.Str("PROMPTS_FILE", ""),
		MaxUploadBytes:       int64(env.Int("MAX_UPLOAD_MB", 25)) << 20,
		OCREnabled:           envBool("OCR_ENABLED", false),
		TesseractBin:         env.Str("TESSERACT_BIN", "tesseract"),
		TranscriptLangs:      env.List("TRANSCRIPT_LANGS", "en"),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 30*time.Second),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 500),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
		RunLogPath:           env.Str("RUNLOG_PATH", engine.DefaultRunLogPath()),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	var opts []stealth.ClientOption
	opts = append(opts, stealth.WithTimeout(15))

	if apiKey := env.Str("WEBSHARE_API_KEY", ""); apiKey != "" {
		pool, err := proxypool.NewWebshare(apiKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}

	bc, err := stealth.NewClient(opts...)
	if err != nil {
		slog.Error("stealth client init failed", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
		slog.Info("stealth browser client initialized")
	}

	c.LLMClient = llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
		llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(c.LLMMaxTokens),
		llm.WithTemperature(c.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
	)

	engine.Init(c)

	cacheTTL := env.Duration("CACHE_TTL", 6*time.Hour)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
	return c
}

// initStudy assembles the pipeline collaborators from the engine config.
func initStudy(c engine.Config) (studyserver.Deps, error) {
	chunker, err := engine.NewChunker(c.ChunkSize, c.ChunkOverlap)
	if err != nil {
		return studyserver.Deps{}, err
	}
	prompts, err := engine.LoadPrompts(c.PromptsFile)
	if err != nil {
		return studyserver.Deps{}, err
	}

	deps := studyserver.Deps{
		Invoker: engine.NewInvoker(engine.NewKitCompleter(c.LLMClient),
			engine.WithConcurrency(c.SummaryConcurrency),
			engine.WithRateLimit(c.LLMRPS),
			engine.WithSystemPrompt(engine.SystemPrompt),
		),
		Prompts: prompts,
		Chunker: chunker,
		OCR:     sources.TesseractOCR{Bin: c.TesseractBin, Lang: env.Str("TESSERACT_LANG", "")},
	}

	// Run log (SQLite); metadata only, never generated materials.
	if path := strings.TrimSpace(c.RunLogPath); path != "" && path != "off" {
		rl, err := engine.OpenRunLog(path)
		if err != nil {
			slog.Warn("run log init failed, runs will not be journaled", slog.Any("error", err))
		} else {
			deps.RunLog = rl
			slog.Info("run log initialized", slog.String("path", path))
		}
	}
	return deps, nil
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(env.Str(key, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}
