package engine

import (
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	LLMAPIKey            string
	LLMAPIKeyFallbacks   []string
	LLMAPIBase           string
	LLMModel             string
	LLMTemperature       float64
	LLMMaxTokens         int
	LLMRPS               float64 // client-side pacing, 0 = unlimited
	SummaryConcurrency   int     // parallel summarize calls per run
	ChunkSize            int
	ChunkOverlap         int
	PromptsFile          string  // optional YAML prompt overrides
	MaxUploadBytes       int64
	OCREnabled           bool
	TesseractBin         string
	TranscriptLangs      []string
	FetchTimeout         time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	RunLogPath           string  // "" or "off" disables the run log
	HTTPClient           *http.Client
	BrowserClient        *BrowserClient // nil = YouTube pages fetched with HTTPClient
	LLMClient            *llm.Client
}

// DefaultMaxUploadBytes mirrors the 25 MB upload cap of the web front-end.
const DefaultMaxUploadBytes = 25 << 20

var cfg Config

// Cfg exposes the engine configuration for sub-packages (study, sources).
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if len(c.TranscriptLangs) == 0 {
		c.TranscriptLangs = []string{"en"}
	}
	cfg = c
	Cfg = &cfg
}
