package engine

// --- study_build ---

// StudyBuildInput is the input for the study_build tool. Exactly one source field must be set.
type StudyBuildInput struct {
	YouTubeURL   string   `json:"youtube_url,omitempty" jsonschema:"YouTube video URL or 11-character video ID"`
	PDFPath      string   `json:"pdf_path,omitempty" jsonschema:"Local path or http(s) URL of a PDF document"`
	PDFBase64    string   `json:"pdf_base64,omitempty" jsonschema:"Base64-encoded PDF upload"`
	Text         string   `json:"text,omitempty" jsonschema:"Raw source text"`
	ChunkSize    int      `json:"chunk_size,omitempty" jsonschema:"Max characters per chunk (default: 8000)"`
	ChunkOverlap *int     `json:"chunk_overlap,omitempty" jsonschema:"Characters shared by adjacent chunks, 0 allowed (default: 1000, scaled down with chunk_size)"`
	OCR          bool     `json:"ocr,omitempty" jsonschema:"Run OCR on scanned PDFs without a text layer"`
	Languages    []string `json:"languages,omitempty" jsonschema:"Preferred transcript languages, e.g. [\"en\",\"de\"] (default: en)"`
}

// StudyBuildOutput is the structured output for study_build.
type StudyBuildOutput struct {
	RunID      string   `json:"run_id"`
	Source     string   `json:"source"`
	Chars      int      `json:"chars"`
	Chunks     int      `json:"chunks"`
	StudyGuide string   `json:"study_guide"` // Markdown
	Quiz       string   `json:"quiz"`
	Log        []string `json:"log"` // progress lines, one per stage transition
}

// --- youtube_transcript ---

type YouTubeTranscriptInput struct {
	URL       string   `json:"url" jsonschema:"YouTube video URL or 11-character video ID"`
	Languages []string `json:"languages,omitempty" jsonschema:"Preferred transcript languages (default: en)"`
}

type YouTubeTranscriptOutput struct {
	VideoID    string `json:"video_id"`
	Transcript string `json:"transcript"`
	Chars      int    `json:"chars"`
	Cached     bool   `json:"cached"`
}

// --- pdf_text ---

type PDFTextInput struct {
	Path   string `json:"path,omitempty" jsonschema:"Local path or http(s) URL of a PDF document"`
	Base64 string `json:"base64,omitempty" jsonschema:"Base64-encoded PDF upload"`
	OCR    bool   `json:"ocr,omitempty" jsonschema:"Run OCR when the PDF has no text layer"`
}

type PDFTextOutput struct {
	Pages   int    `json:"pages"`
	Chars   int    `json:"chars"`
	OCRUsed bool   `json:"ocr_used"`
	Cached  bool   `json:"cached"`
	Text    string `json:"text"`
}

// --- study_runs ---

type StudyRunsInput struct {
	Status string `json:"status,omitempty" jsonschema:"Filter by status: done, failed"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Max runs to return (default: 20, max: 100)"`
}

type StudyRunsOutput struct {
	Runs  []RunRecord `json:"runs"`
	Total int         `json:"total"`
}
