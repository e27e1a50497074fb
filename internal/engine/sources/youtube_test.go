package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anatolykoptev/go_notes/internal/engine"
	"github.com/cenkalti/backoff/v5"
)

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ", false},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/live/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"  dQw4w9WgXcQ ", "dQw4w9WgXcQ", false},
		{"https://vimeo.com/12345", "", true},
		{"https://www.youtube.com/watch?v=short", "", true},
		{"https://www.youtube.com/channel/UC123", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVideoID(tt.in)
			if tt.wantErr {
				var se *SourceUnavailableError
				if !errors.As(err, &se) || se.Reason != ReasonInvalid {
					t.Fatalf("ParseVideoID(%q) err = %v, want invalid input", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseVideoID(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestPickBestTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "u/de-asr", LanguageCode: "de", Kind: "asr"},
		{BaseURL: "u/en-gb", LanguageCode: "en-GB"},
		{BaseURL: "u/de", LanguageCode: "de"},
		{BaseURL: "u/fr&exp=xpe", LanguageCode: "fr"},
		{BaseURL: "u/es-asr", LanguageCode: "es", Kind: "asr"},
	}
	tests := []struct {
		name  string
		langs []string
		want  string
	}{
		{"manual preferred over asr", []string{"de"}, "u/de"},
		{"asr in preferred language", []string{"es"}, "u/es-asr"},
		{"po token tracks skipped", []string{"fr"}, "u/en-gb"},
		{"first preferred language wins", []string{"es", "de"}, "u/de"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickBestTrack(tracks, tt.langs)
			if !ok || got.BaseURL != tt.want {
				t.Errorf("pickBestTrack(%v) = %q, %v; want %q", tt.langs, got.BaseURL, ok, tt.want)
			}
		})
	}

	if _, ok := pickBestTrack([]captionTrack{{BaseURL: "x&exp=xpe"}}, []string{"en"}); ok {
		t.Error("only PoToken tracks should be unusable")
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1};var x`, `{"a":1}`},
		{`{"a":{"b":"}"}} trailing`, `{"a":{"b":"}"}}`},
		{`{"s":"quote \" and brace }"}rest`, `{"s":"quote \" and brace }"}`},
		{`{"s":"backslash \\"} tail`, `{"s":"backslash \\"}`},
		{`not json`, ``},
		{`{"open":`, ``},
	}
	for _, tt := range tests {
		if got := string(extractJSON([]byte(tt.in))); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractTranscriptToken(t *testing.T) {
	data := []byte(`{"x":{"getTranscriptEndpoint":{"params":"CgtkUXc0dzlXZ1hjURIOQ2dBU0FtVnVHZ0ElM0Q%3D"}}}`)
	got, err := extractTranscriptToken(data)
	if err != nil {
		t.Fatal(err)
	}
	if got != "CgtkUXc0dzlXZ1hjURIOQ2dBU0FtVnVHZ0ElM0Q=" {
		t.Errorf("token = %q", got)
	}
	if _, err := extractTranscriptToken([]byte(`{}`)); err == nil {
		t.Error("expected error without endpoint")
	}
}

func TestParseTimedText(t *testing.T) {
	xml := `<?xml version="1.0" encoding="utf-8"?><transcript>
<text start="0" dur="1.5">Hello &amp;amp; welcome</text>
<text start="1.5" dur="2">it&amp;#39;s a
test</text>
<text start="3.5" dur="1"></text>
</transcript>`
	got, err := parseTimedText([]byte(xml))
	if err != nil {
		t.Fatal(err)
	}
	if want := "Hello & welcome it's a test"; got != want {
		t.Errorf("parseTimedText = %q, want %q", got, want)
	}
}

func initTestEngine(t *testing.T) {
	t.Helper()
	engine.Init(engine.Config{HTTPClient: &http.Client{Timeout: 5 * time.Second}})
}

func TestFetchYouTubeTranscript_WatchPage(t *testing.T) {
	initTestEngine(t)

	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "dQw4w9WgXcQ" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><script>var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%s/tt?lang=en","languageCode":"en"}]}}};</script></html>`, srvURL)
	})
	mux.HandleFunc("/tt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<transcript><text>never gonna</text><text>give you up</text></transcript>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	prev := ytWatchURL
	ytWatchURL = srv.URL + "/watch?v="
	t.Cleanup(func() { ytWatchURL = prev })

	got, err := FetchYouTubeTranscript(context.Background(), "dQw4w9WgXcQ", []string{"en"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "never gonna give you up" {
		t.Errorf("transcript = %q", got)
	}
}

func TestFetchYouTubeTranscript_AllStrategiesFail(t *testing.T) {
	prev := transcriptStrategies
	t.Cleanup(func() { transcriptStrategies = prev })

	var calls []string
	fail := func(name string) transcriptStrategy {
		return transcriptStrategy{name, func(context.Context, string, []string) (string, error) {
			calls = append(calls, name)
			return "", errors.New(name + " blocked")
		}}
	}
	transcriptStrategies = []transcriptStrategy{fail("a"), fail("b"), {"c", func(context.Context, string, []string) (string, error) {
		calls = append(calls, "c")
		return "   ", nil
	}}}

	_, err := FetchYouTubeTranscript(context.Background(), "dQw4w9WgXcQ", nil)
	var se *SourceUnavailableError
	if !errors.As(err, &se) || se.Source != "youtube" || se.Reason != ReasonNoText {
		t.Fatalf("err = %v, want youtube no-text error", err)
	}
	if strings.Join(calls, ",") != "a,b,c" {
		t.Errorf("strategies tried = %v", calls)
	}
	if !strings.Contains(err.Error(), "b blocked") {
		t.Errorf("error should carry every strategy failure: %v", err)
	}
}

func TestFetchYouTubeTranscript_FallsBack(t *testing.T) {
	prev := transcriptStrategies
	t.Cleanup(func() { transcriptStrategies = prev })

	transcriptStrategies = []transcriptStrategy{
		{"first", func(context.Context, string, []string) (string, error) { return "", errors.New("403") }},
		{"second", func(_ context.Context, id string, langs []string) (string, error) {
			return id + " in " + strings.Join(langs, "+"), nil
		}},
	}
	got, err := FetchYouTubeTranscript(context.Background(), "dQw4w9WgXcQ", []string{"de", "en"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "dQw4w9WgXcQ in de+en" {
		t.Errorf("got %q", got)
	}
}

func TestTranscriptFromURL_Caches(t *testing.T) {
	initTestEngine(t)
	engine.InitCache("", time.Minute, 100, time.Minute)

	var fetches atomic.Int32
	prev := fetchTranscript
	fetchTranscript = func(_ context.Context, id string, langs []string) (string, error) {
		fetches.Add(1)
		return "transcript of " + id, nil
	}
	t.Cleanup(func() { fetchTranscript = prev })

	ctx := context.Background()
	first, err := TranscriptFromURL(ctx, "https://youtu.be/dQw4w9WgXcQ", []string{"en"})
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || first.Text != "transcript of dQw4w9WgXcQ" {
		t.Errorf("first = %+v", first)
	}

	second, err := TranscriptFromURL(ctx, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", []string{"en"})
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || second.Text != first.Text {
		t.Errorf("second = %+v", second)
	}
	if fetches.Load() != 1 {
		t.Errorf("fetches = %d, want 1", fetches.Load())
	}

	if _, err := TranscriptFromURL(ctx, "https://youtu.be/dQw4w9WgXcQ", []string{"de"}); err != nil {
		t.Fatal(err)
	}
	if fetches.Load() != 2 {
		t.Error("a different language set should miss the cache")
	}
}

func TestTranscriptFromURL_InvalidURLSkipsFetch(t *testing.T) {
	prev := fetchTranscript
	fetchTranscript = func(context.Context, string, []string) (string, error) {
		t.Fatal("fetch must not run for an invalid URL")
		return "", nil
	}
	t.Cleanup(func() { fetchTranscript = prev })

	if _, err := TranscriptFromURL(context.Background(), "https://example.com/video", nil); !IsUnavailable(err) {
		t.Errorf("err = %v, want SourceUnavailableError", err)
	}
}

func TestBrowserPage_RetriesOnlyRetryableStatuses(t *testing.T) {
	prev := pageBackoff
	pageBackoff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	t.Cleanup(func() { pageBackoff = prev })

	scripted := func(statuses ...int) (func(string, map[string]string) ([]byte, int, error), *atomic.Int32) {
		var calls atomic.Int32
		return func(string, map[string]string) ([]byte, int, error) {
			n := int(calls.Add(1)) - 1
			st := statuses[min(n, len(statuses)-1)]
			if st == 0 {
				return nil, 0, errors.New("proxy reset")
			}
			return []byte(fmt.Sprintf("page %d", st)), st, nil
		}, &calls
	}
	ctx := context.Background()

	t.Run("not found fails at once", func(t *testing.T) {
		get, calls := scripted(http.StatusNotFound, http.StatusOK)
		_, err := browserPage(ctx, "https://www.youtube.com/watch?v=x", nil, 1024, get)
		var se *engine.StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
			t.Fatalf("err = %v, want status 404", err)
		}
		if n := calls.Load(); n != 1 {
			t.Errorf("calls = %d, want 1", n)
		}
	})

	t.Run("service unavailable is retried", func(t *testing.T) {
		get, calls := scripted(http.StatusServiceUnavailable, http.StatusOK)
		data, err := browserPage(ctx, "https://www.youtube.com/watch?v=x", nil, 1024, get)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "page 200" {
			t.Errorf("data = %q", data)
		}
		if n := calls.Load(); n != 2 {
			t.Errorf("calls = %d, want 2", n)
		}
	})

	t.Run("transport error is retried", func(t *testing.T) {
		get, calls := scripted(0, http.StatusOK)
		if _, err := browserPage(ctx, "https://www.youtube.com/watch?v=x", nil, 1024, get); err != nil {
			t.Fatal(err)
		}
		if n := calls.Load(); n != 2 {
			t.Errorf("calls = %d, want 2", n)
		}
	})

	t.Run("gives up after three tries", func(t *testing.T) {
		get, calls := scripted(http.StatusTooManyRequests)
		if _, err := browserPage(ctx, "https://www.youtube.com/watch?v=x", nil, 1024, get); err == nil {
			t.Fatal("expected error")
		}
		if n := calls.Load(); n != 3 {
			t.Errorf("calls = %d, want 3", n)
		}
	})

	t.Run("truncates to limit", func(t *testing.T) {
		get, _ := scripted(http.StatusOK)
		data, err := browserPage(ctx, "https://www.youtube.com/watch?v=x", nil, 4, get)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "page" {
			t.Errorf("data = %q, want %q", data, "page")
		}
	})
}
