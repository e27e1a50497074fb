package sources

// YouTube implementation is split across three files by responsibility:
//   youtube.go            : video ID parsing and the cached transcript entry point
//   youtube_innertube.go  : Innertube API types, constants, and low-level HTTP primitives
//   youtube_transcript.go : transcript strategies (watch page, engagement panel, ANDROID player)

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_notes/internal/engine"
)

var videoIDRE = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// ParseVideoID extracts the 11-char video ID from a YouTube URL
// (watch?v=, youtu.be/, shorts/, embed/, live/) or accepts a bare ID.
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if videoIDRE.MatchString(raw) {
		return raw, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", unavailable("youtube", ReasonInvalid, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	var id string
	switch host {
	case "youtu.be":
		id = firstSegment(u.Path)
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 {
			switch parts[0] {
			case "shorts", "embed", "live", "v":
				id = parts[1]
			}
		}
	default:
		return "", unavailable("youtube", ReasonInvalid, errors.New("not a YouTube URL: "+raw))
	}
	if !videoIDRE.MatchString(id) {
		return "", unavailable("youtube", ReasonInvalid, errors.New("no video ID in "+raw))
	}
	return id, nil
}

func firstSegment(p string) string {
	p = strings.Trim(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// Transcript is the text of one video's captions.
type Transcript struct {
	VideoID string `json:"video_id"`
	Text    string `json:"text"`
	Cached  bool   `json:"-"`
}

// fetchTranscript is swapped out in tests.
var fetchTranscript = FetchYouTubeTranscript

// TranscriptFromURL parses rawURL, then serves the transcript from the source
// cache or fetches and caches it.
func TranscriptFromURL(ctx context.Context, rawURL string, langs []string) (Transcript, error) {
	id, err := ParseVideoID(rawURL)
	if err != nil {
		return Transcript{}, err
	}
	if len(langs) == 0 {
		langs = engine.Cfg.TranscriptLangs
	}

	key := engine.CacheKey("yt", id, strings.Join(langs, ","))
	if tr, ok := engine.CacheLoadJSON[Transcript](ctx, key); ok && tr.Text != "" {
		slog.Debug("youtube: transcript cache hit", slog.String("id", id))
		tr.Cached = true
		return tr, nil
	}

	text, err := fetchTranscript(ctx, id, langs)
	if err != nil {
		return Transcript{}, err
	}
	tr := Transcript{VideoID: id, Text: text}
	engine.CacheStoreJSON(ctx, key, tr)
	return tr, nil
}
