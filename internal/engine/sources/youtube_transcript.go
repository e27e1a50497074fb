package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_notes/internal/engine"
)

// YouTube transcript fetching. Strategies run in order until one returns text:
//   watch_page:       scrape ytInitialPlayerResponse → caption XML (works from any IP)
//   engagement_panel: /next → engagement panel token → /get_transcript (datacenter IPs)
//   android_player:   ANDROID /player → captionTracks (non-blocked IPs)

type transcriptStrategy struct {
	name string
	fn   func(ctx context.Context, videoID string, langs []string) (string, error)
}

var transcriptStrategies = []transcriptStrategy{
	{"watch_page", fetchViaWatchPage},
	{"engagement_panel", fetchViaEngagementPanel},
	{"android_player", fetchViaPlayer},
}

// FetchYouTubeTranscript returns the caption text of videoID, preferring
// tracks in langs. Segments are joined with single spaces.
func FetchYouTubeTranscript(ctx context.Context, videoID string, langs []string) (string, error) {
	engine.IncrYouTubeTranscript()

	var errs []error
	for _, s := range transcriptStrategies {
		text, err := s.fn(ctx, videoID, langs)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err == nil {
			err = errors.New("empty transcript")
		}
		if ctx.Err() != nil {
			return "", unavailable("youtube", ReasonUnreachable, ctx.Err())
		}
		slog.Warn("youtube: transcript strategy failed",
			slog.String("id", videoID), slog.String("strategy", s.name), slog.Any("error", err))
		errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
	}
	return "", unavailable("youtube", ReasonNoText, errors.Join(errs...))
}

// hostLang is the UI language sent to Innertube.
func hostLang(langs []string) string {
	if len(langs) > 0 && langs[0] != "" {
		return langs[0]
	}
	return "en"
}

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

func fetchViaWatchPage(ctx context.Context, videoID string, langs []string) (string, error) {
	headers := engine.ChromeHeaders()
	headers["Accept-Language"] = hostLang(langs) + ";q=0.9,en;q=0.8"
	body, err := getPage(ctx, ytWatchURL+videoID, headers, ytMaxWatchPage)
	if err != nil {
		return "", fmt.Errorf("watch page: %w", err)
	}

	idx := bytes.Index(body, []byte(ytInitialPlayerResponseMarker))
	if idx < 0 {
		return "", errors.New("ytInitialPlayerResponse not found in watch page")
	}
	raw := extractJSON(body[idx+len(ytInitialPlayerResponseMarker):])
	if raw == nil {
		return "", errors.New("unterminated ytInitialPlayerResponse JSON")
	}
	var pr playerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return "", fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return transcriptFromPlayer(ctx, pr, langs)
}

func fetchViaPlayer(ctx context.Context, videoID string, langs []string) (string, error) {
	body, err := postInnertube(ctx, ytPlayerURL, playerRequest{
		VideoID:        videoID,
		Context:        androidClient(hostLang(langs)),
		RacyCheckOk:    true,
		ContentCheckOk: true,
	}, androidHeaders())
	if err != nil {
		return "", err
	}
	var pr playerResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return "", fmt.Errorf("decode player: %w", err)
	}
	return transcriptFromPlayer(ctx, pr, langs)
}

// transcriptFromPlayer picks a caption track from a player response and downloads it.
func transcriptFromPlayer(ctx context.Context, pr playerResponse, langs []string) (string, error) {
	if pr.Captions == nil {
		if pr.PlayabilityStatus != nil && pr.PlayabilityStatus.Reason != "" {
			return "", fmt.Errorf("captions unavailable: %s", pr.PlayabilityStatus.Reason)
		}
		return "", errors.New("no captions in player response")
	}
	track, ok := pickBestTrack(pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, langs)
	if !ok {
		return "", errors.New("no usable caption track")
	}
	return fetchTimedText(ctx, track.BaseURL)
}

func fetchViaEngagementPanel(ctx context.Context, videoID string, langs []string) (string, error) {
	visitorData := generateVisitorData()
	hl := hostLang(langs)

	nextData, err := postInnertube(ctx, ytNextURL, nextRequest{
		VideoID: videoID,
		Context: webClient(visitorData, hl),
	}, webHeaders(visitorData))
	if err != nil {
		return "", fmt.Errorf("/next: %w", err)
	}
	token, err := extractTranscriptToken(nextData)
	if err != nil {
		return "", err
	}

	data, err := postInnertube(ctx, ytGetTranscriptURL, transcriptRequest{
		Params:  token,
		Context: webClient(visitorData, hl),
	}, webHeaders(visitorData))
	if err != nil {
		return "", fmt.Errorf("/get_transcript: %w", err)
	}
	var tr getTranscriptResponse
	if err := json.Unmarshal(data, &tr); err != nil {
		return "", fmt.Errorf("decode transcript: %w", err)
	}
	return parseTranscriptSegments(tr), nil
}

// getTranscriptRE extracts the continuation token from a raw /next JSON response.
var getTranscriptRE = regexp.MustCompile(`"getTranscriptEndpoint":\{"params":"([^"]+)"`)

// extractTranscriptToken returns the URL-decoded /get_transcript params token.
func extractTranscriptToken(data []byte) (string, error) {
	m := getTranscriptRE.FindSubmatch(data)
	if len(m) < 2 {
		return "", errors.New("getTranscriptEndpoint not found in engagement panels")
	}
	if decoded, err := url.QueryUnescape(string(m[1])); err == nil {
		return decoded, nil
	}
	return string(m[1]), nil
}

// parseTranscriptSegments joins the text runs of a /get_transcript response.
func parseTranscriptSegments(resp getTranscriptResponse) string {
	var parts []string
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		segs := action.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, seg := range segs {
			if seg.TranscriptSegmentRenderer == nil {
				continue
			}
			for _, run := range seg.TranscriptSegmentRenderer.Snippet.Runs {
				if t := engine.CleanHTML(run.Text); t != "" {
					parts = append(parts, t)
				}
			}
		}
	}
	return strings.Join(parts, " ")
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects a caption track: manual in a preferred language, then
// auto-generated in a preferred language, then any English, then the first.
// Tracks that need a PoToken are skipped.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	for _, manual := range []bool{true, false} {
		for _, lang := range langs {
			for _, t := range usable {
				if t.LanguageCode == lang && (!manual || t.Kind != "asr") {
					return t, true
				}
			}
		}
	}
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// fetchTimedText downloads a caption XML document and joins its lines.
func fetchTimedText(ctx context.Context, baseURL string) (string, error) {
	body, err := getPage(ctx, baseURL, map[string]string{"User-Agent": engine.UserAgentBot}, ytMaxTimedText)
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}
	return parseTimedText(body)
}

func parseTimedText(body []byte) (string, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}
	parts := make([]string, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		if t := engine.CleanHTML(line.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// extractJSON returns the balanced JSON object at the start of b, or nil.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
