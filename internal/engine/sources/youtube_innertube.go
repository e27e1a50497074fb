package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/anatolykoptev/go_notes/internal/engine"
	"github.com/cenkalti/backoff/v5"
)

// YouTube Innertube API: constants, payload types, and HTTP primitives.

// Endpoints are variables so tests can point them at httptest servers.
var (
	ytWatchURL         = "https://www.youtube.com/watch?v="
	ytPlayerURL        = "https://www.youtube.com/youtubei/v1/player"
	ytNextURL          = "https://www.youtube.com/youtubei/v1/next"
	ytGetTranscriptURL = "https://www.youtube.com/youtubei/v1/get_transcript"
)

const (
	ytWebVersion     = "2.20250222.10.00"
	ytAndroidVersion = "20.10.38"
	ytAndroidUA      = "com.google.android.youtube/" + ytAndroidVersion + " (Linux; U; Android 11) gzip"

	ytMaxResponse  = 3 << 20
	ytMaxWatchPage = 6 << 20
	ytMaxTimedText = 512 << 10
)

// ytClient is the "client" block of an Innertube context.
type ytClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	VisitorData       string `json:"visitorData,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type ytContext struct {
	Client ytClient `json:"client"`
}

type playerRequest struct {
	VideoID        string    `json:"videoId"`
	Context        ytContext `json:"context"`
	RacyCheckOk    bool      `json:"racyCheckOk"`
	ContentCheckOk bool      `json:"contentCheckOk"`
}

type nextRequest struct {
	VideoID string    `json:"videoId"`
	Context ytContext `json:"context"`
}

type transcriptRequest struct {
	Params  string    `json:"params"`
	Context ytContext `json:"context"`
}

// playerResponse is the subset of /player (and ytInitialPlayerResponse) we read.
type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

// timedText is the XML caption document behind a captionTrack.BaseURL.
type timedText struct {
	Lines []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

type transcriptSegment struct {
	TranscriptSegmentRenderer *struct {
		Snippet struct {
			Runs []struct {
				Text string `json:"text"`
			} `json:"runs"`
		} `json:"snippet"`
	} `json:"transcriptSegmentRenderer"`
}

// getTranscriptResponse is the subset of /get_transcript we read.
type getTranscriptResponse struct {
	Actions []struct {
		UpdateEngagementPanelAction *struct {
			Content struct {
				TranscriptRenderer struct {
					Content struct {
						TranscriptSearchPanelRenderer struct {
							Body struct {
								TranscriptSegmentListRenderer struct {
									InitialSegments []transcriptSegment `json:"initialSegments"`
								} `json:"transcriptSegmentListRenderer"`
							} `json:"body"`
						} `json:"transcriptSearchPanelRenderer"`
					} `json:"content"`
				} `json:"transcriptRenderer"`
			} `json:"content"`
		} `json:"updateEngagementPanelAction"`
	} `json:"actions"`
}

// generateVisitorData creates a random 11-char visitor ID for Innertube requests.
func generateVisitorData() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	b := make([]byte, 11)
	for i := range b {
		b[i] = chars[rand.Intn(len(chars))] //nolint:gosec // non-cryptographic use
	}
	return string(b)
}

func webClient(visitorData, hl string) ytContext {
	return ytContext{Client: ytClient{
		ClientName:    "WEB",
		ClientVersion: ytWebVersion,
		VisitorData:   visitorData,
		Hl:            hl,
		Gl:            "US",
	}}
}

func androidClient(hl string) ytContext {
	return ytContext{Client: ytClient{
		ClientName:        "ANDROID",
		ClientVersion:     ytAndroidVersion,
		AndroidSdkVersion: 30,
		Hl:                hl,
		Gl:                "US",
	}}
}

func webHeaders(visitorData string) map[string]string {
	return map[string]string{
		"User-Agent":               engine.UserAgentChrome,
		"X-Youtube-Client-Name":    "1",
		"X-Youtube-Client-Version": ytWebVersion,
		"X-Goog-Visitor-Id":        visitorData,
		"Origin":                   "https://www.youtube.com",
		"Referer":                  "https://www.youtube.com/",
	}
}

func androidHeaders() map[string]string {
	return map[string]string{
		"User-Agent":               ytAndroidUA,
		"X-Youtube-Client-Name":    "3",
		"X-Youtube-Client-Version": ytAndroidVersion,
	}
}

// postInnertube POSTs a JSON payload with retry and returns the body.
func postInnertube(ctx context.Context, endpoint string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?prettyPrint=false", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "*/*")
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("innertube %s: %w", endpoint, err)
	}
	return readOK(resp, ytMaxResponse)
}

// getPage GETs url with retry and returns at most limit bytes of the body.
func getPage(ctx context.Context, url string, headers map[string]string, limit int64) ([]byte, error) {
	// Prefer BrowserClient: YouTube serves consent walls to non-browser TLS fingerprints.
	if engine.Cfg.BrowserClient != nil {
		return browserPage(ctx, url, headers, limit, browserGet)
	}

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return engine.Cfg.HTTPClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	return readOK(resp, limit)
}

// browserGet fetches url through the stealth browser client.
func browserGet(url string, headers map[string]string) ([]byte, int, error) {
	data, _, status, err := engine.Cfg.BrowserClient.Do(http.MethodGet, url, headers, nil)
	return data, status, err
}

// pageBackoff is the retry schedule for browser page fetches. Tests shorten it.
var pageBackoff = func() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	return bo
}

// browserPage GETs url through get. Transport errors and retryable statuses
// are retried; any other non-200 status fails at once.
func browserPage(ctx context.Context, url string, headers map[string]string, limit int64,
	get func(string, map[string]string) ([]byte, int, error)) ([]byte, error) {
	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		d, status, err := get(url, headers)
		if err != nil {
			return nil, err
		}
		if status == http.StatusOK {
			return d, nil
		}
		if engine.IsRetryableStatus(status) {
			return nil, &engine.StatusError{StatusCode: status}
		}
		return nil, backoff.Permanent(&engine.StatusError{StatusCode: status})
	},
		backoff.WithBackOff(pageBackoff()),
		backoff.WithMaxTries(3),
		backoff.WithMaxElapsedTime(20*time.Second))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		data = data[:limit]
	}
	return data, nil
}

func readOK(resp *http.Response, limit int64) ([]byte, error) {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet)
	}
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}
