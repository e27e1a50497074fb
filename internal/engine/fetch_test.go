package engine

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
)

func fastBackoff(t *testing.T) {
	t.Helper()
	prev := fetchBackoff
	fetchBackoff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	t.Cleanup(func() { fetchBackoff = prev })
}

func TestFetchBytes(t *testing.T) {
	fastBackoff(t)
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("User-Agent") == "" {
				t.Error("missing User-Agent")
			}
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4 body"))
		}))
		defer srv.Close()

		data, ct, err := FetchBytes(ctx, srv.URL, 1024)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "%PDF-1.4 body" || ct != "application/pdf" {
			t.Errorf("got %q (%s)", data, ct)
		}
	})

	t.Run("gzip", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "gzip")
			gz := gzip.NewWriter(w)
			_, _ = gz.Write([]byte("compressed"))
			_ = gz.Close()
		}))
		defer srv.Close()

		data, _, err := FetchBytes(ctx, srv.URL, 0)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "compressed" {
			t.Errorf("got %q", data)
		}
	})

	t.Run("too large", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
		}))
		defer srv.Close()

		if _, _, err := FetchBytes(ctx, srv.URL, 100); !errors.Is(err, ErrTooLarge) {
			t.Errorf("err = %v, want ErrTooLarge", err)
		}
	})

	t.Run("retries 503", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		data, _, err := FetchBytes(ctx, srv.URL, 0)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "ok" || calls.Load() != 2 {
			t.Errorf("data %q after %d calls", data, calls.Load())
		}
	})

	t.Run("404 is permanent", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.NotFound(w, r)
		}))
		defer srv.Close()

		_, _, err := FetchBytes(ctx, srv.URL, 0)
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
			t.Fatalf("err = %v, want 404 StatusError", err)
		}
		if calls.Load() != 1 {
			t.Errorf("404 retried: %d calls", calls.Load())
		}
	})
}
