package mirrors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/desertthunder/polychrome/internal/shared"
)

func TestProber(t *testing.T) {
	logger := shared.NewLogger(nil)

	t.Run("Reachable Host", func(t *testing.T) {
		var path string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		p := NewProber(ProberOptions{Logger: logger})
		rec := p.Probe(context.Background(), srv.URL, false)

		if !rec.Reachable() {
			t.Fatal("expected host to be reachable")
		}
		if rec.Relayed {
			t.Error("expected direct record")
		}
		if rec.URL != srv.URL {
			t.Errorf("expected URL %s, got %s", srv.URL, rec.URL)
		}
		if path != "/" {
			t.Errorf("expected probe of root path, got %q", path)
		}
	})

	t.Run("Non Success Status Is Unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		rec := NewProber(ProberOptions{Logger: logger}).Probe(context.Background(), srv.URL, false)
		if rec.Reachable() {
			t.Error("expected 500 to be unreachable")
		}
		if rec.Latency != Unreachable {
			t.Errorf("expected Unreachable latency, got %v", rec.Latency)
		}
	})

	t.Run("Network Error Is Unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		host := srv.URL
		srv.Close()

		rec := NewProber(ProberOptions{Logger: logger}).Probe(context.Background(), host, false)
		if rec.Reachable() {
			t.Error("expected closed server to be unreachable")
		}
	})

	t.Run("Relay Wraps Escaped Host", func(t *testing.T) {
		host := "https://mirror.example.test"
		var requestURI string
		relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestURI = r.RequestURI
			w.WriteHeader(http.StatusOK)
		}))
		defer relay.Close()

		p := NewProber(ProberOptions{Relay: relay.URL + "/", Logger: logger})
		rec := p.Probe(context.Background(), host, true)

		if !rec.Reachable() || !rec.Relayed {
			t.Fatalf("expected reachable relayed record, got %+v", rec)
		}
		if rec.URL != host {
			t.Errorf("expected record to keep bare host, got %s", rec.URL)
		}

		want := "/" + url.QueryEscape(host) + "/"
		if requestURI != want {
			t.Errorf("expected relay request %q, got %q", want, requestURI)
		}
	})

	t.Run("Probe Timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		p := NewProber(ProberOptions{Timeout: 50 * time.Millisecond, Logger: logger})
		if rec := p.Probe(context.Background(), srv.URL, false); rec.Reachable() {
			t.Error("expected hung host to be unreachable after timeout")
		}
	})

	t.Run("RelayURL Defaults", func(t *testing.T) {
		got := RelayURL("", "https://a.test")
		want := DefaultRelay + "https%3A%2F%2Fa.test"
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	})
}
