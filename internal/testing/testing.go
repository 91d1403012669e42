// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
)

// Reply is one canned upstream answer.
type Reply struct {
	Status int
	Body   string
}

// SequenceServer answers with Replies in order and repeats the last one once they run out.
type SequenceServer struct {
	*httptest.Server

	mu      sync.Mutex
	replies []Reply
	paths   []string
	hits    atomic.Int32
}

// NewSequenceServer starts a [SequenceServer]; it is closed when the test ends.
func NewSequenceServer(t *testing.T, replies ...Reply) *SequenceServer {
	t.Helper()
	if len(replies) == 0 {
		replies = []Reply{{Status: http.StatusOK, Body: "{}"}}
	}

	s := &SequenceServer{replies: replies}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *SequenceServer) serve(w http.ResponseWriter, r *http.Request) {
	n := int(s.hits.Add(1)) - 1

	s.mu.Lock()
	s.paths = append(s.paths, r.URL.RequestURI())
	reply := s.replies[min(n, len(s.replies)-1)]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.Status)
	io.WriteString(w, reply.Body)
}

// Hits reports how many requests the server has handled.
func (s *SequenceServer) Hits() int { return int(s.hits.Load()) }

// Paths lists the request URIs seen so far.
func (s *SequenceServer) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// CountingRoundTripper counts requests before delegating to Next, or failing when Next is nil.
type CountingRoundTripper struct {
	Next  http.RoundTripper
	calls atomic.Int32
}

func (c *CountingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	if c.Next == nil {
		return nil, errors.New("unexpected request to " + r.URL.String())
	}
	return c.Next.RoundTrip(r)
}

// Calls reports how many requests passed through.
func (c *CountingRoundTripper) Calls() int { return int(c.calls.Load()) }

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
