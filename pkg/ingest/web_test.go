package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hrerrors "hamrag/pkg/errors"
)

const samplePage = `<html>
<head><title>Dipole Antenna Basics</title><script>var x = 1;</script></head>
<body>
<nav>Home | Articles | About</nav>
<header>Site Header</header>
<style>.x { color: red }</style>
<p>A  half-wave   dipole is cut for
the target  frequency.</p>
<footer>Copyright</footer>
</body></html>`

func newWebExtractorForTest() *WebExtractor {
	e := NewWebExtractor(2*time.Second, 2, 1000)
	e.retryDelay = time.Millisecond
	return e
}

func TestWebExtractStripsMarkupAndCollapsesWhitespace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	text, title, err := newWebExtractorForTest().Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Dipole Antenna Basics", title)
	assert.Equal(t, "A half-wave dipole is cut for the target frequency.", text)
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "Site Header")
	assert.NotContains(t, text, "Copyright")
}

func TestWebExtractRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	_, title, err := newWebExtractorForTest().Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Dipole Antenna Basics", title)
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebExtractGivesUpAfterCappedRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := newWebExtractorForTest().Extract(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, hrerrors.IsExtraction(err))
	assert.Equal(t, int32(3), calls.Load(), "maxRetries=2 means three attempts total")
}

func TestWebExtractClientErrorIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := newWebExtractorForTest().Extract(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, hrerrors.IsExtraction(err))
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestWebExtractSetsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	_, _, err := newWebExtractorForTest().Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, userAgent, got)
}
