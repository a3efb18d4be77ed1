package logo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if r.Method == http.MethodGet {
			_, _ = w.Write(logoPNG(t, 120, 40))
		}
	})
	mux.HandleFunc("/no-head.svg", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		_, _ = w.Write([]byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`))
	})
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte{0, 0, 1, 0, 1, 0, 16, 16})
		}
	})
	mux.HandleFunc("/fake.ico", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte("<html></html>"))
		}
	})
	mux.HandleFunc("/page.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html></html>"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPProberIsImage(t *testing.T) {
	srv := newImageServer(t)
	prober := NewHTTPProber("test-agent", time.Second, time.Second)
	ctx := context.Background()

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"image content type", srv.URL + "/logo.png", true},
		{"HEAD refused falls back to GET", srv.URL + "/no-head.svg", true},
		{"ico by signature", srv.URL + "/favicon.ico", true},
		{"ico without signature", srv.URL + "/fake.ico", false},
		{"html served under image name", srv.URL + "/page.png", false},
		{"missing", srv.URL + "/missing.png", false},
		{"no image extension", srv.URL + "/logo", false},
		{"data image", "data:image/png;base64,AAAA", true},
		{"data non image", "data:text/plain,hello", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, prober.IsImage(ctx, tt.url))
		})
	}
}

func TestHTTPProberSendsUserAgent(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/png")
	}))
	defer srv.Close()

	prober := NewHTTPProber("Mozilla/5.0 orglogo-test", 0, 0)
	assert.True(t, prober.IsImage(context.Background(), srv.URL+"/logo.png"))
	assert.Equal(t, "Mozilla/5.0 orglogo-test", agent)
}

func TestHTTPProberDownload(t *testing.T) {
	srv := newImageServer(t)
	prober := NewHTTPProber("test-agent", time.Second, time.Second)

	data, err := prober.Download(context.Background(), srv.URL+"/logo.png")
	require.NoError(t, err)
	assert.InDelta(t, 0.3, visualFeatureScore(data), 1e-9)

	_, err = prober.Download(context.Background(), srv.URL+"/missing.png")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "404"))
}

func TestIsICOSignature(t *testing.T) {
	assert.True(t, isICOSignature([]byte{0, 0, 1, 0}))
	assert.True(t, isICOSignature([]byte{0, 0, 2, 0, 9}))
	assert.False(t, isICOSignature([]byte{0x89, 'P', 'N', 'G'}))
	assert.False(t, isICOSignature([]byte{0, 0}))
}
