package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><header><img alt="` + r.UserAgent() + `" src="/logo.png"></header></body></html>`))
	})
	mux.HandleFunc("/headers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(r.Header.Get("Accept") + "\n" + r.Header.Get("Accept-Language")))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCollyFetcherFetch(t *testing.T) {
	srv := newSiteServer(t)
	f := NewCollyFetcher("orglogo-test", 5*time.Second, 4)

	page, err := f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, page, `alt="orglogo-test"`)
	assert.Contains(t, page, `src="/logo.png"`)

	headers, err := f.Fetch(context.Background(), srv.URL+"/headers")
	require.NoError(t, err)
	assert.Contains(t, headers, "text/html")
	assert.Contains(t, headers, "en-US")

	// revisiting the same URL is allowed
	_, err = f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
}

func TestCollyFetcherErrors(t *testing.T) {
	srv := newSiteServer(t)
	f := NewCollyFetcher("", 5*time.Second, 0)

	_, err := f.Fetch(context.Background(), srv.URL+"/gone")
	assert.ErrorIs(t, err, ErrStatus)

	_, err = f.Fetch(context.Background(), srv.URL+"/empty")
	assert.ErrorIs(t, err, ErrEmptyPage)
}

func TestCollyFetcherConcurrent(t *testing.T) {
	srv := newSiteServer(t)
	f := NewCollyFetcher("orglogo-test", 5*time.Second, 2)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.Fetch(context.Background(), srv.URL+"/")
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
}
