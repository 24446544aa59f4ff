package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/percipio/internal/common"
	"github.com/ternarybob/percipio/internal/models"
)

func testConfig() common.CrawlerConfig {
	return common.CrawlerConfig{
		UserAgent:       "percipio-test",
		RequestTimeout:  common.Duration(5 * time.Second),
		CrawlBudget:     common.Duration(30 * time.Second),
		DefaultMaxPages: 5,
		RequestDelay:    0,
		MaxRedirects:    5,
	}
}

func newTestService(cfg common.CrawlerConfig) Service {
	logger := arbor.NewLogger()
	return NewService(NewHTTPFetcher(cfg, logger), cfg, logger)
}

func siteHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html lang="en"><head><title>Home</title></head><body>
			<a href="/about">About</a>
			<a href="/contact">Contact</a>
			<a href="/about#team">Team</a>
			<a href="https://external.example/away">External</a>
			<a href="mailto:hi@example.com">Mail</a>
		</body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html lang="en"><head><title>About</title></head><body>
			<a href="/">Home</a><a href="/about">Self</a>
		</body></html>`)
	})
	mux.HandleFunc("/contact", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html lang="en"><head><title>Contact</title></head><body><a href="/about">About</a></body></html>`)
	})
	return mux
}

func TestCrawl_BreadthFirstSameOrigin(t *testing.T) {
	server := httptest.NewServer(siteHandler())
	defer server.Close()

	svc := newTestService(testConfig())
	result, err := svc.Crawl(context.Background(), &CrawlRequest{RootURL: server.URL, MaxPages: 5})
	require.NoError(t, err)

	// Root first, then the two internal links; the fragment variant and the
	// external and mailto links are never fetched.
	require.Len(t, result.Pages, 3)
	assert.Contains(t, result.Pages[0].URL, server.URL)
	assert.Equal(t, "Home", result.Pages[0].Title)
	assert.Equal(t, "en", result.Pages[0].Lang)
	assert.Equal(t, 0, result.PagesFailed)

	seen := make(map[string]int)
	for _, p := range result.Pages {
		seen[p.URL]++
	}
	for url, n := range seen {
		assert.Equal(t, 1, n, "URL fetched twice: %s", url)
	}
}

func TestCrawl_MaxPagesOneYieldsRootOnly(t *testing.T) {
	server := httptest.NewServer(siteHandler())
	defer server.Close()

	svc := newTestService(testConfig())
	result, err := svc.Crawl(context.Background(), &CrawlRequest{RootURL: server.URL, MaxPages: 1})
	require.NoError(t, err)

	require.Len(t, result.Pages, 1)
	assert.Equal(t, "Home", result.Pages[0].Title)
}

func TestCrawl_RootFailureIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	svc := newTestService(testConfig())
	_, err := svc.Crawl(context.Background(), &CrawlRequest{RootURL: server.URL, MaxPages: 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrCrawlFatal))
}

func TestCrawl_RootUnreachableIsFatal(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeout = common.Duration(500 * time.Millisecond)
	svc := newTestService(cfg)

	_, err := svc.Crawl(context.Background(), &CrawlRequest{
		RootURL:  "http://127.0.0.1:1/", // nothing listens here
		MaxPages: 3,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrCrawlFatal))
}

func TestCrawl_NonRootFailureRecordedAndContinues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Root</title></head><body>
			<a href="/broken">Broken</a><a href="/ok">OK</a>
		</body></html>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusNotFound)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>OK</title></head><body></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestService(testConfig())
	result, err := svc.Crawl(context.Background(), &CrawlRequest{RootURL: server.URL, MaxPages: 5})
	require.NoError(t, err)

	require.Len(t, result.Pages, 3)
	var statuses []int
	for _, p := range result.Pages {
		statuses = append(statuses, p.StatusCode)
	}
	assert.Contains(t, statuses, http.StatusNotFound)
	assert.Contains(t, statuses, http.StatusOK)
}

func TestCrawl_RedirectsDeduplicated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Root</title></head><body>
			<a href="/alias">Alias</a>
		</body></html>`)
	})
	mux.HandleFunc("/alias", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusMovedPermanently)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestService(testConfig())
	result, err := svc.Crawl(context.Background(), &CrawlRequest{RootURL: server.URL, MaxPages: 5})
	require.NoError(t, err)

	// /alias redirects back to the already-recorded root
	require.Len(t, result.Pages, 1)
}

func TestCrawl_RootURLFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/home", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html lang="en"><head><title>Home</title></head><body>
			<a href="/about">About</a>
		</body></html>`)
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html lang="en"><head><title>About</title></head><body></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestService(testConfig())
	result, err := svc.Crawl(context.Background(), &CrawlRequest{RootURL: server.URL, MaxPages: 5})
	require.NoError(t, err)

	// The recorded root is the post-redirect landing page
	assert.Equal(t, server.URL+"/home", result.RootURL)
	require.NotEmpty(t, result.Pages)
	assert.Equal(t, server.URL+"/home", result.Pages[0].URL)
	assert.Len(t, result.Pages, 2)
}

func TestCrawl_RedirectLoopBroken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/a", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	svc := newTestService(testConfig())
	_, err := svc.Crawl(context.Background(), &CrawlRequest{RootURL: server.URL + "/a", MaxPages: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrCrawlFatal))
}

func TestRetryPolicy_BackoffGrows(t *testing.T) {
	p := NewRetryPolicy()
	first := p.CalculateBackoff(0)
	third := p.CalculateBackoff(2)
	assert.Greater(t, third, first)
	assert.LessOrEqual(t, third, p.MaxBackoff+p.MaxBackoff/4)
}

func TestRetryPolicy_ClientErrorsNotRetried(t *testing.T) {
	p := NewRetryPolicy()
	assert.False(t, p.ShouldRetry(0, 404, nil))
	assert.True(t, p.ShouldRetry(0, 503, nil))
	assert.True(t, p.ShouldRetry(0, 429, nil))
	assert.False(t, p.ShouldRetry(3, 503, nil))
}
