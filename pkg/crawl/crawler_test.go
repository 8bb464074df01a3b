package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-archiver/pkg/extract"
	"site-archiver/pkg/fetch"
	"site-archiver/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// siteServer serves a map of path -> HTML and records every GET path.
type siteServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []string
}

func newSiteServer(t *testing.T, pages map[string]string) *siteServer {
	t.Helper()
	s := &siteServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.URL.Path)
		s.mu.Unlock()

		html, ok := pages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, html)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *siteServer) requestCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.requests {
		if p == path {
			n++
		}
	}
	return n
}

func newTestCrawler(t *testing.T, serverURL string) *Crawler {
	t.Helper()
	seed, err := url.Parse(serverURL)
	require.NoError(t, err)

	fetcher := fetch.NewFetcher(&http.Client{Timeout: 30 * time.Second}, "test-agent", testLogger())
	extractor := extract.NewExtractor(
		seed.Hostname(),
		"#content",
		"default",
		"/tag/",
		[]*regexp.Regexp{regexp.MustCompile("/tag/")},
		testLogger(),
	)
	return NewCrawler(seed, fetcher, extractor, 10<<20, testLogger())
}

func TestRun_VisitsAllReachablePagesOnce(t *testing.T) {
	server := newSiteServer(t, map[string]string{
		"/": `<html><body><h1>Home</h1>
			<a href="/a">a</a><a href="/b">b</a></body></html>`,
		"/a": `<html><body><h1>A</h1><a href="/b">b</a><a href="/">home</a></body></html>`,
		"/b": `<html><body><h1>B</h1><a href="/a">a</a></body></html>`,
	})

	c := newTestCrawler(t, server.URL)
	require.NoError(t, c.Run(context.Background()))

	// Every reachable page visited, each exactly once despite the cycle
	for _, path := range []string{"/", "/a", "/b"} {
		assert.Equal(t, 1, server.requestCount(path), "path %s", path)
	}
	assert.Equal(t, 3, c.PagesVisited())
	assert.Zero(t, c.frontier.Len(), "frontier must be empty at termination")
}

func TestRun_CrossHostAndMailtoNeverEnterFrontier(t *testing.T) {
	server := newSiteServer(t, map[string]string{
		"/": `<html><body>
			<a href="/a">a</a>
			<a href="http://other.invalid/c">external</a>
			<a href="mailto:x@y.com">mail</a></body></html>`,
		"/a": `<html><body><h1>A</h1></body></html>`,
	})

	c := newTestCrawler(t, server.URL)
	require.NoError(t, c.Run(context.Background()))

	// Only same-host pages were requested; the external host would have
	// failed the test server anyway, so assert via visited URLs.
	seedHost, _ := url.Parse(server.URL)
	for visited := range c.visited {
		u, err := url.Parse(visited)
		require.NoError(t, err)
		assert.Equal(t, seedHost.Hostname(), u.Hostname())
	}
	assert.Equal(t, 2, c.PagesVisited())
}

func TestRun_TagPagesExcludedPreFetch(t *testing.T) {
	server := newSiteServer(t, map[string]string{
		"/":  `<html><body><a href="/a">a</a><a href="/tag/zomer">tag</a></body></html>`,
		"/a": `<html><body><h1>A</h1><a href="/tag/strand">tag</a></body></html>`,
	})

	c := newTestCrawler(t, server.URL)
	require.NoError(t, c.Run(context.Background()))

	assert.Zero(t, server.requestCount("/tag/zomer"), "tag listings must never be fetched")
	assert.Zero(t, server.requestCount("/tag/strand"))
	assert.ElementsMatch(t, []string{"zomer", "strand"}, c.AllTags())
}

func TestRun_FailedPageContributesNothing(t *testing.T) {
	server := newSiteServer(t, map[string]string{
		"/":  `<html><body><h1>Home</h1><a href="/missing">gone</a><a href="/a">a</a></body></html>`,
		"/a": `<html><body><h1>A</h1><p>alive</p></body></html>`,
	})

	c := newTestCrawler(t, server.URL)
	require.NoError(t, c.Run(context.Background()))

	// The 404 page is visited but yields no section
	keys := make([]string, 0)
	for _, sec := range c.Sections() {
		keys = append(keys, sec.Key)
	}
	assert.NotContains(t, keys, "missing")
	assert.Contains(t, keys, "a")
	// And it is not refetched
	assert.Equal(t, 1, server.requestCount("/missing"))
}

func TestRun_SectionAggregation(t *testing.T) {
	server := newSiteServer(t, map[string]string{
		"/": `<html><body><h1>Home</h1><a href="/zomer">z</a></body></html>`,
		"/zomer": `<html><body><h1>Zomer 2024</h1>
			<p>Strandfoto's.</p><p>En meer.</p>
			<div id="content">
				<img src="/img/zomer-1-default.jpg">
				<img src="/img/zomer-2-default.jpg">
			</div>
			<a href="/tag/strand">strand</a></body></html>`,
	})

	c := newTestCrawler(t, server.URL)
	require.NoError(t, c.Run(context.Background()))

	var zomer *models.Section
	for _, sec := range c.Sections() {
		if sec.Key == "zomer" {
			zomer = sec
		}
	}
	require.NotNil(t, zomer)
	assert.Equal(t, "Zomer 2024", zomer.Title)
	assert.Equal(t, "Strandfoto's.\n\nEn meer.", zomer.Description)
	assert.Equal(t, []string{"strand"}, zomer.Tags)
	require.Len(t, zomer.Images, 2)
	assert.Contains(t, zomer.Images[0], "zomer-1-default.jpg")
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := newSiteServer(t, map[string]string{
		"/": `<html><body></body></html>`,
	})

	c := newTestCrawler(t, server.URL)
	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFrontier_LIFOAndNoRequeue(t *testing.T) {
	f := newFrontier()
	assert.True(t, f.Push("http://example.com/a"))
	assert.True(t, f.Push("http://example.com/b"))
	assert.False(t, f.Push("http://example.com/a"), "a URL is never queued twice")

	first, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "http://example.com/b", first, "most recently discovered URL pops first")

	second, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "http://example.com/a", second)

	_, ok = f.Pop()
	assert.False(t, ok)

	// Even after popping, a processed URL cannot re-enter
	assert.False(t, f.Push("http://example.com/a"))
}
