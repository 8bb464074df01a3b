package crawl

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"site-archiver/pkg/extract"
	"site-archiver/pkg/fetch"
	"site-archiver/pkg/models"
	"site-archiver/pkg/parse"
	"site-archiver/pkg/utils"
)

// Crawler drives the traversal of a single site: it pops URLs off the
// frontier, fetches and parses them, hands documents to the extractor, and
// accumulates per-section content. Traversal is single-flow; only the
// download pipeline behind it runs concurrently.
type Crawler struct {
	log       *logrus.Entry
	fetcher   fetch.Fetcher
	extractor *extract.Extractor

	seed        *url.URL
	baseHost    string
	maxPageSize int64

	frontier *frontier
	visited  map[string]bool

	sections     map[string]*models.Section
	sectionOrder []string // Section keys in first-encounter order

	allTags    map[string]bool
	tagOrder   []string
	pagesCount int
}

// NewCrawler creates a Crawler for the given seed URL.
func NewCrawler(
	seed *url.URL,
	fetcher fetch.Fetcher,
	extractor *extract.Extractor,
	maxPageSize int64,
	log *logrus.Entry,
) *Crawler {
	return &Crawler{
		log:         log.WithField("host", parse.BaseHost(seed)),
		fetcher:     fetcher,
		extractor:   extractor,
		seed:        seed,
		baseHost:    parse.BaseHost(seed),
		maxPageSize: maxPageSize,
		frontier:    newFrontier(),
		visited:     make(map[string]bool),
		sections:    make(map[string]*models.Section),
		allTags:     make(map[string]bool),
	}
}

// Run crawls from the seed until the frontier is empty or the context is
// cancelled. Per-page failures are logged and skipped; the only error Run
// itself returns is context cancellation.
func (c *Crawler) Run(ctx context.Context) error {
	startTime := time.Now()
	c.log.Infof("Crawl starting from %s", c.seed.String())

	c.frontier.Push(parse.NormalizeURL(c.seed))

	for {
		if ctx.Err() != nil {
			c.log.Warnf("Crawl cancelled: %v", ctx.Err())
			return ctx.Err()
		}

		currentURL, ok := c.frontier.Pop()
		if !ok {
			break // Frontier empty: terminal state
		}
		c.processPage(ctx, currentURL)
	}

	c.log.WithFields(logrus.Fields{
		"pages":    c.pagesCount,
		"sections": len(c.sections),
		"duration": time.Since(startTime).String(),
	}).Info("Crawl finished")
	return nil
}

// processPage handles a single popped URL: visited/exclusion checks, fetch,
// parse, extraction, section merge, and link enqueueing. Any fetch or parse
// error makes the page contribute nothing; the crawl continues.
func (c *Crawler) processPage(ctx context.Context, currentURL string) {
	taskLog := c.log.WithField("url", currentURL)

	if c.visited[currentURL] {
		// The frontier's seen set makes this unreachable in practice, but
		// the invariant is cheap to re-check at dequeue time.
		return
	}

	parsedURL, parseErr := url.Parse(currentURL)
	if parseErr != nil {
		taskLog.Errorf("Skipping unparseable URL: %v", parseErr)
		return
	}
	if c.extractor.Excluded(parsedURL) {
		taskLog.Debug("Skipping excluded path")
		return
	}

	// Mark visited immediately before processing, never after: a failed
	// page must not be refetched either.
	c.visited[currentURL] = true

	doc, finalURL, fetchErr := c.fetchPage(ctx, currentURL)
	if fetchErr != nil {
		taskLog.WithField("category", utils.CategorizeError(fetchErr)).
			Errorf("Page contributes nothing: %v", fetchErr)
		c.pagesCount++
		return
	}
	c.pagesCount++

	pageData := c.extractor.ExtractPage(doc, finalURL)
	c.mergeSection(finalURL, pageData, taskLog)

	queued := 0
	for _, link := range pageData.Links {
		normalized, _, normErr := parse.ParseAndNormalize(link)
		if normErr != nil {
			taskLog.Warnf("Cannot normalize extracted link '%s': %v", link, normErr)
			continue
		}
		if c.visited[normalized] {
			continue
		}
		if c.frontier.Push(normalized) {
			queued++
		}
	}
	taskLog.WithFields(logrus.Fields{
		"links_queued": queued,
		"images":       len(pageData.Images),
		"frontier":     c.frontier.Len(),
	}).Info("Page processed")
}

// fetchPage GETs a URL and parses the body into a goquery document. The
// final URL after redirects is returned; a redirect off the base host is a
// scope violation.
func (c *Crawler) fetchPage(ctx context.Context, rawURL string) (*goquery.Document, *url.URL, error) {
	resp, fetchErr := c.fetcher.Get(ctx, rawURL)
	if fetchErr != nil {
		return nil, nil, fetchErr
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL
	if !parse.SameHost(finalURL, c.baseHost) {
		io.Copy(io.Discard, resp.Body)
		return nil, nil, fmt.Errorf("%w: redirected to '%s', off base host '%s'", utils.ErrScopeViolation, finalURL.String(), c.baseHost)
	}

	// Read with a size cap to avoid OOM on oversized pages
	limitedReader := io.LimitReader(resp.Body, c.maxPageSize+1)
	bodyBytes, readErr := io.ReadAll(limitedReader)
	if readErr != nil {
		return nil, nil, fmt.Errorf("%w: reading body from '%s': %w", utils.ErrResponseBodyRead, rawURL, readErr)
	}
	if int64(len(bodyBytes)) > c.maxPageSize {
		return nil, nil, fmt.Errorf("%w: page '%s' exceeds max size (%d bytes)", utils.ErrResponseBodyRead, rawURL, c.maxPageSize)
	}

	doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(bodyBytes))
	if docErr != nil {
		return nil, nil, fmt.Errorf("%w: parsing HTML from '%s': %w", utils.ErrParsing, rawURL, docErr)
	}
	return doc, finalURL, nil
}

// mergeSection creates or updates the Section a page maps to. Images append
// across merges; title, description, and tags reflect the latest page.
func (c *Crawler) mergeSection(pageURL *url.URL, pd extract.PageData, taskLog *logrus.Entry) {
	key := parse.SectionKey(pageURL)

	sec, exists := c.sections[key]
	if !exists {
		sec = &models.Section{Key: key}
		c.sections[key] = sec
		c.sectionOrder = append(c.sectionOrder, key)
	}

	sec.Title = pd.Title
	sec.Description = pd.Description
	sec.Tags = pd.Tags
	sec.Images = append(sec.Images, pd.Images...)

	for _, tag := range pd.Tags {
		if !c.allTags[tag] {
			c.allTags[tag] = true
			c.tagOrder = append(c.tagOrder, tag)
		}
	}

	taskLog.WithFields(logrus.Fields{"section": key, "section_images": len(sec.Images)}).
		Debug("Section merged")
}

// Sections returns the accumulated sections in first-encounter order.
func (c *Crawler) Sections() []*models.Section {
	out := make([]*models.Section, 0, len(c.sectionOrder))
	for _, key := range c.sectionOrder {
		out = append(out, c.sections[key])
	}
	return out
}

// AllTags returns every distinct tag discovered across the crawl, in
// first-encounter order.
func (c *Crawler) AllTags() []string {
	return append([]string(nil), c.tagOrder...)
}

// PagesVisited returns the number of pages actually processed (fetched or
// failed), matching the visited-set cardinality for fetchable URLs.
func (c *Crawler) PagesVisited() int {
	return c.pagesCount
}
