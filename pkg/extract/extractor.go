package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"site-archiver/pkg/parse"
)

const untitledFallback = "Untitled"

// PageData is everything the extractor pulls from a single parsed page.
// Links and Images are absolute, same-host, deduplicated, in document order.
type PageData struct {
	Title       string
	Description string
	Links       []string
	Images      []string
	Tags        []string
}

// Extractor turns parsed documents into normalized, host-filtered link and
// image lists plus the page's textual content. It never fetches anything
// itself.
type Extractor struct {
	baseHost         string
	contentSelector  string
	imageMarker      string
	tagSegment       string
	excludedPatterns []*regexp.Regexp
	log              *logrus.Entry
}

// NewExtractor creates an Extractor bound to the crawl's base host.
func NewExtractor(
	baseHost string,
	contentSelector string,
	imageMarker string,
	tagSegment string,
	excludedPatterns []*regexp.Regexp,
	log *logrus.Entry,
) *Extractor {
	return &Extractor{
		baseHost:         strings.ToLower(baseHost),
		contentSelector:  contentSelector,
		imageMarker:      imageMarker,
		tagSegment:       tagSegment,
		excludedPatterns: excludedPatterns,
		log:              log,
	}
}

// Excluded reports whether a URL path matches any excluded-path pattern
// (tag listings by default). The traversal engine checks this before
// fetching, so excluded pages are never requested.
func (e *Extractor) Excluded(u *url.URL) bool {
	for _, pattern := range e.excludedPatterns {
		if pattern.MatchString(u.Path) {
			return true
		}
	}
	return false
}

// ExtractPage produces the PageData for a fetched document. pageURL is the
// final URL of the page (after redirects) and is the base for resolving
// relative references.
func (e *Extractor) ExtractPage(doc *goquery.Document, pageURL *url.URL) PageData {
	pd := PageData{
		Title:       e.extractTitle(doc),
		Description: e.extractDescription(doc),
	}
	pd.Links, pd.Tags = e.extractLinks(doc, pageURL)
	pd.Images = e.extractImages(doc, pageURL)
	return pd
}

// extractTitle returns the first h1's trimmed text, or the fixed fallback.
func (e *Extractor) extractTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		return untitledFallback
	}
	return title
}

// extractDescription joins all paragraph texts with blank lines.
func (e *Extractor) extractDescription(doc *goquery.Document) string {
	var paragraphs []string
	doc.Find("p").Each(func(index int, element *goquery.Selection) {
		if text := strings.TrimSpace(element.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n")
}

// extractLinks resolves and filters anchor hrefs. Malformed hrefs drop the
// individual entry, never the page. Tag-listing links are excluded from the
// result but their last path segment is harvested as a tag name.
func (e *Extractor) extractLinks(doc *goquery.Document, pageURL *url.URL) (links []string, tags []string) {
	seen := make(map[string]bool)
	seenTags := make(map[string]bool)

	doc.Find("a[href]").Each(func(index int, element *goquery.Selection) {
		href, exists := element.Attr("href")
		if !exists || href == "" {
			return
		}

		// Resolve relative to the page's final URL
		linkURL, parseErr := pageURL.Parse(href)
		if parseErr != nil {
			// Malformed href: silently drop the entry, not the page
			return
		}

		// Scheme check drops mailto:, tel:, javascript: etc.
		if linkURL.Scheme != "http" && linkURL.Scheme != "https" {
			return
		}

		// The crawl boundary: same host as the seed
		if !parse.SameHost(linkURL, e.baseHost) {
			return
		}

		// Tag-listing links contribute a tag name instead of a crawl target
		if e.tagSegment != "" && strings.Contains(linkURL.Path, e.tagSegment) {
			if tag := parse.SectionKey(linkURL); tag != "home" && !seenTags[tag] {
				seenTags[tag] = true
				tags = append(tags, tag)
			}
			return
		}

		if e.Excluded(linkURL) {
			return
		}

		absolute := linkURL.String()
		if !seen[absolute] {
			seen[absolute] = true
			links = append(links, absolute)
		}
	})

	return links, tags
}

// extractImages finds representative image URLs. The search is scoped to the
// main-content container when present; if no image there carries the
// representative marker, the search widens to the whole document.
func (e *Extractor) extractImages(doc *goquery.Document, pageURL *url.URL) []string {
	container := doc.Find(e.contentSelector)
	if container.Length() > 0 {
		if images := e.collectImages(container, pageURL); len(images) > 0 {
			return images
		}
	}
	return e.collectImages(doc.Selection, pageURL)
}

// collectImages gathers marker-matching img sources within a selection,
// resolved against the page URL and restricted to the base host.
func (e *Extractor) collectImages(scope *goquery.Selection, pageURL *url.URL) []string {
	var images []string
	seen := make(map[string]bool)

	scope.Find("img[src]").Each(func(index int, element *goquery.Selection) {
		src, _ := element.Attr("src")
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		if e.imageMarker != "" && !strings.Contains(src, e.imageMarker) {
			return
		}

		imgURL, parseErr := pageURL.Parse(src)
		if parseErr != nil {
			e.log.WithFields(logrus.Fields{"page": pageURL.String(), "src": src}).
				Warnf("Dropping malformed image src: %v", parseErr)
			return
		}
		if imgURL.Scheme != "http" && imgURL.Scheme != "https" {
			return
		}
		if !parse.SameHost(imgURL, e.baseHost) {
			return
		}

		absolute := imgURL.String()
		if !seen[absolute] {
			seen[absolute] = true
			images = append(images, absolute)
		}
	})

	return images
}
