package models

// Section is the unit of archived content: one per distinct crawled page
// key, holding the images, title, description, and tags accumulated for it.
// Sections are created on first encounter during traversal and live for the
// process lifetime. Images append across merges (duplicates allowed); the
// remaining fields reflect the most recently merged page.
type Section struct {
	Key         string   // Stable identifier: last path segment of the section URL
	Title       string   // Page title, "Untitled" if the page had no heading
	Description string   // Paragraph texts joined by blank lines
	Images      []string // Absolute image URLs, in discovery order
	Tags        []string // Tag names harvested from tag-listing links
}

// FailedDownload records an image that could not be retrieved within the
// retry budget: the source URL and the local destination path it was meant
// for. Records from the main pass feed the retry pass; records surviving the
// retry pass are terminal.
type FailedDownload struct {
	URL  string
	Path string
}

// CrawlStats summarizes a finished run for the final log block.
type CrawlStats struct {
	PagesVisited     int
	Sections         int
	ImagesQueued     int
	ImagesDownloaded int
	ImagesFailed     int // After the main download pass
	PermanentFailed  int // After the retry pass
}
