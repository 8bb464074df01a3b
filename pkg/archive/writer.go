package archive

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"site-archiver/pkg/download"
	"site-archiver/pkg/models"
	"site-archiver/pkg/utils"
)

const (
	contentFilename     = "content.txt"
	failedFilename      = "failed_downloads.txt"
	failedFinalFilename = "failed_downloads_final.txt"
	allTagsFilename     = "all_tags.txt"

	fallbackImageExt = ".jpg"
	dirPermissions   = 0755
	filePermissions  = 0644
)

// Writer lays out the on-disk archive: one directory per section holding a
// content.txt and the section's images, plus run-level failure and tag
// files at the output root.
type Writer struct {
	outputDir string
	log       *logrus.Entry
}

// NewWriter creates a Writer rooted at outputDir. The directory itself is
// created lazily by the first write.
func NewWriter(outputDir string, log *logrus.Entry) *Writer {
	return &Writer{outputDir: outputDir, log: log}
}

// OutputDir returns the archive root path.
func (w *Writer) OutputDir() string {
	return w.outputDir
}

// EnsureDir creates a directory (and parents) if it does not already exist.
func (w *Writer) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, dirPermissions); err != nil {
		return fmt.Errorf("%w: creating directory '%s': %w", utils.ErrFilesystem, dirPath, err)
	}
	return nil
}

// WriteFile writes content to a file, replacing any previous version.
func (w *Writer) WriteFile(filePath string, content []byte) error {
	if err := os.WriteFile(filePath, content, filePermissions); err != nil {
		return fmt.Errorf("%w: writing '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	return nil
}

// SectionDir returns the directory a section archives into, creating it.
func (w *Writer) SectionDir(sec *models.Section) (string, error) {
	dir := filepath.Join(w.outputDir, utils.SanitizeName(sec.Key))
	if err := w.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteSection writes the section's content.txt and returns the download
// tasks for its images. The section directory is created as a side effect.
func (w *Writer) WriteSection(sec *models.Section) ([]download.Task, error) {
	dir, dirErr := w.SectionDir(sec)
	if dirErr != nil {
		return nil, dirErr
	}

	if err := w.WriteFile(filepath.Join(dir, contentFilename), renderContent(sec)); err != nil {
		return nil, err
	}

	sanitizedKey := utils.SanitizeName(sec.Key)
	tasks := make([]download.Task, 0, len(sec.Images))
	for i, imageURL := range sec.Images {
		filename := fmt.Sprintf("%s-%d%s", sanitizedKey, i+1, imageExt(imageURL))
		tasks = append(tasks, download.Task{
			URL:  imageURL,
			Path: filepath.Join(dir, filename),
		})
	}

	w.log.WithFields(logrus.Fields{
		"section": sec.Key,
		"dir":     dir,
		"images":  len(tasks),
	}).Debug("Section archived")
	return tasks, nil
}

// WriteFailedList writes the post-main-pass failure list. Nothing is
// written when the list is empty.
func (w *Writer) WriteFailedList(failed []models.FailedDownload) error {
	return w.writeFailures(failedFilename, failed)
}

// WriteFinalFailedList writes the post-retry-pass failure list. Survivors
// here are terminal. Nothing is written when the list is empty.
func (w *Writer) WriteFinalFailedList(failed []models.FailedDownload) error {
	return w.writeFailures(failedFinalFilename, failed)
}

func (w *Writer) writeFailures(filename string, failed []models.FailedDownload) error {
	if len(failed) == 0 {
		return nil
	}
	if err := w.EnsureDir(w.outputDir); err != nil {
		return err
	}

	var sb strings.Builder
	for _, f := range failed {
		sb.WriteString(f.URL)
		sb.WriteString(",")
		sb.WriteString(f.Path)
		sb.WriteString("\n")
	}

	w.log.Warnf("Recording %d failed download(s) in %s", len(failed), filename)
	return w.WriteFile(filepath.Join(w.outputDir, filename), []byte(sb.String()))
}

// WriteAllTags writes the union of tags discovered across the crawl, one
// per line. Nothing is written when no tags were found.
func (w *Writer) WriteAllTags(tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	if err := w.EnsureDir(w.outputDir); err != nil {
		return err
	}
	content := strings.Join(tags, "\n") + "\n"
	return w.WriteFile(filepath.Join(w.outputDir, allTagsFilename), []byte(content))
}

// renderContent builds the content.txt body: title, blank line, description,
// and a tags line when the section has tags.
func renderContent(sec *models.Section) []byte {
	var sb strings.Builder
	sb.WriteString(sec.Title)
	sb.WriteString("\n\n")
	sb.WriteString(sec.Description)
	sb.WriteString("\n")
	if len(sec.Tags) > 0 {
		sb.WriteString("\nTags: ")
		sb.WriteString(strings.Join(sec.Tags, ", "))
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

// imageExt derives the local file extension from the source URL's path,
// falling back to .jpg when the URL carries none.
func imageExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallbackImageExt
	}
	ext := path.Ext(u.Path)
	if ext == "" || ext == "." {
		return fallbackImageExt
	}
	return strings.ToLower(ext)
}
