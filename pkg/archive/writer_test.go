package archive

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-archiver/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestWriteSection_ContentAndTasks(t *testing.T) {
	out := t.TempDir()
	w := NewWriter(out, testLogger())

	sec := &models.Section{
		Key:         "zomer",
		Title:       "Zomer 2024",
		Description: "Strandfoto's.\n\nEn meer.",
		Tags:        []string{"strand", "zee"},
		Images: []string{
			"http://example.com/img/a.jpg",
			"http://example.com/img/b.PNG",
			"http://example.com/img/raw",
		},
	}

	tasks, err := w.WriteSection(sec)
	require.NoError(t, err)

	content, readErr := os.ReadFile(filepath.Join(out, "zomer", "content.txt"))
	require.NoError(t, readErr)
	assert.Equal(t, "Zomer 2024\n\nStrandfoto's.\n\nEn meer.\n\nTags: strand, zee\n", string(content))

	require.Len(t, tasks, 3)
	assert.Equal(t, filepath.Join(out, "zomer", "zomer-1.jpg"), tasks[0].Path)
	assert.Equal(t, filepath.Join(out, "zomer", "zomer-2.png"), tasks[1].Path)
	assert.Equal(t, filepath.Join(out, "zomer", "zomer-3.jpg"), tasks[2].Path, "extensionless source falls back to .jpg")
	assert.Equal(t, "http://example.com/img/a.jpg", tasks[0].URL)
}

func TestWriteSection_NoTagsLineWhenEmpty(t *testing.T) {
	out := t.TempDir()
	w := NewWriter(out, testLogger())

	_, err := w.WriteSection(&models.Section{Key: "plain", Title: "Plain", Description: "Text."})
	require.NoError(t, err)

	content, _ := os.ReadFile(filepath.Join(out, "plain", "content.txt"))
	assert.Equal(t, "Plain\n\nText.\n", string(content))
	assert.NotContains(t, string(content), "Tags:")
}

func TestWriteSection_SanitizesDirectoryName(t *testing.T) {
	out := t.TempDir()
	w := NewWriter(out, testLogger())

	_, err := w.WriteSection(&models.Section{Key: "café/zomer 2024", Title: "T"})
	require.NoError(t, err)

	entries, readErr := os.ReadDir(out)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.Equal(t, "caf_zomer_2024", entries[0].Name())
}

func TestWriteSection_Idempotent(t *testing.T) {
	out := t.TempDir()
	w := NewWriter(out, testLogger())
	sec := &models.Section{Key: "a", Title: "First", Description: "v1"}

	_, err := w.WriteSection(sec)
	require.NoError(t, err)

	sec.Description = "v2"
	_, err = w.WriteSection(sec)
	require.NoError(t, err)

	content, _ := os.ReadFile(filepath.Join(out, "a", "content.txt"))
	assert.Contains(t, string(content), "v2")
}

func TestWriteFailedList_RecordsVerbatim(t *testing.T) {
	out := t.TempDir()
	w := NewWriter(out, testLogger())

	failed := []models.FailedDownload{
		{URL: "http://example.com/x.jpg", Path: "/tmp/a/x.jpg"},
		{URL: "http://example.com/y.jpg", Path: "/tmp/a/y.jpg"},
	}
	require.NoError(t, w.WriteFailedList(failed))

	content, err := os.ReadFile(filepath.Join(out, "failed_downloads.txt"))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/x.jpg,/tmp/a/x.jpg\nhttp://example.com/y.jpg,/tmp/a/y.jpg\n", string(content))
}

func TestWriteFailedList_NothingWhenEmpty(t *testing.T) {
	out := t.TempDir()
	w := NewWriter(out, testLogger())

	require.NoError(t, w.WriteFailedList(nil))
	require.NoError(t, w.WriteFinalFailedList(nil))

	assert.NoFileExists(t, filepath.Join(out, "failed_downloads.txt"))
	assert.NoFileExists(t, filepath.Join(out, "failed_downloads_final.txt"))
}

func TestWriteFinalFailedList(t *testing.T) {
	out := t.TempDir()
	w := NewWriter(out, testLogger())

	require.NoError(t, w.WriteFinalFailedList([]models.FailedDownload{
		{URL: "http://example.com/z.jpg", Path: "/tmp/z.jpg"},
	}))
	assert.FileExists(t, filepath.Join(out, "failed_downloads_final.txt"))
}

func TestWriteAllTags(t *testing.T) {
	out := t.TempDir()
	w := NewWriter(out, testLogger())

	require.NoError(t, w.WriteAllTags([]string{"strand", "zee", "zomer"}))

	content, err := os.ReadFile(filepath.Join(out, "all_tags.txt"))
	require.NoError(t, err)
	assert.Equal(t, "strand\nzee\nzomer\n", string(content))

	require.NoError(t, w.WriteAllTags(nil))
}

func TestImageExt(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"jpeg", "http://h/p/photo.jpeg", ".jpeg"},
		{"uppercase", "http://h/p/photo.GIF", ".gif"},
		{"query ignored", "http://h/p/photo.png?size=large", ".png"},
		{"no extension", "http://h/p/photo", ".jpg"},
		{"trailing dot", "http://h/p/photo.", ".jpg"},
		{"unparseable", "http://h/%zz", ".jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, imageExt(tt.url))
		})
	}
}
