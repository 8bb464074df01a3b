package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"site-archiver/pkg/fetch"
	"site-archiver/pkg/models"
	"site-archiver/pkg/utils"
)

// Task pairs a source URL with the local path it should be saved to.
type Task struct {
	URL  string
	Path string
}

// Downloader fetches binary content to local files with an existence/size
// idempotence check and a bounded, fixed-delay retry policy per URL. The
// fixed delay is deliberate backpressure against a flaky origin, not
// exponential backoff. Retries are independent across URLs, so DownloadAll
// may run tasks concurrently under a bounded worker pool.
type Downloader struct {
	fetcher  fetch.Fetcher
	attempts int           // Total attempts per URL (first try included)
	delay    time.Duration // Fixed sleep between attempts; zero in tests
	workers  int64
	log      *logrus.Entry
}

// NewDownloader creates a Downloader. attempts < 1 is clamped to 1 and
// workers < 1 to 1, keeping the retry and concurrency bounds meaningful.
func NewDownloader(fetcher fetch.Fetcher, attempts int, delay time.Duration, workers int, log *logrus.Entry) *Downloader {
	if attempts < 1 {
		attempts = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &Downloader{
		fetcher:  fetcher,
		attempts: attempts,
		delay:    delay,
		workers:  int64(workers),
		log:      log,
	}
}

// Download fetches a single URL to its destination path. If a file already
// present at the path matches the remote Content-Length, no transfer
// happens. Otherwise up to `attempts` GETs are made, sleeping the fixed
// delay between failures. Returns nil on the first success.
func (d *Downloader) Download(ctx context.Context, task Task) error {
	taskLog := d.log.WithFields(logrus.Fields{"url": task.URL, "path": task.Path})

	if d.alreadyDownloaded(ctx, task, taskLog) {
		taskLog.Debug("Local file matches remote size, skipping download")
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		if attempt > 1 {
			taskLog.WithFields(logrus.Fields{"attempt": attempt, "delay": d.delay}).Warn("Retrying download...")
			if err := sleepCtx(ctx, d.delay); err != nil {
				return fmt.Errorf("context cancelled during retry delay: %w", err)
			}
		}

		if err := d.fetchToFile(ctx, task); err != nil {
			lastErr = err
			taskLog.WithField("attempt", attempt).Errorf("Download attempt failed: %v", err)
			continue
		}
		return nil
	}

	return fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// DownloadAll runs the tasks under a semaphore-bounded worker pool and
// returns a FailedDownload record for every task that exhausted its retry
// budget. The per-URL retry contract is unchanged by the concurrency.
func (d *Downloader) DownloadAll(ctx context.Context, tasks []Task) []models.FailedDownload {
	if len(tasks) == 0 {
		return nil
	}

	sem := semaphore.NewWeighted(d.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex // Protects failed
	var failed []models.FailedDownload

	for _, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled while waiting for a slot: everything not
			// yet started counts as failed so the retry pass can see it.
			d.log.Warnf("Context cancelled while dispatching downloads: %v", err)
			mu.Lock()
			failed = append(failed, models.FailedDownload{URL: task.URL, Path: task.Path})
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			defer sem.Release(1)
			if err := d.Download(ctx, t); err != nil {
				mu.Lock()
				failed = append(failed, models.FailedDownload{URL: t.URL, Path: t.Path})
				mu.Unlock()
			}
		}(task)
	}

	wg.Wait()
	return failed
}

// RetryFailed re-runs the pipeline over exactly the still-failed set from
// the main pass. Anything it returns is terminal.
func (d *Downloader) RetryFailed(ctx context.Context, failed []models.FailedDownload) []models.FailedDownload {
	if len(failed) == 0 {
		return nil
	}
	d.log.Infof("Retrying %d failed download(s)...", len(failed))

	tasks := make([]Task, 0, len(failed))
	for _, f := range failed {
		tasks = append(tasks, Task{URL: f.URL, Path: f.Path})
	}
	return d.DownloadAll(ctx, tasks)
}

// alreadyDownloaded reports whether the destination file exists and matches
// the remote resource's declared Content-Length. Any network error, missing
// header, or unparsable value means "not confirmed identical" and the
// download proceeds.
func (d *Downloader) alreadyDownloaded(ctx context.Context, task Task, taskLog *logrus.Entry) bool {
	info, statErr := os.Stat(task.Path)
	if statErr != nil {
		return false
	}

	resp, headErr := d.fetcher.Head(ctx, task.URL)
	if headErr != nil {
		taskLog.Debugf("HEAD failed, cannot confirm local file is current: %v", headErr)
		return false
	}

	lengthStr := resp.Header.Get("Content-Length")
	if lengthStr == "" {
		// Length unknown: force a re-download rather than guessing
		return false
	}
	remoteSize, parseErr := strconv.ParseInt(lengthStr, 10, 64)
	if parseErr != nil {
		taskLog.Warnf("Could not parse Content-Length header '%s'", lengthStr)
		return false
	}

	return remoteSize == info.Size()
}

// fetchToFile performs one GET attempt and streams the body to the
// destination file, removing partial output on failure.
func (d *Downloader) fetchToFile(ctx context.Context, task Task) error {
	resp, fetchErr := d.fetcher.Get(ctx, task.URL)
	if fetchErr != nil {
		return fetchErr
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	outFile, createErr := os.Create(task.Path)
	if createErr != nil {
		return fmt.Errorf("%w: creating '%s': %w", utils.ErrFilesystem, task.Path, createErr)
	}

	copiedBytes, copyErr := io.Copy(outFile, resp.Body)
	if copyErr != nil {
		outFile.Close()
		os.Remove(task.Path) // Attempt cleanup of the partial file
		return fmt.Errorf("%w: copying to '%s' (copied %d bytes): %w", utils.ErrFilesystem, task.Path, copiedBytes, copyErr)
	}

	if closeErr := outFile.Close(); closeErr != nil {
		os.Remove(task.Path)
		return fmt.Errorf("%w: closing '%s': %w", utils.ErrFilesystem, task.Path, closeErr)
	}

	d.log.WithFields(logrus.Fields{"url": task.URL, "bytes": copiedBytes}).Debugf("Saved %s", task.Path)
	return nil
}

// sleepCtx sleeps for the given duration, waking early if ctx is cancelled.
func sleepCtx(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
