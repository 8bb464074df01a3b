package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"site-archiver/pkg/archive"
	"site-archiver/pkg/config"
	"site-archiver/pkg/crawl"
	"site-archiver/pkg/download"
	"site-archiver/pkg/extract"
	"site-archiver/pkg/fetch"
	"site-archiver/pkg/models"
	"site-archiver/pkg/parse"
	"site-archiver/pkg/utils"
)

func main() {
	seedFlag := flag.String("url", "", fmt.Sprintf("Seed URL to archive (default %q)", config.DefaultSeedURL))
	outFlag := flag.String("out", "", fmt.Sprintf("Output directory for the archive (default %q)", config.DefaultOutputDir))
	configFlag := flag.String("config", "", "Path to optional YAML config file")
	logLevelFlag := flag.String("loglevel", "info", "Logging level (trace, debug, info, warn, error)")
	flag.Parse()

	cfg, cfgErr := config.Load(*configFlag)
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", cfgErr)
		os.Exit(1)
	}
	if *seedFlag != "" {
		cfg.SeedURL = *seedFlag
	}
	if *outFlag != "" {
		cfg.OutputDir = *outFlag
	}

	warnings, validErr := cfg.Validate()
	if validErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: invalid configuration: %v\n", validErr)
		os.Exit(1)
	}

	log, logCloser, logErr := setupLogging(cfg, *logLevelFlag)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", logErr)
		os.Exit(1)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	runLog := log.WithField("run_id", uuid.NewString())
	for _, w := range warnings {
		runLog.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, runLog); err != nil {
		runLog.Fatalf("Archiving failed: %v", err)
	}
}

// run wires the pipeline: crawl, archive sections, main download pass,
// retry pass, failure lists, tag union, summary.
func run(ctx context.Context, cfg *config.AppConfig, log *logrus.Logger, runLog *logrus.Entry) error {
	seed, seedErr := url.Parse(cfg.SeedURL)
	if seedErr != nil {
		return fmt.Errorf("%w: seed URL '%s': %w", utils.ErrConfigValidation, cfg.SeedURL, seedErr)
	}

	excludedPatterns, patternErr := utils.CompileRegexPatterns(cfg.ExcludedPathPatterns)
	if patternErr != nil {
		return patternErr
	}

	httpClient := fetch.NewClient(cfg.HTTPClientSettings, log)
	fetcher := fetch.NewFetcher(httpClient, cfg.UserAgent, runLog)
	extractor := extract.NewExtractor(
		parse.BaseHost(seed),
		cfg.ContentSelector,
		cfg.ImageSrcMarker,
		cfg.TagPathSegment,
		excludedPatterns,
		runLog,
	)

	crawler := crawl.NewCrawler(seed, fetcher, extractor, cfg.MaxPageSizeBytes, runLog)
	if crawlErr := crawler.Run(ctx); crawlErr != nil {
		// Cancellation mid-crawl: archive what was gathered before exiting
		runLog.Warnf("Crawl interrupted, archiving partial results: %v", crawlErr)
	}

	writer := archive.NewWriter(cfg.OutputDir, runLog)
	var tasks []download.Task
	for _, sec := range crawler.Sections() {
		secTasks, writeErr := writer.WriteSection(sec)
		if writeErr != nil {
			runLog.Errorf("Skipping section '%s': %v", sec.Key, writeErr)
			continue
		}
		tasks = append(tasks, secTasks...)
	}

	downloader := download.NewDownloader(fetcher, cfg.RetryAttempts, cfg.RetryDelay, cfg.DownloadWorkers, runLog)

	runLog.Infof("Starting main download pass: %d image(s)", len(tasks))
	failed := downloader.DownloadAll(ctx, tasks)
	if err := writer.WriteFailedList(failed); err != nil {
		runLog.Errorf("Could not record failed downloads: %v", err)
	}

	finalFailed := downloader.RetryFailed(ctx, failed)
	if err := writer.WriteFinalFailedList(finalFailed); err != nil {
		runLog.Errorf("Could not record final failed downloads: %v", err)
	}

	if err := writer.WriteAllTags(crawler.AllTags()); err != nil {
		runLog.Errorf("Could not record tag union: %v", err)
	}

	stats := models.CrawlStats{
		PagesVisited:     crawler.PagesVisited(),
		Sections:         len(crawler.Sections()),
		ImagesQueued:     len(tasks),
		ImagesDownloaded: len(tasks) - len(failed),
		ImagesFailed:     len(failed),
		PermanentFailed:  len(finalFailed),
	}
	runLog.WithFields(logrus.Fields{
		"pages":             stats.PagesVisited,
		"sections":          stats.Sections,
		"images_queued":     stats.ImagesQueued,
		"images_downloaded": stats.ImagesDownloaded,
		"images_failed":     stats.ImagesFailed,
		"permanent_failed":  stats.PermanentFailed,
		"output":            cfg.OutputDir,
	}).Info("Archive complete")

	if stats.PermanentFailed > 0 {
		runLog.Warnf("%d image(s) could not be downloaded; see %s", stats.PermanentFailed, filepath.Join(cfg.OutputDir, "failed_downloads_final.txt"))
	}
	return nil
}

// setupLogging configures logrus to write to stdout and an append-only log
// file inside the output directory.
func setupLogging(cfg *config.AppConfig, level string) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsedLevel, levelErr := logrus.ParseLevel(level)
	if levelErr != nil {
		return nil, nil, fmt.Errorf("invalid log level '%s': %w", level, levelErr)
	}
	log.SetLevel(parsedLevel)

	if mkdirErr := os.MkdirAll(cfg.OutputDir, 0755); mkdirErr != nil {
		return nil, nil, fmt.Errorf("%w: creating output directory '%s': %w", utils.ErrFilesystem, cfg.OutputDir, mkdirErr)
	}

	logPath := cfg.LogFile
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(cfg.OutputDir, logPath)
	}
	logFile, openErr := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if openErr != nil {
		return nil, nil, fmt.Errorf("%w: opening log file '%s': %w", utils.ErrFilesystem, logPath, openErr)
	}

	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
	return log, logFile, nil
}
