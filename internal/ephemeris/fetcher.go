package ephemeris

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultSourceURL serves the daily GPS broadcast ephemeris merge. The
// {path} placeholders are substituted from the requested date.
const DefaultSourceURL = "https://cddis.nasa.gov/archive/gnss/data/daily/%d/brdc/brdc%03d0.%02dn.gz"

// Fetcher downloads daily broadcast navigation files and feeds them into a
// Store. The broadcast merge for a given day is published compressed; the
// fetcher decompresses into the data directory so gps-sdr-sim can consume
// the same file.
type Fetcher struct {
	sourceURL  string
	dataDir    string
	store      *Store
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher writing into dataDir. An empty sourceURL
// selects the CDDIS daily broadcast archive; a custom one must carry the
// same three verbs (four-digit year, day of year, two-digit year).
func NewFetcher(sourceURL, dataDir string, store *Store, logger *slog.Logger) (*Fetcher, error) {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	if err := validateSourceURL(sourceURL); err != nil {
		return nil, err
	}
	return &Fetcher{
		sourceURL: sourceURL,
		dataDir:   dataDir,
		store:     store,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}, nil
}

// validateSourceURL expands the template for a fixed date and rejects it if
// the verbs do not line up; fmt marks any mismatch with a %! sequence.
func validateSourceURL(tmpl string) error {
	probe := fmt.Sprintf(tmpl, 2025, 212, 25)
	if strings.Contains(probe, "%!") {
		return fmt.Errorf("source URL %q must use the placeholders of %q", tmpl, DefaultSourceURL)
	}
	return nil
}

// FetchDay downloads, decompresses and loads the broadcast file for the
// given UTC date. Falls back to the previous day when the current one is not
// published yet.
func (f *Fetcher) FetchDay(ctx context.Context, day time.Time) (*Set, error) {
	day = day.UTC()

	path, err := f.download(ctx, day)
	if err != nil {
		prev := day.AddDate(0, 0, -1)
		f.logger.Warn("download failed, trying previous day",
			slog.String("date", day.Format(time.DateOnly)),
			slog.String("error", err.Error()),
		)
		if path, err = f.download(ctx, prev); err != nil {
			return nil, err
		}
	}

	return f.store.LoadFile(path)
}

// Run refreshes the ephemeris on the given interval until ctx is cancelled.
// Failures are logged and retried on the next tick; the store keeps serving
// the previous snapshot in the meantime.
func (f *Fetcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := f.FetchDay(ctx, time.Now()); err != nil {
				f.logger.Error("ephemeris refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (f *Fetcher) download(ctx context.Context, day time.Time) (string, error) {
	url := fmt.Sprintf(f.sourceURL, day.Year(), day.YearDay(), day.Year()%100)

	local := filepath.Join(f.dataDir, strings.TrimSuffix(filepath.Base(url), ".gz"))
	if info, err := os.Stat(local); err == nil && time.Since(info.ModTime()) < time.Hour {
		return local, nil // recent enough, skip the download
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching navigation data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	var body io.Reader = resp.Body
	if strings.HasSuffix(url, ".gz") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("decompressing navigation data: %w", err)
		}
		defer gz.Close()
		body = gz
	}

	tmp, err := os.CreateTemp(f.dataDir, "nav-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err = io.Copy(tmp, body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing navigation data: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	if err = os.Rename(tmp.Name(), local); err != nil {
		return "", fmt.Errorf("moving navigation data into place: %w", err)
	}

	f.logger.Info("navigation data downloaded",
		slog.String("url", url),
		slog.String("path", local),
	)
	return local, nil
}
