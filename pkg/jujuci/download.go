package jujuci

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/monshunter/ohmyremote/pkg/log"
)

const userAgent = "ohmyremote/1.0"

// DownloadFile downloads url to destPath. A failed download leaves no file
// behind.
func (c *Client) DownloadFile(ctx context.Context, url, destPath string) (int64, error) {
	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create destination directory %s: %w", destDir, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download of %s failed with status %d: %s", url, resp.StatusCode, resp.Status)
	}

	destFile, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file %s: %w", destPath, err)
	}

	written, err := io.Copy(destFile, newProgressReader(resp.Body, resp.ContentLength, url))
	if closeErr := destFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destPath)
		return 0, fmt.Errorf("failed to write to destination file: %w", err)
	}

	log.Debugf("Downloaded %s (%s) to %s", url, log.FormatSize(written), destPath)
	return written, nil
}

// progressReader logs the progress of large downloads periodically
type progressReader struct {
	reader      io.Reader
	totalSize   int64
	written     int64
	url         string
	lastLogTime time.Time
	logInterval time.Duration
}

func newProgressReader(reader io.Reader, totalSize int64, url string) *progressReader {
	return &progressReader{
		reader:      reader,
		totalSize:   totalSize,
		url:         url,
		lastLogTime: time.Now(),
		logInterval: 10 * time.Second,
	}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.written += int64(n)

		now := time.Now()
		if now.Sub(pr.lastLogTime) >= pr.logInterval {
			if pr.totalSize > 0 {
				progress := float64(pr.written) / float64(pr.totalSize) * 100
				log.Infof("Download progress for %s: %.1f%% (%s/%s)", pr.url, progress, log.FormatSize(pr.written), log.FormatSize(pr.totalSize))
			} else {
				log.Infof("Download progress for %s: %s", pr.url, log.FormatSize(pr.written))
			}
			pr.lastLogTime = now
		}
	}
	return n, err
}
