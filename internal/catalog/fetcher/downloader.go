// Package fetcher downloads remote fixture files into the fixture directory.
package fetcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cfcheck-fixtures/internal/common/logger"
)

type Downloader interface {
	Download(ctx context.Context, url string, destPath string) error
}

type HTTPDownloader struct {
	client *http.Client
	logger logger.Logger
}

func NewHTTPDownloader(logger logger.Logger) *HTTPDownloader {
	return &HTTPDownloader{
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
		logger: logger,
	}
}

var (
	// ErrUnsupportedFile is returned for URLs that do not name a .cdl, .yml
	// or .yaml file.
	ErrUnsupportedFile = errors.New("unsupported fixture file type")
	// ErrNotCDL is returned when a .cdl download does not start with a
	// netcdf header, such as an HTML error page served with status 200.
	ErrNotCDL = errors.New("downloaded file is not CDL")
)

// Download fetches url into destPath via a temp file in the same directory,
// so destPath never holds a partial file. A .cdl destination is only
// replaced when the body starts with a netcdf header.
func (d *HTTPDownloader) Download(ctx context.Context, url string, destPath string) error {
	if !supportedExt(destPath) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Base(destPath))
	}

	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	tempFile, err := os.CreateTemp(destDir, ".fixture_download_*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	d.logger.Info("Starting fixture download", "url", url, "dest", destPath)

	written, err := d.fetchInto(ctx, url, tempFile)
	if closeErr := tempFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(destPath), ".cdl") {
		if err := checkCDLHeader(tempPath); err != nil {
			return fmt.Errorf("%s: %w", url, err)
		}
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		return fmt.Errorf("moving file to destination: %w", err)
	}

	d.logger.Info("Fixture download completed",
		"url", url,
		"dest", destPath,
		"size_bytes", written)
	return nil
}

func (d *HTTPDownloader) fetchInto(ctx context.Context, url string, dst io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	written, err := d.copyWithProgress(dst, resp.Body, resp.ContentLength)
	if err != nil {
		return written, fmt.Errorf("downloading file: %w", err)
	}
	return written, nil
}

// checkCDLHeader requires the first token after blank lines and // comments
// to be the netcdf keyword.
func checkCDLHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if fields := strings.Fields(line); fields[0] == "netcdf" {
			return nil
		}
		return ErrNotCDL
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading download: %w", err)
	}
	return ErrNotCDL
}

func supportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".cdl", ".yml", ".yaml":
		return true
	}
	return false
}

func (d *HTTPDownloader) copyWithProgress(dst io.Writer, src io.Reader, totalSize int64) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	lastLog := time.Now()

	for {
		nr, err := src.Read(buf)
		if nr > 0 {
			nw, err := dst.Write(buf[0:nr])
			if err != nil {
				return written, err
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
			written += int64(nw)

			if time.Since(lastLog) > 5*time.Second && totalSize > 0 {
				progress := float64(written) / float64(totalSize) * 100
				d.logger.Debug("Download progress",
					"progress_percent", fmt.Sprintf("%.1f", progress),
					"bytes_downloaded", written,
					"total_bytes", totalSize)
				lastLog = time.Now()
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, err
		}
	}

	return written, nil
}

// FileName derives the local file name for a fixture URL from its last path
// element. It returns an error when the URL has no usable name.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing fixture url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("fixture url %q has no file name", rawURL)
	}
	if !supportedExt(name) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFile, rawURL)
	}
	return name, nil
}

// FetchAll downloads every url into dir and returns the local paths.
func FetchAll(ctx context.Context, d Downloader, urls []string, dir string) ([]string, error) {
	paths := make([]string, 0, len(urls))
	for _, u := range urls {
		name, err := FileName(u)
		if err != nil {
			return paths, err
		}
		dest := filepath.Join(dir, name)
		if err := d.Download(ctx, u, dest); err != nil {
			return paths, fmt.Errorf("fetching %s: %w", u, err)
		}
		paths = append(paths, dest)
	}
	return paths, nil
}
