// Package registry downloads and parses the national drug registry extract
// into immutable pharmaceutical records.
package registry

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ihtsdo/drugmatch/logging"
	"golang.org/x/text/encoding/charmap"
)

// downloadExtract fetches the registry extract and writes it to path as
// UTF-8. National registries publish a mix of UTF-8 and ISO-8859-1 files, so
// the content is sniffed and decoded when necessary.
func downloadExtract(ctx context.Context, url, path string) error {
	cleanPath := filepath.Clean(path)

	client := &http.Client{
		Timeout: 5 * time.Minute,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("invalid registry url %s: %w", url, err)
	}
	response, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer func() {
		if err = response.Body.Close(); err != nil {
			logging.Warn("Failed to close response body", "error", err)
		}
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("registry download returned %d for %s", response.StatusCode, url)
	}

	bodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("failed to read registry response: %w", err)
	}

	var reader io.Reader
	if utf8.Valid(bodyBytes) {
		reader = bytes.NewReader(bodyBytes)
	} else {
		reader = charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(bodyBytes))
	}

	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create registry directory %s: %w", dir, err)
		}
	}

	outFile, err := os.Create(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", cleanPath, err)
	}
	defer func() {
		if err = outFile.Close(); err != nil {
			logging.Warn("Failed to close registry file", "error", err)
		}
	}()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0), 1*1024*1024)

	for scanner.Scan() {
		if _, err = io.WriteString(outFile, scanner.Text()+"\n"); err != nil {
			return fmt.Errorf("failed to write to file %s: %w", cleanPath, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan registry content: %w", err)
	}

	logging.Info("Registry extract downloaded", "url", url, "path", cleanPath)
	return nil
}

// isRemote reports whether the registry source is a URL rather than a local
// file path.
func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
