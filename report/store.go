package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for output paths that are neither .csv
// nor .xlsx.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Output extensions.
const (
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
)

// Supported reports whether path has an extension Store can write.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtCSV, ExtXLSX:
		return true
	}
	return false
}

// Store writes the report to path, choosing the format by extension.
func (r *Report) Store(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(path) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	var err error
	switch ext {
	case ExtCSV:
		err = r.storeCSV(path)
	case ExtXLSX:
		err = r.storeXLSX(path)
	}
	if err != nil {
		return err
	}
	r.logger.Info("report written", "path", path, "hits", r.Len())
	return nil
}

// StoreAll writes base with every supported extension, replacing a
// supported extension already present, and returns the
// written paths.
func (r *Report) StoreAll(base string) ([]string, error) {
	if Supported(base) {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	paths := []string{base + ExtCSV, base + ExtXLSX}
	for _, p := range paths {
		if err := r.Store(p); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// utf8BOM lets spreadsheet applications detect the encoding.
const utf8BOM = "\xEF\xBB\xBF"

func (r *Report) storeCSV(path string) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close csv: %w", cerr)
		}
	}()

	if _, err := file.WriteString(utf8BOM); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	w := csv.NewWriter(file)
	if err := w.Write(Headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(r.Rows()); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}
