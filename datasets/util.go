package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func parseFloat32(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

func parseIndex(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative index %d", v)
	}
	return v, nil
}

// readHeader opens path and maps normalized column names to their indices.
func readHeader(path string) (map[string]int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	header, err := csv.NewReader(file).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.TrimSpace(strings.ToLower(col))] = i
	}
	return colIndex, nil
}

// eachCSVRow calls fn for every data row of path (header skipped). row is
// the zero-based data row number.
func eachCSVRow(path string, fn func(row int, record []string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read row %d: %w", row, err)
		}
		if err := fn(row, record); err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		row++
	}
}

// FindCSVInDir returns a glob pattern for the CSV files in dir.
func FindCSVInDir(dir string) (string, error) {
	pattern := filepath.Join(dir, "*.csv")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no CSV files found in %s", dir)
	}
	return pattern, nil
}
