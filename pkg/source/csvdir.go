package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// CSVDir reads one "<System><suffix>.csv" file per system and sums the
// error and warning columns.
type CSVDir struct {
	dir           string
	suffix        string
	errorColumn   string
	warningColumn string
	attempts      uint
	delay         time.Duration
}

// NewCSVDir creates a csv-dir source.
func NewCSVDir(cfg types.SourceConfig) (*CSVDir, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: csv-dir source requires a path", types.ErrConfiguration)
	}
	c := &CSVDir{
		dir:           cfg.Path,
		suffix:        cfg.FileSuffix,
		errorColumn:   cfg.ErrorColumn,
		warningColumn: cfg.WarningColumn,
		attempts:      uint(cfg.Retries) + 1,
		delay:         initialBackoff,
	}
	if c.errorColumn == "" {
		c.errorColumn = types.DefaultErrorColumn
	}
	if c.warningColumn == "" {
		c.warningColumn = types.DefaultWarningColumn
	}
	return c, nil
}

// Systems lists system identifiers in file-name order. A missing or
// unreadable directory wraps types.ErrSourceUnavailable.
func (c *CSVDir) Systems(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}

	wantSuffix := c.suffix + ".csv"
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, wantSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	systems := make([]string, 0, len(names))
	for _, name := range names {
		id := strings.TrimSuffix(name, wantSuffix)
		if id == "" {
			continue
		}
		systems = append(systems, id)
	}
	return systems, nil
}

// Stats sums the configured columns of the system's file.
func (c *CSVDir) Stats(ctx context.Context, systemID string) (types.SystemStats, error) {
	path := filepath.Join(c.dir, systemID+c.suffix+".csv")

	stats, err := retry.DoWithData(func() (types.SystemStats, error) {
		if err := ctx.Err(); err != nil {
			return types.SystemStats{}, err
		}
		return c.readFile(systemID, path)
	}, retry.Context(ctx), retry.RetryIf(retryable(ctx)),
		retry.Attempts(c.attempts), retry.Delay(c.delay), retry.MaxDelay(maxBackoff))
	if err != nil {
		return types.SystemStats{}, fmt.Errorf("%w: %s: %v", types.ErrStatSource, systemID, err)
	}
	return stats, nil
}

func (c *CSVDir) readFile(systemID, path string) (types.SystemStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.SystemStats{}, err
	}
	defer f.Close()

	stats, err := sumColumns(f, systemID, c.errorColumn, c.warningColumn)
	if err != nil {
		return types.SystemStats{}, malformedError{err: err}
	}
	return stats, nil
}

// sumColumns totals the two named columns of a CSV stream.
func sumColumns(r io.Reader, systemID, errorColumn, warningColumn string) (types.SystemStats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return types.SystemStats{}, fmt.Errorf("empty file")
		}
		return types.SystemStats{}, fmt.Errorf("failed to read header: %w", err)
	}

	errIdx, warnIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case errorColumn:
			errIdx = i
		case warningColumn:
			warnIdx = i
		}
	}
	if errIdx < 0 {
		return types.SystemStats{}, fmt.Errorf("column %q not found", errorColumn)
	}
	if warnIdx < 0 {
		return types.SystemStats{}, fmt.Errorf("column %q not found", warningColumn)
	}

	stats := types.SystemStats{SystemID: systemID}
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return types.SystemStats{}, fmt.Errorf("line %d: %w", line, err)
		}

		e, err := cellValue(row, errIdx)
		if err != nil {
			return types.SystemStats{}, fmt.Errorf("line %d column %q: %w", line, errorColumn, err)
		}
		w, err := cellValue(row, warnIdx)
		if err != nil {
			return types.SystemStats{}, fmt.Errorf("line %d column %q: %w", line, warningColumn, err)
		}
		stats.ErrorCount += e
		stats.WarningCount += w
	}
	return stats, nil
}

// cellValue reads a count cell. Integers, booleans and whole floats are
// accepted; empty cells count as zero.
func cellValue(row []string, idx int) (int64, error) {
	if idx >= len(row) {
		return 0, nil
	}
	v := strings.TrimSpace(row[idx])
	if v == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	if b, err := strconv.ParseBool(v); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, fmt.Errorf("invalid count %q", v)
	}
	return int64(f), nil
}
