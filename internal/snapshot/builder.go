package snapshot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

// DefaultBatchSize is the number of rows handed to the parquet writer at once.
const DefaultBatchSize = 10000

// Options tunes a conversion run.
type Options struct {
	BatchSize int
	Logger    *zap.Logger
}

// Stats reports what a conversion did.
type Stats struct {
	Lines   int // non-empty input lines
	Written int // rows in the snapshot
	Skipped int // lines with more fields than the layout
}

// Build reads the tab-delimited extract from in and writes the snapshot to out.
// Lines with too many fields are skipped; short lines are padded with empty fields.
// Lines that are not valid UTF-8 are decoded as Latin-1.
func Build(ctx context.Context, in io.Reader, out io.Writer, opts Options) (Stats, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	w := parquet.NewGenericWriter[Row](out, parquet.Compression(&parquet.Snappy))
	latin1 := charmap.ISO8859_1.NewDecoder()
	br := bufio.NewReaderSize(in, 1<<20)

	var stats Stats
	batch := make([]Row, 0, opts.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := w.Write(batch); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		stats.Written += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return stats, fmt.Errorf("read input: %w", readErr)
		}

		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			stats.Lines++
			if !utf8.ValidString(line) {
				if decoded, err := latin1.String(line); err == nil {
					line = decoded
				}
			}

			fields := strings.Split(line, "\t")
			switch {
			case len(fields) > len(FlatColumns):
				stats.Skipped++
			default:
				for len(fields) < len(FlatColumns) {
					fields = append(fields, "")
				}
				batch = append(batch, rowFromFields(fields))
			}
		}

		if len(batch) >= opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return stats, fmt.Errorf("snapshot build: %w", err)
			}
			if err := flush(); err != nil {
				return stats, err
			}
			logger.Debug("Snapshot batch written", zap.Int("rows", stats.Written))
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}
	if err := w.Close(); err != nil {
		return stats, fmt.Errorf("close parquet writer: %w", err)
	}

	logger.Info("Snapshot written",
		zap.Int("lines", stats.Lines),
		zap.Int("rows", stats.Written),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}
