// Package complaints serves complaint batches for a vehicle from the columnar snapshot.
// The snapshot is read once and held as an immutable in-memory handle.
package complaints

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/defectscope/defectscope/internal/domain/complaint"
	"github.com/defectscope/defectscope/internal/domain/vehicle"
	"github.com/defectscope/defectscope/internal/snapshot"
)

const readBatch = 1000

// Snapshot is a read-only view of the complaint dataset keyed by vehicle.
type Snapshot struct {
	byVehicle map[string][]snapshot.Row
	rows      int
}

// Open loads the snapshot file at path.
func Open(path string, logger *zap.Logger) (*Snapshot, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}

	start := time.Now()
	s, err := Load(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}

	logger.Info("Complaint snapshot loaded",
		zap.String("path", path),
		zap.Int("rows", s.rows),
		zap.Int("vehicles", len(s.byVehicle)),
		zap.Duration("duration", time.Since(start)),
	)
	return s, nil
}

// Load reads a snapshot from any random-access source.
func Load(r io.ReaderAt, size int64) (*Snapshot, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	cols := resolveColumns(pf)
	if cols.make < 0 || cols.model < 0 || cols.year < 0 {
		return nil, errors.New("snapshot is missing make, model or year columns")
	}

	s := &Snapshot{byVehicle: make(map[string][]snapshot.Row)}
	buf := make([]parquet.Row, readBatch)

	for _, rg := range pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		for {
			n, readErr := rows.ReadRows(buf)
			for i := range n {
				row := cols.decode(buf[i])
				key := vehicle.New(row.MAKETXT, row.MODELTXT, row.YEARTXT).Key()
				s.byVehicle[key] = append(s.byVehicle[key], row)
				s.rows++
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return nil, fmt.Errorf("read rows: %w", readErr)
			}
		}
	}

	return s, nil
}

// Len returns the number of complaints in the snapshot.
func (s *Snapshot) Len() int { return s.rows }

// Complaints returns the normalized complaints whose make, model and year match exactly,
// in snapshot order.
func (s *Snapshot) Complaints(_ context.Context, v vehicle.Vehicle) ([]complaint.Record, error) {
	rows := s.byVehicle[vehicle.New(v.Make, v.Model, v.Year).Key()]
	out := make([]complaint.Record, len(rows))
	for i, r := range rows {
		out[i] = toRaw(r).Normalize()
	}
	return out, nil
}

// Ping reports an empty dataset as unhealthy.
func (s *Snapshot) Ping(_ context.Context) error {
	if s.rows == 0 {
		return errors.New("complaint snapshot is empty")
	}
	return nil
}

func toRaw(r snapshot.Row) complaint.Raw {
	return complaint.Raw{
		ComplaintID: complaint.Text(r.ODINO),
		Date:        complaint.Text(r.FAILDATE),
		Component:   complaint.Text(r.COMPDESC),
		Summary:     complaint.Text(r.CDESCR),
		State:       complaint.Text(r.STATE),
		Crash:       complaint.Text(r.CRASH),
		Fire:        complaint.Text(r.FIRE),
		Injury:      complaint.Text(r.INJURED),
		Death:       complaint.Text(r.DEATHS),
	}
}
