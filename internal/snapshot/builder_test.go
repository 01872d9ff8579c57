package snapshot

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
)

// flatLine renders one extract line with the given columns set.
func flatLine(values map[string]string) string {
	fields := make([]string, len(FlatColumns))
	for i, c := range FlatColumns {
		fields[i] = values[c]
	}
	return strings.Join(fields, "\t")
}

func readRows(t *testing.T, data []byte) []Row {
	t.Helper()
	reader := parquet.NewGenericReader[Row](bytes.NewReader(data))
	defer reader.Close()

	rows := make([]Row, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && n != len(rows) {
		t.Fatalf("read rows: %v", err)
	}
	return rows[:n]
}

func TestBuild_KeepsSubsetAndNormalizes(t *testing.T) {
	input := strings.Join([]string{
		flatLine(map[string]string{
			"ODINO": "10001", "MAKETXT": "honda", "MODELTXT": "Civic", "YEARTXT": "2020",
			"COMPDESC": "SERVICE BRAKES", "CDESCR": "BRAKES FAILED", "STATE": "CA",
			"CRASH": "Y", "FIRE": "N", "INJURED": "1", "DEATHS": "0", "FAILDATE": "20210315",
			"CITY": "FRESNO",
		}),
		flatLine(map[string]string{"ODINO": "10002", "MAKETXT": "HONDA", "MODELTXT": "CIVIC", "YEARTXT": "2020"}),
	}, "\n") + "\n"

	var out bytes.Buffer
	stats, err := Build(context.Background(), strings.NewReader(input), &out, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Lines != 2 || stats.Written != 2 || stats.Skipped != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	rows := readRows(t, out.Bytes())
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	first := rows[0]
	if first.MAKETXT != "HONDA" || first.MODELTXT != "CIVIC" {
		t.Errorf("make/model not upper-cased: %+v", first)
	}
	if first.CRASH != "Y" || first.INJURED != "1" || first.FAILDATE != "20210315" {
		t.Errorf("unexpected row: %+v", first)
	}
	if rows[1].CDESCR != "" {
		t.Errorf("missing summary must read back empty, got %q", rows[1].CDESCR)
	}
}

func TestBuild_SkipsOverlongAndPadsShortLines(t *testing.T) {
	overlong := flatLine(map[string]string{"ODINO": "1"}) + "\textra"
	short := "9\t10003\tMFR\tFORD\tF-150\t2018"

	input := overlong + "\n" + short + "\r\n\n"

	var out bytes.Buffer
	stats, err := Build(context.Background(), strings.NewReader(input), &out, Options{BatchSize: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Skipped != 1 || stats.Written != 1 || stats.Lines != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	rows := readRows(t, out.Bytes())
	if len(rows) != 1 || rows[0].ODINO != "10003" || rows[0].MODELTXT != "F-150" || rows[0].YEARTXT != "2018" {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func TestBuild_DecodesLatin1(t *testing.T) {
	line := flatLine(map[string]string{"ODINO": "1", "CDESCR": "CAF\xc9 PARKING"})

	var out bytes.Buffer
	if _, err := Build(context.Background(), strings.NewReader(line), &out, Options{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := readRows(t, out.Bytes())
	if len(rows) != 1 || rows[0].CDESCR != "CAFÉ PARKING" {
		t.Errorf("unexpected summary: %q", rows[0].CDESCR)
	}
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	input := flatLine(map[string]string{"ODINO": "1"}) + "\n" + flatLine(map[string]string{"ODINO": "2"})
	var out bytes.Buffer
	if _, err := Build(ctx, strings.NewReader(input), &out, Options{BatchSize: 1}); err == nil {
		t.Fatal("expected cancellation error")
	}
}
