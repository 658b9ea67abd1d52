package traindata

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAppend_RejectsWrongWidth(t *testing.T) {
	data := New(3, 2)

	if err := data.Append([]float64{1, 2, 3}, []float64{1, -1}, "a.jpg"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	tests := []struct {
		name   string
		input  []float64
		output []float64
	}{
		{"short input", []float64{1, 2}, []float64{1, -1}},
		{"long input", []float64{1, 2, 3, 4}, []float64{1, -1}},
		{"short output", []float64{1, 2, 3}, []float64{1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := data.Append(tc.input, tc.output, "b.jpg")
			if !errors.Is(err, ErrWidthMismatch) {
				t.Errorf("expected ErrWidthMismatch, got %v", err)
			}
		})
	}

	if data.Len() != 1 {
		t.Errorf("expected 1 sample, got %d", data.Len())
	}
}

func TestFinalize_ClosesTable(t *testing.T) {
	data := New(1, 1)
	if err := data.Append([]float64{0.5}, []float64{1}, "a"); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := data.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if err := data.Append([]float64{0.5}, []float64{1}, "b"); err == nil {
		t.Error("expected error appending to finalized data")
	}
}

func TestRoundInput(t *testing.T) {
	data := New(3, 1)
	_ = data.Append([]float64{0.12345678, 1.0000004, -0.9999996}, []float64{1}, "a")

	data.RoundInput(6)

	expected := []float64{0.123457, 1, -1}
	if diff := cmp.Diff(expected, data.Inputs[0]); diff != "" {
		t.Errorf("rounded input mismatch (-want +got):\n%s", diff)
	}
	if data.Outputs[0][0] != 1 {
		t.Error("outputs must not be rounded")
	}
}

func TestWriteRead_Table(t *testing.T) {
	data := New(2, 2)
	_ = data.Append([]float64{0.25, 0.5}, []float64{1, -1}, "Cypripedium/a.jpg")
	_ = data.Append([]float64{0.75, 0.000001}, []float64{-1, 1}, "Cypripedium/b.jpg")
	header := []string{"ID", "OUTLINE:1.X", "OUTLINE:1.Y", "OUT:1", "OUT:2"}

	var buf bytes.Buffer
	if err := data.Write(&buf, header); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "ID\tOUTLINE:1.X\tOUTLINE:1.Y\tOUT:1\tOUT:2" {
		t.Errorf("unexpected header line %q", lines[0])
	}
	if lines[2] != "Cypripedium/b.jpg\t0.75\t0.000001\t-1\t1" {
		t.Errorf("unexpected row %q", lines[2])
	}

	read, err := Read(&buf, "OUT:")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if read.NumInput() != 2 || read.NumOutput() != 2 {
		t.Fatalf("expected 2x2 table, got %dx%d", read.NumInput(), read.NumOutput())
	}
	if diff := cmp.Diff(data.Labels, read.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	in, out := read.Sample(1)
	if diff := cmp.Diff([]float64{0.75, 0.000001}, in); diff != "" {
		t.Errorf("input mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{-1, 1}, out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestWrite_HeaderWidth(t *testing.T) {
	data := New(2, 1)
	err := data.Write(&bytes.Buffer{}, []string{"ID", "A", "OUT:1"})
	if !errors.Is(err, ErrWidthMismatch) {
		t.Errorf("expected ErrWidthMismatch, got %v", err)
	}
}

func TestRead_CustomPrefixAndColumnOrder(t *testing.T) {
	tsv := "CLASS:1\tA\tID\tB\n1\t0.1\tx.jpg\t0.2\n"

	data, err := Read(strings.NewReader(tsv), "CLASS:")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	in, out := data.Sample(0)
	if diff := cmp.Diff([]float64{0.1, 0.2}, in); diff != "" {
		t.Errorf("input mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1}, out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if data.Labels[0] != "x.jpg" {
		t.Errorf("expected label 'x.jpg', got '%s'", data.Labels[0])
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name    string
		tsv     string
		wantErr string
	}{
		{"empty", "", "empty"},
		{"no output columns", "ID\tA\nx\t1\n", "no output columns"},
		{"not a number", "ID\tA\tOUT:1\nx\tabc\t1\n", "invalid number"},
		{"short row", "ID\tA\tOUT:1\nx\t1\n", "expected 3 cells"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tc.tsv), "OUT:")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.tsv")
	data := New(1, 1)
	_ = data.Append([]float64{0.5}, []float64{1}, "a.jpg")

	if err := data.WriteFile(path, []string{"ID", "A", "OUT:1"}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	read, err := ReadFile(path, "OUT:")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if read.Len() != 1 {
		t.Errorf("expected 1 sample, got %d", read.Len())
	}
}

func TestReadFile_Missing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.tsv"), "OUT:"); err == nil {
		t.Error("expected error for missing file")
	}
}
