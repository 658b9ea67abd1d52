package trainer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kozaktomas/orchid/internal/codeword"
	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/taxonomy"
	"github.com/kozaktomas/orchid/internal/traindata"
)

const trainerYAML = `
features:
  color_histograms:
    bgr: [2, 2, 2]
class_query:
  class: species
  where:
    genus: Cypripedium
ann:
  hidden_neurons: 3
  epochs: 3000
  error: 0.0001
  activation_function_hidden: SIGMOID_SYMMETRIC
  activation_function_output: SIGMOID_SYMMETRIC
`

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func writeSolid(t *testing.T, path string, c color.Color) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := range 16 {
		for x := range 16 {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

type fixture struct {
	cfg    *config.TrainerConfig
	photos string
	db     string
	dir    string
}

// newFixture builds a photo tree of red calceolus and blue parviflorum
// photos, one unreadable photo and a photo outside the queried genus.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	photos := filepath.Join(dir, "photos")

	writeSolid(t, filepath.Join(photos, "Cypripedium/Obtusipetala/calceolus/1.png"), red)
	writeSolid(t, filepath.Join(photos, "Cypripedium/Obtusipetala/calceolus/2.png"), red)
	writeSolid(t, filepath.Join(photos, "Cypripedium/Obtusipetala/parviflorum/1.png"), blue)
	writeSolid(t, filepath.Join(photos, "Cypripedium/Obtusipetala/parviflorum/2.png"), blue)
	writeSolid(t, filepath.Join(photos, "Paphiopedilum/Parvisepalum/armeniacum/1.png"), red)
	broken := filepath.Join(photos, "Cypripedium/Obtusipetala/parviflorum/3.jpg")
	if err := os.WriteFile(broken, []byte("not a photo"), 0o644); err != nil {
		t.Fatal(err)
	}

	dbPath := filepath.Join(dir, "photos.db")
	db, err := taxonomy.Create(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := db.Import(context.Background(), photos, nil); err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	db.Close()

	cfg, err := config.ParseTrainer([]byte(trainerYAML))
	if err != nil {
		t.Fatalf("ParseTrainer failed: %v", err)
	}
	return &fixture{cfg: cfg, photos: photos, db: dbPath, dir: dir}
}

func (f *fixture) export(t *testing.T) (string, *ExportResult) {
	t.Helper()
	m, err := NewMakeTrainData(f.cfg, f.photos, f.db, nil)
	if err != nil {
		t.Fatalf("NewMakeTrainData failed: %v", err)
	}
	m.Progress = io.Discard

	out := filepath.Join(f.dir, "train.tsv")
	result, err := m.Export(context.Background(), out)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	return out, result
}

func (f *fixture) train(t *testing.T, dataFile string) string {
	t.Helper()
	m, err := NewMakeANN(f.cfg, Overrides{}, nil)
	if err != nil {
		t.Fatalf("NewMakeANN failed: %v", err)
	}
	m.Seed = 7

	annFile := filepath.Join(f.dir, "orchids.ann")
	if _, err := m.Train(context.Background(), dataFile, annFile); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	return annFile
}

func TestMakeTrainData_Export(t *testing.T) {
	f := newFixture(t)
	out, result := f.export(t)

	if result.Photos != 4 || result.Classes != 2 || result.Columns != 6 {
		t.Errorf("unexpected export result %+v", result)
	}
	if len(result.Failed) != 1 || !strings.HasSuffix(result.Failed[0], "3.jpg") {
		t.Errorf("expected the broken photo to be listed as failed, got %v", result.Failed)
	}

	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if lines[0] != "ID\tb:1\tb:2\tg:1\tg:2\tr:1\tr:2\tOUT:1\tOUT:2" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "Cypripedium/Obtusipetala/calceolus/1.png\t1\t0\t1\t0\t0\t1\t1\t-1" {
		t.Errorf("unexpected first row %q", lines[1])
	}

	data, err := traindata.ReadFile(out, "OUT:")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	expected := []string{
		"Cypripedium/Obtusipetala/calceolus/1.png",
		"Cypripedium/Obtusipetala/calceolus/2.png",
		"Cypripedium/Obtusipetala/parviflorum/1.png",
		"Cypripedium/Obtusipetala/parviflorum/2.png",
	}
	if diff := cmp.Diff(expected, data.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestMakeTrainData_CustomPrefix(t *testing.T) {
	f := newFixture(t)
	f.cfg.Data.DependentPrefix = "CLASS:"
	out, _ := f.export(t)

	data, err := traindata.ReadFile(out, "CLASS:")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if data.NumOutput() != 2 {
		t.Errorf("expected 2 output columns, got %d", data.NumOutput())
	}
}

func TestMakeTrainData_NoImages(t *testing.T) {
	f := newFixture(t)
	f.cfg.ClassQuery.Where = map[string]string{"genus": "Phragmipedium"}

	out, result := f.export(t)
	if result.Photos != 0 {
		t.Errorf("expected no photos, got %d", result.Photos)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("expected no training data file")
	}
}

func TestNewMakeTrainData_Validation(t *testing.T) {
	f := newFixture(t)

	if _, err := NewMakeTrainData(f.cfg, filepath.Join(f.dir, "missing"), f.db, nil); err == nil {
		t.Error("expected error for missing photo directory")
	}
	if _, err := NewMakeTrainData(f.cfg, f.photos, filepath.Join(f.dir, "missing.db"), nil); err == nil {
		t.Error("expected error for missing database")
	}

	f.cfg.ClassQuery = nil
	m, err := NewMakeTrainData(f.cfg, f.photos, f.db, nil)
	if err != nil {
		t.Fatalf("NewMakeTrainData failed: %v", err)
	}
	if _, err := m.Export(context.Background(), filepath.Join(f.dir, "x.tsv")); !errors.Is(err, config.ErrConfiguration) {
		t.Errorf("expected configuration error without class_query, got %v", err)
	}
}

func TestMakeANN_Overrides(t *testing.T) {
	cfg, _ := config.ParseTrainer([]byte(trainerYAML))
	epochs, desired := 10, 0.5

	m, err := NewMakeANN(cfg, Overrides{Epochs: &epochs, Error: &desired}, nil)
	if err != nil {
		t.Fatalf("NewMakeANN failed: %v", err)
	}
	p := m.Params()
	if p.Epochs != 10 || p.Error != 0.5 {
		t.Errorf("overrides not applied: %+v", p)
	}
	if p.HiddenNeurons != 3 {
		t.Errorf("expected 3 hidden neurons from the configuration, got %d", p.HiddenNeurons)
	}
}

func TestMakeANN_InvalidActivation(t *testing.T) {
	f := newFixture(t)
	out, _ := f.export(t)
	f.cfg.ANN.ActivationFunctionHidden = "GAUSSIAN"

	m, _ := NewMakeANN(f.cfg, Overrides{}, nil)
	_, err := m.Train(context.Background(), out, filepath.Join(f.dir, "x.ann"))
	if !errors.Is(err, config.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestTrainTestClassify(t *testing.T) {
	f := newFixture(t)
	dataFile, _ := f.export(t)
	annFile := f.train(t, dataFile)

	tester, err := NewTestANN(f.cfg, nil)
	if err != nil {
		t.Fatalf("NewTestANN failed: %v", err)
	}
	mse, err := tester.Test(annFile, dataFile)
	if err != nil {
		t.Fatalf("Test failed: %v", err)
	}
	if mse > 0.01 {
		t.Errorf("expected a low test error, got %g", mse)
	}

	resultsFile := filepath.Join(f.dir, "results.tsv")
	result, err := tester.ExportResults(context.Background(), resultsFile, f.db, 0.01)
	if err != nil {
		t.Fatalf("ExportResults failed: %v", err)
	}
	if diff := cmp.Diff(&TestResult{Total: 4, Correct: 4, Fraction: 1}, result); diff != "" {
		t.Errorf("test result mismatch (-want +got):\n%s", diff)
	}

	content, _ := os.ReadFile(resultsFile)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if lines[0] != "ID\tClass\tClassification\tMatch" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "Cypripedium/Obtusipetala/calceolus/1.png\tcalceolus\tcalceolus\t+" {
		t.Errorf("unexpected row %q", lines[1])
	}
	if lines[len(lines)-1] != "\t\t\t1.000" {
		t.Errorf("unexpected fraction row %q", lines[len(lines)-1])
	}

	classifier, err := NewImageClassifier(context.Background(), f.cfg, annFile, f.db)
	if err != nil {
		t.Fatalf("NewImageClassifier failed: %v", err)
	}
	photo := filepath.Join(f.dir, "new.png")
	writeSolid(t, photo, blue)

	ranked, err := classifier.Classify(photo, 0.01)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(ranked) == 0 || ranked[0].Class != "parviflorum" {
		t.Errorf("expected parviflorum, got %v", codeword.Names(ranked))
	}
}

func TestExportResults_WithoutTest(t *testing.T) {
	cfg, _ := config.ParseTrainer([]byte(trainerYAML))
	tester, _ := NewTestANN(cfg, nil)

	_, err := tester.ExportResults(context.Background(), "results.tsv", "photos.db", 0.01)
	if !errors.Is(err, ErrNoTestData) {
		t.Errorf("expected ErrNoTestData, got %v", err)
	}
}

func TestExportResults_CodewordWidthMismatch(t *testing.T) {
	f := newFixture(t)
	dataFile, _ := f.export(t)
	annFile := f.train(t, dataFile)

	tester, _ := NewTestANN(f.cfg, nil)
	if _, err := tester.Test(annFile, dataFile); err != nil {
		t.Fatalf("Test failed: %v", err)
	}

	// Without the genus filter the query selects three species.
	f.cfg.ClassQuery.Where = nil
	_, err := tester.ExportResults(context.Background(), filepath.Join(f.dir, "r.tsv"), f.db, 0.01)
	if !errors.Is(err, codeword.ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestNewImageClassifier_ClassMismatch(t *testing.T) {
	f := newFixture(t)
	dataFile, _ := f.export(t)
	annFile := f.train(t, dataFile)

	f.cfg.ClassQuery.Where = nil
	_, err := NewImageClassifier(context.Background(), f.cfg, annFile, f.db)
	if !errors.Is(err, codeword.ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestNewImageClassifier_MissingNetwork(t *testing.T) {
	f := newFixture(t)
	if _, err := NewImageClassifier(context.Background(), f.cfg, filepath.Join(f.dir, "missing.ann"), f.db); err == nil {
		t.Error("expected error for missing network file")
	}
}
