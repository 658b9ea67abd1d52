package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/orchid/internal/codeword"
	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/database"
	"github.com/kozaktomas/orchid/internal/database/mock"
	"github.com/kozaktomas/orchid/internal/trainer"
	"github.com/kozaktomas/orchid/internal/web/middleware"
	"go.uber.org/zap"
)

const testSession = "session-a"

// testConfig creates a minimal config with a temporary media directory
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Media:      config.MediaConfig{Dir: t.TempDir()},
		Classifier: config.ClassifierConfig{MaxError: 0.00001},
	}
}

// testStore holds the mock repositories registered for a test
type testStore struct {
	photos     *mock.MockPhotoWriter
	identities *mock.MockIdentityWriter
	phenotypes *mock.MockPhenotypeWriter
}

// setupStore registers mock repositories as the database backend
func setupStore(t *testing.T) *testStore {
	t.Helper()
	s := &testStore{
		photos:     mock.NewMockPhotoWriter(),
		identities: mock.NewMockIdentityWriter(),
		phenotypes: mock.NewMockPhenotypeWriter(),
	}
	database.RegisterPostgresBackend(
		func() database.PhotoWriter { return s.photos },
		func() database.IdentityWriter { return s.identities },
		func() database.PhenotypeWriter { return s.phenotypes },
	)
	t.Cleanup(database.ResetForTesting)
	return s
}

// fakeIdentifier returns a fixed identification and counts calls
type fakeIdentifier struct {
	mu     sync.Mutex
	calls  int
	err    error
	result trainer.Identification
}

func newFakeIdentifier() *fakeIdentifier {
	return &fakeIdentifier{result: trainer.Identification{
		Rank: "species",
		Classes: []codeword.Ranked{
			{Class: "Cypripedium calceolus", Value: 0.9},
			{Class: "Cypripedium reginae", Value: -0.5},
		},
		Phenotype: []float64{0.2, 0.4, 0.6},
	}}
}

func (f *fakeIdentifier) ClassifyImage(img image.Image, name string, maxError float64) (*trainer.Identification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	res := f.result
	return &res, nil
}

func (f *fakeIdentifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testPNG encodes a small two-color image
func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := range 24 {
		for x := range 32 {
			c := color.RGBA{R: 240, G: 240, B: 240, A: 255}
			if x > 8 && x < 24 && y > 6 && y < 18 {
				c = color.RGBA{R: 150, G: 40, B: 120, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// addStoredPhoto writes a PNG to the media directory and records it
func addStoredPhoto(t *testing.T, cfg *config.Config, s *testStore, session string) database.Photo {
	t.Helper()
	p := s.photos.AddPhoto(database.Photo{
		OriginalName: "orchid.png",
		ContentType:  "image/png",
		Width:        32,
		Height:       24,
		SessionID:    session,
		CreatedAt:    time.Now(),
	})
	p.FileName = "photo-" + strconv.FormatInt(p.ID, 10) + ".png"
	s.photos.AddPhoto(p)
	if err := os.WriteFile(filepath.Join(cfg.Media.Dir, p.FileName), testPNG(t), 0o644); err != nil {
		t.Fatalf("failed to write photo: %v", err)
	}
	return p
}

// requestWithSession creates a request carrying the given visitor session
func requestWithSession(method, path string, body io.Reader, session string) *http.Request {
	req := httptest.NewRequest(method, path, body)
	if session == "" {
		return req
	}
	s := &middleware.Session{ID: session, CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	return req.WithContext(middleware.SetSessionInContext(req.Context(), s))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
