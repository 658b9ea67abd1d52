package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/orchid/internal/constants"
	"github.com/kozaktomas/orchid/internal/database"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		query          string
		expectedLimit  int
		expectedOffset int
	}{
		{"", constants.DefaultPageSize, 0},
		{"?limit=10&offset=20", 10, 20},
		{"?limit=0", constants.DefaultPageSize, 0},
		{"?limit=-5&offset=-1", constants.DefaultPageSize, 0},
		{"?limit=100000", constants.MaxPageSize, 0},
		{"?limit=abc&offset=xyz", constants.DefaultPageSize, 0},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/photos"+tc.query, nil)
			limit, offset := parsePage(req)
			if limit != tc.expectedLimit || offset != tc.expectedOffset {
				t.Errorf("parsePage(%q) = (%d, %d); want (%d, %d)", tc.query, limit, offset, tc.expectedLimit, tc.expectedOffset)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": tc.value})
			got, err := parseID(req, "id")
			if (err != nil) != tc.wantErr {
				t.Fatalf("parseID(%q) error = %v, wantErr %v", tc.value, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("parseID(%q) = %d; want %d", tc.value, got, tc.want)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\nb\rc"); got != "abc" {
		t.Errorf("expected 'abc', got %q", got)
	}
}

func TestHealthCheck(t *testing.T) {
	database.ResetForTesting()

	recorder := httptest.NewRecorder()
	HealthCheck(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", result["status"])
	}
	if result["database"] != false {
		t.Errorf("expected database false without a backend, got %v", result["database"])
	}
}

func TestStorageUnavailable(t *testing.T) {
	database.ResetForTesting()
	handler := NewPhotosHandler(testConfig(t), testLogger())

	recorder := httptest.NewRecorder()
	handler.List(recorder, requestWithSession(http.MethodGet, "/api/v1/photos", nil, testSession))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, errStorageUnavailable)
}
