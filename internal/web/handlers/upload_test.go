package handlers

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type uploadFile struct {
	name    string
	content []byte
}

func multipartUpload(t *testing.T, files ...uploadFile) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(f.content); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &body, mw.FormDataContentType()
}

type uploadResult struct {
	Uploaded   int             `json:"uploaded"`
	Photos     []PhotoResponse `json:"photos"`
	Duplicates []Duplicate     `json:"duplicates"`
	Errors     []UploadError   `json:"errors"`
}

func TestUploadHandler_Upload(t *testing.T) {
	cfg := testConfig(t)
	store := setupStore(t)
	handler := NewUploadHandler(cfg, testLogger())

	img := testPNG(t)
	body, contentType := multipartUpload(t,
		uploadFile{"Orchis Mascula.PNG", img},
		uploadFile{"copy.png", img},
		uploadFile{"notes.txt", []byte("not an image")},
	)
	req := requestWithSession(http.MethodPost, "/api/v1/photos", body, testSession)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	handler.Upload(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var result uploadResult
	parseJSONResponse(t, recorder, &result)

	if result.Uploaded != 2 {
		t.Fatalf("expected 2 uploaded photos, got %d", result.Uploaded)
	}
	if result.Photos[0].OriginalName != "Orchis Mascula.PNG" || result.Photos[0].Width != 32 || result.Photos[0].Height != 24 {
		t.Errorf("unexpected first photo %+v", result.Photos[0])
	}
	if result.Photos[0].ContentType != "image/png" {
		t.Errorf("expected sniffed content type image/png, got %s", result.Photos[0].ContentType)
	}
	if diff := cmp.Diff([]Duplicate{{PhotoID: 2, DuplicateOf: 1, Distance: 0}}, result.Duplicates); diff != "" {
		t.Errorf("duplicates mismatch (-want +got):\n%s", diff)
	}
	if len(result.Errors) != 1 || result.Errors[0].File != "notes.txt" || result.Errors[0].Error != "not an image" {
		t.Errorf("unexpected errors %+v", result.Errors)
	}

	stored, _ := store.photos.Get(t.Context(), 1)
	if stored == nil || stored.SessionID != testSession {
		t.Fatalf("expected photo owned by the session, got %+v", stored)
	}
	if filepath.Ext(stored.FileName) != ".png" {
		t.Errorf("expected lower case extension, got %s", stored.FileName)
	}
	for _, name := range []string{stored.FileName, stored.ThumbName()} {
		if _, err := os.Stat(filepath.Join(cfg.Media.Dir, name)); err != nil {
			t.Errorf("expected %s in media dir: %v", name, err)
		}
	}
}

func TestUploadHandler_NoFiles(t *testing.T) {
	setupStore(t)
	handler := NewUploadHandler(testConfig(t), testLogger())

	body, contentType := multipartUpload(t)
	req := requestWithSession(http.MethodPost, "/api/v1/photos", body, testSession)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	handler.Upload(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "no files provided")
}

func TestUploadHandler_NotMultipart(t *testing.T) {
	setupStore(t)
	handler := NewUploadHandler(testConfig(t), testLogger())

	req := requestWithSession(http.MethodPost, "/api/v1/photos", bytes.NewReader([]byte("{}")), testSession)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.Upload(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "failed to parse multipart form")
}

func TestUploadHandler_AllRejected(t *testing.T) {
	cfg := testConfig(t)
	setupStore(t)
	handler := NewUploadHandler(cfg, testLogger())

	// image extension, text content
	body, contentType := multipartUpload(t, uploadFile{"fake.jpg", []byte("hello world")})
	req := requestWithSession(http.MethodPost, "/api/v1/photos", body, testSession)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	handler.Upload(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)

	var result uploadResult
	parseJSONResponse(t, recorder, &result)
	if result.Uploaded != 0 || len(result.Errors) != 1 {
		t.Errorf("unexpected result %+v", result)
	}
	entries, _ := os.ReadDir(cfg.Media.Dir)
	if len(entries) != 0 {
		t.Errorf("expected rejected upload to leave no files, found %d", len(entries))
	}
}

func TestUploadHandler_CreateErrorCleansUp(t *testing.T) {
	cfg := testConfig(t)
	store := setupStore(t)
	store.photos.CreateError = errors.New("insert failed")
	handler := NewUploadHandler(cfg, testLogger())

	body, contentType := multipartUpload(t, uploadFile{"orchid.png", testPNG(t)})
	req := requestWithSession(http.MethodPost, "/api/v1/photos", body, testSession)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	handler.Upload(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	entries, _ := os.ReadDir(cfg.Media.Dir)
	if len(entries) != 0 {
		t.Errorf("expected files to be removed after a failed insert, found %d", len(entries))
	}
}
