package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"blobvault/internal/model"
	"blobvault/internal/service"
	serviceMocks "blobvault/internal/service/mocks"
	"blobvault/internal/store"
	"blobvault/internal/validate"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	part.Write([]byte(content))
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestUpload(t *testing.T) {
	mockSvc := new(serviceMocks.MockBlobService)
	app := fiber.New()
	app.Post("/upload", Upload(mockSvc, true, nil))

	t.Run("novel content", func(t *testing.T) {
		body, ct := multipartBody(t, "report.json", `{"a":1}`)

		blob := &model.Blob{ID: 1, Name: "report.json", Digest: "abc", Size: 7}
		mockSvc.On("Ingest", mock.Anything, mock.Anything, mock.MatchedBy(func(opt service.IngestOptions) bool {
			return opt.Filename == "report.json" && opt.Compress
		})).Return(&service.IngestResult{Blob: blob}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, float64(1), result["id"])
		assert.Equal(t, "abc", result["sha256"])
		assert.NotContains(t, result, "note")
		mockSvc.AssertExpectations(t)
	})

	t.Run("duplicate content", func(t *testing.T) {
		body, ct := multipartBody(t, "report.json", `{"a":1}`)

		blob := &model.Blob{ID: 1, Digest: "abc"}
		mockSvc.On("Ingest", mock.Anything, mock.Anything, mock.Anything).
			Return(&service.IngestResult{Blob: blob, Duplicate: true}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, "duplicate", result["note"])
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_REQUIRED", res.Error.Code)
	})

	t.Run("disallowed extension", func(t *testing.T) {
		body, ct := multipartBody(t, "payload.exe", "MZ")

		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_FILE_EXTENSION", res.Error.Code)
		mockSvc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything, mock.MatchedBy(func(opt service.IngestOptions) bool {
			return opt.Filename == "payload.exe"
		}))
	})

	t.Run("form flags override compression and validation", func(t *testing.T) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "raw.json")
		require.NoError(t, err)
		part.Write([]byte(`{"a":`))
		writer.WriteField("compress", "0")
		writer.WriteField("skip_validation", "true")
		writer.Close()

		blob := &model.Blob{ID: 7, Digest: "raw"}
		mockSvc.On("Ingest", mock.Anything, mock.Anything, mock.MatchedBy(func(opt service.IngestOptions) bool {
			return !opt.Compress && opt.SkipValidation && opt.Filename == "raw.json"
		})).Return(&service.IngestResult{Blob: blob}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("structural violation", func(t *testing.T) {
		body, ct := multipartBody(t, "deep.json", `{"a":1}`)

		mockSvc.On("Ingest", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &validate.Violation{Reason: validate.ReasonDepth, Limit: 50}).Once()

		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_JSON", res.Error.Code)
	})

	t.Run("oversize", func(t *testing.T) {
		body, ct := multipartBody(t, "big.json", `{"a":1}`)

		mockSvc.On("Ingest", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, store.ErrSizeExceeded).Once()

		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_TOO_LARGE", res.Error.Code)
	})
}

func TestDownload(t *testing.T) {
	mockSvc := new(serviceMocks.MockBlobService)
	app := fiber.New()
	app.Get("/download/:id", Download(mockSvc))

	t.Run("streams the archive as attachment", func(t *testing.T) {
		blob := &model.Blob{ID: 1, Filename: "1700000000-abc.json.gz"}
		rc := io.NopCloser(strings.NewReader("gzip-bytes"))
		mockSvc.On("OpenArchive", mock.Anything, int64(1)).Return(blob, rc, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/download/1", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), blob.Filename)

		data, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "gzip-bytes", string(data))
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/download/abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_ID", res.Error.Code)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("OpenArchive", mock.Anything, int64(9)).
			Return(nil, nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/download/9", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestGetJSON(t *testing.T) {
	mockSvc := new(serviceMocks.MockBlobService)
	app := fiber.New()
	app.Get("/json/:id", GetJSON(mockSvc))

	t.Run("streams decompressed content", func(t *testing.T) {
		blob := &model.Blob{ID: 1, Filename: "f.json.gz"}
		rc := io.NopCloser(strings.NewReader(`{"a":1}`))
		mockSvc.On("OpenContent", mock.Anything, int64(1)).Return(blob, rc, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/json/1", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "application/json")

		data, _ := io.ReadAll(resp.Body)
		assert.Equal(t, `{"a":1}`, string(data))
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("OpenContent", mock.Anything, int64(9)).
			Return(nil, nil, service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/json/9", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestListBlobs(t *testing.T) {
	mockSvc := new(serviceMocks.MockBlobService)
	app := fiber.New()
	app.Get("/list", ListBlobs(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("List", mock.Anything).Return([]model.Blob{
			{ID: 2, Name: "newer"},
			{ID: 1, Name: "older"},
		}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/list", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result struct {
			Blobs []model.Blob `json:"blobs"`
			Count int          `json:"count"`
		}
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Blobs, 2)
		assert.Equal(t, 2, result.Count)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything).Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/list", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})
}

func TestDeleteBlob(t *testing.T) {
	mockSvc := new(serviceMocks.MockBlobService)
	app := fiber.New()
	app.Delete("/delete/:id", DeleteBlob(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, int64(1)).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/delete/1", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, float64(1), body["deleted"])
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, int64(9)).Return(service.ErrNotFound).Once()

		req := httptest.NewRequest(http.MethodDelete, "/delete/9", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestCreateKey(t *testing.T) {
	mockSvc := new(serviceMocks.MockAPIKeyService)
	app := fiber.New()
	app.Post("/admin/keys", CreateKey(mockSvc))

	post := func(body string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/admin/keys", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)
		return resp
	}

	t.Run("success returns the plaintext once", func(t *testing.T) {
		issued := &service.IssuedKey{
			Key:       &model.APIKey{ID: 1, Name: "ci-pipeline", CreatedAt: time.Now().UTC(), Active: true},
			Plaintext: "plaintext-token",
		}
		mockSvc.On("Issue", mock.Anything, "ci-pipeline").Return(issued, nil).Once()

		resp := post(`{"name":"ci-pipeline"}`)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result createKeyResponse
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, int64(1), result.ID)
		assert.Equal(t, "plaintext-token", result.Key)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid name", func(t *testing.T) {
		mockSvc.On("Issue", mock.Anything, "ab").Return(nil, service.ErrKeyNameInvalid).Once()

		resp := post(`{"name":"ab"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_KEY_NAME", res.Error.Code)
	})

	t.Run("taken name", func(t *testing.T) {
		mockSvc.On("Issue", mock.Anything, "ci-pipeline").Return(nil, service.ErrKeyNameTaken).Once()

		resp := post(`{"name":"ci-pipeline"}`)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp := post(`{not json`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "INVALID_BODY", res.Error.Code)
	})
}

func TestListKeys(t *testing.T) {
	mockSvc := new(serviceMocks.MockAPIKeyService)
	app := fiber.New()
	app.Get("/admin/keys", ListKeys(mockSvc))

	mockSvc.On("List", mock.Anything).Return([]model.APIKey{
		{ID: 1, Name: "alpha", Active: true},
		{ID: 2, Name: "beta", Active: false},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Keys  []map[string]any `json:"keys"`
		Count int              `json:"count"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	require.Len(t, result.Keys, 2)
	assert.Equal(t, 2, result.Count)
	// Hashes must never serialize
	assert.NotContains(t, result.Keys[0], "key_hash")
}

func TestRevokeKey(t *testing.T) {
	mockSvc := new(serviceMocks.MockAPIKeyService)
	app := fiber.New()
	app.Delete("/admin/keys/:id", RevokeKey(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Revoke", mock.Anything, int64(1)).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/admin/keys/1", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, true, body["deleted"])
		assert.Equal(t, float64(1), body["key_id"])
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Revoke", mock.Anything, int64(9)).Return(service.ErrKeyNotFound).Once()

		req := httptest.NewRequest(http.MethodDelete, "/admin/keys/9", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
