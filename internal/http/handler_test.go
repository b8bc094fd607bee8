package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toll-verify-service/internal/config"
	"toll-verify-service/internal/domain/verify"
	"toll-verify-service/internal/http/middleware"
	"toll-verify-service/internal/repository"
	"toll-verify-service/internal/service"
)

type stubRegistry struct {
	licenses map[string]*repository.License
	rcs      map[string]*repository.RegistrationCertificate
}

func (s *stubRegistry) FindLicense(_ context.Context, normalized string) (*repository.License, error) {
	return s.licenses[normalized], nil
}

func (s *stubRegistry) FindRC(_ context.Context, normalized string) (*repository.RegistrationCertificate, error) {
	return s.rcs[normalized], nil
}

type stubLogs struct {
	rows []repository.TransactionLog
}

func (s *stubLogs) AppendAudit(_ context.Context, entry *repository.TransactionLog) error {
	s.rows = append(s.rows, *entry)
	return nil
}

func (s *stubLogs) AppendAlert(_ context.Context, entry *repository.TransactionLog) error {
	s.rows = append(s.rows, *entry)
	return nil
}

func (s *stubLogs) DistinctVehicleNumbers(context.Context, string, time.Time) ([]string, error) {
	return nil, nil
}

func (s *stubLogs) FindLogs(context.Context, int, int) ([]repository.TransactionLog, error) {
	return s.rows, nil
}

func (s *stubLogs) FindDLUsage(context.Context, string, time.Time) ([]repository.TransactionLog, error) {
	return nil, nil
}

type stubRecognizer struct {
	dl       string
	dlErr    error
	plate    string
	plateRaw string
	plateErr error
	face     verify.DriverOutcome
}

func (s *stubRecognizer) ExtractDLNumber(context.Context, string) (string, error) {
	return s.dl, s.dlErr
}

func (s *stubRecognizer) ExtractPlateNumber(context.Context, string) (string, string, error) {
	return s.plate, s.plateRaw, s.plateErr
}

func (s *stubRecognizer) MatchFace(context.Context, string) verify.DriverOutcome {
	return s.face
}

func (s *stubRecognizer) EnrollSuspect(context.Context, string, string) error {
	return nil
}

type testEnv struct {
	router     *gin.Engine
	registry   *stubRegistry
	logs       *stubLogs
	recognizer *stubRecognizer
	tempDir    string
}

func newTestEnv(t *testing.T, authMiddleware gin.HandlerFunc) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := &stubRegistry{
		licenses: make(map[string]*repository.License),
		rcs:      make(map[string]*repository.RegistrationCertificate),
	}
	logs := &stubLogs{}
	recognizer := &stubRecognizer{}

	cfg := &config.Config{
		Anomaly: config.AnomalyConfig{Window: 48 * time.Hour, DistinctVehicles: 3},
		Upload:  config.UploadConfig{TempDir: t.TempDir()},
	}
	svc := service.NewVerifyService(registry, logs, recognizer, cfg.Anomaly, zerolog.Nop())
	handler := NewHandler(svc, recognizer, cfg, zerolog.Nop())

	router := gin.New()
	handler.Register(router, authMiddleware)

	return &testEnv{
		router:     router,
		registry:   registry,
		logs:       logs,
		recognizer: recognizer,
		tempDir:    cfg.Upload.TempDir,
	}
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for field, content := range files {
		part, err := writer.CreateFormFile(field, field+".jpg")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func (e *testEnv) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestVerifyRejectsEmptyRequest(t *testing.T) {
	env := newTestEnv(t, middleware.Passthrough())

	body, ct := multipartBody(t, map[string]string{"location": "NH44", "tollgate": "T1"}, nil)
	rec := env.do(t, http.MethodPost, "/api/v1/verify", body, ct)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.logs.rows, "rejected request must write nothing")
}

func TestVerifyManualIdentifiers(t *testing.T) {
	env := newTestEnv(t, middleware.Passthrough())
	name := "Asha"
	env.registry.licenses["DL123A"] = &repository.License{DLNumber: "DL123A", Status: "blacklisted", Name: &name}

	body, ct := multipartBody(t, map[string]string{
		"dl_number": "DL 123-A",
		"location":  "NH44",
		"tollgate":  "T1",
	}, nil)
	rec := env.do(t, http.MethodPost, "/api/v1/verify", body, ct)

	require.Equal(t, http.StatusOK, rec.Code)

	var result verify.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.DLData)
	assert.Equal(t, verify.StatusBlacklisted, result.DLData.Status)
	assert.Equal(t, "DL123A", result.DLData.LicenseNumber)
	assert.True(t, result.Suspicious)
	assert.Nil(t, result.RCData)
}

func TestVerifyCleansUpUploads(t *testing.T) {
	env := newTestEnv(t, middleware.Passthrough())
	env.recognizer.dl = "DL123A"

	body, ct := multipartBody(t, map[string]string{"location": "NH44"}, map[string][]byte{
		"dlImage": []byte("fake image bytes"),
	})
	rec := env.do(t, http.MethodPost, "/api/v1/verify", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := os.ReadDir(env.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no uploaded file may remain after the request")
}

func TestVerifyCleansUpUploadsOnRejection(t *testing.T) {
	env := newTestEnv(t, middleware.Passthrough())
	env.recognizer.face = verify.DriverOutcome{Status: verify.DriverUnavailable}

	// Driver image only with the face service down still succeeds, just with
	// a degraded outcome; the temp file must be gone either way.
	body, ct := multipartBody(t, nil, map[string][]byte{
		"driverImage": []byte("fake image bytes"),
	})
	rec := env.do(t, http.MethodPost, "/api/v1/verify", body, ct)
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := os.ReadDir(env.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOCRPreview(t *testing.T) {
	t.Run("returns extracted text", func(t *testing.T) {
		env := newTestEnv(t, middleware.Passthrough())
		env.recognizer.plate = "KA01AB1234"

		body, ct := multipartBody(t, nil, map[string][]byte{"image": []byte("img")})
		rec := env.do(t, http.MethodPost, "/api/v1/ocr/plate", body, ct)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"extracted_text": "KA01AB1234"}`, rec.Body.String())
	})

	t.Run("falls back to raw text when no plate parsed", func(t *testing.T) {
		env := newTestEnv(t, middleware.Passthrough())
		env.recognizer.plateRaw = "KA 01 AB 1234"

		body, ct := multipartBody(t, nil, map[string][]byte{"image": []byte("img")})
		rec := env.do(t, http.MethodPost, "/api/v1/ocr/plate", body, ct)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"extracted_text": "KA 01 AB 1234"}`, rec.Body.String())
	})

	t.Run("missing image is a client error", func(t *testing.T) {
		env := newTestEnv(t, middleware.Passthrough())
		body, ct := multipartBody(t, map[string]string{"other": "x"}, nil)
		rec := env.do(t, http.MethodPost, "/api/v1/ocr/dl", body, ct)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("collaborator outage maps to bad gateway", func(t *testing.T) {
		env := newTestEnv(t, middleware.Passthrough())
		env.recognizer.dlErr = assert.AnError

		body, ct := multipartBody(t, nil, map[string][]byte{"image": []byte("img")})
		rec := env.do(t, http.MethodPost, "/api/v1/ocr/dl", body, ct)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestListLogs(t *testing.T) {
	env := newTestEnv(t, middleware.Passthrough())
	dl := "DL123A"
	env.logs.rows = []repository.TransactionLog{{TransactionID: "t1", DLNumber: &dl}}

	rec := env.do(t, http.MethodGet, "/api/v1/logs", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []repository.TransactionLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "t1", resp.Data[0].TransactionID)
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "test-secret"

	t.Run("missing token is rejected", func(t *testing.T) {
		env := newTestEnv(t, middleware.Auth(secret))
		rec := env.do(t, http.MethodGet, "/api/v1/logs", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		env := newTestEnv(t, middleware.Auth(secret))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token passes", func(t *testing.T) {
		env := newTestEnv(t, middleware.Auth(secret))

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "operator",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/logs", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("verify endpoint stays public", func(t *testing.T) {
		env := newTestEnv(t, middleware.Auth(secret))
		body, ct := multipartBody(t, map[string]string{"dl_number": "DL1"}, nil)
		rec := env.do(t, http.MethodPost, "/api/v1/verify", body, ct)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
