package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"toll-verify-service/internal/config"
	"toll-verify-service/internal/domain/verify"
)

// Client talks to the external OCR, ANPR and face-recognition collaborators.
// Every call is bounded by the configured timeout. Collaborator failure is
// surfaced as an error (or an unavailable outcome for face matching) and is
// never fatal for the verification that triggered it; the orchestrator
// degrades the affected modality instead.
type Client struct {
	dlURL   string
	anprURL string
	faceURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg config.RecognitionConfig, log zerolog.Logger) *Client {
	return &Client{
		dlURL:   strings.TrimRight(cfg.DLServiceURL, "/"),
		anprURL: strings.TrimRight(cfg.ANPRServiceURL, "/"),
		faceURL: strings.TrimRight(cfg.FaceServiceURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log,
	}
}

type dlResponse struct {
	DLNumbers []string `json:"dl_numbers"`
}

type plateResponse struct {
	PlateNumber *string `json:"plate_number"`
	RawText     string  `json:"raw_text"`
}

type faceResponse struct {
	Status     string  `json:"status"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ExtractDLNumber sends a license image to the DL-OCR collaborator and
// returns the first recognized DL number. An empty string with a nil error
// means the service answered but recognized nothing.
func (c *Client) ExtractDLNumber(ctx context.Context, imagePath string) (string, error) {
	var resp dlResponse
	if err := c.postImage(ctx, c.dlURL+"/extract-dl", "dl_image", imagePath, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.DLNumbers) == 0 {
		return "", nil
	}
	return resp.DLNumbers[0], nil
}

// ExtractPlateNumber sends a vehicle image to the ANPR collaborator and
// returns the recognized plate number plus the raw OCR text, or an empty
// plate when no valid plate was found in the image.
func (c *Client) ExtractPlateNumber(ctx context.Context, imagePath string) (string, string, error) {
	var resp plateResponse
	if err := c.postImage(ctx, c.anprURL+"/recognize_plate/", "file", imagePath, nil, &resp); err != nil {
		return "", "", err
	}
	if resp.PlateNumber == nil {
		c.log.Debug().Str("raw_text", resp.RawText).Msg("no valid plate number in ANPR response")
		return "", resp.RawText, nil
	}
	return *resp.PlateNumber, resp.RawText, nil
}

// MatchFace sends a driver photo to the face-recognition collaborator.
// Failures of any kind degrade to a service_unavailable outcome; face
// matching is best-effort enrichment, never a blocking dependency.
func (c *Client) MatchFace(ctx context.Context, imagePath string) verify.DriverOutcome {
	var resp faceResponse
	if err := c.postImage(ctx, c.faceURL+"/match-face", "driver_image", imagePath, nil, &resp); err != nil {
		c.log.Warn().Err(err).Msg("face recognition service unavailable")
		return verify.DriverOutcome{Status: verify.DriverUnavailable}
	}

	switch verify.DriverStatus(resp.Status) {
	case verify.DriverClear, verify.DriverNoFace:
		return verify.DriverOutcome{Status: verify.DriverStatus(resp.Status)}
	case verify.DriverAlert:
		return verify.DriverOutcome{
			Status:     verify.DriverAlert,
			Name:       resp.Name,
			Confidence: resp.Confidence,
		}
	default:
		c.log.Warn().Str("status", resp.Status).Msg("unexpected face recognition status")
		return verify.DriverOutcome{Status: verify.DriverUnavailable}
	}
}

// EnrollSuspect submits a suspect photo for enrollment. The collaborator
// rebuilds its embedding model asynchronously; until it finishes, face
// matching may degrade to unavailable.
func (c *Client) EnrollSuspect(ctx context.Context, imagePath, name string) error {
	fields := map[string]string{"name": name}
	var resp map[string]interface{}
	if err := c.postImage(ctx, c.faceURL+"/enroll", "suspect_image", imagePath, fields, &resp); err != nil {
		return err
	}
	return nil
}

func (c *Client) postImage(ctx context.Context, url, field, imagePath string, extra map[string]string, out interface{}) error {
	file, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filepath.Base(imagePath))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy image: %w", err)
	}
	for k, v := range extra {
		if err := writer.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("call %s: unexpected status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", url, err)
	}
	return nil
}
