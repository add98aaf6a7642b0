package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/visionvault-backend/internal/logger"
	"github.com/yungbote/visionvault-backend/internal/utils"
)

// faceAPIClient talks to a self-hosted face matching service over
// HTTP. Unlike the GCP face detector it can attach identities: the
// remote service keeps the gallery of registered people and returns a
// person id/name when a face matches one.
type faceAPIClient struct {
	log     *logger.Logger
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewFaceAPIClient(log *logger.Logger) (FaceRecognizer, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	clientLog := log.With("service", "FaceAPIClient")

	baseURL := strings.TrimRight(utils.GetEnv("FACE_API_URL", "", clientLog), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("FACE_API_URL is not set")
	}
	timeout := utils.GetEnvAsInt("FACE_API_TIMEOUT_SECONDS", 30, clientLog)

	return &faceAPIClient{
		log:     clientLog,
		baseURL: baseURL,
		apiKey:  utils.GetEnv("FACE_API_KEY", "", clientLog),
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

type faceAPIFace struct {
	PersonID   *uuid.UUID     `json:"person_id"`
	PersonName *string        `json:"person_name"`
	Confidence float64        `json:"confidence"`
	Box        *BoundingBox   `json:"box"`
	Attributes map[string]any `json:"attributes"`
}

type faceAPIResponse struct {
	Faces            []faceAPIFace `json:"faces"`
	ProcessingTimeMs int64         `json:"processing_time_ms"`
	Error            string        `json:"error"`
}

func (c *faceAPIClient) RecognizeFaces(ctx context.Context, img []byte, threshold float64) (*FaceRecognitionOutput, error) {
	if len(img) == 0 {
		return nil, fmt.Errorf("empty image")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "upload")
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(img); err != nil {
		return nil, fmt.Errorf("failed to write image part: %w", err)
	}
	if err := writer.WriteField("threshold", strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("failed to write threshold field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recognize", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face api request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read face api response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("face api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed faceAPIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode face api response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("face api error: %s", parsed.Error)
	}

	faces := make([]FaceInput, 0, len(parsed.Faces))
	for _, f := range parsed.Faces {
		if f.Confidence < threshold {
			continue
		}
		faces = append(faces, FaceInput{
			PersonID:   f.PersonID,
			PersonName: f.PersonName,
			Confidence: f.Confidence,
			Box:        f.Box,
			Attributes: f.Attributes,
		})
	}

	elapsed := parsed.ProcessingTimeMs
	if elapsed <= 0 {
		elapsed = time.Since(start).Milliseconds()
	}
	return &FaceRecognitionOutput{Faces: faces, ProcessingTimeMs: elapsed}, nil
}
