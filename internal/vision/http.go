package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultVisionEndpoint = "http://127.0.0.1:8022"

// HTTPDescriber asks a detection sidecar to capture and describe a
// frame. The sidecar owns the camera; this process only speaks HTTP.
type HTTPDescriber struct {
	endpoint string
	client   *http.Client
}

// NewHTTPDescriber creates a describer against the sidecar endpoint.
func NewHTTPDescriber(endpoint string) *HTTPDescriber {
	if endpoint == "" {
		endpoint = defaultVisionEndpoint
	}
	return &HTTPDescriber{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

func (d *HTTPDescriber) Name() string { return "http" }

// describeResponse is the sidecar's answer. A ready-made description
// wins; otherwise the object counts are summarized locally.
type describeResponse struct {
	Description string         `json:"description,omitempty"`
	Objects     map[string]int `json:"objects,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// DescribeScene requests a capture-and-detect cycle from the sidecar.
func (d *HTTPDescriber) DescribeScene(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/describe", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCameraUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Warn().Int("status", resp.StatusCode).Str("body", string(body)).Msg("vision sidecar error")
		return "", fmt.Errorf("%w: status %d", ErrDetectionFailed, resp.StatusCode)
	}

	var dr describeResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if dr.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrDetectionFailed, dr.Error)
	}
	if dr.Description != "" {
		return dr.Description, nil
	}
	return Summarize(dr.Objects), nil
}

// CannedDescriber answers every request with a fixed scene. Used in
// simulated mode and tests.
type CannedDescriber struct {
	Objects map[string]int
}

// NewCannedDescriber creates a describer with a small default scene.
func NewCannedDescriber() *CannedDescriber {
	return &CannedDescriber{Objects: map[string]int{"person": 1, "chair": 2}}
}

func (d *CannedDescriber) Name() string { return "canned" }

func (d *CannedDescriber) DescribeScene(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return Summarize(d.Objects), nil
}
