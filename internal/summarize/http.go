package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TranscriptClient fetches captions from the transcript service.
type TranscriptClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTranscriptClient(baseURL string) *TranscriptClient {
	return &TranscriptClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *TranscriptClient) Transcript(ctx context.Context, videoID string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transcripts/"+videoID, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to build transcript request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("transcript request for video %s failed: %w", videoID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", "", ErrUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("transcript service returned status %d for video %s", resp.StatusCode, videoID)
	}

	var body struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", fmt.Errorf("failed to decode transcript response for video %s: %w", videoID, err)
	}
	if body.Text == "" {
		return "", "", ErrUnavailable
	}
	return body.Text, body.Language, nil
}

// SummaryClient calls the AI summary service.
type SummaryClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSummaryClient(baseURL string) *SummaryClient {
	return &SummaryClient{
		baseURL: baseURL,
		// Generation is slow, give it more room than a normal API call.
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *SummaryClient) Summarize(ctx context.Context, videoID, transcript, language string) (Summary, error) {
	reqBody, err := json.Marshal(map[string]string{
		"video_id":   videoID,
		"transcript": transcript,
		"language":   language,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to marshal summary request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/summaries", bytes.NewReader(reqBody))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to build summary request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Summary{}, fmt.Errorf("summary request for video %s failed: %w", videoID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		return Summary{}, ErrUnavailable
	}
	if resp.StatusCode != http.StatusOK {
		return Summary{}, fmt.Errorf("summary service returned status %d for video %s", resp.StatusCode, videoID)
	}

	var body struct {
		BriefSummary string   `json:"brief_summary"`
		KeyPoints    []string `json:"key_points"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Summary{}, fmt.Errorf("failed to decode summary response for video %s: %w", videoID, err)
	}
	return Summary{Brief: body.BriefSummary, KeyPoints: body.KeyPoints}, nil
}
