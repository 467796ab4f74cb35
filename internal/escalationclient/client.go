// Package escalationclient implements the state.Escalation contract
// against an HTTP job-dispatch endpoint as an async create-job/poll
// contract: the escalation target runs long enough that a synchronous
// completion call isn't viable, so job creation and completion are split.
package escalationclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Client struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewClient(endpoint, token string) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type createJobRequest struct {
	Model    string `json:"model"`
	Prompt   string `json:"prompt"`
	System   string `json:"system,omitempty"`
}

type createJobResponse struct {
	JobID string `json:"job_id"`
}

func (c *Client) CreateJob(ctx context.Context, prompt, model string) (string, error) {
	body, err := json.Marshal(createJobRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("create escalation job: %s", resp.Status)
	}

	var out createJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

type pollResponse struct {
	Done   bool   `json:"done"`
	Output string `json:"output"`
}

func (c *Client) Poll(ctx context.Context, jobID string) (bool, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/jobs/"+jobID, nil)
	if err != nil {
		return false, "", err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return false, "", fmt.Errorf("poll escalation job: %s", resp.Status)
	}

	var out pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, "", err
	}
	return out.Done, out.Output, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
