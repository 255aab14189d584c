// Package assist is the thin HTTP client for the external AI assist
// service. The core never sees model details; it sends clause text and
// conversation turns and gets prose back.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/AsiwajuPseudo/contracts/internal/history"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: 60 * time.Second}}
}

// Explain returns a plain-language explanation of a clause text.
func (c *Client) Explain(ctx context.Context, text string) (string, error) {
	var out struct {
		Explanation string `json:"explanation"`
	}
	if err := c.post(ctx, "/explain", map[string]any{"text": text}, &out); err != nil {
		return "", err
	}
	return out.Explanation, nil
}

// Answer continues a conversation about a clause with one more question.
func (c *Client) Answer(ctx context.Context, text string, turns []history.Turn, question string) (string, error) {
	var out struct {
		Answer string `json:"answer"`
	}
	payload := map[string]any{"text": text, "history": turns, "question": question}
	if err := c.post(ctx, "/answer", payload, &out); err != nil {
		return "", err
	}
	return out.Answer, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("assist encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("assist request: %w", err)
	}
	req.Header.Set("content-type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("assist call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("assist returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("assist decode: %w", err)
	}
	return nil
}
