package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sandevgo/tedbot/internal/config"
	"github.com/sandevgo/tedbot/internal/core"
	"github.com/sandevgo/tedbot/pkg/retry"
)

// Client talks to a mem0-style semantic memory service over REST. It only
// reports transport and protocol failures; mapping them to the degradable
// core.ErrMemoryUnavailable is the retriever's job.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	retrier *retry.Retrier
}

func NewClient(cfg *config.MemoryConfig) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		retrier: retry.NewDefaultRetrier(),
	}
}

type searchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	TopK   int    `json:"top_k"`
}

type searchHit struct {
	Memory    string  `json:"memory"`
	Score     float64 `json:"score"`
	CreatedAt string  `json:"created_at"`
	Metadata  struct {
		TS string `json:"ts"`
	} `json:"metadata"`
}

func (c *Client) Search(ctx context.Context, query, userID string, k int) ([]core.MemoryHit, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/memories/search", searchRequest{
		Query:  query,
		UserID: userID,
		TopK:   k,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Results []searchHit `json:"results"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]core.MemoryHit, 0, len(result.Results))
	for _, h := range result.Results {
		hits = append(hits, core.MemoryHit{
			Text:           h.Memory,
			RelevanceScore: h.Score,
			CreatedAt:      parseHitTime(h),
		})
	}
	return hits, nil
}

type storeRequest struct {
	Messages []core.Message    `json:"messages"`
	UserID   string            `json:"user_id"`
	Metadata map[string]string `json:"metadata"`
}

// Store persists one user/assistant exchange. Runs in the background of a
// turn, so transient failures are retried here.
func (c *Client) Store(ctx context.Context, userID, userMsg, assistantMsg string) error {
	req := storeRequest{
		Messages: []core.Message{
			{Role: core.RoleUser, Content: userMsg},
			{Role: core.RoleAssistant, Content: assistantMsg},
		},
		UserID: userID,
		Metadata: map[string]string{
			"ts": time.Now().UTC().Format(time.RFC3339),
		},
	}

	return c.retrier.Do(ctx, func() error {
		resp, err := c.doRequest(ctx, http.MethodPost, "/v1/memories", req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			data, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
		}
		io.Copy(io.Discard, resp.Body)
		return nil
	})
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", core.TedUserAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Token "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	return resp, nil
}

// parseHitTime prefers the exchange timestamp the bot attached at store
// time over the service-side created_at, falling back to now.
func parseHitTime(h searchHit) time.Time {
	for _, raw := range []string{h.Metadata.TS, h.CreatedAt} {
		if raw == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			return ts
		}
	}
	return time.Now()
}
