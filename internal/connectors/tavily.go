package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/agent-watchdog/internal/domain"
)

// SearchResult — один результат веб-поиска.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// snippetLimit — сниппеты режем до 500 символов, полный текст агенту не нужен.
const snippetLimit = 500

// TavilyClient — тонкая обертка над поисковым API Tavily.
type TavilyClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	rel     *Reliability
	logger  *zap.Logger
}

func NewTavilyClient(baseURL, apiKey string, logger *zap.Logger) *TavilyClient {
	return &TavilyClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		rel:     NewReliability("tavily"),
		logger:  logger.Named("tavily"),
	}
}

// Configured — есть ли ключ. Без ключа инструмент отвечает мягким
// отказом, не валя запуск.
func (c *TavilyClient) Configured() bool { return c.apiKey != "" }

func (c *TavilyClient) Reliability() *Reliability { return c.rel }

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int, searchDepth string) ([]SearchResult, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: tavily api key is not set", ErrNotConfigured)
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	if searchDepth == "" {
		searchDepth = "basic"
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:      c.apiKey,
		Query:       query,
		MaxResults:  maxResults,
		SearchDepth: searchDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	var out tavilyResponse
	err = c.rel.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return &ThrottleError{
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Cause:      fmt.Errorf("tavily api: %d", resp.StatusCode),
			}
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return fmt.Errorf("tavily api error: %d %s", resp.StatusCode, string(raw))
		}

		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(out.Results))
	for _, r := range out.Results {
		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: domain.TruncateRunes(r.Content, snippetLimit),
		})
	}

	c.logger.Debug("search completed", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

func parseRetryAfter(h string) time.Duration {
	if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 2 * time.Second
}
