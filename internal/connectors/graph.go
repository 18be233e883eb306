package connectors

/*
Файл graph.go — клиент графа знаний (Neo4j) через HTTP transactional
cypher endpoint (POST /db/{database}/tx/commit). Официальный драйвер
здесь не нужен: две фиксированных операции, plain HTTP под общим
Reliability-контуром, как и остальные коннекторы.

Модель графа: (Topic)-[:HAS_FINDING]->(Finding)-[:FROM_SOURCE]->(Source).
*/

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Finding — одна запись исследования для сохранения в граф.
type Finding struct {
	Topic       string `json:"topic"`
	Finding     string `json:"finding"`
	SourceURL   string `json:"source_url,omitempty"`
	SourceTitle string `json:"source_title,omitempty"`
}

// TopicFindings — топик со своими находками и источниками.
type TopicFindings struct {
	Name     string   `json:"name"`
	Findings []string `json:"findings"`
	Sources  []Source `json:"sources"`
}

type Source struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

type GraphClient struct {
	endpoint string // {uri}/db/{database}/tx/commit
	user     string
	password string
	http     *http.Client
	rel      *Reliability
	logger   *zap.Logger
}

func NewGraphClient(uri, user, password, database string, logger *zap.Logger) *GraphClient {
	endpoint := ""
	if uri != "" {
		endpoint = fmt.Sprintf("%s/db/%s/tx/commit", uri, database)
	}
	return &GraphClient{
		endpoint: endpoint,
		user:     user,
		password: password,
		http:     &http.Client{Timeout: 30 * time.Second},
		rel:      NewReliability("graph"),
		logger:   logger.Named("graph"),
	}
}

func (c *GraphClient) Configured() bool { return c.endpoint != "" && c.password != "" }

func (c *GraphClient) Reliability() *Reliability { return c.rel }

// Wire-формат transactional endpoint
type cypherStatement struct {
	Statement  string         `json:"statement"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type cypherRequest struct {
	Statements []cypherStatement `json:"statements"`
}

type cypherResponse struct {
	Results []struct {
		Columns []string `json:"columns"`
		Data    []struct {
			Row []json.RawMessage `json:"row"`
		} `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// StoreFinding сохраняет находку: MERGE топика, CREATE находки,
// опционально MERGE источника к последней находке.
func (c *GraphClient) StoreFinding(ctx context.Context, f Finding) error {
	if !c.Configured() {
		return fmt.Errorf("%w: graph uri/password are not set", ErrNotConfigured)
	}

	statements := []cypherStatement{{
		Statement: `MERGE (t:Topic { name: $topic })
CREATE (f:Finding { text: $finding, created_at: datetime() })
MERGE (t)-[:HAS_FINDING]->(f)
RETURN 1`,
		Parameters: map[string]any{"topic": f.Topic, "finding": f.Finding},
	}}

	if f.SourceURL != "" {
		statements = append(statements, cypherStatement{
			Statement: `MATCH (t:Topic { name: $topic })-[:HAS_FINDING]->(f:Finding { text: $finding })
WITH f ORDER BY f.created_at DESC LIMIT 1
MERGE (s:Source { url: $source_url })
ON CREATE SET s.title = $source_title
MERGE (f)-[:FROM_SOURCE]->(s)
RETURN 1`,
			Parameters: map[string]any{
				"topic":        f.Topic,
				"finding":      f.Finding,
				"source_url":   f.SourceURL,
				"source_title": f.SourceTitle,
			},
		})
	}

	_, err := c.commit(ctx, statements)
	return err
}

// Query возвращает топики с находками; topic == "" — все топики.
func (c *GraphClient) Query(ctx context.Context, topic string, limit int) ([]TopicFindings, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: graph uri/password are not set", ErrNotConfigured)
	}
	if limit <= 0 {
		limit = 20
	}

	var st cypherStatement
	if topic != "" {
		st = cypherStatement{
			Statement: `MATCH (t:Topic { name: $topic })-[:HAS_FINDING]->(f:Finding)
OPTIONAL MATCH (f)-[:FROM_SOURCE]->(s:Source)
RETURN t.name AS topic, collect(DISTINCT f.text) AS findings, collect(DISTINCT s { .url, .title }) AS sources
LIMIT 1`,
			Parameters: map[string]any{"topic": topic},
		}
	} else {
		st = cypherStatement{
			Statement: `MATCH (t:Topic)-[:HAS_FINDING]->(f:Finding)
OPTIONAL MATCH (f)-[:FROM_SOURCE]->(s:Source)
WITH t, collect(DISTINCT f.text)[..$limit] AS findings, collect(DISTINCT s { .url, .title })[..$limit] AS sources
RETURN t.name AS topic, findings, sources
LIMIT $limit`,
			Parameters: map[string]any{"limit": limit},
		}
	}

	resp, err := c.commit(ctx, []cypherStatement{st})
	if err != nil {
		return nil, err
	}

	var topics []TopicFindings
	if len(resp.Results) == 0 {
		return topics, nil
	}
	for _, row := range resp.Results[0].Data {
		if len(row.Row) < 3 {
			continue
		}

		var t TopicFindings
		if err := json.Unmarshal(row.Row[0], &t.Name); err != nil {
			continue
		}
		_ = json.Unmarshal(row.Row[1], &t.Findings)

		// Источники без url (OPTIONAL MATCH дал null) выбрасываем
		var rawSources []map[string]string
		_ = json.Unmarshal(row.Row[2], &rawSources)
		for _, s := range rawSources {
			if s["url"] == "" {
				continue
			}
			t.Sources = append(t.Sources, Source{URL: s["url"], Title: s["title"]})
		}

		topics = append(topics, t)
	}
	return topics, nil
}

func (c *GraphClient) commit(ctx context.Context, statements []cypherStatement) (*cypherResponse, error) {
	body, err := json.Marshal(cypherRequest{Statements: statements})
	if err != nil {
		return nil, fmt.Errorf("marshal cypher request: %w", err)
	}

	var out cypherResponse
	err = c.rel.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.SetBasicAuth(c.user, c.password)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return fmt.Errorf("graph api error: %d %s", resp.StatusCode, string(raw))
		}

		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return nil, err
	}

	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("cypher error [%s]: %s", out.Errors[0].Code, out.Errors[0].Message)
	}
	return &out, nil
}
