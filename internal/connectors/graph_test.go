package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGraphServer(t *testing.T, handler http.HandlerFunc) *GraphClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGraphClient(srv.URL, "neo4j", "secret", "neo4j", zap.NewNop())
}

func TestGraphStoreFinding_WithSource(t *testing.T) {
	var gotReq cypherRequest
	c := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/db/neo4j/tx/commit", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "neo4j", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}, "errors": []any{}})
	})

	err := c.StoreFinding(context.Background(), Finding{
		Topic:       "go",
		Finding:     "compiles fast",
		SourceURL:   "https://go.dev",
		SourceTitle: "The Go site",
	})
	require.NoError(t, err)

	// MERGE топика + CREATE находки, затем MERGE источника
	require.Len(t, gotReq.Statements, 2)
	assert.Contains(t, gotReq.Statements[0].Statement, "MERGE (t:Topic")
	assert.Contains(t, gotReq.Statements[0].Statement, "CREATE (f:Finding")
	assert.Equal(t, "go", gotReq.Statements[0].Parameters["topic"])
	assert.Contains(t, gotReq.Statements[1].Statement, "MERGE (s:Source")
	assert.Equal(t, "https://go.dev", gotReq.Statements[1].Parameters["source_url"])
}

func TestGraphStoreFinding_WithoutSourceIsSingleStatement(t *testing.T) {
	var gotReq cypherRequest
	c := newGraphServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}, "errors": []any{}})
	})

	require.NoError(t, c.StoreFinding(context.Background(), Finding{Topic: "go", Finding: "f"}))
	assert.Len(t, gotReq.Statements, 1)
}

func TestGraphQuery_ParsesRowsAndDropsNullSources(t *testing.T) {
	c := newGraphServer(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{
				"columns": []string{"topic", "findings", "sources"},
				"data": []map[string]any{{
					"row": []any{
						"go",
						[]string{"compiles fast", "great stdlib"},
						[]map[string]any{
							{"url": "https://go.dev", "title": "Go"},
							{"url": nil, "title": nil}, // OPTIONAL MATCH без источника
						},
					},
				}},
			}},
			"errors": []any{},
		})
	})

	topics, err := c.Query(context.Background(), "go", 20)
	require.NoError(t, err)

	require.Len(t, topics, 1)
	assert.Equal(t, "go", topics[0].Name)
	assert.Equal(t, []string{"compiles fast", "great stdlib"}, topics[0].Findings)
	require.Len(t, topics[0].Sources, 1)
	assert.Equal(t, "https://go.dev", topics[0].Sources[0].URL)
}

func TestGraphQuery_CypherErrorSurfaced(t *testing.T) {
	c := newGraphServer(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []any{},
			"errors": []map[string]string{
				{"code": "Neo.ClientError.Statement.SyntaxError", "message": "bad cypher"},
			},
		})
	})

	_, err := c.Query(context.Background(), "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SyntaxError")
}

func TestGraphClient_NotConfigured(t *testing.T) {
	c := NewGraphClient("", "neo4j", "", "neo4j", zap.NewNop())

	assert.ErrorIs(t, c.StoreFinding(context.Background(), Finding{Topic: "t", Finding: "f"}), ErrNotConfigured)
	_, err := c.Query(context.Background(), "", 0)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
