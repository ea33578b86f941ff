package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/rxrank/pkg/graph"
)

const (
	// DefaultHTTPTarget is the default model sidecar URL.
	DefaultHTTPTarget = "http://localhost:8090"

	encodePath = "/v1/encode"
)

// HTTP calls a model sidecar that runs the graph encoder.
type HTTP struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPConfig holds configuration for the HTTP encoder.
type HTTPConfig struct {
	// BaseURL is the sidecar URL (e.g., "http://localhost:8090").
	// Defaults to DefaultHTTPTarget if empty.
	BaseURL string

	// Timeout bounds a single request. The sampler's context deadline
	// usually fires first.
	Timeout time.Duration
}

type encodeNode struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type encodeEdge struct {
	Src  int    `json:"src"`
	Dst  int    `json:"dst"`
	Type string `json:"type"`
}

type encodeRequest struct {
	Nodes []encodeNode `json:"nodes"`
	Edges []encodeEdge `json:"edges"`
}

type encodeResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewHTTP creates a sidecar encoder.
func NewHTTP(cfg HTTPConfig) *HTTP {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultHTTPTarget
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &HTTP{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Encode posts the subgraph to the sidecar.
func (e *HTTP) Encode(ctx context.Context, sg *graph.Subgraph) ([][]float32, error) {
	reqBody := encodeRequest{
		Nodes: make([]encodeNode, len(sg.Nodes)),
		Edges: make([]encodeEdge, len(sg.Edges)),
	}
	for i, n := range sg.Nodes {
		reqBody.Nodes[i] = encodeNode{Type: n.Type.String(), Index: n.Index}
	}
	for i, ed := range sg.Edges {
		reqBody.Edges[i] = encodeEdge{Src: ed.Src, Dst: ed.Dst, Type: ed.Type.String()}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %w", ErrEncode, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+encodePath, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrEncode, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %w", ErrEncode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: encoder returned status %d: %s", ErrEncode, resp.StatusCode, string(body))
	}

	var encResp encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&encResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", ErrEncode, err)
	}

	return encResp.Embeddings, nil
}

// Close releases resources held by the encoder.
func (e *HTTP) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

var _ Encoder = (*HTTP)(nil)
