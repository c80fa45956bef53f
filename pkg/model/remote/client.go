package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"k8s.io/klog/v2"

	"github.com/mlmd/pairnet/pkg/model"
)

const forwardPath = "/v1/forward"

// Client forwards evaluations to a remote inference server. Metadata still
// comes from the local artifact; only the forward pass leaves the process.
type Client struct {
	endpoint   string
	meta       *model.Metadata
	httpClient *http.Client
}

var _ model.Invoker = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func New(baseURL string, meta *model.Metadata, opts ...Option) (*Client, error) {
	if meta == nil {
		return nil, fmt.Errorf("%w: nil metadata", model.ErrMetadata)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server URL %q: %w", baseURL, err)
	}

	c := &Client{
		endpoint:   u.JoinPath(forwardPath).String(),
		meta:       meta,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Metadata() *model.Metadata {
	return c.meta
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) Forward(ctx context.Context, req *model.Request) (model.Output, error) {
	log := klog.FromContext(ctx)

	wireReq := forwardRequest{
		Model:        c.meta.Name,
		WantVirial:   req.WantVirial,
		ExtraOutputs: req.ExtraOutputs,
		Inputs:       make(map[string]tensorWire, 5),
	}
	for name, t := range req.Inputs.Named() {
		w, err := encodeTensor(t)
		if err != nil {
			return nil, fmt.Errorf("encoding input %q: %w", name, err)
		}
		wireReq.Inputs[name] = w
	}

	body, err := json.Marshal(&wireReq)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	startedAt := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %v from %q: %s", resp.Status, c.endpoint, snippet)
	}

	var wireResp forwardResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	out := make(model.Output, len(wireResp.Outputs))
	for name, w := range wireResp.Outputs {
		t, err := decodeTensor(w)
		if err != nil {
			return nil, fmt.Errorf("decoding output %q: %w", name, err)
		}
		out[name] = t
	}

	log.V(2).Info("forward round trip", "url", c.endpoint,
		"nodes", req.Inputs.Nodes, "edges", req.Inputs.Edges, "duration", time.Since(startedAt))

	return out, nil
}
