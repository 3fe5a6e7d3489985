package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xraph/volshift/resumer"
)

// PostEvent forwards one raw EventBridge envelope and returns how the
// server handled it.
func (c *Client) PostEvent(ctx context.Context, raw json.RawMessage) (resumer.Outcome, error) {
	var resp struct {
		Outcome resumer.Outcome `json:"outcome"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/events", nil, raw, &resp); err != nil {
		return "", err
	}
	return resp.Outcome, nil
}

// Definition fetches the rendered state machine definition.
func (c *Client) Definition(ctx context.Context) (json.RawMessage, error) {
	var doc json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/v1/definition", nil, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
