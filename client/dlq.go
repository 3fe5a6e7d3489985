package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xraph/volshift/dlq"
	"github.com/xraph/volshift/workflow"
)

// ListDLQOpts filters a DLQ listing.
type ListDLQOpts struct {
	Limit      int
	Offset     int
	Stage      workflow.Stage
	Unresolved bool
}

func (o ListDLQOpts) query() url.Values {
	q := url.Values{}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	if o.Stage != "" {
		q.Set("stage", o.Stage.String())
	}
	if o.Unresolved {
		q.Set("unresolved", "true")
	}
	return q
}

// ListDLQ returns DLQ entries, newest first.
func (c *Client) ListDLQ(ctx context.Context, opts ListDLQOpts) ([]*dlq.Entry, error) {
	var entries []*dlq.Entry
	if err := c.do(ctx, http.MethodGet, "/v1/dlq", opts.query(), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetDLQ returns one entry.
func (c *Client) GetDLQ(ctx context.Context, entryID string) (*dlq.Entry, error) {
	var entry dlq.Entry
	if err := c.do(ctx, http.MethodGet, "/v1/dlq/"+url.PathEscape(entryID), nil, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ResolveDLQ marks an entry handled and returns it.
func (c *Client) ResolveDLQ(ctx context.Context, entryID string) (*dlq.Entry, error) {
	var entry dlq.Entry
	if err := c.do(ctx, http.MethodPost, "/v1/dlq/"+url.PathEscape(entryID)+"/resolve", nil, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// CountDLQ returns the number of entries.
func (c *Client) CountDLQ(ctx context.Context) (int64, error) {
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/dlq/count", nil, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
