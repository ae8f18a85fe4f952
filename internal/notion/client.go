// Package notion adapts the Notion REST API to the source.Source contract
// and extracts full site definitions from the site-builder databases.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/sitesmith/internal/apperr"
	"github.com/starford/sitesmith/internal/models"
	"github.com/starford/sitesmith/internal/source"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"

	// maxPageSize is the largest page size the API accepts.
	maxPageSize = 100
)

// Options configure a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Version    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the Notion API. It implements source.Source.
type Client struct {
	hc      *http.Client
	baseURL string
	apiKey  string
	version string
}

var _ source.Source = (*Client)(nil)

// New returns a Client. A missing API key is a configuration error.
func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("notion: %w: missing api key", apperr.ErrConfiguration)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		hc:      hc,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		version: opts.Version,
	}, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion api %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps rate limits and server errors to ErrTransient and missing
// objects to ErrNotFound.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusTooManyRequests || e.Status >= 500:
		return apperr.ErrTransient
	case e.Status == http.StatusNotFound:
		return apperr.ErrNotFound
	default:
		return nil
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("notion: encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("notion: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("notion: %s %s: %w: %w", method, path, apperr.ErrTransient, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("notion: read response: %w: %w", apperr.ErrTransient, err)
	}
	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		apiErr.Status = resp.StatusCode
		return fmt.Errorf("notion: %s %s: %w", method, path, apiErr)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("notion: decode response: %w", err)
	}
	return nil
}

type queryRequest struct {
	Filter      any        `json:"filter,omitempty"`
	Sorts       []sortSpec `json:"sorts,omitempty"`
	StartCursor string     `json:"start_cursor,omitempty"`
	PageSize    int        `json:"page_size,omitempty"`
}

type sortSpec struct {
	Property  string `json:"property,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Direction string `json:"direction"`
}

type queryResponse struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor *string           `json:"next_cursor"`
}

func (c *Client) query(ctx context.Context, databaseID string, req queryRequest) (queryResponse, error) {
	var resp queryResponse
	err := c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", req, &resp)
	return resp, err
}

// queryAll pages through a database query and decodes every result.
func (c *Client) queryAll(ctx context.Context, databaseID string, req queryRequest) ([]page, error) {
	var out []page
	req.PageSize = maxPageSize
	for {
		resp, err := c.query(ctx, databaseID, req)
		if err != nil {
			return out, err
		}
		for _, raw := range resp.Results {
			p, err := decodePage(raw)
			if err != nil {
				return out, err
			}
			out = append(out, p)
		}
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return out, nil
		}
		req.StartCursor = *resp.NextCursor
	}
}

// QueryRecords lists one page of a database, optionally filtered by last
// edit time (inclusive). Notion rounds last_edited_time down to the minute,
// so the filter bound is rounded the same way.
func (c *Client) QueryRecords(ctx context.Context, collectionID string, q source.Query) (source.RecordPage, error) {
	req := queryRequest{
		StartCursor: q.PageToken,
		PageSize:    min(max(q.PageSize, 1), maxPageSize),
		Sorts:       []sortSpec{{Timestamp: "last_edited_time", Direction: "ascending"}},
	}
	if q.PageSize <= 0 {
		req.PageSize = maxPageSize
	}
	if !q.EditedAtOrAfter.IsZero() {
		req.Filter = map[string]any{
			"timestamp": "last_edited_time",
			"last_edited_time": map[string]string{
				"on_or_after": q.EditedAtOrAfter.UTC().Truncate(time.Minute).Format(time.RFC3339),
			},
		}
	}

	resp, err := c.query(ctx, collectionID, req)
	if err != nil {
		return source.RecordPage{}, err
	}
	out := source.RecordPage{Records: make([]models.Record, 0, len(resp.Results))}
	for _, raw := range resp.Results {
		p, err := decodePage(raw)
		if err != nil {
			return source.RecordPage{}, err
		}
		out.Records = append(out.Records, p.record())
	}
	if resp.HasMore && resp.NextCursor != nil {
		out.NextPageToken = *resp.NextCursor
	}
	return out, nil
}

// WriteStatus updates properties of an existing page.
func (c *Client) WriteStatus(ctx context.Context, recordID string, fields source.Fields) error {
	props, err := encodeFields(fields)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPatch, "/pages/"+recordID, map[string]any{"properties": props}, nil)
}

// CreateRecord creates a page in a database and returns its id.
func (c *Client) CreateRecord(ctx context.Context, collectionID string, fields source.Fields) (string, error) {
	props, err := encodeFields(fields)
	if err != nil {
		return "", err
	}
	body := map[string]any{
		"parent":     map[string]string{"database_id": collectionID},
		"properties": props,
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/pages", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// page fetches a single page.
func (c *Client) page(ctx context.Context, pageID string) (page, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/pages/"+pageID, nil, &raw); err != nil {
		return page{}, err
	}
	return decodePage(raw)
}

func encodeFields(fields source.Fields) (map[string]any, error) {
	props := make(map[string]any, len(fields))
	for name, v := range fields {
		switch v := v.(type) {
		case source.Select:
			props[name] = map[string]any{"select": map[string]string{"name": string(v)}}
		case source.Text:
			props[name] = map[string]any{"rich_text": []map[string]any{
				{"text": map[string]string{"content": string(v)}},
			}}
		case source.URL:
			props[name] = map[string]any{"url": string(v)}
		case source.Number:
			props[name] = map[string]any{"number": float64(v)}
		case source.Date:
			props[name] = map[string]any{"date": map[string]string{
				"start": time.Time(v).UTC().Format(time.RFC3339),
			}}
		default:
			return nil, fmt.Errorf("notion: field %q: unsupported value type %T", name, v)
		}
	}
	return props, nil
}
