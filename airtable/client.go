package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/po_import/reconcile"
)

const pageSize = 100

type Client struct {
	baseURL string
	baseID  string
	apiKey  string
	http    *http.Client
	ticker  *time.Ticker
}

type Config struct {
	BaseURL         string
	BaseID          string
	APIKey          string
	RateLimitPerSec int
	HTTPClient      *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("record store api key is empty")
	}
	if strings.TrimSpace(cfg.BaseID) == "" {
		return nil, errors.New("record store base id is empty")
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = "https://api.airtable.com"
	}
	rate := cfg.RateLimitPerSec
	if rate <= 0 {
		rate = 5
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		baseID:  cfg.BaseID,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		ticker:  time.NewTicker(time.Second / time.Duration(rate)),
	}, nil
}

func (c *Client) Close() {
	c.ticker.Stop()
}

type listResponse struct {
	Records []reconcile.Record `json:"records"`
	Offset  string             `json:"offset"`
}

type writeRequest struct {
	Fields reconcile.FieldMap `json:"fields"`
}

// Find lists the table and keeps records matching the filter. Plain value matches are
// pushed to the server as a formula; linked-record matches are checked on the returned
// id lists, so the filter's fields are always requested.
func (c *Client) Find(ctx context.Context, table string, filter reconcile.Filter, fields []string) ([]reconcile.Record, error) {
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(pageSize))
	for _, f := range mergeFields(fields, filter.Fields()) {
		params.Add("fields[]", f)
	}
	if formula := Formula(filter); formula != "" {
		params.Set("filterByFormula", formula)
	}

	var out []reconcile.Record
	offset := ""
	for {
		if offset != "" {
			params.Set("offset", offset)
		}
		var page listResponse
		if err := c.do(ctx, http.MethodGet, c.tableURL(table)+"?"+params.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for _, rec := range page.Records {
			if filter.Matches(rec.Fields) {
				out = append(out, rec)
			}
		}
		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}

func (c *Client) Create(ctx context.Context, table string, fields reconcile.FieldMap) (reconcile.Record, error) {
	var rec reconcile.Record
	err := c.do(ctx, http.MethodPost, c.tableURL(table), writeRequest{Fields: fields}, &rec)
	return rec, err
}

// Update patches only the listed fields; other columns of the record are untouched.
func (c *Client) Update(ctx context.Context, table string, id string, fields reconcile.FieldMap) (reconcile.Record, error) {
	var rec reconcile.Record
	err := c.do(ctx, http.MethodPatch, c.tableURL(table)+"/"+url.PathEscape(id), writeRequest{Fields: fields}, &rec)
	return rec, err
}

func (c *Client) tableURL(table string) string {
	return c.baseURL + "/v0/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticker.C:
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, respBody)
	}
	if err := json.Unmarshal(respBody, dest); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

func mergeFields(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, f := range list {
			if seen[f] {
				continue
			}
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
