package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/apperr"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

// Client talks to a CRM over a small JSON API:
//
//	GET   {base}/records?email=...
//	PATCH {base}/records/{id}
//	GET   {base}/deals/{id}
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) FindRecordByEmail(ctx context.Context, email string) (*Record, error) {
	var records []Record
	if err := c.do(ctx, http.MethodGet, "/records?email="+url.QueryEscape(email), nil, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("record with email %s: %w", email, apperr.ErrNotFound)
	}
	return &records[0], nil
}

func (c *Client) UpdateRecord(ctx context.Context, id string, u Update) (UpdateResult, error) {
	var res UpdateResult
	if err := c.do(ctx, http.MethodPatch, "/records/"+url.PathEscape(id), u, &res); err != nil {
		return UpdateResult{Error: err.Error()}, err
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "update rejected"
		}
		return res, fmt.Errorf("update record %s: %s", id, msg)
	}
	return res, nil
}

// GetDeal makes the CRM usable as the stall deal directory.
func (c *Client) GetDeal(ctx context.Context, dealID string) (stall.Deal, error) {
	var d stall.Deal
	if err := c.do(ctx, http.MethodGet, "/deals/"+url.PathEscape(dealID), nil, &d); err != nil {
		return stall.Deal{}, err
	}
	if d.ID == "" {
		d.ID = dealID
	}
	return d, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("crm %s %s: %w: %w", method, path, apperr.ErrDownstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("crm %s %s: %w", method, path, apperr.ErrNotFound)
	case resp.StatusCode >= 500:
		return fmt.Errorf("crm %s %s returned %d: %w", method, path, resp.StatusCode, apperr.ErrDownstreamUnavailable)
	case resp.StatusCode >= 300:
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return fmt.Errorf("crm error %d: %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("crm error %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
