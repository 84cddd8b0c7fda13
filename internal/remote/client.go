// Package remote talks to the invoicing backend's HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/invoicedesk/invoicedesk/internal/billing"
	"github.com/invoicedesk/invoicedesk/internal/catalog"
	"github.com/invoicedesk/invoicedesk/internal/invoices"
	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// Client wraps interactions with the invoicing API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ invoices.Source = (*Client)(nil)

// NewClient constructs a new client. token is sent as a bearer token when set.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Ping checks if the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// GetInvoice fetches one invoice.
func (c *Client) GetInvoice(ctx context.Context, id string) (billing.Invoice, error) {
	var inv billing.Invoice
	if err := c.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(id), nil, &inv); err != nil {
		return billing.Invoice{}, fmt.Errorf("remote: get invoice %s: %w", id, err)
	}
	return inv, nil
}

// ListInvoices fetches one page of invoices.
func (c *Client) ListInvoices(ctx context.Context, filter invoices.ListFilter) (invoices.Page, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.ClientID != "" {
		q.Set("clientId", filter.ClientID)
	}
	if !filter.DueBefore.IsZero() {
		q.Set("dueBefore", filter.DueBefore.UTC().Format(time.RFC3339))
	}
	if filter.Page > 0 {
		q.Set("page", strconv.Itoa(filter.Page))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	path := "/invoices"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page invoices.Page
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return invoices.Page{}, fmt.Errorf("remote: list invoices: %w", err)
	}
	return page, nil
}

// SaveInvoice replaces the invoice as a whole and returns the stored version.
func (c *Client) SaveInvoice(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	var saved billing.Invoice
	if err := c.do(ctx, http.MethodPut, "/invoices/"+url.PathEscape(inv.ID), inv, &saved); err != nil {
		return billing.Invoice{}, fmt.Errorf("remote: save invoice %s: %w", inv.ID, err)
	}
	return saved, nil
}

// UpdateStatus sets the lifecycle status of an invoice.
func (c *Client) UpdateStatus(ctx context.Context, id string, status billing.Status) error {
	body := map[string]string{"status": string(status)}
	if err := c.do(ctx, http.MethodPatch, "/invoices/"+url.PathEscape(id)+"/status", body, nil); err != nil {
		return fmt.Errorf("remote: update status %s: %w", id, err)
	}
	return nil
}

// ListProducts fetches the product catalog.
func (c *Client) ListProducts(ctx context.Context) ([]billing.Product, error) {
	var out []billing.Product
	if err := c.do(ctx, http.MethodGet, "/products", nil, &out); err != nil {
		return nil, fmt.Errorf("remote: list products: %w", err)
	}
	return out, nil
}

// SaveProduct creates a product when it has no id and replaces it otherwise.
func (c *Client) SaveProduct(ctx context.Context, p billing.Product) (billing.Product, error) {
	method, path := http.MethodPost, "/products"
	if p.ID != "" {
		method, path = http.MethodPut, "/products/"+url.PathEscape(p.ID)
	}
	var saved billing.Product
	if err := c.do(ctx, method, path, p, &saved); err != nil {
		return billing.Product{}, fmt.Errorf("remote: save product: %w", err)
	}
	return saved, nil
}

// ListClients fetches the client list.
func (c *Client) ListClients(ctx context.Context) ([]catalog.Client, error) {
	var out []catalog.Client
	if err := c.do(ctx, http.MethodGet, "/clients", nil, &out); err != nil {
		return nil, fmt.Errorf("remote: list clients: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", shared.ErrUpstream, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	detail := readMessage(resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, detail)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", shared.ErrConflict, detail)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", shared.ErrValidation, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrUpstream, resp.StatusCode, detail)
	}
}

// readMessage extracts {"message": "..."} from an error body, falling back to the raw text.
func readMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
