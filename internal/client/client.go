package client

// Package client talks to the operator API of a running promoshop server.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/promoshop/promoshop/internal/logging"
	"github.com/promoshop/promoshop/internal/models"
	"github.com/promoshop/promoshop/internal/observability"
	"github.com/promoshop/promoshop/internal/orders"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

const maxErrorBodyBytes = 16 << 10

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets callers match on the same sentinels the server maps from.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return orders.ErrInvalidTransition
	default:
		return nil
	}
}

type Config struct {
	BaseURL  string
	Timeout  time.Duration
	PageSize int
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	pageSize   int
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Client{
		baseURL:    base,
		httpClient: observability.NewHTTPClient(cfg.Timeout, base.String()),
		pageSize:   cfg.PageSize,
		logger:     logger.With("component", "order_client"),
	}, nil
}

type orderPage struct {
	Orders     []models.Order `json:"orders"`
	Pagination struct {
		Total  int `json:"total"`
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	} `json:"pagination"`
}

// ListOrders pages through the full order list, newest first.
func (c *Client) ListOrders(ctx context.Context) ([]models.Order, error) {
	var all []models.Order
	offset := 0
	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(c.pageSize))
		query.Set("offset", strconv.Itoa(offset))

		var page orderPage
		if err := c.do(ctx, http.MethodGet, "/admin/api/orders", query, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Orders...)
		offset += len(page.Orders)

		if len(page.Orders) == 0 || offset >= page.Pagination.Total {
			break
		}
	}

	logging.FromContext(ctx, c.logger).Debug("orders fetched", "count", len(all))
	return all, nil
}

func (c *Client) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (models.Order, error) {
	var order models.Order
	path := "/admin/api/orders/" + url.PathEscape(orderID) + "/status"
	err := c.do(ctx, http.MethodPatch, path, nil, map[string]string{"status": string(status)}, &order)
	return order, err
}

func (c *Client) UpdatePaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) (models.Order, error) {
	var order models.Order
	path := "/admin/api/orders/" + url.PathEscape(orderID) + "/payment"
	err := c.do(ctx, http.MethodPatch, path, nil, map[string]string{"paymentStatus": string(status)}, &order)
	return order, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var body struct {
		Message string `json:"message"`
	}
	message := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		message = body.Message
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}
