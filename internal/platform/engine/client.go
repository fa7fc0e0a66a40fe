// Package engine implements the client side of the remote execution engine
// API: a REST client for order placement and queries, and a WebSocket client
// for the pushed lifecycle-event channel.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/soltradehq/soltrade/internal/domain"
)

// Client is the REST client for the execution engine API. It implements
// domain.ExecutionGateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new execution engine REST client.
//
// baseURL is the API root, e.g. "https://engine.soltradehq.com/v1".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateOrder submits a new order and returns the engine-confirmed order
// carrying the authoritative id.
func (c *Client) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (domain.Order, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/orders", req)
	if err != nil {
		return domain.Order{}, fmt.Errorf("engine: create order: %w", err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Order{}, fmt.Errorf("engine: decode order response: %w", err)
	}

	if resp.Order.ID == "" {
		return domain.Order{}, fmt.Errorf("engine: create order: response missing order id")
	}

	return resp.Order, nil
}

// CancelOrder cancels an existing order by its id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	path := fmt.Sprintf("/orders/%s", url.PathEscape(orderID))

	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("engine: cancel order %s: %w", orderID, err)
	}

	return nil
}

// GetActiveOrders fetches the authoritative active-order snapshot for a
// wallet.
func (c *Client) GetActiveOrders(ctx context.Context, walletAddress string) ([]domain.Order, error) {
	params := url.Values{}
	params.Set("wallet", walletAddress)

	body, err := c.doRequest(ctx, http.MethodGet, "/orders?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("engine: get active orders: %w", err)
	}

	var resp ordersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("engine: decode orders: %w", err)
	}

	return resp.Orders, nil
}

// GetBalances fetches a wallet's token balances.
func (c *Client) GetBalances(ctx context.Context, walletAddress string) (domain.BalanceSnapshot, error) {
	path := fmt.Sprintf("/balances/%s", url.PathEscape(walletAddress))

	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.BalanceSnapshot{}, fmt.Errorf("engine: get balances: %w", err)
	}

	var resp balancesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.BalanceSnapshot{}, fmt.Errorf("engine: decode balances: %w", err)
	}

	return domain.BalanceSnapshot{
		WalletAddress: walletAddress,
		Balances:      resp.Balances,
		FetchedAt:     time.Now(),
	}, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doRequest builds, sends, and reads an HTTP request against the engine API.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	fullURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := c.checkStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkStatus maps non-2xx HTTP status codes to gateway errors, preserving
// sentinel semantics the store relies on.
func (c *Client) checkStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)

	gwErr := &domain.GatewayError{
		StatusCode: statusCode,
		Message:    apiErr.Error,
	}

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", domain.ErrNotFound, gwErr)
	case http.StatusConflict:
		return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, gwErr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, gwErr)
	default:
		return gwErr
	}
}
