package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPClient issues commands to the bridge.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:7880").
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// DeriveHTTPBase converts ws://host:port/ws to http://host:port.
func DeriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil || u.Host == "" {
		return "http://127.0.0.1:7880"
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}

// StartServer sends POST /api/server/start. On a non-2xx reply the decoded
// result is returned together with the error so callers can show the
// server's message.
func (c *HTTPClient) StartServer() (StartResult, error) {
	var out StartResult
	err := c.do(http.MethodPost, "/api/server/start", nil, &out)
	return out, err
}

// StopServer sends POST /api/server/stop and returns the status message.
func (c *HTTPClient) StopServer() (string, error) {
	var out StopResult
	err := c.do(http.MethodPost, "/api/server/stop", nil, &out)
	return out.Message, err
}

// RemoveClient sends DELETE /api/clients/{id}. The bridge answers with no
// body; the roster learns about the removal from the client-removed stream.
func (c *HTTPClient) RemoveClient(id int) error {
	return c.do(http.MethodDelete, "/api/clients/"+strconv.Itoa(id), nil, nil)
}

// ListClients fetches GET /api/clients.
func (c *HTTPClient) ListClients() ([]ConnectedClient, error) {
	var out []ConnectedClient
	if err := c.do(http.MethodGet, "/api/clients", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) do(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if derr := json.Unmarshal(data, out); derr != nil && resp.StatusCode < 300 {
			return fmt.Errorf("%s %s: decode: %w", method, path, derr)
		}
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
