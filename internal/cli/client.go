package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// gatewayClient talks to a running `sentinel serve` instance.
type gatewayClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func newGatewayClient() *gatewayClient {
	base := strings.TrimRight(os.Getenv("SENTINEL_URL"), "/")
	if base == "" {
		base = "http://127.0.0.1:8765"
	}
	return &gatewayClient{
		baseURL: base,
		token:   os.Getenv("SENTINEL_AUTH_TOKEN"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// call performs a request and decodes the JSON response into out. Non-2xx
// responses surface the gateway's detail message.
func (c *gatewayClient) call(method, path string, out any) error {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("X-Sentinel-Token", c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var detail struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &detail) == nil && detail.Detail != "" {
			return fmt.Errorf("gateway error %d: %s", resp.StatusCode, detail.Detail)
		}
		return fmt.Errorf("gateway error %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
