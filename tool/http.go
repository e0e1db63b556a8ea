package tool

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTimeout bounds a single search request.
const DefaultTimeout = 30 * time.Second

func newHTTPClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
}

// checkResponse turns non-2xx responses into errors.
func checkResponse(provider string, resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	body := resp.String()
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Errorf("%s api returned status %d: %s", provider, resp.StatusCode(), body)
}
