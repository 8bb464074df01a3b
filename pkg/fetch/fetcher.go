package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"site-archiver/pkg/utils"
)

// Fetcher performs HTTP requests on behalf of the crawl engine and the
// download pipeline. A 2xx response is returned with its body open (the
// caller must close it); any other status is drained, closed, and surfaced
// as a categorized error. Retry policy is deliberately not implemented here:
// page fetch failures are recovered by skipping the page, and the download
// pipeline owns its own fixed-delay retry loop.
type Fetcher interface {
	// Get issues a GET for the given URL.
	Get(ctx context.Context, rawURL string) (*http.Response, error)
	// Head issues a HEAD for the given URL, used for the download
	// idempotence check. The body is already closed on return.
	Head(ctx context.Context, rawURL string) (*http.Response, error)
}

// Client is the production Fetcher backed by a configured http.Client.
type Client struct {
	http      *http.Client
	userAgent string
	log       *logrus.Entry
}

// NewFetcher creates a Client wrapping the given http.Client.
func NewFetcher(httpClient *http.Client, userAgent string, log *logrus.Entry) *Client {
	return &Client{
		http:      httpClient,
		userAgent: userAgent,
		log:       log,
	}
}

// Get implements Fetcher.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, rawURL)
}

// Head implements Fetcher.
func (c *Client) Head(ctx context.Context, rawURL string) (*http.Response, error) {
	resp, err := c.do(ctx, http.MethodHead, rawURL)
	if resp != nil {
		// HEAD responses carry no body worth keeping open
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, reqErr := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if reqErr != nil {
		return nil, fmt.Errorf("%w: %s '%s': %w", utils.ErrRequestCreation, method, rawURL, reqErr)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	statusCode := resp.StatusCode
	if statusCode >= 200 && statusCode < 300 {
		c.log.WithFields(logrus.Fields{"url": rawURL, "method": method, "status_code": statusCode}).Debug("Fetched")
		return resp, nil
	}

	// Non-2xx: drain and close so the connection can be reused, then
	// surface a categorized error. The response is still returned for
	// callers that want to inspect headers.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch {
	case statusCode >= 500:
		return resp, fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, resp.Status)
	case statusCode >= 400:
		return resp, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, resp.Status)
	default:
		return resp, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, resp.Status)
	}
}
