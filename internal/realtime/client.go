// Package realtime provides the shared GTFS-realtime feed client used by the
// departure and alerts pollers.
package realtime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// Client fetches and decodes GTFS-realtime protobuf feeds. The HTTP timeout
// bounds a fetch independently of the poll interval, so a stalled feed server
// cannot delay the next cycle indefinitely.
type Client struct {
	http   *http.Client
	apiKey string
}

// NewClient returns a feed client with the given fetch timeout. apiKey, when
// non-empty, is sent as the x-api-key header (MTA feed convention).
func NewClient(timeout time.Duration, apiKey string) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		apiKey: apiKey,
	}
}

// Fetch retrieves and unmarshals one feed snapshot.
func (c *Client) Fetch(ctx context.Context, url string) (*gtfs.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("failed to parse protobuf: %w", err)
	}

	return feed, nil
}
