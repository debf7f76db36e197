package oracle

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ManualFeed provides an in-memory feed implementation used for tests and
// manual overrides during incident response. It returns stored quotes verbatim
// and leaves freshness validation to the aggregator.
type ManualFeed struct {
	mu     sync.RWMutex
	quotes map[string]PriceData
}

// NewManualFeed constructs an empty manual feed instance.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{quotes: make(map[string]PriceData)}
}

// Set stores the supplied quote under the feed identifier.
func (m *ManualFeed) Set(feedID string, data PriceData) {
	if m == nil {
		return
	}
	trimmed := strings.TrimSpace(feedID)
	if trimmed == "" {
		return
	}
	m.mu.Lock()
	m.quotes[trimmed] = data
	m.mu.Unlock()
}

// Price retrieves the stored quote for the feed identifier.
func (m *ManualFeed) Price(feedID string, _ time.Duration, _ time.Time) (PriceData, error) {
	if m == nil {
		return PriceData{}, fmt.Errorf("manual feed not configured")
	}
	m.mu.RLock()
	data, ok := m.quotes[strings.TrimSpace(feedID)]
	m.mu.RUnlock()
	if !ok {
		return PriceData{}, fmt.Errorf("%w: %s", ErrFeedNotFound, feedID)
	}
	return data, nil
}

// HTTPDoer abstracts http.Client for ease of testing.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPFeed fetches quotes from a JSON price endpoint. The endpoint is expected
// to answer GET requests carrying the feed identifier and maximum age as query
// parameters with a {price, conf, timestamp} payload.
type HTTPFeed struct {
	client   HTTPDoer
	endpoint string
	apiKey   string
}

// NewHTTPFeed constructs an HTTP feed adapter. When the client is nil
// http.DefaultClient is used. The API key is optional and only added to the
// request headers when supplied.
func NewHTTPFeed(client HTTPDoer, endpoint, apiKey string) *HTTPFeed {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFeed{client: client, endpoint: strings.TrimSpace(endpoint), apiKey: strings.TrimSpace(apiKey)}
}

func (f *HTTPFeed) Price(feedID string, maxAge time.Duration, _ time.Time) (PriceData, error) {
	if f == nil || f.endpoint == "" {
		return PriceData{}, fmt.Errorf("http feed not configured")
	}
	req, err := http.NewRequest(http.MethodGet, f.endpoint, nil)
	if err != nil {
		return PriceData{}, err
	}
	values := url.Values{}
	values.Set("feed", strings.TrimSpace(feedID))
	values.Set("max_age", fmt.Sprintf("%d", int64(maxAge/time.Second)))
	req.URL.RawQuery = values.Encode()
	if f.apiKey != "" {
		req.Header.Set("x-api-key", f.apiKey)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return PriceData{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return PriceData{}, fmt.Errorf("%w: %s", ErrFeedNotFound, feedID)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return PriceData{}, fmt.Errorf("http feed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var payload struct {
		Price     int64  `json:"price"`
		Conf      uint64 `json:"conf"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return PriceData{}, fmt.Errorf("http feed: decode: %w", err)
	}
	return PriceData{
		Price:     payload.Price,
		Conf:      payload.Conf,
		Timestamp: time.Unix(payload.Timestamp, 0),
	}, nil
}
