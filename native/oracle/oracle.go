package oracle

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"stablecore/core/events"
)

var (
	// ErrStalePrice indicates the quote's observation timestamp is older than
	// the configured maximum age.
	ErrStalePrice = errors.New("oracle: stale price data")
	// ErrInvalidPrice indicates the feed reported a zero or negative price.
	ErrInvalidPrice = errors.New("oracle: price must be positive")
	// ErrLowConfidence indicates the quote's confidence percentage sits below
	// the acceptance threshold.
	ErrLowConfidence = errors.New("oracle: price confidence below threshold")
	// ErrPriceDeviation indicates the primary and backup feeds disagree by
	// more than the tolerated percentage.
	ErrPriceDeviation = errors.New("oracle: feed prices deviate beyond tolerance")
	// ErrFeedNotFound indicates the requested feed identifier is unknown to
	// the price source.
	ErrFeedNotFound = errors.New("oracle: feed not found")
)

const (
	// MaxQuoteAge bounds how old a quote may be relative to the caller's
	// clock before it is rejected as stale.
	MaxQuoteAge = 100 * time.Second
	// ConfidenceThreshold is the minimum confidence percentage a quote must
	// carry to be accepted.
	ConfidenceThreshold = 80
	// MaxDeviationPercent is the tolerated disagreement between the primary
	// and backup feeds.
	MaxDeviationPercent = 5
)

// PriceData is an ephemeral quote reported by a price feed. Price is signed
// because upstream oracles can report negative values on malfunction; the
// aggregator rejects anything non-positive.
type PriceData struct {
	Price     int64
	Conf      uint64
	Timestamp time.Time
}

// PriceFeed resolves a quote for the supplied feed identifier. Implementations
// may enforce their own freshness window using maxAge and now, or return raw
// data and leave validation to the aggregator.
type PriceFeed interface {
	Price(feedID string, maxAge time.Duration, now time.Time) (PriceData, error)
}

// Aggregator validates quotes from a primary and a backup feed and produces a
// single trusted USD price. The backup feed being unavailable downgrades the
// aggregator to a primary-only degraded mode with a surfaced warning; every
// other validation failure aborts with a specific error.
type Aggregator struct {
	feed      PriceFeed
	primaryID string
	backupID  string
	maxAge    time.Duration
	emitter   events.Emitter
}

// NewAggregator constructs an aggregator over the supplied feed source with
// the default freshness window.
func NewAggregator(feed PriceFeed, primaryID, backupID string) *Aggregator {
	return &Aggregator{
		feed:      feed,
		primaryID: primaryID,
		backupID:  backupID,
		maxAge:    MaxQuoteAge,
		emitter:   events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter used for degraded-mode warnings.
// Passing nil resets the emitter to a no-op implementation.
func (a *Aggregator) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		a.emitter = events.NoopEmitter{}
		return
	}
	a.emitter = emitter
}

// SetMaxAge updates the freshness window applied when validating quotes.
func (a *Aggregator) SetMaxAge(maxAge time.Duration) {
	if a == nil || maxAge <= 0 {
		return
	}
	a.maxAge = maxAge
}

// ValidatedPrice fetches both feeds, cross-checks them, and returns the
// arithmetic mean of the two prices. When the backup feed is unavailable the
// primary price is returned alone and a degraded-mode warning is emitted.
func (a *Aggregator) ValidatedPrice(now time.Time) (uint64, error) {
	if a == nil || a.feed == nil {
		return 0, fmt.Errorf("oracle: aggregator not configured")
	}
	primary, err := a.validatedFeedPrice(a.primaryID, now)
	if err != nil {
		return 0, err
	}
	backup, err := a.validatedFeedPrice(a.backupID, now)
	if err != nil {
		slog.Warn("oracle: backup feed unavailable, proceeding with primary only",
			"primary", a.primaryID, "backup", a.backupID, "error", err)
		a.emitter.Emit(events.OracleDegraded{
			PrimaryFeed: a.primaryID,
			BackupFeed:  a.backupID,
			Reason:      err.Error(),
		})
		return primary, nil
	}
	deviation := PriceDeviation(primary, backup)
	if deviation > MaxDeviationPercent {
		return 0, fmt.Errorf("%w: %d%%", ErrPriceDeviation, deviation)
	}
	return mean(primary, backup), nil
}

// PrimaryPrice validates and returns the primary feed price alone. The
// inverse USD conversion uses it so repeated liquidation maths stay anchored
// to a single feed.
func (a *Aggregator) PrimaryPrice(now time.Time) (uint64, error) {
	if a == nil || a.feed == nil {
		return 0, fmt.Errorf("oracle: aggregator not configured")
	}
	return a.validatedFeedPrice(a.primaryID, now)
}

func (a *Aggregator) validatedFeedPrice(feedID string, now time.Time) (uint64, error) {
	data, err := a.feed.Price(feedID, a.maxAge, now)
	if err != nil {
		return 0, err
	}
	if data.Timestamp.IsZero() || now.Sub(data.Timestamp) > a.maxAge {
		return 0, fmt.Errorf("%w: feed %s observed at %s", ErrStalePrice, feedID, data.Timestamp)
	}
	if data.Price <= 0 {
		return 0, fmt.Errorf("%w: feed %s reported %d", ErrInvalidPrice, feedID, data.Price)
	}
	price := uint64(data.Price)
	confidence := uint64(0)
	if data.Conf <= math.MaxUint64/100 {
		confidence = data.Conf * 100 / price
	} else {
		confidence = data.Conf / price * 100
	}
	if confidence < ConfidenceThreshold {
		return 0, fmt.Errorf("%w: feed %s at %d%%", ErrLowConfidence, feedID, confidence)
	}
	return price, nil
}

// PriceDeviation reports the percentage disagreement between two prices. A
// zero price on either side is defined as maximum deviation rather than a
// division fault.
func PriceDeviation(price1, price2 uint64) uint64 {
	if price1 == 0 || price2 == 0 {
		return 100
	}
	maxPrice, minPrice := price1, price2
	if price2 > price1 {
		maxPrice, minPrice = price2, price1
	}
	diff := maxPrice - minPrice
	if diff > math.MaxUint64/100 {
		return 100
	}
	return diff * 100 / minPrice
}

func mean(a, b uint64) uint64 {
	// Overflow-safe floor of (a+b)/2.
	return a/2 + b/2 + (a%2+b%2)/2
}
