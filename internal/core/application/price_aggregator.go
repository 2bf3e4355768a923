package application

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/x42protocol/xserverd/pkg/mathutil"
)

const (
	ownSampleCapacity     = 10
	networkSampleCapacity = 100
	consensusTrimRatio    = 0.10
)

// sampleWindow is a bounded FIFO of price observations for one currency,
// guarded by its own lock so pushing into one window never blocks reading
// another.
type sampleWindow struct {
	mtx      sync.Mutex
	capacity int
	samples  []decimal.Decimal
}

func newSampleWindow(capacity int) *sampleWindow {
	return &sampleWindow{
		capacity: capacity,
		samples:  make([]decimal.Decimal, 0, capacity),
	}
}

func (w *sampleWindow) push(price decimal.Decimal) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	if len(w.samples) >= w.capacity {
		w.samples = w.samples[1:]
	}
	w.samples = append(w.samples, price)
}

func (w *sampleWindow) snapshot() []decimal.Decimal {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	out := make([]decimal.Decimal, len(w.samples))
	copy(out, w.samples)
	return out
}

// PriceAggregator maintains rolling windows of this node's own observed
// prices and of prices reported by the network, per fiat currency, and
// computes a trimmed-mean consensus price over their union.
type PriceAggregator struct {
	mtx            sync.RWMutex
	ownWindows     map[string]*sampleWindow
	networkWindows map[string]*sampleWindow
}

// NewPriceAggregator returns an aggregator with no samples.
func NewPriceAggregator() *PriceAggregator {
	return &PriceAggregator{
		ownWindows:     map[string]*sampleWindow{},
		networkWindows: map[string]*sampleWindow{},
	}
}

func (a *PriceAggregator) window(
	windows map[string]*sampleWindow, currency string, capacity int,
) *sampleWindow {
	a.mtx.RLock()
	w, ok := windows[currency]
	a.mtx.RUnlock()
	if ok {
		return w
	}

	a.mtx.Lock()
	defer a.mtx.Unlock()
	if w, ok := windows[currency]; ok {
		return w
	}
	w = newSampleWindow(capacity)
	windows[currency] = w
	return w
}

// AddOwnSample pushes a price observed by this node, evicting the oldest
// sample on overflow.
func (a *PriceAggregator) AddOwnSample(currency string, price decimal.Decimal) {
	a.window(a.ownWindows, currency, ownSampleCapacity).push(price)
}

// AddNetworkSample pushes a price reported by a peer, evicting the oldest
// sample on overflow.
func (a *PriceAggregator) AddNetworkSample(currency string, price decimal.Decimal) {
	a.window(a.networkWindows, currency, networkSampleCapacity).push(price)
}

// ConsensusPrice concatenates both windows, trims round(10%·N) entries from
// each end and returns the mean of the remainder. With no samples it returns
// ErrInsufficientPriceData; callers must treat that as "insufficient data",
// not crash.
func (a *PriceAggregator) ConsensusPrice(currency string) (decimal.Decimal, error) {
	samples := append(
		a.window(a.ownWindows, currency, ownSampleCapacity).snapshot(),
		a.window(a.networkWindows, currency, networkSampleCapacity).snapshot()...,
	)

	price, err := mathutil.TrimmedMean(samples, consensusTrimRatio)
	if err != nil {
		return decimal.Zero, ErrInsufficientPriceData
	}
	return price, nil
}

// Samples returns the current union of windows for a currency, oldest first.
// Used by the getprices peer endpoint.
func (a *PriceAggregator) Samples(currency string) []decimal.Decimal {
	return append(
		a.window(a.ownWindows, currency, ownSampleCapacity).snapshot(),
		a.window(a.networkWindows, currency, networkSampleCapacity).snapshot()...,
	)
}
