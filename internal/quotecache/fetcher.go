package quotecache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"swapRouter/internal/model"
	"swapRouter/internal/router"
)

// DefaultDebounce is how long the fetcher waits after the latest request
// before actually fetching. Rapid input changes collapse into one fetch.
const DefaultDebounce = 300 * time.Millisecond

// FetchFunc produces a quote. The fetcher cancels the context when the
// request is superseded.
type FetchFunc func(ctx context.Context, tokenIn, tokenOut model.Token, amountIn string) (*router.QuoteResult, error)

// ResultFunc receives the outcome of a completed fetch cycle. It is never
// called for superseded cycles.
type ResultFunc func(key string, entry Entry, err error)

// ErrFetcherClosed is returned by Request after Close.
var ErrFetcherClosed = errors.New("quote fetcher closed")

// Fetcher debounces quote requests and drops results from superseded
// cycles: only the cycle matching the latest request may publish. The quote
// lands in the cache first; route detail is attached right after, so a
// concurrent reader can observe the quote without detail but never detail
// without its quote.
type Fetcher struct {
	cache    *Cache
	fetch    FetchFunc
	onResult ResultFunc
	debounce time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewFetcher builds a Fetcher. debounce <= 0 selects DefaultDebounce;
// onResult may be nil.
func NewFetcher(cache *Cache, fetch FetchFunc, onResult ResultFunc, debounce time.Duration, logger *zap.Logger) *Fetcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cache:    cache,
		fetch:    fetch,
		onResult: onResult,
		debounce: debounce,
		logger:   logger,
	}
}

// Lookup reads the cache without scheduling anything.
func (f *Fetcher) Lookup(tokenIn, tokenOut model.Token, amountIn string) (Entry, Freshness) {
	return f.cache.Get(Key(tokenIn.Address, tokenOut.Address, amountIn))
}

// Request schedules a quote fetch for the given parameters. Each call
// supersedes any pending or in-flight cycle: the debounce timer restarts and
// the previous cycle's context is cancelled. The cached entry, if any, stays
// servable throughout.
func (f *Fetcher) Request(tokenIn, tokenOut model.Token, amountIn string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFetcherClosed
	}

	f.gen++
	gen := f.gen

	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.debounce, func() {
		f.run(gen, tokenIn, tokenOut, amountIn)
	})
	return nil
}

func (f *Fetcher) run(gen uint64, tokenIn, tokenOut model.Token, amountIn string) {
	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.wg.Add(1)
	f.mu.Unlock()

	defer f.wg.Done()
	defer cancel()

	key := Key(tokenIn.Address, tokenOut.Address, amountIn)
	result, err := f.fetch(ctx, tokenIn, tokenOut, amountIn)

	f.mu.Lock()
	superseded := f.closed || gen != f.gen
	f.mu.Unlock()
	if superseded {
		f.logger.Debug("quote cycle superseded", zap.String("key", key))
		return
	}

	if err != nil {
		if f.onResult != nil {
			f.onResult(key, Entry{}, err)
		}
		return
	}

	f.cache.Set(key, result.Quote)
	f.cache.AttachRouteDetail(key, result.Detail)

	if f.onResult != nil {
		entry, _ := f.cache.Get(key)
		f.onResult(key, entry, nil)
	}
}

// Close cancels any pending timer and in-flight cycle and waits for the
// worker to drain. Further Requests fail with ErrFetcherClosed.
func (f *Fetcher) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
	}
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()

	f.wg.Wait()
}
