package browse

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/relabs-tech/promptlib/core/directory"
	"github.com/relabs-tech/promptlib/core/logger"
)

// BootFreshness is the age up to which cached boot data is used
const BootFreshness = 5 * time.Minute

// BootSaveInterval is the minimum time between two writes of live boot data to the cache
const BootSaveInterval = BootFreshness / 5

// Source is where hydrated data came from
type Source string

// all sources in order of precedence
const (
	SourceLive    Source = "live"
	SourceCache   Source = "cache"
	SourceInitial Source = "initial"
)

// ErrNoBootData is returned if neither live, cached nor initial boot data is available
var ErrNoBootData = errors.New("no boot data available")

// BootCache stores the last live boot data together with the time it was stored
type BootCache interface {
	Load(ctx context.Context) (*directory.BootData, time.Time, error)
	Save(ctx context.Context, boot *directory.BootData) error
}

// Live is the live data source of the directory
type Live interface {
	BootData(ctx context.Context) (*directory.BootData, error)
	ListApproved(ctx context.Context, q directory.Query) (*directory.Page, error)
}

// Hydrator resolves boot data and listings from the live source, falling back to
// fresh cached boot data and finally to the initial payload.
type Hydrator struct {
	live  Live
	cache BootCache
	now   func() time.Time

	mutex          sync.RWMutex
	initial        *directory.BootData
	initialPrompts []directory.Prompt
	savedAt        time.Time
}

// NewHydrator returns a hydrator. The cache is optional.
func NewHydrator(live Live, cache BootCache) *Hydrator {
	return &Hydrator{live: live, cache: cache, now: time.Now}
}

// SetInitial sets the initial payload
func (h *Hydrator) SetInitial(boot *directory.BootData, prompts []directory.Prompt) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.initial = boot
	h.initialPrompts = prompts
}

// Boot returns the boot data and its source
func (h *Hydrator) Boot(ctx context.Context) (*directory.BootData, Source, error) {
	rlog := logger.FromContext(ctx)
	boot, err := h.live.BootData(ctx)
	if err == nil {
		h.save(ctx, boot)
		return boot, SourceLive, nil
	}
	rlog.WithError(err).Warningln("live boot data unavailable")

	if h.cache != nil {
		cached, storedAt, cerr := h.cache.Load(ctx)
		if cerr != nil {
			rlog.WithError(cerr).Warningln("cannot load cached boot data")
		} else if cached != nil && !storedAt.IsZero() && h.now().Sub(storedAt) < BootFreshness {
			return cached, SourceCache, nil
		}
	}

	h.mutex.RLock()
	initial := h.initial
	h.mutex.RUnlock()
	if initial != nil {
		return initial, SourceInitial, nil
	}
	return nil, "", ErrNoBootData
}

// save writes live boot data to the cache, at most once per BootSaveInterval
func (h *Hydrator) save(ctx context.Context, boot *directory.BootData) {
	if h.cache == nil {
		return
	}
	now := h.now()
	h.mutex.Lock()
	if !h.savedAt.IsZero() && now.Sub(h.savedAt) < BootSaveInterval {
		h.mutex.Unlock()
		return
	}
	h.savedAt = now
	h.mutex.Unlock()

	if err := h.cache.Save(ctx, boot); err != nil {
		logger.FromContext(ctx).WithError(err).Warningln("cannot cache boot data")
		h.mutex.Lock()
		h.savedAt = time.Time{}
		h.mutex.Unlock()
	}
}

// Listing returns the page for the view state. When the live listing fails,
// the initial prompts stand in, but only for the pristine first page.
func (h *Hydrator) Listing(ctx context.Context, state ViewState) (*directory.Page, Source, error) {
	page, err := h.live.ListApproved(ctx, state.Query())
	if err == nil {
		return page, SourceLive, nil
	}
	h.mutex.RLock()
	prompts := h.initialPrompts
	h.mutex.RUnlock()
	if prompts == nil || !state.Pristine() {
		return nil, "", err
	}
	logger.FromContext(ctx).WithError(err).Warningln("live listing unavailable, using initial prompts")
	if len(prompts) > PageSize {
		prompts = prompts[:PageSize]
	}
	return &directory.Page{
		Prompts:    prompts,
		TotalCount: len(prompts),
		TotalPages: 1,
		Page:       1,
		Limit:      PageSize,
	}, SourceInitial, nil
}

// DisplayTotalPages is the number of pages the pagination shows, at least one
func DisplayTotalPages(page *directory.Page) int {
	if page == nil || page.TotalPages < 1 {
		return 1
	}
	return page.TotalPages
}
