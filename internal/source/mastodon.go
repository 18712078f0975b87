package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/ratelimit"
	"contentpipeline/internal/resilience/circuitbreaker"
	"contentpipeline/internal/resilience/retry"
)

// MastodonAccount is the subset of a Mastodon account object used here.
type MastodonAccount struct {
	Acct string `json:"acct"`
}

// MastodonStatus is the subset of a Mastodon status object this adapter
// standardizes.
type MastodonStatus struct {
	ID              string           `json:"id"`
	Content         string           `json:"content"`
	SpoilerText     string           `json:"spoiler_text"`
	URL             string           `json:"url"`
	CreatedAt       string           `json:"created_at"`
	ReblogsCount    int              `json:"reblogs_count"`
	FavouritesCount int              `json:"favourites_count"`
	Sensitive       bool             `json:"sensitive"`
	InReplyToID     *string          `json:"in_reply_to_id"`
	Account         MastodonAccount  `json:"account"`
}

// MastodonConfig parameterizes MastodonAdapter.Fetch.
type MastodonConfig struct {
	Instances       []string // instance hostnames, e.g. "mastodon.social"
	Timeline        string   // "public" or "tag/<name>"
	MaxItems        int
	MinFavourites   int
	ExcludeReplies  bool
	DenySensitive   bool
}

// MastodonAdapter fetches statuses from one or more Mastodon instances'
// public timeline API, applying a per-instance quota and the shared rate
// bucket. Mastodon-like sources get a 1-second base delay per §4.A.
type MastodonAdapter struct {
	client   *http.Client
	bucket   *ratelimit.Bucket
	cb       *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
	logger   *slog.Logger
	scheme   string // overridable in tests; defaults to https
}

// NewMastodonAdapter constructs a MastodonAdapter.
func NewMastodonAdapter(client *http.Client, logger *slog.Logger) *MastodonAdapter {
	return &MastodonAdapter{
		client:   client,
		bucket:   ratelimit.New(60, 5*time.Minute), // ~1 req/s steady state
		cb:       circuitbreaker.New(circuitbreaker.SourceFetchConfig()),
		retryCfg: retry.SourceFetchConfig(),
		logger:   logger,
		scheme:   "https",
	}
}

// Fetch pulls statuses from every configured instance, applying the quota
// tie-break, engagement threshold, and reply/sensitive filters before
// standardizing. A single instance's failure is logged and skipped.
func (a *MastodonAdapter) Fetch(ctx context.Context, cfg MastodonConfig) ([]domain.StandardItem, error) {
	if len(cfg.Instances) == 0 {
		return nil, nil
	}
	quotas := AllocateQuota(cfg.MaxItems, len(cfg.Instances))

	var items []domain.StandardItem
	for i, instance := range cfg.Instances {
		statuses, err := a.fetchTimeline(ctx, instance, cfg.Timeline, quotas[i])
		if err != nil {
			a.logger.Warn("mastodon: failed to collect instance, continuing",
				slog.String("instance", instance), slog.String("error", err.Error()))
			continue
		}
		for _, s := range statuses {
			if cfg.ExcludeReplies && s.InReplyToID != nil {
				continue
			}
			if cfg.DenySensitive && s.Sensitive {
				continue
			}
			if s.FavouritesCount < cfg.MinFavourites {
				continue
			}
			items = append(items, StandardizeMastodonStatus(s, instance))
		}
		if len(items) >= cfg.MaxItems {
			break
		}
	}
	if len(items) > cfg.MaxItems {
		items = items[:cfg.MaxItems]
	}
	return items, nil
}

func (a *MastodonAdapter) fetchTimeline(ctx context.Context, instance, timeline string, limit int) ([]MastodonStatus, error) {
	if err := a.bucket.Acquire(ctx); err != nil {
		return nil, err
	}

	path := "/api/v1/timelines/public"
	if len(timeline) > 4 && timeline[:4] == "tag/" {
		path = "/api/v1/timelines/tag/" + url.PathEscape(timeline[4:])
	}
	u := fmt.Sprintf("%s://%s%s?%s", a.scheme, instance, path, url.Values{"limit": {fmt.Sprint(limit)}}.Encode())

	var statuses []MastodonStatus
	retryErr := retry.WithBackoff(ctx, a.retryCfg, func() error {
		result, err := a.cb.Execute(func() (interface{}, error) {
			return a.doFetch(ctx, u)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				a.logger.Warn("mastodon: circuit breaker open", slog.String("instance", instance))
			}
			return err
		}
		statuses = result.([]MastodonStatus)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return statuses, nil
}

func (a *MastodonAdapter) doFetch(ctx context.Context, u string) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrValidation, err)
	}
	req.Header.Set("User-Agent", "contentpipeline-collector/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientIO, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		a.bucket.Handle429(0)
		return nil, fmt.Errorf("%w: mastodon rate limited", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: mastodon returned HTTP %d", domain.ErrTransientIO, resp.StatusCode)
	}
	a.bucket.ResetBackoff()

	var statuses []MastodonStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("%w: decode mastodon response: %v", domain.ErrUpstreamMalformed, err)
	}
	return statuses, nil
}
