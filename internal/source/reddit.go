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

// RedditPost is the subset of Reddit's public JSON API response fields this
// adapter standardizes.
type RedditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Author      string  `json:"author"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
	Over18      bool    `json:"over_18"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data RedditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// RedditConfig parameterizes RedditAdapter.Fetch.
type RedditConfig struct {
	Subreddits []string
	Sort       string // hot, new, top, rising
	TimeFilter string // hour, day, week, month, year, all
	MaxItems   int
	DenyNSFW   bool
}

// RedditAdapter fetches posts from Reddit's public JSON API (no auth
// required), applying a per-subreddit quota and the shared rate bucket.
type RedditAdapter struct {
	client   *http.Client
	bucket   *ratelimit.Bucket
	cb       *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
	logger   *slog.Logger
	baseURL  string // overridable in tests; defaults to https://www.reddit.com
}

// NewRedditAdapter constructs a RedditAdapter. Reddit-like sources get a
// 2-second base delay per §4.A.
func NewRedditAdapter(client *http.Client, logger *slog.Logger) *RedditAdapter {
	return &RedditAdapter{
		client:   client,
		bucket:   ratelimit.New(30, 10*time.Minute), // ~1 req/2s steady state
		cb:       circuitbreaker.New(circuitbreaker.SourceFetchConfig()),
		retryCfg: retry.SourceFetchConfig(),
		logger:   logger,
		baseURL:  "https://www.reddit.com",
	}
}

// Fetch pulls posts from every configured subreddit, applying the §12 quota
// tie-break across targets, and standardizing each surviving post. A single
// subreddit's failure is logged and skipped; it never aborts the others.
func (a *RedditAdapter) Fetch(ctx context.Context, cfg RedditConfig) ([]domain.StandardItem, error) {
	if len(cfg.Subreddits) == 0 {
		return nil, nil
	}
	quotas := AllocateQuota(cfg.MaxItems, len(cfg.Subreddits))

	var items []domain.StandardItem
	for i, subreddit := range cfg.Subreddits {
		posts, err := a.fetchSubreddit(ctx, subreddit, cfg.Sort, cfg.TimeFilter, quotas[i])
		if err != nil {
			a.logger.Warn("reddit: failed to collect subreddit, continuing",
				slog.String("subreddit", subreddit), slog.String("error", err.Error()))
			continue
		}
		for _, p := range posts {
			if p.Stickied || p.Author == "[deleted]" {
				continue
			}
			if cfg.DenyNSFW && p.Over18 {
				continue
			}
			items = append(items, StandardizeRedditPost(p, subreddit))
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

func (a *RedditAdapter) fetchSubreddit(ctx context.Context, subreddit, sort, timeFilter string, limit int) ([]RedditPost, error) {
	if err := a.bucket.Acquire(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/r/%s/%s.json?%s", a.baseURL, url.PathEscape(subreddit), sort, url.Values{
		"limit":    {fmt.Sprint(limit)},
		"t":        {timeFilter},
		"raw_json": {"1"},
	}.Encode())

	var listing redditListing
	retryErr := retry.WithBackoff(ctx, a.retryCfg, func() error {
		result, err := a.cb.Execute(func() (interface{}, error) {
			return a.doFetch(ctx, u)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				a.logger.Warn("reddit: circuit breaker open", slog.String("subreddit", subreddit))
			}
			return err
		}
		listing = result.(redditListing)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	posts := make([]RedditPost, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		posts = append(posts, child.Data)
	}
	return posts, nil
}

func (a *RedditAdapter) doFetch(ctx context.Context, u string) (interface{}, error) {
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
		return nil, fmt.Errorf("%w: reddit rate limited", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: reddit returned HTTP %d", domain.ErrTransientIO, resp.StatusCode)
	}
	a.bucket.ResetBackoff()

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("%w: decode reddit response: %v", domain.ErrUpstreamMalformed, err)
	}
	return listing, nil
}
