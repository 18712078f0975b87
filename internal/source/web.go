package source

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/sony/gobreaker"

	"contentpipeline/internal/domain"
	"contentpipeline/internal/ratelimit"
	"contentpipeline/internal/resilience/circuitbreaker"
)

const (
	webMaxBodySize = 5 << 20 // 5 MiB
	webMaxRedirects = 5
)

// WebConfig parameterizes WebAdapter.Fetch: a curated list of article URLs
// (this source has no pagination of its own — the operator supplies links).
type WebConfig struct {
	URLs           []string
	DenyPrivateIPs bool
}

// WebAdapter extracts article content from a curated URL list via the
// Readability algorithm, falling back to goquery's <title> when Readability
// can't produce one.
type WebAdapter struct {
	client *http.Client
	bucket *ratelimit.Bucket
	cb     *circuitbreaker.CircuitBreaker
	logger *slog.Logger
}

// NewWebAdapter constructs a WebAdapter with redirect-target SSRF
// validation and a size-limited, TLS 1.2-minimum HTTP client.
func NewWebAdapter(logger *slog.Logger, denyPrivateIPs bool) *WebAdapter {
	a := &WebAdapter{
		bucket: ratelimit.New(60, time.Minute),
		cb:     circuitbreaker.New(circuitbreaker.WebScraperConfig()),
		logger: logger,
	}
	a.client = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= webMaxRedirects {
				return fmt.Errorf("%w: too many redirects", domain.ErrValidation)
			}
			return ValidateURL(req.URL.String(), denyPrivateIPs)
		},
	}
	return a
}

// Fetch extracts one StandardItem per URL. A single URL's failure is logged
// and skipped.
func (a *WebAdapter) Fetch(ctx context.Context, cfg WebConfig) ([]domain.StandardItem, error) {
	var items []domain.StandardItem
	for _, u := range cfg.URLs {
		item, err := a.fetchOne(ctx, u, cfg.DenyPrivateIPs)
		if err != nil {
			a.logger.Warn("web: failed to fetch page, continuing",
				slog.String("url", u), slog.String("error", err.Error()))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (a *WebAdapter) fetchOne(ctx context.Context, rawURL string, denyPrivateIPs bool) (domain.StandardItem, error) {
	if err := ValidateURL(rawURL, denyPrivateIPs); err != nil {
		return domain.StandardItem{}, err
	}
	if err := a.bucket.Acquire(ctx); err != nil {
		return domain.StandardItem{}, err
	}

	result, err := a.cb.Execute(func() (interface{}, error) {
		return a.doFetch(ctx, rawURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			a.logger.Warn("web: circuit breaker open", slog.String("url", rawURL))
		}
		return domain.StandardItem{}, err
	}
	a.bucket.ResetBackoff()
	return result.(domain.StandardItem), nil
}

func (a *WebAdapter) doFetch(ctx context.Context, rawURL string) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrValidation, err)
	}
	req.Header.Set("User-Agent", "contentpipeline-collector/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransientIO, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: web fetch returned HTTP %d", domain.ErrTransientIO, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, webMaxBodySize+1)
	htmlBytes, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrTransientIO, err)
	}
	if len(htmlBytes) > webMaxBodySize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", domain.ErrValidation, webMaxBodySize)
	}

	parsedURL, _ := url.Parse(rawURL)
	if resp.Request != nil && resp.Request.URL != nil {
		parsedURL = resp.Request.URL
	}

	article, err := readability.FromReader(io.NopCloser(bytes.NewReader(htmlBytes)), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: readability extraction: %v", domain.ErrUpstreamMalformed, err)
	}

	title := article.Title
	content := article.TextContent
	if content == "" {
		content = article.Content
	}
	if title == "" {
		title = extractTitleFallback(htmlBytes)
	}

	return StandardizeWebPage(rawURL, title, content), nil
}

func extractTitleFallback(htmlBytes []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBytes))
	if err != nil {
		return ""
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		return strings.TrimSpace(t)
	}
	return ""
}
