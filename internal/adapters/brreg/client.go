// Package brreg is a client for the Enhetsregisteret API of
// Brønnøysundregistrene.
package brreg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"domainfinder/internal/domain"
	"domainfinder/internal/metrics"
	"domainfinder/internal/ports"
)

const (
	DefaultBaseURL   = "https://data.brreg.no/enhetsregisteret/api"
	DefaultUserAgent = "Norwegian-Companies-Crawler/1.0"
	DefaultPageSize  = 20
	MaxPageSize      = 100
)

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	PageSize  int
	// RequestsPerSecond paces requests; zero or less disables pacing.
	RequestsPerSecond float64
	// MaxElapsed bounds the retries of one request.
	MaxElapsed time.Duration
}

type Client struct {
	http       *http.Client
	base       string
	ua         string
	pageSize   int
	limiter    *rate.Limiter
	newBackOff func() backoff.BackOff
	log        *zap.Logger
	metrics    *metrics.Metrics
}

var _ ports.Registry = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l == nil {
			l = zap.NewNop()
		}
		c.log = l.Named("brreg")
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

// WithBackOff replaces the retry policy; each request gets a fresh instance.
func WithBackOff(f func() backoff.BackOff) Option { return func(c *Client) { c.newBackOff = f } }

func New(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	maxElapsed := cfg.MaxElapsed
	c := &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		ua:       cfg.UserAgent,
		pageSize: min(cfg.PageSize, MaxPageSize),
		limiter:  rate.NewLimiter(limit, 1),
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 200 * time.Millisecond
			bo.MaxElapsedTime = maxElapsed
			return bo
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchResponse struct {
	Embedded struct {
		Enheter []domain.Entity `json:"enheter"`
	} `json:"_embedded"`
	Page struct {
		Number     int `json:"number"`
		TotalPages int `json:"totalPages"`
	} `json:"page"`
}

// Search fetches one page of entities whose name matches q.Name. An empty
// name lists the register.
func (c *Client) Search(ctx context.Context, q ports.SearchQuery) (ports.SearchPage, error) {
	size := q.Size
	if size <= 0 {
		size = c.pageSize
	}
	params := url.Values{}
	params.Set("navn", q.Name)
	params.Set("page", strconv.Itoa(max(q.Page, 0)))
	params.Set("size", strconv.Itoa(min(size, MaxPageSize)))

	var resp searchResponse
	if err := c.get(ctx, "search", "/enheter?"+params.Encode(), &resp); err != nil {
		return ports.SearchPage{}, err
	}
	return ports.SearchPage{
		Entities:   resp.Embedded.Enheter,
		Number:     resp.Page.Number,
		TotalPages: resp.Page.TotalPages,
	}, nil
}

// Lookup fetches one entity by organisation number. A 404 is not an error.
func (c *Client) Lookup(ctx context.Context, orgNumber string) (domain.Entity, bool, error) {
	orgNumber = strings.TrimSpace(orgNumber)
	if orgNumber == "" {
		return nil, false, nil
	}
	var e domain.Entity
	err := c.get(ctx, "lookup", "/enheter/"+url.PathEscape(orgNumber), &e)
	if CategoryOf(err) == CategoryNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// SearchActive pages through the register collecting entities without a
// deletion date until limit are found or the pages run out. On failure the
// entities collected so far are returned with the error.
func (c *Client) SearchActive(ctx context.Context, limit int) ([]domain.Entity, error) {
	var out []domain.Entity
	if limit <= 0 {
		return out, nil
	}
	err := c.pages(ctx, -1, func(p ports.SearchPage) bool {
		for _, e := range p.Entities {
			if e.Deleted() {
				continue
			}
			out = append(out, e)
			if len(out) >= limit {
				return false
			}
		}
		return true
	})
	c.log.Info("found active companies", zap.Int("count", len(out)))
	return out, err
}

// GetAll lists up to maxPages pages of the register, deleted entities
// included.
func (c *Client) GetAll(ctx context.Context, maxPages int) ([]domain.Entity, error) {
	var out []domain.Entity
	if maxPages <= 0 {
		return out, nil
	}
	err := c.pages(ctx, maxPages, func(p ports.SearchPage) bool {
		out = append(out, p.Entities...)
		return true
	})
	c.log.Info("fetched companies", zap.Int("count", len(out)))
	return out, err
}

// pages walks search pages from 0 until fn returns false, a page is empty,
// the last page is reached or maxPages (when positive) have been read.
func (c *Client) pages(ctx context.Context, maxPages int, fn func(ports.SearchPage) bool) error {
	for page := 0; maxPages < 0 || page < maxPages; page++ {
		c.log.Debug("fetching page", zap.Int("page", page+1))
		p, err := c.Search(ctx, ports.SearchQuery{Page: page})
		if err != nil {
			c.log.Error("registry search failed", zap.Int("page", page), zap.Error(err))
			return err
		}
		if len(p.Entities) == 0 || !fn(p) || page >= p.TotalPages-1 {
			return nil
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	attempt := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(newError(CategoryTimeout, op, 0, err))
		}
		err := c.once(ctx, op, path, out)
		if err != nil {
			c.metrics.ObserveRegistryRequest(string(CategoryOf(err)))
			if !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			c.log.Debug("registry request failed, retrying", zap.String("op", op), zap.Error(err))
			return err
		}
		c.metrics.ObserveRegistryRequest("ok")
		return nil
	}
	err := backoff.Retry(attempt, backoff.WithContext(c.newBackOff(), ctx))
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrRegistry) {
		err = newError(categorize(err), op, 0, err)
	}
	return err
}

func (c *Client) once(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return newError(CategoryTransport, op, 0, err)
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return newError(categorize(err), op, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return newError(CategoryNotFound, op, resp.StatusCode, nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return newError(CategoryRateLimited, op, resp.StatusCode, nil)
	case resp.StatusCode >= 300:
		return newError(CategoryBadStatus, op, resp.StatusCode, nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newError(CategoryBadData, op, resp.StatusCode, fmt.Errorf("decode: %w", err))
	}
	return nil
}

func categorize(err error) Category {
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CategoryTimeout
	}
	return CategoryTransport
}
