// Package websites harvests further candidate domains from the links on a
// company's verified home pages.
package websites

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"domainfinder/internal/domain"
	"domainfinder/internal/services/candidates"
)

const (
	DefaultMaxPages = 2
	maxBodyBytes    = 1 << 20
	minTokenLen     = 3
)

var allowedTLDs = map[string]bool{"no": true, "com": true, "org": true, "net": true}

type Config struct {
	Timeout   time.Duration
	UserAgent string
	MaxPages  int
}

type Harvester struct {
	client   *http.Client
	ua       string
	maxPages int
	pageURL  func(host string) string
	log      *zap.Logger
}

type Option func(*Harvester)

func WithHTTPClient(c *http.Client) Option { return func(h *Harvester) { h.client = c } }

// WithPageURL overrides how a verified host maps to the page fetched.
func WithPageURL(f func(host string) string) Option { return func(h *Harvester) { h.pageURL = f } }

func WithLogger(l *zap.Logger) Option {
	return func(h *Harvester) {
		if l == nil {
			l = zap.NewNop()
		}
		h.log = l.Named("websites")
	}
}

func New(cfg Config, opts ...Option) *Harvester {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	h := &Harvester{
		client:   &http.Client{Timeout: cfg.Timeout},
		ua:       cfg.UserAgent,
		maxPages: cfg.MaxPages,
		pageURL:  func(host string) string { return "https://" + host + "/" },
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Expand fetches up to MaxPages of the verified hosts and returns the
// registrable domains they link to whose first label contains the first word
// of the entity name. Fetch failures are logged and skipped.
func (h *Harvester) Expand(ctx context.Context, e domain.Entity, verified []string) []string {
	words := candidates.Words(e.Name())
	if len(words) == 0 || len(words[0]) < minTokenLen {
		return nil
	}
	token := words[0]

	found := candidates.Set{}
	for i, host := range verified {
		if i >= h.maxPages || ctx.Err() != nil {
			break
		}
		links, err := h.links(ctx, h.pageURL(host))
		if err != nil {
			h.log.Debug("harvest failed", zap.String("host", host), zap.Error(err))
			continue
		}
		for _, l := range links {
			if d, ok := Registrable(l); ok && strings.Contains(firstLabel(d), token) {
				found.Add(d)
			}
		}
	}
	return found.Sorted()
}

func (h *Harvester) links(ctx context.Context, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if h.ua != "" {
		req.Header.Set("User-Agent", h.ua)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	base := resp.Request.URL
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		u, err := base.Parse(strings.TrimSpace(href))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		out = append(out, u.String())
	})
	return out, nil
}

// Registrable reduces a link to its eTLD+1 when the public suffix is one of
// .no, .com, .org or .net.
func Registrable(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return "", false
	}
	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann || !allowedTLDs[suffix] {
		return "", false
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", false
	}
	return d, true
}

func firstLabel(d string) string {
	label, _, _ := strings.Cut(d, ".")
	return label
}
