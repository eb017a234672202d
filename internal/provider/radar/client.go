// Package radar finds the current Mobile (MOB) radar loop image on the NWS
// RIDGE site.
package radar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider"
	"github.com/checkthebay/checkthebay/internal/provider/resilience"
)

const (
	// ProviderName identifies this feed.
	ProviderName = "radar"

	// DefaultPageURL is the RIDGE standard page for the Mobile radar.
	DefaultPageURL = "https://radar.weather.gov/ridge/standard/standard.php?rid=MOB"

	// FallbackImageURL is used when the page carries no recognizable image.
	FallbackImageURL = "https://radar.weather.gov/ridge/lite/N0R/MOB_0.gif"

	maxPageBytes = 2 << 20
)

var errNoImage = errors.New("no radar image on page")

// ClientConfig holds configuration for the radar scraper.
type ClientConfig struct {
	// PageURL is the page to scrape (optional).
	PageURL string

	// FallbackURL is served when the page has no radar image (optional).
	FallbackURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	Logger zerolog.Logger

	// Clock stamps images served without a Last-Modified header.
	Clock func() time.Time
}

// Client scrapes the RIDGE page.
type Client struct {
	pageURL     string
	fallbackURL string
	httpClient  *resilience.Client
	logger      zerolog.Logger
	now         func() time.Time
}

// NewClient creates a new radar scraper.
func NewClient(cfg ClientConfig) *Client {
	pageURL := cfg.PageURL
	if pageURL == "" {
		pageURL = DefaultPageURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	fallbackURL := cfg.FallbackURL
	if fallbackURL == "" {
		fallbackURL = FallbackImageURL
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	return &Client{
		pageURL:     pageURL,
		fallbackURL: fallbackURL,
		httpClient:  httpClient,
		logger:      cfg.Logger,
		now:         now,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Latest returns the radar image URL and when it was last modified.
func (c *Client) Latest(ctx context.Context) (*conditions.Radar, error) {
	imageURL, err := c.imageURL(ctx)
	if errors.Is(err, errNoImage) {
		c.logger.Debug().Str("page", c.pageURL).Msg("no radar image found, using fallback")
		imageURL = c.fallbackURL
	} else if err != nil {
		return nil, err
	}

	return &conditions.Radar{
		ImageURL:  conditions.Ptr(imageURL),
		UpdatedAt: c.lastModified(ctx, imageURL),
	}, nil
}

func (c *Client) imageURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := resilience.CheckStatus(resp); err != nil {
		return "", err
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("%w: parsing page: %w", provider.ErrMalformedResponse, err)
	}

	src := FindImageSrc(doc)
	if src == "" {
		return "", errNoImage
	}

	base, err := url.Parse(c.pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing page url: %w", err)
	}
	ref, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("%w: image src %q", provider.ErrMalformedResponse, src)
	}
	return base.ResolveReference(ref).String(), nil
}

// lastModified issues a HEAD for the image. A failed HEAD yields nil; a
// missing header yields the current time.
func (c *Client) lastModified(ctx context.Context, imageURL string) *string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, http.NoBody)
	if err != nil {
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Msg("radar HEAD failed")
		return nil
	}
	defer resp.Body.Close()

	if resilience.CheckStatus(resp) != nil {
		return nil
	}

	if raw := resp.Header.Get("Last-Modified"); raw != "" {
		if ts, err := http.ParseTime(raw); err == nil {
			return conditions.Ptr(ts.UTC().Format(time.RFC3339))
		}
	}
	return conditions.Ptr(c.now().UTC().Format(time.RFC3339))
}

// FindImageSrc returns the src of the first img naming the MOB radar, or
// failing that the first GIF. It returns "" when neither exists.
func FindImageSrc(doc *html.Node) string {
	var mob, gif string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if mob != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "img" {
			src := attr(n, "src")
			switch {
			case strings.Contains(src, "KMOB"), strings.Contains(src, "MOB"), strings.Contains(src, "mob"):
				mob = src
				return
			case gif == "" && strings.Contains(strings.ToLower(src), ".gif"):
				gif = src
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	if mob != "" {
		return mob
	}
	return gif
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
