package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/jadwal/internal/httpclient"
	"github.com/fortuna/jadwal/internal/reconciliation"
)

// CacheKey is where a fetched index is kept in the shared cache
const CacheKey = "jadwal:logos"

// ErrNoLogoIndex means no usable index could be obtained for this run
var ErrNoLogoIndex = errors.New("logo index unavailable")

var imageExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".svg": true, ".webp": true, ".gif": true,
}

// Cache stores a fetched index between runs
type Cache interface {
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// Directory fetches the logo listing from the external directory service
type Directory struct {
	url      string
	client   *http.Client
	cache    Cache
	cacheTTL time.Duration
	logger   *logrus.Logger
}

// NewDirectory creates a directory client for listingURL
func NewDirectory(listingURL string, client *http.Client, logger *logrus.Logger) *Directory {
	return &Directory{url: listingURL, client: client, logger: logger}
}

// WithCache makes Fetch consult and refresh c; ttl <= 0 disables caching
func (d *Directory) WithCache(c Cache, ttl time.Duration) *Directory {
	d.cache = c
	d.cacheTTL = ttl
	return d
}

// Fetch returns the logo index, from cache when fresh, else from the listing
func (d *Directory) Fetch(ctx context.Context) (LogoIndex, error) {
	if d.url == "" {
		return nil, fmt.Errorf("%w: no directory url configured", ErrNoLogoIndex)
	}

	if d.cache != nil && d.cacheTTL > 0 {
		var cached LogoIndex
		hit, err := d.cache.GetJSON(ctx, CacheKey, &cached)
		if err != nil {
			d.logger.WithError(err).Warn("⚠️  Logo cache read failed")
		} else if hit && len(cached) > 0 {
			d.logger.WithField("logos", len(cached)).Debug("Logo index served from cache")
			return cached, nil
		}
	}

	body, header, err := httpclient.Get(ctx, d.client, d.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoLogoIndex, err)
	}

	var idx LogoIndex
	if isJSON(header.Get("Content-Type"), body) {
		idx, err = ParseJSONIndex(body)
	} else {
		idx, err = ParseListing(d.url, body)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoLogoIndex, err)
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: listing had no logos", ErrNoLogoIndex)
	}

	if d.cache != nil && d.cacheTTL > 0 {
		if err := d.cache.SetJSON(ctx, CacheKey, idx, d.cacheTTL); err != nil {
			d.logger.WithError(err).Warn("⚠️  Logo cache write failed")
		}
	}

	d.logger.WithField("logos", len(idx)).Info("✓ Fetched logo index")
	return idx, nil
}

func isJSON(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// ParseJSONIndex accepts {"Arsenal": "https://.../arsenal.png", ...}
func ParseJSONIndex(body []byte) (LogoIndex, error) {
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decoding logo index: %w", err)
	}
	idx := make(LogoIndex, len(raw))
	for name, logo := range raw {
		if key := reconciliation.LookupKey(name); key != "" && logo != "" {
			idx[key] = logo
		}
	}
	return idx, nil
}

// ParseListing reads an HTML directory listing of image files.
// Keys are file base names without extension; values are absolute URLs.
func ParseListing(listingURL string, body []byte) (LogoIndex, error) {
	base, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("parsing listing url: %w", err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing listing html: %w", err)
	}

	idx := make(LogoIndex)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil || ref.RawQuery != "" {
			return
		}
		file := path.Base(ref.Path)
		ext := strings.ToLower(path.Ext(file))
		if !imageExt[ext] {
			return
		}
		key := reconciliation.LookupKey(strings.TrimSuffix(file, path.Ext(file)))
		if key == "" {
			return
		}
		if _, dup := idx[key]; !dup {
			idx[key] = base.ResolveReference(ref).String()
		}
	})
	return idx, nil
}
