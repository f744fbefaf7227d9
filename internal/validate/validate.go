// Package validate checks auto-reply content against the outside world:
// image URLs must serve an image and LINE sticker ids must exist on the
// sticker CDN. Every check is bounded by a timeout, and a check that cannot
// complete counts as invalid. Results are cached for a short while so a
// burst of edits does not hammer the remote hosts.
package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-autoreply-backend/internal/domain"
)

// DefaultStickerURLTemplate resolves a LINE sticker id to its image.
const DefaultStickerURLTemplate = "https://stickershop.line-scdn.net/stickershop/v1/sticker/%s/android/sticker.png"

// ImageValidator reports whether url serves an image.
type ImageValidator interface {
	IsImage(ctx context.Context, url string) bool
}

// StickerValidator reports whether a LINE sticker exists.
type StickerValidator interface {
	StickerExists(ctx context.Context, id string) bool
}

// ContentValidator dispatches on content type. A nil validator accepts
// everything of its type.
type ContentValidator struct {
	Images   ImageValidator
	Stickers StickerValidator
}

// Valid reports whether c may be stored. Structural rules (non-empty text,
// URL syntax, numeric sticker ids) are checked by the model layer.
func (v ContentValidator) Valid(ctx context.Context, c domain.Content) bool {
	switch c.Type {
	case domain.ContentImage:
		return v.Images == nil || v.Images.IsImage(ctx, c.Body)
	case domain.ContentLineSticker:
		return v.Stickers == nil || v.Stickers.StickerExists(ctx, c.Body)
	}
	return true
}

// Options configures the HTTP validators.
type Options struct {
	Timeout            time.Duration
	CacheTTL           time.Duration
	CacheSize          int
	StickerURLTemplate string
	Client             *http.Client
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 10 * time.Minute
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 512
	}
	if o.StickerURLTemplate == "" {
		o.StickerURLTemplate = DefaultStickerURLTemplate
	}
	if o.Client == nil {
		o.Client = &http.Client{}
	}
	return o
}

// HTTP validates images and stickers with HEAD (falling back to GET)
// requests.
type HTTP struct {
	opts  Options
	cache *expirable.LRU[string, bool]
}

// NewHTTP builds an HTTP validator.
func NewHTTP(o Options) *HTTP {
	o = o.withDefaults()
	return &HTTP{opts: o, cache: expirable.NewLRU[string, bool](o.CacheSize, nil, o.CacheTTL)}
}

// Content returns a ContentValidator backed by h.
func (h *HTTP) Content() ContentValidator {
	return ContentValidator{Images: h, Stickers: h}
}

// IsImage reports whether url answers 2xx with an image content type.
func (h *HTTP) IsImage(ctx context.Context, url string) bool {
	return h.cached(ctx, "img:"+url, url, func(resp *http.Response) bool {
		return strings.HasPrefix(strings.ToLower(resp.Header.Get("Content-Type")), "image/")
	})
}

// StickerExists reports whether the sticker image for id is served.
func (h *HTTP) StickerExists(ctx context.Context, id string) bool {
	url := fmt.Sprintf(h.opts.StickerURLTemplate, id)
	return h.cached(ctx, "stk:"+id, url, func(*http.Response) bool { return true })
}

func (h *HTTP) cached(ctx context.Context, key, url string, accept func(*http.Response) bool) bool {
	if ok, hit := h.cache.Get(key); hit {
		return ok
	}
	ok, err := h.probe(ctx, url, accept)
	if err != nil {
		// transport failures are not cached, the next edit retries
		log.Warn().Err(err).Str("url", url).Msg("content validation failed")
		return false
	}
	h.cache.Add(key, ok)
	return ok
}

func (h *HTTP) probe(ctx context.Context, url string, accept func(*http.Response) bool) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()

	resp, err := h.do(ctx, http.MethodHead, url)
	if err == nil && resp.StatusCode == http.StatusMethodNotAllowed {
		resp, err = h.do(ctx, http.MethodGet, url)
	}
	if err != nil {
		return false, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, nil
	}
	return accept(resp), nil
}

func (h *HTTP) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.opts.Client.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp, nil
}
