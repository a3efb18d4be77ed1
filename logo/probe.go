package logo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// ImageProber confirms that a URL serves an image and downloads it for the
// visual checks of the rerank stage
type ImageProber interface {
	IsImage(ctx context.Context, imageURL string) bool
	Download(ctx context.Context, imageURL string) ([]byte, error)
}

// maxImageBytes caps downloads for visual analysis
const maxImageBytes = 5 << 20

// HTTPProber implements ImageProber with short-lived HEAD/GET requests
type HTTPProber struct {
	client          *resty.Client
	headTimeout     time.Duration
	getTimeout      time.Duration
	downloadTimeout time.Duration
}

// NewHTTPProber creates a prober sending the given User-Agent
func NewHTTPProber(userAgent string, headTimeout, getTimeout time.Duration) *HTTPProber {
	client := resty.New().
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "image/avif,image/webp,image/svg+xml,image/*,*/*;q=0.8").
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	if headTimeout <= 0 {
		headTimeout = 3 * time.Second
	}
	if getTimeout <= 0 {
		getTimeout = 2 * time.Second
	}

	return &HTTPProber{
		client:          client,
		headTimeout:     headTimeout,
		getTimeout:      getTimeout,
		downloadTimeout: 5 * time.Second,
	}
}

// IsImage sends a HEAD request and falls back to a streamed GET when HEAD
// fails or is refused. Any error means "not an image".
func (p *HTTPProber) IsImage(ctx context.Context, imageURL string) bool {
	if isDataImageURI(imageURL) {
		return true
	}
	if len(imageURL) < 10 || !hasImageExtension(imageURL) {
		return false
	}

	headCtx, cancel := context.WithTimeout(ctx, p.headTimeout)
	res, err := p.client.R().SetContext(headCtx).Head(imageURL)
	cancel()
	if err == nil && res.StatusCode() == http.StatusOK {
		if isImageContentType(res.Header().Get("Content-Type")) {
			return true
		}
		// ICO servers often answer HEAD with octet-stream or nothing
		if !isICOURL(imageURL) {
			return false
		}
	} else if err != nil {
		log.Debug().Err(err).Str("url", imageURL).Msg("HEAD probe failed, retrying with GET")
	}

	return p.probeGet(ctx, imageURL)
}

func (p *HTTPProber) probeGet(ctx context.Context, imageURL string) bool {
	getCtx, cancel := context.WithTimeout(ctx, p.getTimeout)
	defer cancel()

	res, err := p.client.R().SetContext(getCtx).SetDoNotParseResponse(true).Get(imageURL)
	if err != nil {
		log.Debug().Err(err).Str("url", imageURL).Msg("GET probe failed")
		return false
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() != http.StatusOK {
		return false
	}
	if isImageContentType(res.Header().Get("Content-Type")) {
		return true
	}
	if !isICOURL(imageURL) {
		return false
	}

	head := make([]byte, 4)
	if _, err := io.ReadFull(body, head); err != nil {
		return false
	}
	return isICOSignature(head)
}

// Download fetches at most maxImageBytes of the image
func (p *HTTPProber) Download(ctx context.Context, imageURL string) ([]byte, error) {
	dlCtx, cancel := context.WithTimeout(ctx, p.downloadTimeout)
	defer cancel()

	res, err := p.client.R().SetContext(dlCtx).SetDoNotParseResponse(true).Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", res.StatusCode())
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(body, maxImageBytes)); err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return buf.Bytes(), nil
}

func isImageContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "image") || strings.Contains(ct, "icon")
}

// isICOSignature checks the ICONDIR header: reserved 0, type 1 (icon) or 2 (cursor)
func isICOSignature(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	return b[0] == 0 && b[1] == 0 && (b[2] == 1 || b[2] == 2) && b[3] == 0
}
