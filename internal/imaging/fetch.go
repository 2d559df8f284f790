package imaging

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/starford/adcanvas/internal/apperr"
	"github.com/starford/adcanvas/internal/models"
)

// DefaultFetchTimeout bounds a single remote image download.
const DefaultFetchTimeout = 10 * time.Second

// Fetcher downloads remote images while refusing loopback and cloud
// metadata hosts.
type Fetcher struct {
	client        *http.Client
	allowLoopback bool
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLoopback permits loopback hosts. Intended for tests against httptest servers.
func WithLoopback() FetcherOption {
	return func(f *Fetcher) {
		f.allowLoopback = true
	}
}

// NewFetcher creates a Fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration, opts ...FetcherOption) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	f := &Fetcher{}
	for _, opt := range opts {
		opt(f)
	}
	f.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return f.checkHost(req.URL.Hostname())
		},
	}
	return f
}

// Load resolves ref to image bytes. Data URIs are decoded in place and
// http(s) URLs are downloaded.
func (f *Fetcher) Load(ctx context.Context, ref string) (models.Image, error) {
	if ref == "" {
		return models.Image{}, fmt.Errorf("%w: image reference is empty", apperr.ErrInvalidInput)
	}
	if IsDataURI(ref) {
		return DecodeDataURI(ref)
	}
	return f.Fetch(ctx, ref)
}

// Fetch downloads an image from an http or https URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (models.Image, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return models.Image{}, fmt.Errorf("%w: invalid URL: %v", apperr.ErrInvalidInput, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return models.Image{}, fmt.Errorf("%w: unsupported scheme %q (only http/https)", apperr.ErrInvalidInput, parsed.Scheme)
	}
	if err := f.checkHost(parsed.Hostname()); err != nil {
		return models.Image{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return models.Image{}, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return models.Image{}, fmt.Errorf("%w: download image: %v", apperr.ErrUpstreamFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return models.Image{}, fmt.Errorf("%w: download image: HTTP %d", apperr.ErrUpstreamFailure, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return models.Image{}, fmt.Errorf("%w: read image body: %v", apperr.ErrUpstreamFailure, err)
	}
	if len(data) > MaxImageSize {
		return models.Image{}, fmt.Errorf("%w: image exceeds %d bytes", apperr.ErrInvalidInput, MaxImageSize)
	}

	img := models.Image{Data: data, MIMEType: Sniff(data)}
	if err := Validate(img); err != nil {
		return models.Image{}, err
	}
	return img, nil
}

// checkHost rejects loopback and cloud metadata addresses.
func (f *Fetcher) checkHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("%w: blocked host %s", apperr.ErrInvalidInput, host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client surface DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() && !f.allowLoopback {
		return fmt.Errorf("%w: blocked loopback host %s", apperr.ErrInvalidInput, host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("%w: blocked cloud metadata host %s", apperr.ErrInvalidInput, host)
	}
	return nil
}
