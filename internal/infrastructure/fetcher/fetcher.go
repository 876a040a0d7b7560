// Package fetcher скачивает изображения по URL с ограничением времени, размера и частоты запросов.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/usecase"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout  = 8 * time.Second
	DefaultMaxBytes = 10 << 20
)

type Config struct {
	Timeout    time.Duration
	MaxBytes   int64
	RatePerSec float64 // 0 — без ограничения
	Burst      int
	UserAgent  string
}

// Fetcher реализует usecase.FetcherInfra. Любая ошибка оборачивает e.ErrFetch.
type Fetcher struct {
	client  *http.Client
	cfg     Config
	limiter *rate.Limiter
}

func NewFetcher(client *http.Client, cfg Config) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	limiter := rate.NewLimiter(rate.Inf, cfg.Burst)
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)
	}

	return &Fetcher{
		client:  client,
		cfg:     cfg,
		limiter: limiter,
	}
}

// Fetch скачивает изображение. Тайм-аут покрывает ожидание лимитера, запрос и чтение тела.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*usecase.FetchImageRes, error) {
	const op = "Fetcher.Fetch"

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, e.Wrap(op, e.ErrInvalidURL)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: rate limit: %v", e.ErrFetch, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrInvalidURL, err))
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrFetch, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.Wrap(op, fmt.Errorf("%w: %d", e.ErrUnexpectedStatus, resp.StatusCode))
	}

	mimeType, err := contentType(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if resp.ContentLength > f.cfg.MaxBytes {
		return nil, e.Wrap(op, fmt.Errorf("%w: content-length %d > %d", e.ErrPayloadTooLarge, resp.ContentLength, f.cfg.MaxBytes))
	}

	// Лишний байт отличает тело ровно на лимит от превышающего лимит
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: read body: %v", e.ErrFetch, err))
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, e.Wrap(op, fmt.Errorf("%w: body exceeds %d bytes", e.ErrPayloadTooLarge, f.cfg.MaxBytes))
	}
	if len(data) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: empty body", e.ErrFetch))
	}

	return usecase.NewFetchImageRes(data, mimeType), nil
}

// contentType пропускает image/*, а также application/octet-stream и пустой заголовок:
// часть CDN не указывает тип, формат всё равно определяется по сигнатуре при декодировании.
func contentType(header string) (string, error) {
	if header == "" {
		return "", nil
	}

	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return "", fmt.Errorf("%w: %q", e.ErrNotAnImage, header)
	}

	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return mediaType, nil
	case mediaType == "application/octet-stream":
		return "", nil
	default:
		return "", fmt.Errorf("%w: %s", e.ErrNotAnImage, mediaType)
	}
}
