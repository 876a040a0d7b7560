package usecase

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/decoder"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/handcrafted"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/hasher"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/preprocess"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/session"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fakeBackend возвращает первые outLen значений входного тензора, сдвинутые на 1.
type fakeBackend struct {
	mu      sync.Mutex
	outLen  int
	errs    []error // ошибки по порядку вызовов, затем успех
	panics  bool
	empty   bool
	calls   int
	lastLen int
}

func (b *fakeBackend) Run(input *domain.Tensor) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls++
	b.lastLen = len(input.Data)
	if b.panics {
		panic("segfault in kernel")
	}
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		return nil, err
	}
	if b.empty {
		return nil, nil
	}

	out := make([]float32, b.outLen)
	for i := range out {
		out[i] = input.Data[i%len(input.Data)] + 1
	}
	return out, nil
}

func (b *fakeBackend) Close() error { return nil }

func (b *fakeBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type countingLoader struct {
	calls   atomic.Int32
	backend domain.InferenceBackend
	err     error
}

func (l *countingLoader) Load(string) (domain.InferenceBackend, error) {
	l.calls.Add(1)
	return l.backend, l.err
}

// loadedManager возвращает менеджер сессий с моделью-заглушкой на диске.
func loadedManager(t *testing.T, backend domain.InferenceBackend) (*session.Manager, *countingLoader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte("onnx"), 0o600))

	loader := &countingLoader{backend: backend}
	return session.NewManager(path, loader, logger.NewNopLogger()), loader
}

func absentManager(t *testing.T) (*session.Manager, *countingLoader) {
	t.Helper()
	loader := &countingLoader{backend: &fakeBackend{outLen: domain.FeatureDim}}
	return session.NewManager(filepath.Join(t.TempDir(), "missing.onnx"), loader, logger.NewNopLogger()), loader
}

type fakeFetcher struct {
	calls atomic.Int32
	res   *FetchImageRes
	err   error
}

func (f *fakeFetcher) Fetch(context.Context, string) (*FetchImageRes, error) {
	f.calls.Add(1)
	return f.res, f.err
}

func newFingerprintUC(sessions ModelSessionProvider, fetcher FetcherInfra) *FingerprintUseCase {
	return NewFingerprintUC(
		sessions,
		decoder.NewCodec(),
		preprocess.NewPreprocessor(8),
		handcrafted.NewExtractor(logger.NewNopLogger()),
		hasher.NewHasher(),
		fetcher,
		"test-model-v1",
		2,
		logger.NewNopLogger(),
	)
}

type fakeTx struct {
	calls atomic.Int32
}

func (f *fakeTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls.Add(1)
	return fn(ctx)
}

type fakeFingerprintRepo struct {
	mu    sync.Mutex
	items map[domain.ContentHash]*domain.Fingerprint
	err   error
}

func newFakeFingerprintRepo() *fakeFingerprintRepo {
	return &fakeFingerprintRepo{items: map[domain.ContentHash]*domain.Fingerprint{}}
}

func (r *fakeFingerprintRepo) Upsert(_ context.Context, fp *domain.Fingerprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.items[fp.ContentHash] = fp
	return nil
}

func (r *fakeFingerprintRepo) GetByHash(_ context.Context, hash domain.ContentHash) (*domain.Fingerprint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fp, ok := r.items[hash]
	if !ok {
		return nil, e.ErrFingerprintNotFound
	}
	return fp, nil
}

type fakeProductImageRepo struct {
	mu    sync.Mutex
	links map[domain.ContentHash][]int64
}

func newFakeProductImageRepo() *fakeProductImageRepo {
	return &fakeProductImageRepo{links: map[domain.ContentHash][]int64{}}
}

func (r *fakeProductImageRepo) Link(_ context.Context, pi *domain.ProductImage) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.links[pi.ContentHash] {
		if id == pi.ProductID {
			return false, nil
		}
	}
	r.links[pi.ContentHash] = append(r.links[pi.ContentHash], pi.ProductID)
	return true, nil
}

func (r *fakeProductImageRepo) ProductIDsByHashes(_ context.Context, hashes []domain.ContentHash) (map[domain.ContentHash][]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.ContentHash][]int64, len(hashes))
	for _, h := range hashes {
		if ids, ok := r.links[h]; ok {
			out[h] = append([]int64(nil), ids...)
		}
	}
	return out, nil
}

type fakeIndexRepo struct {
	mu       sync.Mutex
	points   []domain.Embedding
	err      error
	found    []domain.SimilarImage
	searched string
}

func (r *fakeIndexRepo) Upsert(_ context.Context, embeddings []domain.Embedding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.points = append(r.points, embeddings...)
	return nil
}

func (r *fakeIndexRepo) Search(_ context.Context, _ []float32, limit int, modelVersion string) ([]domain.SimilarImage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searched = modelVersion
	if len(r.found) > limit {
		return r.found[:limit], nil
	}
	return r.found, nil
}

type fakeCacheRepo struct {
	mu    sync.Mutex
	items map[domain.ContentHash]*domain.Fingerprint
	sets  int
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{items: map[domain.ContentHash]*domain.Fingerprint{}}
}

func (c *fakeCacheRepo) GetFingerprint(_ context.Context, hash domain.ContentHash) (*domain.Fingerprint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fp, ok := c.items[hash]
	if !ok {
		return nil, e.ErrCacheMiss
	}
	return fp, nil
}

func (c *fakeCacheRepo) SetFingerprint(_ context.Context, fp *domain.Fingerprint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[fp.ContentHash] = fp
	c.sets++
	return nil
}

func (c *fakeCacheRepo) Has(hash domain.ContentHash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[hash]
	return ok
}

type fakeImagesInfra struct {
	mu       sync.Mutex
	stored   bool // объект уже лежит в хранилище
	uploaded []string
	cleaned  []string
}

func (f *fakeImagesInfra) UploadOriginal(_ context.Context, req *UploadOriginalReq) (*UploadOriginalRes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := "originals/" + req.ContentHash.String() + ".png"
	if f.stored {
		return NewUploadOriginalRes(key, false), nil
	}
	f.uploaded = append(f.uploaded, key)
	return NewUploadOriginalRes(key, true), nil
}

func (f *fakeImagesInfra) CleanupImages(keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, keys...)
}

type fakeProducer struct {
	mu     sync.Mutex
	events []FingerprintEvent
}

func (p *fakeProducer) PublishFingerprintEvent(_ context.Context, event *FingerprintEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}
