package usecase

import (
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/decoder"
	"github.com/DRSN-tech/image-fingerprint/internal/infrastructure/hasher"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestFixture struct {
	uc           *IngestUseCase
	backend      *fakeBackend
	tx           *fakeTx
	fingerprints *fakeFingerprintRepo
	products     *fakeProductImageRepo
	index        *fakeIndexRepo
	cache        *fakeCacheRepo
	images       *fakeImagesInfra
	producer     *fakeProducer
}

func newIngestFixture(t *testing.T, backend *fakeBackend) *ingestFixture {
	t.Helper()

	sessions, _ := loadedManager(t, backend)
	f := &ingestFixture{
		backend:      backend,
		tx:           &fakeTx{},
		fingerprints: newFakeFingerprintRepo(),
		products:     newFakeProductImageRepo(),
		index:        &fakeIndexRepo{},
		cache:        newFakeCacheRepo(),
		images:       &fakeImagesInfra{},
		producer:     &fakeProducer{},
	}
	f.uc = NewIngestUC(
		newFingerprintUC(sessions, &fakeFetcher{}),
		decoder.NewCodec(),
		hasher.NewHasher(),
		f.tx,
		f.fingerprints,
		f.products,
		f.index,
		f.cache,
		f.images,
		f.producer,
		RetryPolicy{MaxAttempts: 3, Base: time.Millisecond, Max: 5 * time.Millisecond},
		logger.NewNopLogger(),
	)
	return f
}

func TestIngestProductImage_NewImage(t *testing.T) {
	f := newIngestFixture(t, &fakeBackend{outLen: domain.FeatureDim})
	data := pngBytes(t, 12, 6, color.NRGBA{R: 10, G: 200, B: 30, A: 255})

	res, err := f.uc.IngestProductImage(context.Background(), NewIngestImageReq(7, ImageFile{Data: data, MimeType: "image/png"}))
	require.NoError(t, err)

	hash := hasher.ContentHash(data)
	assert.Equal(t, hash, res.ContentHash)
	assert.False(t, res.Duplicate)
	assert.True(t, res.Linked)
	assert.Equal(t, domain.SourceModel, res.Source)
	assert.Equal(t, "originals/"+hash.String()+".png", res.ObjectKey)
	assert.NotEmpty(t, res.PerceptualHash)

	stored, err := f.fingerprints.GetByHash(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, 12, stored.Width)
	assert.Equal(t, 6, stored.Height)
	assert.InDelta(t, 1.0, stored.Vector.Norm(), 1e-6)

	require.Len(t, f.index.points, 1)
	assert.Equal(t, PointID(hash), f.index.points[0].ID)
	assert.Equal(t, int64(7), f.index.points[0].Payload[domain.PayloadProductID])
	assert.Equal(t, hash.String(), f.index.points[0].Payload[domain.PayloadContentHash])

	assert.Equal(t, []int64{7}, f.products.links[hash])
	assert.Equal(t, int32(1), f.tx.calls.Load())
	require.Len(t, f.producer.events, 1)
	assert.Equal(t, EventFingerprintCreated, f.producer.events[0].Type)
	assert.Eventually(t, func() bool { return f.cache.Has(hash) }, time.Second, 5*time.Millisecond)
}

func TestIngestProductImage_DuplicateSkipsExtraction(t *testing.T) {
	f := newIngestFixture(t, &fakeBackend{outLen: domain.FeatureDim})
	data := pngBytes(t, 8, 8, color.White)
	ctx := context.Background()

	first, err := f.uc.IngestProductImage(ctx, NewIngestImageReq(1, ImageFile{Data: data, MimeType: "image/png"}))
	require.NoError(t, err)
	callsAfterFirst := f.backend.Calls()

	second, err := f.uc.IngestProductImage(ctx, NewIngestImageReq(2, ImageFile{Data: data, MimeType: "image/png"}))
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.True(t, second.Linked)
	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, first.ObjectKey, second.ObjectKey)
	assert.Equal(t, callsAfterFirst, f.backend.Calls())
	assert.Len(t, f.images.uploaded, 1)
	assert.Len(t, f.index.points, 1)
	assert.Equal(t, []int64{1, 2}, f.products.links[first.ContentHash])

	// повтор для того же продукта не создаёт новую связь и событие
	third, err := f.uc.IngestProductImage(ctx, NewIngestImageReq(2, ImageFile{Data: data, MimeType: "image/png"}))
	require.NoError(t, err)
	assert.True(t, third.Duplicate)
	assert.False(t, third.Linked)
	assert.Len(t, f.producer.events, 2)
	assert.Equal(t, EventProductImageLinked, f.producer.events[1].Type)
}

func TestIngestProductImage_CacheHit(t *testing.T) {
	f := newIngestFixture(t, &fakeBackend{outLen: domain.FeatureDim})
	data := pngBytes(t, 8, 8, color.White)
	hash := hasher.ContentHash(data)

	cached := domain.NewFingerprint(hash, "", domain.NewFeatureExtractionResult(nil, domain.SourceModel, "v0"), "originals/x.png", 8, 8)
	require.NoError(t, f.cache.SetFingerprint(context.Background(), cached))

	res, err := f.uc.IngestProductImage(context.Background(), NewIngestImageReq(3, ImageFile{Data: data}))
	require.NoError(t, err)

	assert.True(t, res.Duplicate)
	assert.Equal(t, "originals/x.png", res.ObjectKey)
	assert.Zero(t, f.backend.Calls())
	assert.Zero(t, f.tx.calls.Load())
}

func TestIngestProductImage_RegistryFailureCleansUp(t *testing.T) {
	f := newIngestFixture(t, &fakeBackend{outLen: domain.FeatureDim})
	f.index.err = errors.New("qdrant unavailable")
	data := pngBytes(t, 8, 8, color.White)

	_, err := f.uc.IngestProductImage(context.Background(), NewIngestImageReq(1, ImageFile{Data: data, MimeType: "image/png"}))
	require.Error(t, err)

	require.Len(t, f.images.uploaded, 1)
	assert.Equal(t, f.images.uploaded, f.images.cleaned)
	assert.Empty(t, f.producer.events)
}

func TestIngestProductImage_RegistryFailureKeepsExistingOriginal(t *testing.T) {
	// оригинал уже сохранён параллельной регистрацией тех же байтов
	f := newIngestFixture(t, &fakeBackend{outLen: domain.FeatureDim})
	f.images.stored = true
	f.index.err = errors.New("qdrant unavailable")
	data := pngBytes(t, 8, 8, color.White)

	_, err := f.uc.IngestProductImage(context.Background(), NewIngestImageReq(2, ImageFile{Data: data, MimeType: "image/png"}))
	require.Error(t, err)

	assert.Empty(t, f.images.uploaded)
	assert.Empty(t, f.images.cleaned)
	assert.Empty(t, f.producer.events)
}

func TestIngestProductImage_RetriesInferenceOnly(t *testing.T) {
	t.Run("transient inference errors", func(t *testing.T) {
		backend := &fakeBackend{outLen: domain.FeatureDim, errs: []error{errors.New("busy"), errors.New("busy")}}
		f := newIngestFixture(t, backend)

		res, err := f.uc.IngestProductImage(context.Background(), NewIngestImageReq(1, ImageFile{Data: pngBytes(t, 8, 8, color.White)}))
		require.NoError(t, err)
		assert.False(t, res.Duplicate)
		assert.Equal(t, 3, backend.Calls())
	})

	t.Run("attempts exhausted", func(t *testing.T) {
		backend := &fakeBackend{outLen: domain.FeatureDim, errs: []error{errors.New("a"), errors.New("b"), errors.New("c")}}
		f := newIngestFixture(t, backend)

		_, err := f.uc.IngestProductImage(context.Background(), NewIngestImageReq(1, ImageFile{Data: pngBytes(t, 8, 8, color.White)}))
		assert.ErrorIs(t, err, e.ErrInference)
		assert.Equal(t, 3, backend.Calls())
		assert.Empty(t, f.images.uploaded)
	})

	t.Run("preprocess error is not retried", func(t *testing.T) {
		backend := &fakeBackend{outLen: domain.FeatureDim}
		f := newIngestFixture(t, backend)

		_, err := f.uc.IngestProductImage(context.Background(), NewIngestImageReq(1, ImageFile{Data: []byte("junk")}))
		assert.ErrorIs(t, err, e.ErrPreprocess)
		assert.Zero(t, backend.Calls())
	})
}

func TestIngestProductImage_Validation(t *testing.T) {
	f := newIngestFixture(t, &fakeBackend{outLen: domain.FeatureDim})

	_, err := f.uc.IngestProductImage(context.Background(), NewIngestImageReq(0, ImageFile{Data: []byte{1}}))
	assert.ErrorIs(t, err, e.ErrInvalidProductID)

	_, err = f.uc.IngestProductImage(context.Background(), NewIngestImageReq(1, ImageFile{}))
	assert.ErrorIs(t, err, e.ErrNoImages)
}

func TestFindSimilar(t *testing.T) {
	f := newIngestFixture(t, &fakeBackend{outLen: domain.FeatureDim})
	ctx := context.Background()
	data := pngBytes(t, 8, 8, color.White)

	ingested, err := f.uc.IngestProductImage(ctx, NewIngestImageReq(5, ImageFile{Data: data, MimeType: "image/png"}))
	require.NoError(t, err)

	other := domain.ContentHash("ab" + ingested.ContentHash.String()[2:])
	f.products.links[other] = []int64{9}
	f.index.found = []domain.SimilarImage{
		{ContentHash: ingested.ContentHash, PerceptualHash: ingested.PerceptualHash, ProductID: 5, Score: 1},
		{ContentHash: other, ProductID: 9, Score: 0.4},
	}

	res, err := f.uc.FindSimilar(ctx, NewFindSimilarReq(ImageFile{Data: data}, 0))
	require.NoError(t, err)

	assert.Equal(t, ingested.ContentHash, res.ContentHash)
	require.NotNil(t, res.ExactMatch)
	assert.Equal(t, []int64{5}, res.ExactMatch.ProductIDs)
	assert.Equal(t, "test-model-v1", f.index.searched)

	require.Len(t, res.Similar, 2)
	assert.True(t, res.Similar[0].NearDuplicate)
	assert.Equal(t, []int64{5}, res.Similar[0].ProductIDs)
	assert.False(t, res.Similar[1].NearDuplicate)
	assert.Equal(t, []int64{9}, res.Similar[1].ProductIDs)
}

func TestFindSimilar_Validation(t *testing.T) {
	f := newIngestFixture(t, &fakeBackend{outLen: domain.FeatureDim})
	data := pngBytes(t, 4, 4, color.White)

	for _, limit := range []int{-1, MaxSimilarLimit + 1} {
		_, err := f.uc.FindSimilar(context.Background(), NewFindSimilarReq(ImageFile{Data: data}, limit))
		assert.ErrorIs(t, err, e.ErrInvalidLimit)
	}

	_, err := f.uc.FindSimilar(context.Background(), NewFindSimilarReq(ImageFile{}, 5))
	assert.ErrorIs(t, err, e.ErrNoImages)
}

func TestPointID_Deterministic(t *testing.T) {
	hash := hasher.ContentHash([]byte("img"))
	assert.Equal(t, PointID(hash), PointID(hash))
	assert.NotEqual(t, PointID(hash), PointID(hasher.ContentHash([]byte("img2"))))
	assert.Len(t, PointID(hash), 36)
}
