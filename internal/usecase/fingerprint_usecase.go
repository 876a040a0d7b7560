package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	deviceCPU            = "cpu"
	defaultMaxConcurrent = 4
)

// FingerprintUseCase — точка входа извлечения признаков.
// Обученный путь без модели завершается e.ErrNoModelAvailable и никогда не подменяется ручными признаками.
type FingerprintUseCase struct {
	sessions      ModelSessionProvider
	decoder       ImageDecoder
	preprocessor  TensorPreprocessor
	handcrafted   HandcraftedExtractor
	hasher        HasherInfra
	fetcher       FetcherInfra
	modelVersion  string
	maxConcurrent int
	logger        logger.Logger
}

func NewFingerprintUC(
	sessions ModelSessionProvider,
	decoder ImageDecoder,
	preprocessor TensorPreprocessor,
	handcrafted HandcraftedExtractor,
	hasher HasherInfra,
	fetcher FetcherInfra,
	modelVersion string,
	maxConcurrent int,
	logger logger.Logger,
) *FingerprintUseCase {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	return &FingerprintUseCase{
		sessions:      sessions,
		decoder:       decoder,
		preprocessor:  preprocessor,
		handcrafted:   handcrafted,
		hasher:        hasher,
		fetcher:       fetcher,
		modelVersion:  modelVersion,
		maxConcurrent: maxConcurrent,
		logger:        logger,
	}
}

// ExtractFeaturesFromBuffer извлекает обученный вектор признаков: декодирование, тензор, инференс,
// приведение к длине domain.FeatureDim и L2-нормировка.
// Ошибки: e.ErrNoModelAvailable, e.ErrPreprocess, e.ErrInference. Состояние сессии не меняется.
func (f *FingerprintUseCase) ExtractFeaturesFromBuffer(ctx context.Context, data []byte) (*domain.FeatureExtractionResult, error) {
	const op = "FingerprintUseCase.ExtractFeaturesFromBuffer"

	backend, err := f.backend()
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, err)
	}

	img, _, err := f.decoder.Decode(domain.NewRawImage(data, ""))
	if err != nil {
		return nil, e.Wrap(op, asKind(err, e.ErrPreprocess))
	}

	tensor, err := f.preprocessor.ToTensor(img)
	if err != nil {
		return nil, e.Wrap(op, asKind(err, e.ErrPreprocess))
	}

	output, err := runInference(backend, tensor)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vector := domain.NewFeatureVector(output)
	if len(output) != domain.FeatureDim {
		f.logger.Debugf("model output fitted to %d values: got %d", domain.FeatureDim, len(output))
	}

	return domain.NewFeatureExtractionResult(vector, domain.SourceModel, f.modelVersion), nil
}

// ExtractFeaturesFromURL скачивает изображение и передаёт его в ExtractFeaturesFromBuffer.
// Без модели завершается e.ErrNoModelAvailable, не обращаясь к сети. Сетевые сбои — e.ErrFetch.
func (f *FingerprintUseCase) ExtractFeaturesFromURL(ctx context.Context, url string) (*domain.FeatureExtractionResult, error) {
	const op = "FingerprintUseCase.ExtractFeaturesFromURL"

	if _, err := f.backend(); err != nil {
		return nil, e.Wrap(op, err)
	}

	img, err := f.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, e.Wrap(op, asKind(err, e.ErrFetch))
	}

	return f.ExtractFeaturesFromBuffer(ctx, img.Data)
}

// ExtractHandcrafted считает ручные признаки. Вектор помечен источником domain.SourceHandcrafted
// и не должен смешиваться с векторами модели. Модель для этого пути не нужна.
func (f *FingerprintUseCase) ExtractHandcrafted(ctx context.Context, data []byte) (*domain.FeatureExtractionResult, error) {
	const op = "FingerprintUseCase.ExtractHandcrafted"

	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, err)
	}

	raw, err := f.handcrafted.Extract(domain.NewRawImage(data, ""))
	if err != nil {
		return nil, e.Wrap(op, asKind(err, e.ErrPreprocess))
	}

	return domain.NewFeatureExtractionResult(domain.NewFeatureVector(raw), domain.SourceHandcrafted, domain.HandcraftedVersion), nil
}

// ExtractBatch извлекает признаки из нескольких изображений параллельно.
// Ошибка одного файла попадает в его результат. Отсутствие модели завершает весь запрос.
func (f *FingerprintUseCase) ExtractBatch(ctx context.Context, req *ExtractBatchReq) (*ExtractBatchRes, error) {
	const op = "FingerprintUseCase.ExtractBatch"

	if len(req.Images) == 0 {
		return nil, e.Wrap(op, e.ErrNoImages)
	}
	if _, err := f.backend(); err != nil {
		return nil, e.Wrap(op, err)
	}

	results := make([]BatchItemRes, len(req.Images))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxConcurrent)
	for i, image := range req.Images {
		g.Go(func() error {
			res, err := f.ExtractFeaturesFromBuffer(gCtx, image.Data)
			if err != nil {
				f.logger.Warnf("batch item %q failed: %v", image.Name, err)
			}
			results[i] = BatchItemRes{Filename: image.Name, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, err)
	}

	return NewExtractBatchRes(results), nil
}

// ComputeContentHash не зависит от извлечения признаков и работает без модели.
func (f *FingerprintUseCase) ComputeContentHash(data []byte) domain.ContentHash {
	return f.hasher.ContentHash(data)
}

// ModelStatus сообщает состояние модели, не запуская её загрузку.
func (f *FingerprintUseCase) ModelStatus() *ModelStatusRes {
	return NewModelStatusRes(f.sessions.State(), f.modelVersion, deviceCPU)
}

// WarmUp выполняет единственную попытку загрузки модели заранее, чтобы первый запрос не платил за неё.
func (f *FingerprintUseCase) WarmUp() domain.ModelState {
	return f.sessions.Session().State
}

// backend возвращает загруженный бэкенд или ошибку вида e.ErrNoModelAvailable.
func (f *FingerprintUseCase) backend() (domain.InferenceBackend, error) {
	s := f.sessions.Session()
	if s.State == domain.ModelLoaded && s.Backend != nil {
		return s.Backend, nil
	}
	if s.Err != nil {
		return nil, asKind(s.Err, e.ErrNoModelAvailable)
	}
	return nil, e.ErrNoModelAvailable
}

// runInference вызывает бэкенд. Паника и пустой выход считаются ошибкой инференса.
func runInference(backend domain.InferenceBackend, tensor *domain.Tensor) (output []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			output, err = nil, fmt.Errorf("%w: backend panic: %v", e.ErrInference, r)
		}
	}()

	output, err = backend.Run(tensor)
	if err != nil {
		return nil, asKind(err, e.ErrInference)
	}
	if len(output) == 0 {
		return nil, e.ErrEmptyModelOutput
	}
	return output, nil
}

// asKind гарантирует, что err относится к виду kind, не теряя исходной цепочки.
func asKind(err, kind error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
