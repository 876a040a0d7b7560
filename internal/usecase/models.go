package usecase

import (
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
)

// FINGERPRINT USECASE

// ImageFile представляет изображение, загруженное через multipart/form-data.
type ImageFile struct {
	Data     []byte // байты изображения
	MimeType string // Content-Type из multipart (image/jpeg)
	Size     int64  // фактический размер в байтах
	Name     string // оригинальное имя файла (для логов и ответа)
}

// ExtractBatchReq — запрос на извлечение признаков из нескольких изображений.
type ExtractBatchReq struct {
	Images []ImageFile
}

// ExtractBatchRes — результаты по каждому файлу в порядке запроса.
type ExtractBatchRes struct {
	Results []BatchItemRes
}

// BatchItemRes — результат одного файла батча: либо Result, либо Err.
type BatchItemRes struct {
	Filename string
	Result   *domain.FeatureExtractionResult
	Err      error
}

func (b BatchItemRes) Success() bool {
	return b.Err == nil
}

// ModelStatusRes — состояние модели для проверок здоровья.
type ModelStatusRes struct {
	State        domain.ModelState
	ModelVersion string
	Dimension    int
	Device       string
}

func (m *ModelStatusRes) Loaded() bool {
	return m.State == domain.ModelLoaded
}

// INGEST USECASE

// IngestImageReq — запрос на регистрацию изображения продукта.
type IngestImageReq struct {
	ProductID int64
	Image     ImageFile
}

// IngestImageRes — результат регистрации. Duplicate=true, если такие байты уже были загружены
// и отпечаток не пересчитывался.
type IngestImageRes struct {
	ContentHash    domain.ContentHash
	PerceptualHash string
	ObjectKey      string
	Source         domain.Source
	ModelVersion   string
	Duplicate      bool
	Linked         bool // создана новая связь продукта с изображением
}

// FindSimilarReq — поиск похожих изображений по образцу.
type FindSimilarReq struct {
	Image ImageFile
	Limit int
}

// FindSimilarRes — точное совпадение по хэшу (если есть) и ближайшие соседи по вектору.
type FindSimilarRes struct {
	ContentHash domain.ContentHash
	ExactMatch  *ExactMatch
	Similar     []SimilarImageInfo
}

// ExactMatch — побайтный дубликат образца из реестра.
type ExactMatch struct {
	Fingerprint *domain.Fingerprint
	ProductIDs  []int64
}

// SimilarImageInfo — кандидат из индекса с продуктами, в которых используется изображение.
type SimilarImageInfo struct {
	Image         domain.SimilarImage
	ProductIDs    []int64
	NearDuplicate bool // расстояние dHash не больше порога почти-дубликата
}

// INFRASTRUCTURE

// FetchImageRes — байты изображения, скачанного по URL.
type FetchImageRes struct {
	Data     []byte
	MimeType string // пусто, если сервер не указал тип изображения
}

// UploadOriginalReq — запрос на сохранение оригинала в объектное хранилище.
type UploadOriginalReq struct {
	ContentHash domain.ContentHash
	Data        []byte
	MimeType    string
}

// UploadOriginalRes — ключ сохранённого объекта.
// Created=false, если объект с тем же содержимым уже лежал в хранилище.
type UploadOriginalRes struct {
	ObjectKey string
	Created   bool
}

// Типы событий реестра отпечатков
const (
	EventFingerprintCreated = "fingerprint.created"
	EventProductImageLinked = "product_image.linked"
)

// FingerprintEvent — событие для внешних потребителей (индексаторы, аналитика).
type FingerprintEvent struct {
	Type         string
	ProductID    int64
	ContentHash  domain.ContentHash
	ObjectKey    string
	Source       domain.Source
	ModelVersion string
	OccurredAt   time.Time
}

// MAPPERS

func NewImageFile(data []byte, mimeType string, size int64, name string) *ImageFile {
	return &ImageFile{
		Data:     data,
		MimeType: mimeType,
		Size:     size,
		Name:     name,
	}
}

func NewExtractBatchReq(images []ImageFile) *ExtractBatchReq {
	return &ExtractBatchReq{
		Images: images,
	}
}

func NewExtractBatchRes(results []BatchItemRes) *ExtractBatchRes {
	return &ExtractBatchRes{
		Results: results,
	}
}

func NewModelStatusRes(state domain.ModelState, modelVersion string, device string) *ModelStatusRes {
	return &ModelStatusRes{
		State:        state,
		ModelVersion: modelVersion,
		Dimension:    domain.FeatureDim,
		Device:       device,
	}
}

func NewIngestImageReq(productID int64, image ImageFile) *IngestImageReq {
	return &IngestImageReq{
		ProductID: productID,
		Image:     image,
	}
}

func NewDuplicateIngestRes(fp *domain.Fingerprint, linked bool) *IngestImageRes {
	return &IngestImageRes{
		ContentHash:    fp.ContentHash,
		PerceptualHash: fp.PerceptualHash,
		ObjectKey:      fp.ObjectKey,
		Source:         fp.Source,
		ModelVersion:   fp.ModelVersion,
		Duplicate:      true,
		Linked:         linked,
	}
}

func NewIngestImageRes(fp *domain.Fingerprint, linked bool) *IngestImageRes {
	return &IngestImageRes{
		ContentHash:    fp.ContentHash,
		PerceptualHash: fp.PerceptualHash,
		ObjectKey:      fp.ObjectKey,
		Source:         fp.Source,
		ModelVersion:   fp.ModelVersion,
		Linked:         linked,
	}
}

func NewFindSimilarReq(image ImageFile, limit int) *FindSimilarReq {
	return &FindSimilarReq{
		Image: image,
		Limit: limit,
	}
}

func NewFetchImageRes(data []byte, mimeType string) *FetchImageRes {
	return &FetchImageRes{
		Data:     data,
		MimeType: mimeType,
	}
}

func NewUploadOriginalReq(hash domain.ContentHash, data []byte, mimeType string) *UploadOriginalReq {
	return &UploadOriginalReq{
		ContentHash: hash,
		Data:        data,
		MimeType:    mimeType,
	}
}

func NewUploadOriginalRes(objectKey string, created bool) *UploadOriginalRes {
	return &UploadOriginalRes{
		ObjectKey: objectKey,
		Created:   created,
	}
}

func NewFingerprintEvent(eventType string, productID int64, fp *domain.Fingerprint) *FingerprintEvent {
	return &FingerprintEvent{
		Type:         eventType,
		ProductID:    productID,
		ContentHash:  fp.ContentHash,
		ObjectKey:    fp.ObjectKey,
		Source:       fp.Source,
		ModelVersion: fp.ModelVersion,
		OccurredAt:   time.Now().UTC(),
	}
}
