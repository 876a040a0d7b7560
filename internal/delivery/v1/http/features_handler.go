package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/usecase"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
)

const (
	maxMemory     = 32 << 20
	maxJSONBody   = 64 << 10
	modeParam     = "mode"
	modeLearned   = "model"
	modeHandcraft = "handcrafted"
)

// Limits ограничения обработчиков на размер входа и время извлечения.
type Limits struct {
	ExtractTimeout time.Duration
	MaxFileSize    int64
	MaxBatchImages int
}

type FeaturesHandler struct {
	fpUC   usecase.FingerprintUC
	limits Limits
	logger logger.Logger
}

func NewFeaturesHandler(fpUC usecase.FingerprintUC, limits Limits, logger logger.Logger) *FeaturesHandler {
	return &FeaturesHandler{fpUC: fpUC, limits: limits, logger: logger}
}

// extractFeatures
//
//	@Summary		Извлечение признаков изображения
//	@Description	Возвращает L2-нормированный вектор из 256 чисел. mode=handcrafted включает ручные признаки без модели
//	@Tags			features
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image	formData	file	true	"Изображение"
//	@Param			mode	query		string	false	"model | handcrafted"
//	@Success		200		{object}	FeaturesResponse
//	@Failure		422		{object}	ErrorResponse	"Не удалось декодировать изображение"
//	@Failure		503		{object}	ErrorResponse	"Модель недоступна"
//	@Router			/features [post]
func (h *FeaturesHandler) extractFeatures(w http.ResponseWriter, r *http.Request) {
	extract := h.fpUC.ExtractFeaturesFromBuffer
	switch r.URL.Query().Get(modeParam) {
	case "", modeLearned:
	case modeHandcraft:
		extract = h.fpUC.ExtractHandcrafted
	default:
		h.fail(w, e.ErrStatusBadRequest)
		return
	}

	image, err := h.readSingle(w, r)
	if err != nil {
		h.fail(w, err)
		return
	}

	res, err := raceDeadline(r.Context(), h.limits.ExtractTimeout, func(ctx context.Context) (*domain.FeatureExtractionResult, error) {
		return extract(ctx, image.Data)
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, NewFeaturesResponse(res))
}

// extractFeaturesFromURL
//
//	@Summary	Извлечение признаков изображения по URL
//	@Tags		features
//	@Accept		json
//	@Produce	json
//	@Param		request	body		URLRequest	true	"URL изображения"
//	@Success	200		{object}	FeaturesResponse
//	@Failure	502		{object}	ErrorResponse	"Не удалось скачать изображение"
//	@Router		/features/url [post]
func (h *FeaturesHandler) extractFeaturesFromURL(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil || req.URL == "" {
		h.fail(w, e.ErrStatusBadRequest)
		return
	}

	res, err := raceDeadline(r.Context(), h.limits.ExtractTimeout, func(ctx context.Context) (*domain.FeatureExtractionResult, error) {
		return h.fpUC.ExtractFeaturesFromURL(ctx, req.URL)
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, NewFeaturesResponse(res))
}

// extractBatch
//
//	@Summary		Пакетное извлечение признаков
//	@Description	Ошибка одного файла не прерывает пакет; отсутствие модели прерывает весь запрос
//	@Tags			features
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			images	formData	file	true	"Изображения"
//	@Success		200		{object}	BatchResponse
//	@Router			/features/batch [post]
func (h *FeaturesHandler) extractBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxFileSize*int64(h.limits.MaxBatchImages)+maxMemory)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		h.fail(w, err)
		return
	}

	images, err := parseImages(r.MultipartForm.File["images"], h.limits.MaxBatchImages, h.limits.MaxFileSize)
	if err != nil {
		h.fail(w, err)
		return
	}

	res, err := raceDeadline(r.Context(), h.limits.ExtractTimeout, func(ctx context.Context) (*usecase.ExtractBatchRes, error) {
		return h.fpUC.ExtractBatch(ctx, usecase.NewExtractBatchReq(images))
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, NewBatchResponse(res))
}

// contentHash
//
//	@Summary	SHA-256 содержимого изображения
//	@Tags		features
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		image	formData	file	true	"Изображение"
//	@Success	200		{object}	HashResponse
//	@Router		/hash [post]
func (h *FeaturesHandler) contentHash(w http.ResponseWriter, r *http.Request) {
	image, err := h.readSingle(w, r)
	if err != nil {
		h.fail(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, &HashResponse{ContentHash: h.fpUC.ComputeContentHash(image.Data).String()})
}

// health
//
//	@Summary		Состояние сервиса и модели
//	@Description	Не запускает загрузку модели
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (h *FeaturesHandler) health(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, NewHealthResponse(h.fpUC.ModelStatus()))
}

func (h *FeaturesHandler) readSingle(w http.ResponseWriter, r *http.Request) (*usecase.ImageFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxFileSize+maxMemory)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		return nil, err
	}
	return parseImage(r, "image", h.limits.MaxFileSize)
}

func (h *FeaturesHandler) fail(w http.ResponseWriter, err error) {
	code, _ := ToHTTPResponse(err)
	if code >= http.StatusInternalServerError {
		h.logger.Errorf(err, "%d request failed", code)
	} else {
		h.logger.Warnf("%d %s", code, err.Error())
	}
	WriteError(w, err)
}
