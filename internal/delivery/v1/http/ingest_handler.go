package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/DRSN-tech/image-fingerprint/internal/usecase"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type IngestHandler struct {
	ingestUC usecase.IngestUC
	features *FeaturesHandler
	logger   logger.Logger
}

func NewIngestHandler(ingestUC usecase.IngestUC, features *FeaturesHandler, logger logger.Logger) *IngestHandler {
	return &IngestHandler{ingestUC: ingestUC, features: features, logger: logger}
}

// ingestProductImage
//
//	@Summary		Регистрация изображения продукта
//	@Description	Побайтный повтор только связывает продукт с уже известным отпечатком
//	@Tags			products
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			productID	path		int		true	"ID продукта"
//	@Param			image		formData	file	true	"Изображение"
//	@Success		201			{object}	IngestResponse	"Новый отпечаток"
//	@Success		200			{object}	IngestResponse	"Дубликат"
//	@Router			/products/{productID}/images [post]
func (h *IngestHandler) ingestProductImage(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		h.features.fail(w, e.ErrInvalidProductID)
		return
	}

	image, err := h.features.readSingle(w, r)
	if err != nil {
		h.features.fail(w, err)
		return
	}

	res, err := raceDeadline(r.Context(), h.features.limits.ExtractTimeout, func(ctx context.Context) (*usecase.IngestImageRes, error) {
		return h.ingestUC.IngestProductImage(ctx, usecase.NewIngestImageReq(productID, *image))
	})
	if err != nil {
		h.features.fail(w, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	h.logger.Infof("product image ingested: product_id=%d hash=%s duplicate=%t", productID, res.ContentHash, res.Duplicate)
	WriteSuccess(w, status, NewIngestResponse(res))
}

// findSimilar
//
//	@Summary	Поиск похожих изображений
//	@Tags		search
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		image	formData	file	true	"Образец"
//	@Param		limit	query		int		false	"Число кандидатов (1..100)"
//	@Success	200		{object}	SearchResponse
//	@Router		/search [post]
func (h *IngestHandler) findSimilar(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.features.fail(w, e.ErrInvalidLimit)
			return
		}
		limit = v
	}

	image, err := h.features.readSingle(w, r)
	if err != nil {
		h.features.fail(w, err)
		return
	}

	res, err := raceDeadline(r.Context(), h.features.limits.ExtractTimeout, func(ctx context.Context) (*usecase.FindSimilarRes, error) {
		return h.ingestUC.FindSimilar(ctx, usecase.NewFindSimilarReq(*image, limit))
	})
	if err != nil {
		h.features.fail(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, NewSearchResponse(res))
}
