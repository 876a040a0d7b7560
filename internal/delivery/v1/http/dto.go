package http

import (
	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/usecase"
)

type FeaturesResponse struct {
	Embedding    []float32 `json:"embedding"`
	Dimension    int       `json:"dimension"`
	Source       string    `json:"source"`
	ModelVersion string    `json:"model_version"`
}

func NewFeaturesResponse(res *domain.FeatureExtractionResult) *FeaturesResponse {
	return &FeaturesResponse{
		Embedding:    res.Vector.Float32(),
		Dimension:    len(res.Vector),
		Source:       string(res.Source),
		ModelVersion: res.ModelVersion,
	}
}

type BatchItemResponse struct {
	Filename  string    `json:"filename"`
	Success   bool      `json:"success"`
	Embedding []float32 `json:"embedding,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type BatchResponse struct {
	Results []BatchItemResponse `json:"results"`
}

func NewBatchResponse(res *usecase.ExtractBatchRes) *BatchResponse {
	out := &BatchResponse{Results: make([]BatchItemResponse, 0, len(res.Results))}
	for _, item := range res.Results {
		resp := BatchItemResponse{Filename: item.Filename, Success: item.Success()}
		if item.Success() {
			resp.Embedding = item.Result.Vector.Float32()
		} else {
			_, resp.Error = ToHTTPResponse(item.Err)
		}
		out.Results = append(out.Results, resp)
	}
	return out
}

type HashResponse struct {
	ContentHash string `json:"content_hash"`
}

type HealthResponse struct {
	Status             string `json:"status"`
	ModelLoaded        bool   `json:"model_loaded"`
	ModelState         string `json:"model_state"`
	ModelVersion       string `json:"model_version"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	Device             string `json:"device"`
}

func NewHealthResponse(status *usecase.ModelStatusRes) *HealthResponse {
	// без модели сервис работает: хэши и ручные признаки доступны
	s := "ok"
	if !status.Loaded() {
		s = "degraded"
	}

	return &HealthResponse{
		Status:             s,
		ModelLoaded:        status.Loaded(),
		ModelState:         status.State.String(),
		ModelVersion:       status.ModelVersion,
		EmbeddingDimension: status.Dimension,
		Device:             status.Device,
	}
}

type IngestResponse struct {
	ContentHash    string `json:"content_hash"`
	PerceptualHash string `json:"perceptual_hash,omitempty"`
	ObjectKey      string `json:"object_key"`
	Source         string `json:"source"`
	ModelVersion   string `json:"model_version"`
	Duplicate      bool   `json:"duplicate"`
	Linked         bool   `json:"linked"`
}

func NewIngestResponse(res *usecase.IngestImageRes) *IngestResponse {
	return &IngestResponse{
		ContentHash:    res.ContentHash.String(),
		PerceptualHash: res.PerceptualHash,
		ObjectKey:      res.ObjectKey,
		Source:         string(res.Source),
		ModelVersion:   res.ModelVersion,
		Duplicate:      res.Duplicate,
		Linked:         res.Linked,
	}
}

type ExactMatchResponse struct {
	ObjectKey    string  `json:"object_key"`
	Source       string  `json:"source"`
	ModelVersion string  `json:"model_version"`
	ProductIDs   []int64 `json:"product_ids"`
}

type SimilarImageResponse struct {
	ContentHash   string  `json:"content_hash"`
	ImagePath     string  `json:"image_path"`
	Score         float32 `json:"score"`
	ProductIDs    []int64 `json:"product_ids"`
	NearDuplicate bool    `json:"near_duplicate"`
}

type SearchResponse struct {
	ContentHash string                 `json:"content_hash"`
	ExactMatch  *ExactMatchResponse    `json:"exact_match"`
	Similar     []SimilarImageResponse `json:"similar"`
}

func NewSearchResponse(res *usecase.FindSimilarRes) *SearchResponse {
	out := &SearchResponse{
		ContentHash: res.ContentHash.String(),
		Similar:     make([]SimilarImageResponse, 0, len(res.Similar)),
	}
	if res.ExactMatch != nil {
		out.ExactMatch = &ExactMatchResponse{
			ObjectKey:    res.ExactMatch.Fingerprint.ObjectKey,
			Source:       string(res.ExactMatch.Fingerprint.Source),
			ModelVersion: res.ExactMatch.Fingerprint.ModelVersion,
			ProductIDs:   res.ExactMatch.ProductIDs,
		}
	}
	for _, s := range res.Similar {
		out.Similar = append(out.Similar, SimilarImageResponse{
			ContentHash:   s.Image.ContentHash.String(),
			ImagePath:     s.Image.ImagePath,
			Score:         s.Image.Score,
			ProductIDs:    s.ProductIDs,
			NearDuplicate: s.NearDuplicate,
		})
	}
	return out
}

type URLRequest struct {
	URL string `json:"url"`
}
