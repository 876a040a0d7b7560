package qdrant

import (
	"context"

	"github.com/DRSN-tech/image-fingerprint/internal/cfg"
	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// IndexRepo индекс подобия отпечатков в Qdrant: одна точка на уникальное изображение.
type IndexRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewIndexRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *IndexRepo {
	return &IndexRepo{
		client: client,
		cfg:    cfg,
	}
}

// Upsert сохраняет или обновляет точки отпечатков. Повторная запись с тем же ID перезаписывает точку.
func (q *IndexRepo) Upsert(ctx context.Context, embeddings []domain.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(embeddings))
	for _, emb := range embeddings {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(emb.ID),
			Vectors: qdrant.NewVectors(emb.Vector...),
			Payload: qdrant.NewValueMap(emb.Payload),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Search ищет ближайшие отпечатки той же версии модели. Векторы разных версий не сравниваются.
func (q *IndexRepo) Search(ctx context.Context, vector []float32, limit int, modelVersion string) ([]domain.SimilarImage, error) {
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         versionFilter(modelVersion),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	out := make([]domain.SimilarImage, 0, len(points))
	for _, p := range points {
		img, ok := toSimilarImage(p.GetPayload(), p.GetScore())
		if !ok {
			continue
		}
		out = append(out, img)
	}

	return out, nil
}

func versionFilter(modelVersion string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(domain.PayloadModelVersion, modelVersion),
		},
	}
}

// toSimilarImage собирает кандидата из payload. Точки без хэша содержимого пропускаются.
func toSimilarImage(payload map[string]*qdrant.Value, score float32) (domain.SimilarImage, bool) {
	hash := domain.ContentHash(payload[domain.PayloadContentHash].GetStringValue())
	if hash == "" {
		return domain.SimilarImage{}, false
	}

	return domain.SimilarImage{
		ContentHash:    hash,
		PerceptualHash: payload[domain.PayloadPerceptualHash].GetStringValue(),
		ProductID:      payload[domain.PayloadProductID].GetIntegerValue(),
		ImagePath:      payload[domain.PayloadImagePath].GetStringValue(),
		Score:          score,
	}, true
}
