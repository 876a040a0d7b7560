package clients

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/image-fingerprint/internal/cfg"
	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

type QdrantClient struct {
	Client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewQdrantClient(cfg *cfg.QdrantCfg) (*QdrantClient, error) {
	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.ApiKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &QdrantClient{
		Client: qdrantClient,
		cfg:    cfg,
	}, nil
}

func (c *QdrantClient) Close() error {
	return c.Client.Close()
}

// keywordIndexes поля payload, по которым фильтруется поиск.
var keywordIndexes = []string{
	domain.PayloadModelVersion,
	domain.PayloadContentHash,
	domain.PayloadSource,
}

// EnsureCollection создаёт коллекцию отпечатков с косинусной метрикой и индексами payload.
func EnsureCollection(ctx context.Context, client *QdrantClient) error {
	name := client.cfg.QdrantCollectionName

	exists, err := client.Client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := client.Client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     client.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	for _, field := range keywordIndexes {
		if _, err := client.Client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: name,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		}); err != nil {
			return fmt.Errorf("failed to create %s index: %w", field, err)
		}
	}

	return nil
}
