package pgdb

import (
	"context"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/tr"
	"github.com/jimlawless/whereami"
)

// ProductImageRepo хранит связи продуктов каталога с отпечатками.
type ProductImageRepo struct {
	db   tr.Querier
	conv converter.ProductImageConverter
}

func NewProductImageRepo(db tr.Querier, conv converter.ProductImageConverter) *ProductImageRepo {
	return &ProductImageRepo{
		db:   db,
		conv: conv,
	}
}

// Link идемпотентно связывает продукт с изображением. Возвращает false, если связь уже была.
func (r *ProductImageRepo) Link(ctx context.Context, image *domain.ProductImage) (bool, error) {
	query := `
		INSERT INTO product_images (product_id, content_hash)
		VALUES ($1, $2)
		ON CONFLICT (product_id, content_hash) DO NOTHING;
	`

	m := r.conv.ToModel(image)
	tag, err := tr.Conn(ctx, r.db).Exec(ctx, query, m.ProductID, m.ContentHash)
	if err != nil {
		return false, e.Wrap(whereami.WhereAmI(), err)
	}

	return tag.RowsAffected() == 1, nil
}

// ProductIDsByHashes возвращает продукты для каждого хэша в порядке связывания.
// Хэши без связей в результат не попадают.
func (r *ProductImageRepo) ProductIDsByHashes(ctx context.Context, hashes []domain.ContentHash) (map[domain.ContentHash][]int64, error) {
	out := make(map[domain.ContentHash][]int64, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}

	query := `
		SELECT product_id, content_hash, created_at
		FROM product_images
		WHERE content_hash = ANY($1)
		ORDER BY created_at, product_id;
	`

	keys := make([]string, 0, len(hashes))
	for _, h := range hashes {
		keys = append(keys, h.String())
	}

	rows, err := tr.Conn(ctx, r.db).Query(ctx, query, keys)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var m converter.ProductImageModel
		if err := rows.Scan(&m.ProductID, &m.ContentHash, &m.CreatedAt); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		link := r.conv.ToEntity(&m)
		out[link.ContentHash] = append(out[link.ContentHash], link.ProductID)
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return out, nil
}
