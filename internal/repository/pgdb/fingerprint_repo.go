package pgdb

import (
	"context"
	"errors"

	"github.com/DRSN-tech/image-fingerprint/internal/domain"
	"github.com/DRSN-tech/image-fingerprint/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/image-fingerprint/pkg/e"
	"github.com/DRSN-tech/image-fingerprint/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jimlawless/whereami"
)

// FingerprintRepo реализует реестр отпечатков поверх PostgreSQL.
type FingerprintRepo struct {
	db   tr.Querier
	conv converter.FingerprintConverter
}

func NewFingerprintRepo(db tr.Querier, conv converter.FingerprintConverter) *FingerprintRepo {
	return &FingerprintRepo{
		db:   db,
		conv: conv,
	}
}

// Upsert идемпотентно сохраняет отпечаток по хэшу содержимого.
// Существующая запись переписывается только при смене версии модели.
func (r *FingerprintRepo) Upsert(ctx context.Context, fp *domain.Fingerprint) error {
	// VALUES ($1..$9) content_hash, perceptual_hash, vector, source, model_version, object_key, width, height, created_at
	query := `
		INSERT INTO fingerprints (
			content_hash, perceptual_hash, vector, source, model_version,
			object_key, width, height, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (content_hash)
		DO UPDATE SET
			perceptual_hash = EXCLUDED.perceptual_hash,
			vector = EXCLUDED.vector,
			source = EXCLUDED.source,
			model_version = EXCLUDED.model_version
		WHERE
			fingerprints.model_version IS DISTINCT FROM EXCLUDED.model_version;
	`

	m := r.conv.ToModel(fp)
	_, err := tr.Conn(ctx, r.db).Exec(ctx, query,
		m.ContentHash, m.PerceptualHash, m.Vector, m.Source, m.ModelVersion,
		m.ObjectKey, m.Width, m.Height, m.CreatedAt,
	)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// GetByHash возвращает отпечаток по хэшу или e.ErrFingerprintNotFound.
func (r *FingerprintRepo) GetByHash(ctx context.Context, hash domain.ContentHash) (*domain.Fingerprint, error) {
	query := `
		SELECT
			content_hash, perceptual_hash, vector, source, model_version,
			object_key, width, height, created_at
		FROM fingerprints
		WHERE content_hash = $1;
	`

	var m converter.FingerprintModel
	err := tr.Conn(ctx, r.db).QueryRow(ctx, query, hash.String()).Scan(
		&m.ContentHash, &m.PerceptualHash, &m.Vector, &m.Source, &m.ModelVersion,
		&m.ObjectKey, &m.Width, &m.Height, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.ErrFingerprintNotFound
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToEntity(&m), nil
}
