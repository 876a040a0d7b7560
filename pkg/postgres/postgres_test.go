package postgres

import (
	"testing"

	"github.com/DRSN-tech/image-fingerprint/internal/cfg"
	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	dsn := DSN(&cfg.PGDBCfg{
		Host:     "db",
		Port:     "5432",
		User:     "fp",
		Password: "p@ss:word",
		DBName:   "fingerprints",
		SSLMode:  "disable",
	})

	assert.Equal(t, "postgres://fp:p%40ss%3Aword@db:5432/fingerprints?sslmode=disable", dsn)
}
