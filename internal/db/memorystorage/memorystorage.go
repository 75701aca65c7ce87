// Package memorystorage is the default storage backend: the jsondb store
// without a backing file. Data lives as long as the process.
package memorystorage

import (
	"context"

	"github.com/patric-chuzhbe/recipebook/internal/db/jsondb"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.NewCache(),
		},
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
