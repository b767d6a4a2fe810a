package repository

import (
	"fmt"

	"github.com/code-sleuth/caselaw-go/internal/manager/interfaces"
	"github.com/code-sleuth/caselaw-go/pkg/db"
	"github.com/code-sleuth/caselaw-go/pkg/util"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"
)

// baseStore carries the statements both dialects share.
type baseStore struct {
	db       *db.DB
	postgres bool
	logger   zerolog.Logger
}

func newBaseStore(database *db.DB) *baseStore {
	return &baseStore{
		db:       database,
		postgres: database.Driver == db.DriverPostgres,
		logger:   util.NewLogger(util.LevelFromEnv()),
	}
}

func (s *baseStore) q(query string) string {
	if s.postgres {
		return rebind(query)
	}
	return query
}

func (s *baseStore) vectorArg(v []float32) any {
	if len(v) == 0 {
		return nil
	}
	if s.postgres {
		return pgvector.NewVector(v)
	}
	return util.EncodeVector(v)
}

func (s *baseStore) Close() error {
	return s.db.Close()
}

// New returns the store matching the connection's dialect.
func New(database *db.DB) (interfaces.Store, error) {
	switch database.Driver {
	case db.DriverSQLite, db.DriverLibSQL:
		return NewSQLiteStore(database), nil
	case db.DriverPostgres:
		return NewPostgresStore(database), nil
	default:
		return nil, fmt.Errorf("%w: %s", db.ErrUnsupportedDriver, database.Driver)
	}
}
