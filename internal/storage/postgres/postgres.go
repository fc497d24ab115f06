package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/IlyasAtabaev731/market/internal/storage"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Dialect locks rows read inside a transaction with SELECT ... FOR UPDATE.
var Dialect = storage.Dialect{
	Name:            "postgres",
	ForUpdate:       " FOR UPDATE",
	UniqueViolation: uniqueConstraint,
}

func New(dbUrl string) (*storage.Store, error) {
	db, err := sql.Open("postgres", dbUrl)
	if err != nil {
		return nil, fmt.Errorf("database connection error %s", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect database error %s", err)
	}

	return storage.New(db, Dialect), nil
}

func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
