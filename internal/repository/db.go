package repository

import "github.com/jmoiron/sqlx"

// pick returns the caller's transaction when present, otherwise the pool.
func pick(db *sqlx.DB, exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return db
}
