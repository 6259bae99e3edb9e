package config

import (
	"github.com/jmoiron/sqlx"
)

// PostgresSQLX opens a configured *sqlx.DB sharing the pool settings of PostgresSQLDB.
func PostgresSQLX() (*sqlx.DB, error) {
	db, err := PostgresSQLDB()
	if err != nil {
		return nil, err
	}

	return sqlx.NewDb(db, "postgres"), nil
}
