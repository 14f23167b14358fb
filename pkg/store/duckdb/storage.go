package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

type Settings struct {
	DbPath  string
	Threads int
}

func DefaultSettings() Settings {
	return Settings{DbPath: "msp-atlas.duckdb", Threads: 4}
}

func NewDB(settings Settings) (*sql.DB, error) {
	threads := settings.Threads
	if threads <= 0 {
		threads = 4
	}

	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=%d", settings.DbPath, threads), func(exec driver.ExecerContext) error {
		bootQueries := append([]string{}, bootQueries...)

		for _, query := range bootQueries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	if settings.DbPath == ":memory:" || settings.DbPath == "" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	return db, nil
}
