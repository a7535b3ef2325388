// Package dbtest поднимает PostgreSQL в контейнере для интеграционных тестов.
package dbtest

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const image = "postgres:16-alpine"

// Postgres is a running container and its connection URL.
type Postgres struct {
	URL       string
	container *postgres.PostgresContainer
}

// Start runs a disposable PostgreSQL. An error (including a missing Docker
// daemon) means integration tests should be skipped.
func Start(ctx context.Context, dbName string) (pg *Postgres, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("start postgres container: %v", r)
		}
	}()
	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase(dbName),
		postgres.WithUsername("portal"),
		postgres.WithPassword("portal"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		if ctr != nil {
			_ = testcontainers.TerminateContainer(ctr)
		}
		return nil, fmt.Errorf("start postgres container: %w", err)
	}
	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = testcontainers.TerminateContainer(ctr)
		return nil, fmt.Errorf("connection string: %w", err)
	}
	return &Postgres{URL: url, container: ctr}, nil
}

func (p *Postgres) Terminate() error {
	if p == nil || p.container == nil {
		return nil
	}
	return testcontainers.TerminateContainer(p.container)
}
