package e2e

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/glizzus/livesfx/internal/datalayer"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

var (
	pgOnce            sync.Once
	postgresContainer *postgres.PostgresContainer
	pgConnStr         string
	pgStartErr        error
	pgWG              sync.WaitGroup
)

// UsePostgres signals that the test is using Postgres as its database.
// This will either provision or reuse a Postgres container for the test.
// Do not expect a clean state in the database; it is shared across tests
// to simulate real-world usage.
func UsePostgres(t *testing.T) string {
	t.Helper()

	pgOnce.Do(func() {
		ctx := context.Background()
		postgresContainer, pgStartErr = postgres.Run(
			ctx,
			"postgres",
			postgres.WithDatabase("livesfx"),
			postgres.WithUsername("user"),
			postgres.WithPassword("password"),
			postgres.BasicWaitStrategies(),
		)
		if pgStartErr != nil {
			return
		}
		pgConnStr, pgStartErr = postgresContainer.ConnectionString(ctx)
		if pgStartErr != nil {
			return
		}

		pool, err := pgxpool.New(ctx, pgConnStr)
		if err != nil {
			pgStartErr = err
			return
		}
		defer pool.Close()

		pgStartErr = datalayer.MigratePostgres(pool)
	})

	if pgStartErr != nil {
		t.Fatalf("failed to start postgres container: %v", pgStartErr)
	}
	pgWG.Add(1)
	t.Cleanup(pgWG.Done)

	return pgConnStr
}

// GetPool opens a pool against the shared container. It performs no
// migrations.
func GetPool(t *testing.T, connStr string) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(t.Context(), connStr)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TerminatePostgresForE2E() {
	pgWG.Wait()
	if postgresContainer != nil {
		err := postgresContainer.Terminate(context.Background())
		if err != nil {
			fmt.Printf("failed to terminate postgres container: %v", err)
		}
	}
}

var (
	redisOnce      sync.Once
	redisContainer *redis.RedisContainer
	redisURL       string
	redisStartErr  error
	redisWG        sync.WaitGroup
)

// UseRedis provisions or reuses a Redis container and returns its URL.
// Like UsePostgres, state is shared across tests; use distinct keys.
func UseRedis(t *testing.T) string {
	t.Helper()

	redisOnce.Do(func() {
		ctx := context.Background()
		redisContainer, redisStartErr = redis.Run(ctx, "redis:7")
		if redisStartErr != nil {
			return
		}
		redisURL, redisStartErr = redisContainer.ConnectionString(ctx)
	})

	if redisStartErr != nil {
		t.Fatalf("failed to start redis container: %v", redisStartErr)
	}
	redisWG.Add(1)
	t.Cleanup(redisWG.Done)

	return redisURL
}

// GetRedisClient connects to the Redis server at url.
func GetRedisClient(t *testing.T, url string) *goredis.Client {
	t.Helper()
	opts, err := goredis.ParseURL(url)
	if err != nil {
		t.Fatalf("failed to parse redis url: %v", err)
	}
	client := goredis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	return client
}

func TerminateRedisForE2E() {
	redisWG.Wait()
	if redisContainer != nil {
		err := redisContainer.Terminate(context.Background())
		if err != nil {
			fmt.Printf("failed to terminate redis container: %v", err)
		}
	}
}
