package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tipo-sto/kbase/internal/database"
)

// PostgresContainer is a pgvector-enabled PostgreSQL instance for tests.
type PostgresContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
	User      string
	Password  string
	Database  string
}

// NewPostgresContainer starts PostgreSQL with the pgvector extension available.
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:0.8.1-pg18",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "kbase",
			"POSTGRES_PASSWORD": "kbase",
			"POSTGRES_DB":       "kbase",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	}

	container, host := start(ctx, t, req, "postgres")
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get postgres container port: %v", err)
	}
	return &PostgresContainer{
		Container: container,
		Host:      host,
		Port:      port.Port(),
		User:      "kbase",
		Password:  "kbase",
		Database:  "kbase",
	}
}

// ConnectionString returns the PostgreSQL connection string
func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pc.User, pc.Password, pc.Host, pc.Port, pc.Database)
}

// Terminate stops and removes the container
func (pc *PostgresContainer) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(pc.Container)
}

// RedisContainer backs the shared embedding cache in tests.
type RedisContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

func NewRedisContainer(ctx context.Context, t *testing.T) *RedisContainer {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready to accept connections"),
			wait.ForListeningPort("6379/tcp"),
		).WithStartupTimeout(30 * time.Second),
	}

	container, host := start(ctx, t, req, "redis")
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("failed to get redis container port: %v", err)
	}
	return &RedisContainer{Container: container, Host: host, Port: port.Port()}
}

// URL returns a redis:// URL for database 0.
func (rc *RedisContainer) URL() string {
	return fmt.Sprintf("redis://%s:%s/0", rc.Host, rc.Port)
}

func (rc *RedisContainer) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(rc.Container)
}

// RustFSContainer is an S3-compatible object store for archive tests.
type RustFSContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "rustfs/rustfs:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": "rustfsadmin",
			"RUSTFS_SECRET_KEY": "rustfsadmin",
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, host := start(ctx, t, req, "rustfs")
	port, err := container.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("failed to get rustfs container port: %v", err)
	}
	return &RustFSContainer{Container: container, Host: host, Port: port.Port()}
}

// Endpoint returns the RustFS endpoint URL
func (rc *RustFSContainer) Endpoint() string {
	return fmt.Sprintf("http://%s:%s", rc.Host, rc.Port)
}

func (rc *RustFSContainer) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(rc.Container)
}

func start(ctx context.Context, t *testing.T, req testcontainers.ContainerRequest, name string) (testcontainers.Container, string) {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to create %s container: %v", name, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get %s container host: %v", name, err)
	}
	return container, host
}

// NewTestPool connects to the container, retrying while PostgreSQL finishes
// booting, and applies the bundled migrations.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer) *pgxpool.Pool {
	t.Helper()
	var pool *pgxpool.Pool
	var err error
	for i := 0; i < 5; i++ {
		pool, err = database.NewPool(ctx, database.Config{URL: pc.ConnectionString(), MaxConns: 4})
		if err == nil {
			break
		}
		time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to create pool after retries: %v", err)
	}

	if _, err := database.MigrateUp(pc.ConnectionString()); err != nil {
		pool.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return pool
}

// TruncateAll empties every kbase table between tests.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range []string{"kb_chunks", "kb_search_log"} {
		if _, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}
