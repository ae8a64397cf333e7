package pgtest

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// container state is shared by every test in the process
var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// ConnString returns a connection string for an integration test database:
// TEST_DATABASE when set, otherwise a lazily started PostgreSQL container
// (image TEST_POSTGRES_IMAGE, default postgres:16-alpine).
// The test is skipped when neither is available.
func ConnString(t testing.TB) string {
	t.Helper()
	if dsn := os.Getenv("TEST_DATABASE"); dsn != "" {
		return dsn
	}
	if testing.Short() {
		t.Skip("TEST_DATABASE not set and -short given")
	}

	containerOnce.Do(func() {
		containerDSN, containerErr = startContainer(context.Background())
	})
	if containerErr != nil {
		t.Skipf("no test database: %v", containerErr)
	}
	return containerDSN
}

func startContainer(ctx context.Context) (dsn string, err error) {
	// testcontainers panics instead of failing when no docker host is found
	defer func() {
		if r := recover(); r != nil {
			err = errNoDocker{r}
		}
	}()

	image := os.Getenv("TEST_POSTGRES_IMAGE")
	if image == "" {
		image = "postgres:16-alpine"
	}
	container, err := postgres.Run(ctx, image,
		postgres.WithDatabase("pglist"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return "", err
	}

	dsn, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", err
	}
	return dsn, nil
}

type errNoDocker struct{ v any }

func (e errNoDocker) Error() string { return "docker unavailable" }

// Pool opens a pool on the test database and closes it when the test ends.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), ConnString(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// Connect creates a new database connection for testing
func Connect(ctx context.Context, t testing.TB) *pgx.Conn {
	config := ParseConfig(t)

	conn, err := pgx.ConnectConfig(ctx, config)
	require.NoError(t, err)

	t.Cleanup(func() {
		Close(t, conn)
	})

	return conn
}

// Close safely closes a database connection
func Close(t testing.TB, conn *pgx.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if !conn.IsClosed() {
		require.NoError(t, conn.Close(ctx))
	}
}

// ParseConfig returns a test connection config with logging
func ParseConfig(t testing.TB) *pgx.ConnConfig {
	config, err := pgx.ParseConfig(ConnString(t))
	require.NoError(t, err)

	config.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		t.Logf("PostgreSQL %s: %s", n.Severity, n.Message)
	}

	return config
}
