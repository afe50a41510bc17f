package repositories_test

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/docker/go-connections/nat"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/configloader"
	"github.com/bionicotaku/carcare-services-estimate/internal/repositories"
)

func TestPostgresDeviceRepositoryListTokens(t *testing.T) {
	ctx := context.Background()
	dsn, terminate := startDevicePostgres(ctx, t)
	defer terminate()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	applyDeviceMigrations(ctx, t, pool)

	repo := repositories.NewPostgresDeviceRepository(pool, log.NewStdLogger(io.Discard))
	seed := []deviceRow{
		{userID: "m1", shop: "shop-1", role: mechanic, token: "tok-1"},
		{userID: "m2", shop: "shop-1", role: mechanic, token: ""},
		{userID: "m3", shop: "shop-1", role: "owner", token: "tok-owner"},
		{userID: "m4", shop: "shop-2", role: mechanic, token: "tok-other-shop"},
		{userID: "m5", shop: "shop-1", role: mechanic, token: "tok-5"},
		{userID: "m6", shop: "shop-1", role: mechanic, token: "tok-5"},
	}
	for _, row := range seed {
		upsertDevice(ctx, t, pool, row)
	}

	tokens, err := repo.ListTokens(ctx, "shop-1", mechanic)
	require.NoError(t, err)
	require.Equal(t, []string{"tok-1", "tok-5"}, tokens)

	// 重新注册会覆盖旧 token
	upsertDevice(ctx, t, pool, deviceRow{userID: "m1", shop: "shop-1", role: mechanic, token: "tok-1b"})
	tokens, err = repo.ListTokens(ctx, "shop-1", mechanic)
	require.NoError(t, err)
	require.Equal(t, []string{"tok-1b", "tok-5"}, tokens)

	tokens, err = repo.ListTokens(ctx, "shop-404", mechanic)
	require.NoError(t, err)
	require.Empty(t, tokens)
}

const mechanic = "mechanic"

type deviceRow struct {
	userID, shop, role, token string
}

// upsertDevice 模拟客户端注册设备：同一用户重复注册覆盖旧记录。
func upsertDevice(ctx context.Context, t *testing.T, pool *pgxpool.Pool, row deviceRow) {
	t.Helper()
	_, err := pool.Exec(ctx, `
insert into device_registrations (user_id, service_center_id, role, fcm_token, updated_at)
values ($1, $2, $3, $4, now())
on conflict (user_id) do update
   set service_center_id = excluded.service_center_id,
       role              = excluded.role,
       fcm_token         = excluded.fcm_token,
       updated_at        = now()`, row.userID, row.shop, row.role, row.token)
	require.NoError(t, err)
}

func TestFirestoreDeviceRepositoryListTokens(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("skip integration: FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "demo-carcare")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	collection := fmt.Sprintf("users_%d", time.Now().UnixNano())
	docs := map[string]map[string]any{
		"a": {"serviceCenterId": "shop-1", "role": "mechanic", "fcmToken": "tok-a"},
		"b": {"serviceCenterId": "shop-1", "role": "mechanic"},
		"c": {"serviceCenterId": "shop-1", "role": "customer", "fcmToken": "tok-c"},
		"d": {"serviceCenterId": "shop-2", "role": "mechanic", "fcmToken": "tok-d"},
	}
	for id, data := range docs {
		_, err := client.Collection(collection).Doc(id).Set(ctx, data)
		require.NoError(t, err)
	}

	repo := repositories.NewFirestoreDeviceRepository(client, configloader.NotificationConfig{
		UsersCollection: collection,
		ShopField:       "serviceCenterId",
		RoleField:       "role",
		TokenField:      "fcmToken",
	}, log.NewStdLogger(io.Discard))

	tokens, err := repo.ListTokens(ctx, "shop-1", "mechanic")
	require.NoError(t, err)
	require.Equal(t, []string{"tok-a"}, tokens)
}

func startDevicePostgres(ctx context.Context, t *testing.T) (string, func()) {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "estimates",
		},
		WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
			return fmt.Sprintf("postgres://postgres:postgres@%s:%s/estimates?sslmode=disable", host, port.Port())
		}).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("skip integration: cannot start postgres container: %v", err)
		return "", func() {}
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/estimates?sslmode=disable", host, port.Port())
	cleanup := func() {
		termCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(termCtx)
	}
	return dsn, cleanup
}

func applyDeviceMigrations(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	for _, p := range paths {
		sqlBytes, err := os.ReadFile(p)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(sqlBytes))
		require.NoErrorf(t, err, "apply migration %s", filepath.Base(p))
	}
}
