package systemtest

import (
	"context"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	internalhttp "github.com/rdm-project/rdm-server/internal/api/http"
	"github.com/rdm-project/rdm-server/internal/audit"
	"github.com/rdm-project/rdm-server/internal/auth"
	"github.com/rdm-project/rdm-server/internal/db"
	"github.com/rdm-project/rdm-server/internal/devices"
	"github.com/rdm-project/rdm-server/internal/gateway"
	"github.com/rdm-project/rdm-server/internal/permissions"
	"github.com/rdm-project/rdm-server/internal/secrets"
	"github.com/rdm-project/rdm-server/internal/sessions"
	"github.com/rdm-project/rdm-server/internal/store"
	"github.com/rdm-project/rdm-server/internal/users"
	"github.com/rdm-project/rdm-server/systemtest/postgres"
	"github.com/rdm-project/rdm-server/systemtest/tests"
)

const (
	jwtSecret  = "systemtest-secret"
	secretsKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	baseURL    = "http://localhost/guacamole"
)

func TestSystemIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping system test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.StartPostgres(ctx, "rdm", "rdm", "rdm")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = postgres.TerminatePostgres(ctx, container)
	})

	dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, db.RunMigrations(dbURL, "app"))

	pool, err := db.InitDB(ctx, dbURL, "app")
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	cipher, err := secrets.NewCipher(secretsKey)
	require.NoError(t, err)

	st := store.New(pool)
	recorder := audit.NewRecorder(st, 64)
	t.Cleanup(recorder.Close)

	gatewayClient := gateway.NewPostgresClient(pool, baseURL)
	synchronizer := gateway.NewSynchronizer(gatewayClient, cipher, "rdm-service")
	resolver := permissions.NewResolver(st)

	authCfg := auth.JWTConfig{Secret: jwtSecret, TokenTTL: time.Hour}
	services := &internalhttp.Services{
		Store:       st,
		Auth:        auth.NewService(st, recorder, authCfg),
		Users:       users.NewService(st, recorder),
		Devices:     devices.NewService(st, synchronizer, cipher, resolver, recorder),
		Permissions: permissions.NewService(st, recorder),
		Broker:      sessions.NewBroker(st, resolver, synchronizer, recorder),
		JWTSecret:   jwtSecret,
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	internalhttp.SetupRoute(engine, services)

	t.Run("HealthCheck", func(t *testing.T) { tests.TestHealthCheck(t, engine) })
	t.Run("Auth", func(t *testing.T) { tests.TestAuth(t, engine, jwtSecret) })
	t.Run("Users", func(t *testing.T) { tests.TestUserManagement(t, engine) })
	t.Run("Devices", func(t *testing.T) { tests.TestDeviceAccess(t, engine) })
	t.Run("Connections", func(t *testing.T) { tests.TestConnectionLifecycle(t, engine) })
}
