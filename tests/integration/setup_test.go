//go:build integration

package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/genbaworks/tally/pkg/accounts"
	"github.com/genbaworks/tally/pkg/audit"
	"github.com/genbaworks/tally/pkg/bizday"
	"github.com/genbaworks/tally/pkg/contracts"
	"github.com/genbaworks/tally/pkg/documents"
	"github.com/genbaworks/tally/pkg/enforcer"
	"github.com/genbaworks/tally/pkg/entitlement"
	"github.com/genbaworks/tally/pkg/ledger"
	"github.com/genbaworks/tally/pkg/lifecycle"
	"github.com/genbaworks/tally/pkg/notify"
	"github.com/genbaworks/tally/pkg/orgs"
)

// testEnv wires real Postgres-backed stores against a throwaway container
// with the fake ledger and a local identity provisioner.
type testEnv struct {
	db         *sql.DB
	contracts  contracts.Service
	documents  documents.Service
	accounts   accounts.Service
	orgs       orgs.Service
	ledger     *ledger.Fake
	resolver   *entitlement.Resolver
	controller *lifecycle.Controller
	enforcer   *enforcer.Enforcer
	notifier   *notify.Recorder
}

func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	if _, err := testcontainers.ProviderDocker.GetProvider(); err != nil {
		t.Skip("Docker not available, skipping integration tests")
	}

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("tally_test"),
		postgres.WithUsername("tally"),
		postgres.WithPassword("tally_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile(filepath.Join("..", "..", "migrations", "schema.sql"))
	require.NoError(t, err, "Failed to read schema")
	_, err = db.Exec(string(schema))
	require.NoError(t, err, "Failed to apply schema")

	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupPostgres(t)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	auditLogger, err := audit.NewDBLogger(db)
	require.NoError(t, err)

	env := &testEnv{
		db:        db,
		contracts: contracts.NewPostgresService(db),
		documents: documents.NewPostgresService(db),
		accounts:  accounts.NewPostgresService(db),
		orgs:      orgs.NewPostgresService(db),
		ledger:    ledger.NewFake(),
		notifier:  notify.NewRecorder(),
	}
	env.resolver = entitlement.NewResolver(
		env.contracts.(*contracts.PostgresService),
		env.orgs.(*orgs.PostgresService),
		entitlement.NewMemoryCache(64, time.Minute),
	)
	env.controller = lifecycle.NewController(
		env.contracts,
		env.documents,
		env.ledger,
		env.accounts,
		&accounts.LocalProvisioner{},
		env.notifier,
		auditLogger,
		bizday.NewCalendar(nil),
		env.resolver,
		log,
		lifecycle.DefaultConfig(),
	)
	env.enforcer = enforcer.New(
		env.contracts.(*contracts.PostgresService),
		env.accounts.(*accounts.PostgresService),
		env.notifier,
		auditLogger,
		log,
	)
	return env
}

func (env *testEnv) createOrg(t *testing.T, name string) *orgs.Organization {
	t.Helper()
	org := &orgs.Organization{Name: name, BillingEmail: "billing@example.test"}
	require.NoError(t, env.orgs.CreateOrganization(org))
	return org
}

func (env *testEnv) seedPackage(t *testing.T, key, name string, monthlyFee int64, seatLimit int, features []string) int64 {
	t.Helper()
	var id int64
	err := env.db.QueryRow(`
		INSERT INTO packages (key, name, monthly_fee, seat_limit, feature_keys)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		key, name, monthlyFee, seatLimit, pq.Array(features)).Scan(&id)
	require.NoError(t, err)
	return id
}

func (env *testEnv) createDraftContract(t *testing.T, orgID int64, pkgIDs []int64, seatLimit int, startDate time.Time) *contracts.Contract {
	t.Helper()
	c, err := env.contracts.CreateContract(&contracts.CreateContractRequest{
		OrgID:               orgID,
		BillingCycle:        contracts.CycleMonthly,
		BillingDay:          1,
		StartDate:           startDate,
		SeatLimit:           seatLimit,
		PackageIDs:          pkgIDs,
		InitialFees:         contracts.InitialFees{Setup: 50000},
		AdminName:           "Taro Yamada",
		AdminEmail:          "admin@example.test",
		AdminSecret:         "initial-secret",
		BillingContactEmail: "billing@example.test",
	})
	require.NoError(t, err)
	return c
}

// payInitialInvoice runs a draft contract's initial estimate through
// acceptance and payment so it becomes eligible for activation.
func (env *testEnv) payInitialInvoice(t *testing.T, contractID int64) {
	t.Helper()
	ctx := context.Background()
	_, err := env.controller.GenerateEstimate(ctx, contractID, "ops")
	require.NoError(t, err)
	_, err = env.controller.MarkEstimateSent(ctx, contractID, "ops")
	require.NoError(t, err)
	invoice, err := env.controller.ConvertEstimateToInvoice(ctx, contractID, "ops")
	require.NoError(t, err)
	require.NoError(t, env.controller.RecordInvoicePaid(ctx, invoice.ID, "ops"))
}

// addSeat inserts an extra active seat record directly
func (env *testEnv) addSeat(t *testing.T, orgID int64, email string) int64 {
	t.Helper()
	var id int64
	err := env.db.QueryRow(`
		INSERT INTO accounts (org_id, auth_id, email, name, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'member', true, NOW(), NOW())
		RETURNING id`,
		orgID, "local-"+email, email, email).Scan(&id)
	require.NoError(t, err)
	return id
}
