package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genbaworks/tally/pkg/contracts"
)

// payInitialInvoice walks a draft contract's initial estimate through to a
// settled invoice, which marks the contract billed.
func payInitialInvoice(t *testing.T, env *testEnv, contract *contracts.Contract) {
	t.Helper()
	ctx := context.Background()
	_, err := env.controller.GenerateEstimate(ctx, contract.ID, "ops")
	require.NoError(t, err)
	_, err = env.controller.MarkEstimateSent(ctx, contract.ID, "ops")
	require.NoError(t, err)
	invoice, err := env.controller.ConvertEstimateToInvoice(ctx, contract.ID, "ops")
	require.NoError(t, err)
	require.NoError(t, env.controller.RecordInvoicePaid(ctx, invoice.ID, "ops"))
}

// activateContract settles the initial invoice and completes the contract
// so plan changes and recurring billing apply.
func activateContract(t *testing.T, env *testEnv, contract *contracts.Contract) {
	t.Helper()
	payInitialInvoice(t, env, contract)
	_, err := env.controller.CompleteContract(context.Background(), contract.ID, "s3cret", "customer")
	require.NoError(t, err)
}

func TestPreviewPlanChange(t *testing.T) {
	env := newTestEnv(t, testNow)
	contract := seedContract(env)
	activateContract(t, env, contract)

	// asset (28,000) -> asset + dx (50,000) on April 11, billing day 1:
	// 20 remaining days of a 30-day period
	env.contracts.addPackage(&contracts.Package{ID: 3, Key: "full", Name: "Full", MonthlyFee: 50000, SeatLimit: 30})

	preview, err := env.controller.PreviewPlanChange(context.Background(), contract.ID, []int64{3})
	require.NoError(t, err)

	assert.Equal(t, int64(28000), preview.OldMonthlyFee)
	assert.Equal(t, int64(50000), preview.NewMonthlyFee)
	assert.Equal(t, 20, preview.ProrationDays)
	assert.Equal(t, 30, preview.PeriodDays)
	assert.Equal(t, int64(-18667), preview.OldPlanProrated)
	assert.Equal(t, int64(33333), preview.NewPlanProrated)
	assert.Equal(t, int64(14666), preview.ProratedDifference)
	assert.Equal(t, contracts.PlanChangeUpgrade, preview.ChangeType)

	// preview never mutates
	c, err := env.contracts.GetContract(contract.ID)
	require.NoError(t, err)
	assert.Nil(t, c.PendingProratedCharge)
}

func TestChangePlan(t *testing.T) {
	ctx := context.Background()

	t.Run("upgrade without seat reduction", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		contract := seedContract(env)
		activateContract(t, env, contract)
		env.contracts.addPackage(&contracts.Package{ID: 3, Key: "full", Name: "Full", MonthlyFee: 50000, SeatLimit: 30})

		result, err := env.controller.ChangePlan(ctx, contract.ID, []int64{3}, 30, "ops")
		require.NoError(t, err)

		assert.Nil(t, result.GraceDeadline)
		assert.Equal(t, contracts.PlanChangeUpgrade, result.Preview.ChangeType)

		c, err := env.contracts.GetContract(contract.ID)
		require.NoError(t, err)
		require.NotNil(t, c.PendingProratedCharge)
		assert.Equal(t, result.Preview.ProratedDifference, *c.PendingProratedCharge)
		assert.Equal(t, 30, c.SeatLimit)
		assert.Nil(t, c.GraceDeadline)
		assert.Contains(t, env.invalidator.invalidated, contract.OrgID)
	})

	t.Run("downgrade below active seats sets a grace deadline", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		contract := seedContract(env)
		activateContract(t, env, contract)
		env.contracts.addPackage(&contracts.Package{ID: 4, Key: "lite", Name: "Lite", MonthlyFee: 10000, SeatLimit: 3})

		// 1 admin from completion plus 4 members = 5 active seats
		for i := 0; i < 4; i++ {
			env.accounts.addActive(contract.OrgID, "member@acme.test", testNow.Add(-time.Duration(i)*time.Hour))
		}

		result, err := env.controller.ChangePlan(ctx, contract.ID, []int64{4}, 3, "ops")
		require.NoError(t, err)

		require.NotNil(t, result.GraceDeadline)
		assert.Equal(t, testNow.AddDate(0, 0, 30).Format("2006-01-02"), result.GraceDeadline.Format("2006-01-02"))
		assert.Equal(t, 5, result.ActiveSeatCount)
		assert.Equal(t, contracts.PlanChangeDowngrade, result.Preview.ChangeType)
		assert.Negative(t, result.Preview.ProratedDifference)

		c, err := env.contracts.GetContract(contract.ID)
		require.NoError(t, err)
		require.NotNil(t, c.GraceDeadline)
	})

	t.Run("raising the limit again clears the deadline", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		contract := seedContract(env)
		activateContract(t, env, contract)
		env.contracts.addPackage(&contracts.Package{ID: 4, Key: "lite", Name: "Lite", MonthlyFee: 10000, SeatLimit: 3})
		for i := 0; i < 4; i++ {
			env.accounts.addActive(contract.OrgID, "member@acme.test", testNow.Add(-time.Duration(i)*time.Hour))
		}

		_, err := env.controller.ChangePlan(ctx, contract.ID, []int64{4}, 3, "ops")
		require.NoError(t, err)

		_, err = env.controller.ChangePlan(ctx, contract.ID, []int64{1}, 10, "ops")
		require.NoError(t, err)

		c, err := env.contracts.GetContract(contract.ID)
		require.NoError(t, err)
		assert.Nil(t, c.GraceDeadline)
	})

	t.Run("requires an active contract", func(t *testing.T) {
		env := newTestEnv(t, testNow)
		contract := seedContract(env)

		_, err := env.controller.ChangePlan(ctx, contract.ID, []int64{1}, 10, "ops")
		assert.True(t, contracts.IsPolicyViolationError(err))
	})
}
