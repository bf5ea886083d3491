package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"Agentomics/internal/domain/models"
	domsvc "Agentomics/internal/domain/service"
	"Agentomics/internal/services/decision"
)

var noBackoff = RetryPolicy{MaxAttempts: 0}

func seeded(t *testing.T, rounds int) *models.GlobalState {
	t.Helper()
	s := models.NewGlobalState(rounds)
	require.NoError(t, s.Seed(models.DefaultSeed()))
	return s
}

// stubScript answers every role with the fixed values of the reference scenario.
func stubScript() *decision.ScriptedDecider {
	return decision.NewScriptedDecider().
		Then(models.NewCentralBankDecision(0.035, 0.025)).
		Then(models.NewBigBankDecision(0.65, 0.025)).
		Then(models.NewSmallBankDecision(0.055, 0.72)).
		Then(models.NewEconomicForecast(0.018, 0.052, 0.038))
}

func requestsFor(s *decision.ScriptedDecider, role models.Role) []models.DecisionRequest {
	var out []models.DecisionRequest
	for _, r := range s.Requests() {
		if r.Role == role {
			out = append(out, r)
		}
	}
	return out
}

func TestSequentialScenario(t *testing.T) {
	state := seeded(t, 1)
	script := stubScript()
	o, err := NewRoundOrchestrator(state, decision.Uniform(script), WithRetryPolicy(noBackoff))
	require.NoError(t, err)

	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, PhaseTerminal, o.Phase())

	final := o.Snapshot()
	for _, sr := range final.AllSeries() {
		assert.Equal(t, 4, sr.Len(), sr.ID())
	}
	assert.Equal(t, 0, final.RemainingRounds())

	tbl, err := final.ToTable()
	require.NoError(t, err)
	last, err := tbl.Record(-1)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		models.FieldGDPGrowthRate:              0.018,
		models.FieldUnemploymentRate:           0.052,
		models.FieldInflationRate:              0.038,
		models.FieldTargetInterestRate:         0.035,
		models.FieldSecuritiesHoldingsPcChange: 0.025,
		models.FieldLoanToDepositRatio:         0.65,
		models.FieldDepositInterestRate:        0.025,
		models.FieldLoansInterestRate:          0.055,
		models.FieldConsumerLoanFocus:          0.72,
	}, last)

	cb := requestsFor(script, models.RoleCentralBank)
	bb := requestsFor(script, models.RoleBigBank)
	sb := requestsFor(script, models.RoleSmallBank)
	ec := requestsFor(script, models.RoleEconomy)
	require.Len(t, cb, 1)
	require.Len(t, bb, 1)
	require.Len(t, sb, 1)
	require.Len(t, ec, 1)

	assert.Contains(t, cb[0].Snapshot, "Target Interest Rate (%): [2.0%, 2.5%, 3.0%]\n")
	assert.Contains(t, bb[0].Snapshot, "Target Interest Rate (%): [2.0%, 2.5%, 3.0%, 3.5%]")
	assert.Equal(t, bb[0].Snapshot, sb[0].Snapshot)
	assert.Contains(t, ec[0].Snapshot, "Loan to Deposit Ratio (%): [80.0%, 75.0%, 70.0%, 65.0%]")
	assert.Contains(t, ec[0].Snapshot, "Consumer Loan Focus (%): [60.0%, 65.0%, 70.0%, 72.0%]")
	assert.Contains(t, ec[0].Snapshot, "GDP Growth Rate (% Change): [3.0%, 2.5%, 2.0%]\n")
	assert.Equal(t, 4, ec[0].Quarter)
	assert.Contains(t, ec[0].Instruction, ec[0].Snapshot)
}

func TestParallelModeSharesPreRoundSnapshot(t *testing.T) {
	defer goleak.VerifyNone(t)

	state := seeded(t, 2)
	script := stubScript()
	o, err := NewRoundOrchestrator(state, decision.Uniform(script),
		WithMode(ModeParallel), WithRetryPolicy(noBackoff))
	require.NoError(t, err)

	require.NoError(t, o.Run(context.Background()))

	cb := requestsFor(script, models.RoleCentralBank)
	bb := requestsFor(script, models.RoleBigBank)
	sb := requestsFor(script, models.RoleSmallBank)
	ec := requestsFor(script, models.RoleEconomy)
	require.Len(t, cb, 2)
	for i := range cb {
		assert.Equal(t, cb[i].Snapshot, bb[i].Snapshot)
		assert.Equal(t, cb[i].Snapshot, sb[i].Snapshot)
		assert.NotEqual(t, cb[i].Snapshot, ec[i].Snapshot)
	}
	assert.Contains(t, cb[0].Snapshot, "Target Interest Rate (%): [2.0%, 2.5%, 3.0%]\n")
	assert.Contains(t, ec[0].Snapshot, "Target Interest Rate (%): [2.0%, 2.5%, 3.0%, 3.5%]\n")
	assert.Contains(t, cb[1].Snapshot, "Inflation Rate (%): [2.5%, 3.0%, 3.5%, 3.8%]\n", "round 2 sees round 1")

	n, err := o.Snapshot().Quarters()
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestRetryAppendsExactlyOnce(t *testing.T) {
	state := seeded(t, 1)
	bad := 1.5
	script := decision.NewScriptedDecider().
		ThenStep(models.RoleCentralBank, decision.Step{Err: errors.New("model timed out")}).
		ThenStep(models.RoleCentralBank, decision.Step{Decision: &models.CentralBankDecision{
			TargetInterestRate:         &bad,
			SecuritiesHoldingsPcChange: models.NewCentralBankDecision(0, 0.01).SecuritiesHoldingsPcChange,
		}}).
		Then(models.NewCentralBankDecision(0.035, 0.025)).
		Then(models.NewBigBankDecision(0.65, 0.025)).
		Then(models.NewSmallBankDecision(0.055, 0.72)).
		Then(models.NewEconomicForecast(0.018, 0.052, 0.038))

	o, err := NewRoundOrchestrator(state, decision.Uniform(script), WithRetryPolicy(noBackoff))
	require.NoError(t, err)
	events, cancel := o.Subscribe(4)
	defer cancel()

	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, 3, script.Calls(models.RoleCentralBank))
	assert.Equal(t, 1, script.Calls(models.RoleBigBank))
	final := o.Snapshot()
	assert.Equal(t, []float64{0.02, 0.025, 0.03, 0.035}, final.CentralBankKnobs.TargetInterestRate.Raw())

	cbReqs := requestsFor(script, models.RoleCentralBank)
	for _, r := range cbReqs[1:] {
		assert.Equal(t, cbReqs[0].Snapshot, r.Snapshot, "retries see the same snapshot")
	}
	assert.Equal(t, []int{1, 2, 3}, []int{cbReqs[0].Attempt, cbReqs[1].Attempt, cbReqs[2].Attempt})

	ev := <-events
	assert.Equal(t, 3, ev.Attempts[models.RoleCentralBank.String()])
	assert.Equal(t, 4, ev.Quarter)
	assert.Equal(t, 0, ev.Remaining)
}

func TestStructuralFailuresAreRetried(t *testing.T) {
	state := seeded(t, 1)
	script := decision.NewScriptedDecider().
		ThenStep(models.RoleBigBank, decision.Step{Decision: &models.BigBankDecision{}}).
		ThenStep(models.RoleBigBank, decision.Step{Decision: models.NewSmallBankDecision(0.05, 0.5)}).
		ThenStep(models.RoleBigBank, decision.Step{Decision: nil}).
		Then(models.NewBigBankDecision(0.65, 0.025)).
		Then(models.NewCentralBankDecision(0.035, 0.025)).
		Then(models.NewSmallBankDecision(0.055, 0.72)).
		Then(models.NewEconomicForecast(0.018, 0.052, 0.038))

	o, err := NewRoundOrchestrator(state, decision.Uniform(script), WithRetryPolicy(noBackoff))
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, 4, script.Calls(models.RoleBigBank))
	assert.Equal(t, 0.65, o.Snapshot().BigBankKnobs.LoanToDepositRatio.Raw()[3])
}

func TestRetriesExhaustedLeavesStateUntouched(t *testing.T) {
	state := seeded(t, 1)
	script := decision.NewScriptedDecider().
		Then(models.NewCentralBankDecision(0.035, 0.025)).
		Then(models.NewBigBankDecision(0.65, 0.025)).
		Then(models.NewSmallBankDecision(0.055, 0.72)).
		ThenStep(models.RoleEconomy, decision.Step{Err: errors.New("refused")})

	o, err := NewRoundOrchestrator(state, decision.Uniform(script), WithRetryPolicy(RetryPolicy{MaxAttempts: 3}))
	require.NoError(t, err)

	err = o.Run(context.Background())
	require.ErrorIs(t, err, ErrRetriesExhausted)
	var rex *RetriesExhaustedError
	require.ErrorAs(t, err, &rex)
	assert.Equal(t, models.RoleEconomy, rex.Role)
	assert.Equal(t, 3, rex.Attempts)
	assert.Equal(t, 3, script.Calls(models.RoleEconomy))

	final := o.Snapshot()
	n, err := final.Quarters()
	require.NoError(t, err)
	assert.Equal(t, 3, n, "no series may grow when the round does not commit")
	assert.Equal(t, 1, final.RemainingRounds())
}

func TestOutOfRangePolicies(t *testing.T) {
	bad := func() *decision.ScriptedDecider {
		return decision.NewScriptedDecider().
			Then(models.NewCentralBankDecision(1.5, -2)).
			Then(models.NewCentralBankDecision(0.035, 0.025)).
			Then(models.NewBigBankDecision(0.65, 0.025)).
			Then(models.NewSmallBankDecision(0.055, 0.72)).
			Then(models.NewEconomicForecast(0.018, 0.052, 0.038))
	}

	t.Run("retry", func(t *testing.T) {
		script := bad()
		o, err := NewRoundOrchestrator(seeded(t, 1), decision.Uniform(script),
			WithRetryPolicy(noBackoff), WithOutOfRangePolicy(OutOfRangeRetry))
		require.NoError(t, err)
		require.NoError(t, o.Run(context.Background()))
		assert.Equal(t, 2, script.Calls(models.RoleCentralBank))
		assert.Equal(t, 0.035, o.Snapshot().CentralBankKnobs.TargetInterestRate.Raw()[3])
	})

	t.Run("abort", func(t *testing.T) {
		script := bad()
		o, err := NewRoundOrchestrator(seeded(t, 1), decision.Uniform(script),
			WithRetryPolicy(noBackoff), WithOutOfRangePolicy(OutOfRangeAbort))
		require.NoError(t, err)
		err = o.Run(context.Background())
		require.ErrorIs(t, err, models.ErrStructuralDecision)
		require.ErrorIs(t, err, models.ErrValidation)
		assert.Equal(t, 1, script.Calls(models.RoleCentralBank))
		n, _ := o.Snapshot().Quarters()
		assert.Equal(t, 3, n)
	})

	t.Run("clamp", func(t *testing.T) {
		script := bad()
		o, err := NewRoundOrchestrator(seeded(t, 1), decision.Uniform(script),
			WithRetryPolicy(noBackoff), WithOutOfRangePolicy(OutOfRangeClamp))
		require.NoError(t, err)
		require.NoError(t, o.Run(context.Background()))
		assert.Equal(t, 1, script.Calls(models.RoleCentralBank))
		final := o.Snapshot()
		assert.Equal(t, 1.0, final.CentralBankKnobs.TargetInterestRate.Raw()[3])
		assert.Equal(t, -1.0, final.CentralBankKnobs.SecuritiesHoldingsPcChange.Raw()[3])
	})
}

func TestCancellationStopsHungRole(t *testing.T) {
	defer goleak.VerifyNone(t)

	script := stubScript()
	started := make(chan struct{})
	var once sync.Once
	hung := domsvc.DeciderFunc(func(ctx context.Context, req models.DecisionRequest) (models.Decision, error) {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return nil, ctx.Err()
	})
	reg := decision.Uniform(script).Register(models.RoleSmallBank, hung)

	o, err := NewRoundOrchestrator(seeded(t, 2), reg, WithMode(ModeParallel), WithRetryPolicy(noBackoff))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	<-started
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
	n, _ := o.Snapshot().Quarters()
	assert.Equal(t, 3, n)
}

func TestBackoffIsInterruptedByCancellation(t *testing.T) {
	script := decision.NewScriptedDecider().
		ThenStep(models.RoleCentralBank, decision.Step{Err: errors.New("rate limited")}).
		Then(models.NewBigBankDecision(0.65, 0.025)).
		Then(models.NewSmallBankDecision(0.055, 0.72)).
		Then(models.NewEconomicForecast(0.018, 0.052, 0.038))
	o, err := NewRoundOrchestrator(seeded(t, 1), decision.Uniform(script),
		WithRetryPolicy(RetryPolicy{BackoffMin: time.Hour, BackoffMax: time.Hour}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = o.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, script.Calls(models.RoleCentralBank))
}

type recordingSink struct {
	mu       sync.Mutex
	name     string
	fail     bool
	quarters []int
	rows     []int
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Save(_ context.Context, _ string, state *models.GlobalState, ev *models.RoundCommitted) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("disk full")
	}
	tbl, err := state.ToTable()
	if err != nil {
		return err
	}
	s.quarters = append(s.quarters, ev.Quarter)
	s.rows = append(s.rows, tbl.Len())
	return nil
}

func (s *recordingSink) Close() error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*models.RoundCommitted
}

func (p *recordingPublisher) PublishRound(_ context.Context, ev *models.RoundCommitted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestRoundsNotifySinksAndSubscribers(t *testing.T) {
	ok := &recordingSink{name: "ok"}
	broken := &recordingSink{name: "broken", fail: true}
	pub := &recordingPublisher{}

	o, err := NewRoundOrchestrator(seeded(t, 3), decision.Uniform(stubScript()),
		WithRetryPolicy(noBackoff), WithSinks(broken, ok), WithRoundPublisher(pub), WithRunID("run-1"))
	require.NoError(t, err)
	assert.Equal(t, "run-1", o.RunID())

	events, unsubscribe := o.Subscribe(8)
	require.NoError(t, o.Run(context.Background()), "sink failures must not abort the run")
	unsubscribe()

	assert.Equal(t, []int{4, 5, 6}, ok.quarters)
	assert.Equal(t, []int{4, 5, 6}, ok.rows)
	require.Len(t, pub.events, 3)
	assert.Equal(t, "run-1", pub.events[2].RunID)
	assert.Equal(t, 0, pub.events[2].Remaining)

	var got []int
	for ev := range events {
		got = append(got, ev.Quarter)
	}
	assert.Equal(t, []int{4, 5, 6}, got)
	require.NoError(t, o.Close())
}

func TestNewRoundOrchestratorValidation(t *testing.T) {
	_, err := NewRoundOrchestrator(models.NewGlobalState(1), decision.Uniform(stubScript()))
	require.Error(t, err, "unseeded state")

	partial := decision.NewRegistry().Register(models.RoleCentralBank, stubScript())
	_, err = NewRoundOrchestrator(seeded(t, 1), partial)
	require.Error(t, err)

	o, err := NewRoundOrchestrator(seeded(t, 0), decision.Uniform(stubScript()))
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))
	require.ErrorIs(t, o.RunRound(context.Background()), models.ErrUnderflow)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Parallel")
	require.NoError(t, err)
	assert.Equal(t, ModeParallel, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSequential, m)
	_, err = ParseMode("round-robin")
	require.Error(t, err)
}

func TestRunClosesFeedsWhenFinished(t *testing.T) {
	defer goleak.VerifyNone(t)

	o, err := NewRoundOrchestrator(seeded(t, 1), decision.Uniform(stubScript()), WithRetryPolicy(noBackoff))
	require.NoError(t, err)

	events, unsubscribe := o.Subscribe(4)
	defer unsubscribe()
	require.NoError(t, o.Run(context.Background()))

	ev, ok := <-events
	require.True(t, ok)
	assert.Equal(t, 4, ev.Quarter)
	select {
	case _, ok := <-events:
		assert.False(t, ok, "no events past the last quarter")
	case <-time.After(time.Second):
		t.Fatal("feed still open after Run returned")
	}

	late, unsubscribeLate := o.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok, "subscribing after the run yields a closed feed")
	unsubscribeLate()
}

func TestRunClosesFeedsOnAbort(t *testing.T) {
	failing := domsvc.DeciderFunc(func(context.Context, models.DecisionRequest) (models.Decision, error) {
		return nil, errors.New("model offline")
	})
	o, err := NewRoundOrchestrator(seeded(t, 2), decision.Uniform(failing),
		WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))
	require.NoError(t, err)

	events, _ := o.Subscribe(1)
	require.ErrorIs(t, o.Run(context.Background()), ErrRetriesExhausted)
	_, ok := <-events
	assert.False(t, ok)
	assert.Equal(t, PhaseTerminal, o.Phase())
}

func TestParallelModeReportsAllBanksPhase(t *testing.T) {
	script := stubScript()
	var (
		o      *RoundOrchestrator
		mu     sync.Mutex
		phases = map[models.Role]Phase{}
	)
	observing := domsvc.DeciderFunc(func(ctx context.Context, req models.DecisionRequest) (models.Decision, error) {
		mu.Lock()
		phases[req.Role] = o.Phase()
		mu.Unlock()
		return script.Decide(ctx, req)
	})

	var err error
	o, err = NewRoundOrchestrator(seeded(t, 1), decision.Uniform(observing),
		WithMode(ModeParallel), WithRetryPolicy(noBackoff))
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, map[models.Role]Phase{
		models.RoleCentralBank: PhaseAwaitingAllBanks,
		models.RoleBigBank:     PhaseAwaitingAllBanks,
		models.RoleSmallBank:   PhaseAwaitingAllBanks,
		models.RoleEconomy:     PhaseAwaitingEconomyForecast,
	}, phases)
	assert.Equal(t, "awaiting_all_banks", PhaseAwaitingAllBanks.String())
}
