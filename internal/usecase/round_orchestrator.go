package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"Agentomics/internal/domain/models"
	drepo "Agentomics/internal/domain/repository"
	domsvc "Agentomics/internal/domain/service"
	applogger "Agentomics/pkg/logger"
)

// Mode selects how the three banks are scheduled within a round.
type Mode string

const (
	// ModeSequential lets the central bank act first; the commercial banks see
	// its staged values.
	ModeSequential Mode = "sequential"
	// ModeParallel lets all three banks decide against the pre-round snapshot.
	ModeParallel Mode = "parallel"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSequential, ModeParallel:
		return m, nil
	case "":
		return ModeSequential, nil
	default:
		return "", fmt.Errorf("unknown orchestrator mode %q", s)
	}
}

// Phase is the position of the orchestrator inside a round.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseAwaitingCentralBank
	PhaseAwaitingCommercialBanks
	PhaseAwaitingEconomyForecast
	PhaseCommitted
	PhaseTerminal
	// PhaseAwaitingAllBanks is the parallel mode wait on all three banks.
	PhaseAwaitingAllBanks
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingCentralBank:
		return "awaiting_central_bank"
	case PhaseAwaitingCommercialBanks:
		return "awaiting_commercial_banks"
	case PhaseAwaitingEconomyForecast:
		return "awaiting_economy_forecast"
	case PhaseCommitted:
		return "committed"
	case PhaseTerminal:
		return "terminal"
	case PhaseAwaitingAllBanks:
		return "awaiting_all_banks"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// OrchestratorOption configures RoundOrchestrator.
type OrchestratorOption func(*RoundOrchestrator)

func WithMode(m Mode) OrchestratorOption {
	return func(o *RoundOrchestrator) { o.mode = m }
}

func WithRetryPolicy(p RetryPolicy) OrchestratorOption {
	return func(o *RoundOrchestrator) { o.retry = p }
}

func WithOutOfRangePolicy(p OutOfRangePolicy) OrchestratorOption {
	return func(o *RoundOrchestrator) { o.validator = NewDecisionValidator(p) }
}

// WithDecisionTimeout bounds a single decider call. Zero disables it.
func WithDecisionTimeout(d time.Duration) OrchestratorOption {
	return func(o *RoundOrchestrator) { o.decisionTimeout = d }
}

func WithSinks(sinks ...drepo.SnapshotSink) OrchestratorOption {
	return func(o *RoundOrchestrator) { o.sinks = append(o.sinks, sinks...) }
}

func WithRoundPublisher(p drepo.RoundPublisher) OrchestratorOption {
	return func(o *RoundOrchestrator) { o.pub = p }
}

func WithMetrics(m drepo.Metrics) OrchestratorOption {
	return func(o *RoundOrchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) OrchestratorOption {
	return func(o *RoundOrchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func WithRunID(id string) OrchestratorOption {
	return func(o *RoundOrchestrator) { o.runID = id }
}

// RoundOrchestrator drives the quarters of one simulation run. It is the only
// writer of the GlobalState it owns.
type RoundOrchestrator struct {
	mu    sync.RWMutex
	state *models.GlobalState
	phase Phase

	deciders        domsvc.DeciderRegistry
	validator       *DecisionValidator
	retry           RetryPolicy
	mode            Mode
	decisionTimeout time.Duration

	sinks   []drepo.SnapshotSink
	pub     drepo.RoundPublisher
	metrics drepo.Metrics
	log     *applogger.Logger
	runID   string

	subMu    sync.Mutex
	subs     map[int]chan *models.RoundCommitted
	nextID   int
	finished bool
}

// NewRoundOrchestrator wires a seeded state to the deciders of every role.
func NewRoundOrchestrator(state *models.GlobalState, deciders domsvc.DeciderRegistry, opts ...OrchestratorOption) (*RoundOrchestrator, error) {
	if state == nil {
		return nil, fmt.Errorf("state is nil")
	}
	if deciders == nil {
		return nil, fmt.Errorf("deciders are nil")
	}
	for _, r := range models.Roles() {
		if _, ok := deciders.Lookup(r); !ok {
			return nil, fmt.Errorf("no decider for role %s", r)
		}
	}
	n, err := state.Quarters()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("state must be seeded with at least one quarter")
	}

	o := &RoundOrchestrator{
		state:     state,
		deciders:  deciders,
		validator: NewDecisionValidator(OutOfRangeRetry),
		retry:     DefaultRetryPolicy(),
		mode:      ModeSequential,
		metrics:   nopMetrics{},
		log:       applogger.NewNop(),
		subs:      make(map[int]chan *models.RoundCommitted),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	o.log = o.log.With(applogger.String("run_id", o.runID))
	return o, nil
}

func (o *RoundOrchestrator) RunID() string { return o.runID }
func (o *RoundOrchestrator) Mode() Mode    { return o.mode }

func (o *RoundOrchestrator) Phase() Phase {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.phase
}

// Snapshot returns a deep copy of the committed state. Readers never observe a
// partially applied round.
func (o *RoundOrchestrator) Snapshot() *models.GlobalState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state.Clone()
}

// Subscribe returns a feed of committed rounds. Slow subscribers miss events
// instead of blocking the simulation. The feed is closed when Run returns; a
// subscription taken after that gets an already closed feed.
func (o *RoundOrchestrator) Subscribe(buffer int) (<-chan *models.RoundCommitted, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *models.RoundCommitted, buffer)
	o.subMu.Lock()
	defer o.subMu.Unlock()
	if o.finished {
		close(ch)
		return ch, func() {}
	}
	id := o.nextID
	o.nextID++
	o.subs[id] = ch

	return ch, func() {
		o.subMu.Lock()
		defer o.subMu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
}

// finish marks the run terminal and closes every feed.
func (o *RoundOrchestrator) finish() {
	o.setPhase(PhaseTerminal)
	o.subMu.Lock()
	defer o.subMu.Unlock()
	o.finished = true
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
}

// Run simulates quarters until the remaining-rounds counter reaches zero.
func (o *RoundOrchestrator) Run(ctx context.Context) error {
	o.mu.RLock()
	rounds := o.state.RemainingRounds()
	o.mu.RUnlock()
	o.log.Info("simulation started",
		applogger.String("mode", string(o.mode)),
		applogger.Int("rounds", rounds),
		applogger.Int("max_attempts", o.retry.MaxAttempts),
		applogger.String("out_of_range", string(o.validator.Policy())),
	)

	start := time.Now()
	defer o.finish()
	for {
		o.mu.RLock()
		left := o.state.RemainingRounds()
		o.mu.RUnlock()
		if left == 0 {
			break
		}
		if err := o.RunRound(ctx); err != nil {
			o.metrics.RecordError("round")
			o.log.Error("simulation aborted", applogger.Error(err))
			return err
		}
	}
	o.log.Info("simulation finished", applogger.Duration("elapsed_ms", time.Since(start)))
	return nil
}

// RunRound simulates and commits exactly one quarter.
func (o *RoundOrchestrator) RunRound(ctx context.Context) error {
	o.mu.RLock()
	if o.state.RemainingRounds() == 0 {
		o.mu.RUnlock()
		return models.ErrUnderflow
	}
	working := o.state.Clone()
	n, err := o.state.Quarters()
	o.mu.RUnlock()
	if err != nil {
		return err
	}

	start := time.Now()
	quarter := n + 1
	round := &models.Round{Quarter: quarter}
	attempts := make(map[string]int, 4)
	log := o.log.With(applogger.Int("quarter", quarter))

	switch o.mode {
	case ModeParallel:
		err = o.decideBanksParallel(ctx, working, round, attempts)
	default:
		err = o.decideBanksSequential(ctx, working, round, attempts)
	}
	if err != nil {
		return fmt.Errorf("quarter %d: %w", quarter, err)
	}

	o.setPhase(PhaseAwaitingEconomyForecast)
	d, tries, err := o.decide(ctx, models.RoleEconomy, quarter, working.RenderReport())
	attempts[models.RoleEconomy.String()] = tries
	if err != nil {
		return fmt.Errorf("quarter %d: %w", quarter, err)
	}
	if err := round.Put(d); err != nil {
		return err
	}

	committed, err := o.commit(round)
	if err != nil {
		return fmt.Errorf("quarter %d: %w", quarter, err)
	}

	ev := &models.RoundCommitted{
		RunID:       o.runID,
		Quarter:     quarter,
		Remaining:   committed.RemainingRounds(),
		Mode:        string(o.mode),
		Values:      round.Values(),
		Attempts:    attempts,
		CommittedAt: time.Now().UTC(),
	}
	o.afterCommit(ctx, committed, ev)

	log.Info("round committed",
		applogger.Int("remaining", ev.Remaining),
		applogger.Any("attempts", attempts),
		applogger.Duration("elapsed_ms", time.Since(start)),
	)
	o.metrics.RecordLatency("round", time.Since(start).Seconds())
	return nil
}

func (o *RoundOrchestrator) decideBanksSequential(ctx context.Context, working *models.GlobalState, round *models.Round, attempts map[string]int) error {
	o.setPhase(PhaseAwaitingCentralBank)
	cb, tries, err := o.decide(ctx, models.RoleCentralBank, round.Quarter, working.RenderReport())
	attempts[models.RoleCentralBank.String()] = tries
	if err != nil {
		return err
	}
	if err := o.put(working, round, cb); err != nil {
		return err
	}

	o.setPhase(PhaseAwaitingCommercialBanks)
	snapshot := working.RenderReport()
	banks := make([]models.Decision, 0, 2)
	for _, role := range []models.Role{models.RoleBigBank, models.RoleSmallBank} {
		d, tries, err := o.decide(ctx, role, round.Quarter, snapshot)
		attempts[role.String()] = tries
		if err != nil {
			return err
		}
		banks = append(banks, d)
	}
	for _, d := range banks {
		if err := o.put(working, round, d); err != nil {
			return err
		}
	}
	return nil
}

func (o *RoundOrchestrator) decideBanksParallel(ctx context.Context, working *models.GlobalState, round *models.Round, attempts map[string]int) error {
	o.setPhase(PhaseAwaitingAllBanks)
	snapshot := working.RenderReport()
	roles := []models.Role{models.RoleCentralBank, models.RoleBigBank, models.RoleSmallBank}
	results := make([]models.Decision, len(roles))
	tries := make([]int, len(roles))

	g, gctx := errgroup.WithContext(ctx)
	for i, role := range roles {
		g.Go(func() error {
			d, n, err := o.decide(gctx, role, round.Quarter, snapshot)
			tries[i] = n
			if err != nil {
				return err
			}
			results[i] = d
			return nil
		})
	}
	err := g.Wait()
	for i, role := range roles {
		attempts[role.String()] = tries[i]
	}
	if err != nil {
		return err
	}

	for _, d := range results {
		if err := o.put(working, round, d); err != nil {
			return err
		}
	}
	return nil
}

func (o *RoundOrchestrator) put(working *models.GlobalState, round *models.Round, d models.Decision) error {
	if err := round.Put(d); err != nil {
		return err
	}
	return working.Stage(d)
}

// decide asks one role until it produces an acceptable result. It returns the
// number of attempts made.
func (o *RoundOrchestrator) decide(ctx context.Context, role models.Role, quarter int, snapshot string) (models.Decision, int, error) {
	dec, _ := o.deciders.Lookup(role)
	instruction := Instruction(role, snapshot)
	log := o.log.With(applogger.String("role", role.String()), applogger.Int("quarter", quarter))

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt - 1, err
		}

		start := time.Now()
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if o.decisionTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, o.decisionTimeout)
		}
		d, err := dec.Decide(callCtx, models.DecisionRequest{
			Role:        role,
			Quarter:     quarter,
			Attempt:     attempt,
			Snapshot:    snapshot,
			Instruction: instruction,
		})
		cancel()
		o.metrics.RecordDecisionLatency(role.String(), time.Since(start).Seconds())

		if err == nil {
			var v *Verdict
			v, err = o.validator.Check(role, d)
			if err == nil {
				if len(v.Clamped) > 0 {
					o.metrics.RecordDecision(role.String(), "clamped")
					log.Warn("out-of-range values clamped", applogger.Strings("fields", v.Clamped), applogger.Int("attempt", attempt))
				} else {
					o.metrics.RecordDecision(role.String(), "ok")
				}
				log.Debug("decision accepted", applogger.Any("values", v.Decision.Values()), applogger.Int("attempt", attempt))
				return v.Decision, attempt, nil
			}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			o.metrics.RecordDecision(role.String(), "cancelled")
			return nil, attempt, ctxErr
		}
		if isPermanent(err) {
			o.metrics.RecordDecision(role.String(), "aborted")
			return nil, attempt, errors.Unwrap(err)
		}

		o.metrics.RecordDecision(role.String(), "retry")
		if o.retry.Exhausted(attempt) {
			return nil, attempt, &RetriesExhaustedError{Role: role, Quarter: quarter, Attempts: attempt, Last: err}
		}
		wait := o.retry.Backoff(attempt)
		log.Warn("decision rejected, retrying",
			applogger.Error(err),
			applogger.Int("attempt", attempt),
			applogger.Duration("backoff_ms", wait),
		)
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, attempt, err
		}
	}
}

// commit applies the round to the owned state and consumes one round.
func (o *RoundOrchestrator) commit(round *models.Round) (*models.GlobalState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.RemainingRounds() == 0 {
		return nil, models.ErrUnderflow
	}
	if err := o.state.CommitRound(round); err != nil {
		return nil, err
	}
	if err := o.state.DecrementRound(); err != nil {
		return nil, err
	}
	o.phase = PhaseCommitted
	return o.state.Clone(), nil
}

func (o *RoundOrchestrator) afterCommit(ctx context.Context, committed *models.GlobalState, ev *models.RoundCommitted) {
	o.metrics.RecordRoundCommitted(ev.Mode)
	for id, v := range ev.Values {
		o.metrics.RecordSeriesValue(id, v)
	}

	for _, s := range o.sinks {
		start := time.Now()
		if err := s.Save(ctx, o.runID, committed, ev); err != nil {
			o.metrics.RecordError("sink_" + s.Name())
			o.log.Error("snapshot sink failed", applogger.String("sink", s.Name()), applogger.Int("quarter", ev.Quarter), applogger.Error(err))
			continue
		}
		o.metrics.RecordLatency("sink_"+s.Name(), time.Since(start).Seconds())
	}

	if o.pub != nil {
		if err := o.pub.PublishRound(ctx, ev); err != nil {
			o.metrics.RecordError("publish_round")
			o.log.Error("publish round failed", applogger.Int("quarter", ev.Quarter), applogger.Error(err))
		}
	}

	o.subMu.Lock()
	for _, ch := range o.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	o.subMu.Unlock()
}

func (o *RoundOrchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

// Close releases sinks and the publisher.
func (o *RoundOrchestrator) Close() error {
	var errs []error
	for _, s := range o.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink %s: %w", s.Name(), err))
		}
	}
	if o.pub != nil {
		if err := o.pub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}

type nopMetrics struct{}

func (nopMetrics) RecordDecision(string, string)         {}
func (nopMetrics) RecordDecisionLatency(string, float64) {}
func (nopMetrics) RecordRoundCommitted(string)           {}
func (nopMetrics) RecordSeriesValue(string, float64)     {}
func (nopMetrics) RecordError(string)                    {}
func (nopMetrics) RecordLatency(string, float64)         {}
