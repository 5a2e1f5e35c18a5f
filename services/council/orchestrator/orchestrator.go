// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator drives one case through the multi-round deliberation
// protocol: proposal, attack, conflict review, synthesis.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/CouncilFOSS/services/council/agents"
	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
	"github.com/AleutianAI/CouncilFOSS/services/council/observability"
	"github.com/AleutianAI/CouncilFOSS/services/council/store"
	"github.com/AleutianAI/CouncilFOSS/services/llm"
)

// ErrAnalysisRunning is returned when a deliberation is requested for a case
// that already has one in flight.
var ErrAnalysisRunning = errors.New("analysis already running for case")

// Options configure one Orchestrator instance.
type Options struct {
	// Rounds is the number of proposal/attack cycles. Must be >= 1;
	// validated at config load, asserted here.
	Rounds int

	// CaseTimeout bounds one full deliberation wall-clock. A stuck provider
	// call cannot hold a case in a non-terminal state past this deadline.
	CaseTimeout time.Duration
}

// Orchestrator is the deliberation state machine.
//
// # Description
//
// One Orchestrator serves all cases; independent cases run fully
// concurrently with no shared mutable state beyond the store. Within a case
// the protocol is sequential, the adversary must wait for the round's
// arguments and the synthesizer for the full history. The orchestrator holds
// only transient in-flight state (the running-case set and the event bus);
// everything durable lives in the store.
//
// States: created -> round_k_proposal -> round_k_attack (+ conflict review
// per round) -> synthesizing -> complete, with failed absorbing any
// unrecoverable generation error. Failure keeps prior artifacts, the
// deliberation is append-only and auditable, not transactional.
type Orchestrator struct {
	store store.Store
	bus   *Bus
	opts  Options

	strategist  *agents.Agent
	researcher  *agents.Agent
	adversary   *agents.Agent
	synthesizer *agents.Agent
	detector    *agents.Detector

	mu      sync.Mutex
	running map[string]bool
}

// New wires the persona roster and detector onto one gateway and store.
//
// # Limitations
//
//   - Panics on nil dependencies or Rounds < 1; both are wiring bugs that
//     config validation should have caught.
func New(st store.Store, gateway *llm.Gateway, opts Options) *Orchestrator {
	if st == nil {
		panic("orchestrator.New: store must not be nil")
	}
	if gateway == nil {
		panic("orchestrator.New: gateway must not be nil")
	}
	if opts.Rounds < 1 {
		panic(fmt.Sprintf("orchestrator.New: rounds must be >= 1, got %d", opts.Rounds))
	}
	if opts.CaseTimeout <= 0 {
		opts.CaseTimeout = 15 * time.Minute
	}
	return &Orchestrator{
		store:       st,
		bus:         NewBus(),
		opts:        opts,
		strategist:  agents.New(agents.RoleStrategist, gateway, st),
		researcher:  agents.New(agents.RoleResearcher, gateway, st),
		adversary:   agents.New(agents.RoleAdversary, gateway, st),
		synthesizer: agents.New(agents.RoleSynthesizer, gateway, st),
		detector:    agents.NewDetector(gateway, st),
		running:     make(map[string]bool),
	}
}

// Bus exposes the event bus for the stream handler.
func (o *Orchestrator) Bus() *Bus { return o.bus }

// CreateCase persists a new case from a validated intake request.
func (o *Orchestrator) CreateCase(ctx context.Context, req *datatypes.CaseCreateRequest) (*datatypes.Case, error) {
	c := req.NewCase()
	if err := o.store.CreateCase(ctx, c); err != nil {
		return nil, err
	}
	slog.Info("Case created", "case_id", c.CaseID, "title", c.Title)
	return c, nil
}

// StartAnalysis launches the deliberation for a case in the background.
//
// # Description
//
// The run is detached from any request context: a client disconnecting must
// not abort the deliberation, only the per-case wall-clock timeout bounds
// it. Re-running a complete case is permitted: round numbering continues
// from the case's highest persisted round, keeping (case_id, agent, round)
// unique across runs, and synthesis appends a higher strategy version.
// Starting a case that is already mid-run returns ErrAnalysisRunning.
func (o *Orchestrator) StartAnalysis(caseID string) error {
	o.mu.Lock()
	if o.running[caseID] {
		o.mu.Unlock()
		return fmt.Errorf("case %s: %w", caseID, ErrAnalysisRunning)
	}
	o.running[caseID] = true
	o.mu.Unlock()

	o.bus.Register(caseID)
	go o.runAnalysis(caseID)
	return nil
}

func (o *Orchestrator) runAnalysis(caseID string) {
	started := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.CaseTimeout)
	defer cancel()
	defer func() {
		o.mu.Lock()
		delete(o.running, caseID)
		o.mu.Unlock()
		o.bus.Close(caseID)
	}()

	c, err := o.store.GetCase(ctx, caseID)
	if err != nil {
		slog.Error("Cannot start analysis, case lookup failed", "case_id", caseID, "error", err)
		o.bus.Publish(caseID, datatypes.NewErrorEvent(caseID, "case not found"))
		o.bus.Publish(caseID, datatypes.NewDoneEvent(caseID, datatypes.CaseStatusFailed, "case not found"))
		return
	}
	if err := o.store.UpdateCaseStatus(ctx, caseID, datatypes.CaseStatusAnalyzing); err != nil {
		slog.Warn("Could not mark case analyzing", "case_id", caseID, "error", err)
	}
	// A re-run must not reuse round numbers already taken by persisted
	// arguments, so the first round of this run is one past the case's
	// highest existing round.
	history, err := o.store.ArgumentsForCase(ctx, caseID)
	if err != nil {
		o.fail(ctx, c, started, err)
		return
	}
	base := 0
	for _, a := range history {
		if a.Round > base {
			base = a.Round
		}
	}
	slog.Info("Deliberation started",
		"case_id", caseID, "rounds", o.opts.Rounds, "starting_round", base+1)

	for round := base + 1; round <= base+o.opts.Rounds; round++ {
		if err := o.runRound(ctx, c, round); err != nil {
			o.fail(ctx, c, started, err)
			return
		}
	}

	if err := o.synthesize(ctx, c); err != nil {
		o.fail(ctx, c, started, err)
		return
	}

	if err := o.store.UpdateCaseStatus(ctx, caseID, datatypes.CaseStatusComplete); err != nil {
		slog.Warn("Could not mark case complete", "case_id", caseID, "error", err)
	}
	o.bus.Publish(caseID, datatypes.NewDoneEvent(caseID, datatypes.CaseStatusComplete,
		"Analysis complete. Final strategy is ready."))
	if observability.DefaultMetrics != nil {
		observability.DefaultMetrics.RecordDeliberation(true, time.Since(started).Seconds())
	}
	slog.Info("Deliberation complete", "case_id", caseID, "duration", time.Since(started))
}

// runRound executes one proposal/attack cycle plus conflict review.
func (o *Orchestrator) runRound(ctx context.Context, c *datatypes.Case, round int) error {
	// === Proposal ===
	priorAttacks, err := o.store.CounterargumentsForRound(ctx, c.CaseID, round-1)
	if err != nil {
		return err
	}
	stratArg, err := o.propose(ctx, c, o.strategist, round,
		agents.ProposalPrompt(c, round, priorAttacks))
	if err != nil {
		return err
	}

	// The researcher contributes precedent work in round 1 only; later
	// rounds are strategist/adversary exchanges.
	if round == 1 {
		if _, err := o.propose(ctx, c, o.researcher, round, agents.ResearchPrompt(c)); err != nil {
			return err
		}
	}

	// === Attack ===
	o.strategist.HandOff(ctx, c.CaseID, agents.RoleAdversary, stratArg.Content)
	o.bus.Publish(c.CaseID, datatypes.NewAgentStartedEvent(c.CaseID, o.adversary.Name, round))

	counter := &datatypes.Counterargument{
		CaseID:           c.CaseID,
		TargetArgumentID: stratArg.ArgumentID,
		Agent:            o.adversary.Name,
		Round:            round,
	}
	counterID, err := o.adversary.Think(ctx, c.CaseID, agents.AttackPrompt(c, stratArg),
		func(output string) (string, error) {
			counter.CounterargumentID = datatypes.NewCounterargumentID()
			counter.Content = output
			counter.CreatedAt = time.Now().UTC()
			if err := o.store.PutCounterargument(ctx, counter); err != nil {
				return "", err
			}
			return counter.CounterargumentID, nil
		})
	if err != nil {
		o.recordAgentOutcome(o.adversary.Name, false)
		return err
	}
	o.recordAgentOutcome(o.adversary.Name, true)
	o.bus.Publish(c.CaseID, datatypes.NewAgentCompletedEvent(c.CaseID, o.adversary.Name, round, counterID))

	// === Conflict review ===
	roundArgs, err := o.store.ArgumentsForRound(ctx, c.CaseID, round)
	if err != nil {
		return err
	}
	roundCounters, err := o.store.CounterargumentsForRound(ctx, c.CaseID, round)
	if err != nil {
		return err
	}
	conflicts, err := o.detector.Detect(ctx, c, round, roundArgs, roundCounters,
		func(cf datatypes.Conflict) {
			o.bus.Publish(c.CaseID, datatypes.NewConflictDetectedEvent(c.CaseID, cf.ConflictID))
		})
	if err != nil {
		return err
	}
	if observability.DefaultMetrics != nil {
		observability.DefaultMetrics.RecordConflicts(len(conflicts))
	}
	slog.Info("Round finished", "case_id", c.CaseID, "round", round, "conflicts", len(conflicts))
	return nil
}

// propose runs one proposing persona and persists its Argument.
func (o *Orchestrator) propose(ctx context.Context, c *datatypes.Case,
	agent *agents.Agent, round int, prompt string) (*datatypes.Argument, error) {

	o.bus.Publish(c.CaseID, datatypes.NewAgentStartedEvent(c.CaseID, agent.Name, round))

	arg := &datatypes.Argument{
		CaseID: c.CaseID,
		Agent:  agent.Name,
		Round:  round,
	}
	artifactID, err := agent.Think(ctx, c.CaseID, prompt, func(output string) (string, error) {
		arg.ArgumentID = datatypes.NewArgumentID()
		arg.Content = output
		arg.CreatedAt = time.Now().UTC()
		if err := o.store.PutArgument(ctx, arg); err != nil {
			return "", err
		}
		return arg.ArgumentID, nil
	})
	if err != nil {
		o.recordAgentOutcome(agent.Name, false)
		return nil, err
	}
	o.recordAgentOutcome(agent.Name, true)
	o.bus.Publish(c.CaseID, datatypes.NewAgentCompletedEvent(c.CaseID, agent.Name, round, artifactID))
	return arg, nil
}

// synthesize runs the synthesizer over the full case history and persists
// the next strategy version.
func (o *Orchestrator) synthesize(ctx context.Context, c *datatypes.Case) error {
	args, err := o.store.ArgumentsForCase(ctx, c.CaseID)
	if err != nil {
		return err
	}
	counters, err := o.store.CounterargumentsForCase(ctx, c.CaseID)
	if err != nil {
		return err
	}
	conflicts, err := o.store.ConflictsForCase(ctx, c.CaseID)
	if err != nil {
		return err
	}

	o.adversary.HandOff(ctx, c.CaseID, agents.RoleSynthesizer,
		fmt.Sprintf("%d arguments, %d counterarguments, %d conflicts under review",
			len(args), len(counters), len(conflicts)))
	o.bus.Publish(c.CaseID, datatypes.NewAgentStartedEvent(c.CaseID, o.synthesizer.Name, 0))

	maxVersion, err := o.store.MaxStrategyVersion(ctx, c.CaseID)
	if err != nil {
		return err
	}
	strategy := &datatypes.Strategy{
		CaseID:  c.CaseID,
		Version: maxVersion + 1,
	}
	strategyID, err := o.synthesizer.Think(ctx, c.CaseID,
		agents.SynthesisPrompt(c, args, counters, conflicts),
		func(output string) (string, error) {
			strategy.StrategyID = datatypes.NewStrategyID()
			strategy.Content = output
			strategy.CreatedAt = time.Now().UTC()
			if err := o.store.PutStrategy(ctx, strategy); err != nil {
				return "", err
			}
			return strategy.StrategyID, nil
		})
	if err != nil {
		o.recordAgentOutcome(o.synthesizer.Name, false)
		return err
	}
	o.recordAgentOutcome(o.synthesizer.Name, true)
	o.bus.Publish(c.CaseID, datatypes.NewAgentCompletedEvent(c.CaseID, o.synthesizer.Name, 0, strategyID))
	o.bus.Publish(c.CaseID, datatypes.NewStrategyReadyEvent(c.CaseID, strategyID, strategy.Version))
	return nil
}

// fail moves the case to the absorbing failed state. Already-persisted
// artifacts from prior rounds remain in the store.
func (o *Orchestrator) fail(_ context.Context, c *datatypes.Case, started time.Time, cause error) {
	slog.Error("Deliberation failed", "case_id", c.CaseID, "error", cause)
	// The timeout that killed the run must not also block the status write.
	statusCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.store.UpdateCaseStatus(statusCtx, c.CaseID, datatypes.CaseStatusFailed); err != nil {
		slog.Error("Could not mark case failed", "case_id", c.CaseID, "error", err)
	}
	o.bus.Publish(c.CaseID, datatypes.NewErrorEvent(c.CaseID, cause.Error()))
	o.bus.Publish(c.CaseID, datatypes.NewDoneEvent(c.CaseID, datatypes.CaseStatusFailed,
		"Analysis failed. Artifacts from completed rounds are preserved."))
	if observability.DefaultMetrics != nil {
		observability.DefaultMetrics.RecordDeliberation(false, time.Since(started).Seconds())
	}
}

func (o *Orchestrator) recordAgentOutcome(agent string, success bool) {
	if observability.DefaultMetrics != nil {
		observability.DefaultMetrics.RecordAgentInvocation(agent, success)
	}
}

// GetCaseWithDetails assembles the full read model for one case.
// The strategy is the latest version or nil when none exists yet.
func (o *Orchestrator) GetCaseWithDetails(ctx context.Context, caseID string) (*datatypes.CaseDetails, error) {
	c, err := o.store.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	args, err := o.store.ArgumentsForCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	counters, err := o.store.CounterargumentsForCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	conflicts, err := o.store.ConflictsForCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	details := &datatypes.CaseDetails{
		Case:             c,
		Arguments:        args,
		Counterarguments: counters,
		Conflicts:        conflicts,
	}
	strategy, err := o.store.LatestStrategy(ctx, caseID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err == nil {
		details.Strategy = strategy
	}
	return details, nil
}
