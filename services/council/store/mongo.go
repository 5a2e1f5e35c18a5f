// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/CouncilFOSS/services/council/datatypes"
)

// Collection names. All dependent collections key rows by case_id so that
// delete can cascade with one filter.
const (
	colCases            = "cases"
	colArguments        = "arguments"
	colCounterarguments = "counterarguments"
	colConflicts        = "conflicts"
	colStrategies       = "strategies"
	colAgentRuns        = "agent_runs"
	colReasoningSteps   = "reasoning_steps"
	colAgentMessages    = "agent_messages"
)

var allCollections = []string{
	colCases, colArguments, colCounterarguments, colConflicts,
	colStrategies, colAgentRuns, colReasoningSteps, colAgentMessages,
}

// findProjection strips the store-internal _id from every read.
var findProjection = bson.M{"_id": 0}

// Mongo implements Store on a MongoDB database.
//
// # Description
//
// The handle is constructed once at process start and injected into every
// component that needs it; there is no module-level singleton. All methods
// are safe for concurrent use, the driver pools connections internally.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects to MongoDB and verifies the connection with a ping.
//
// # Inputs
//
//   - ctx: Controls the connect and ping deadline.
//   - uri: Connection string (Atlas or local mongodb://).
//   - dbName: Database holding all council collections.
//
// # Outputs
//
//   - *Mongo: Connected store handle.
//   - error: Non-nil when the server is unreachable.
func NewMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	slog.Info("Connected to MongoDB", "database", dbName)
	return &Mongo{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// =============================================================================
// Index Reconciliation
// =============================================================================

// EnsureIndexes creates all collections and indexes.
//
// # Description
//
// Collection pre-creation is best-effort bookkeeping: a collection that
// already exists is not an error. Index creation is idempotent and
// self-healing: an index that exists with the expected shape is a no-op, an
// index that exists under the expected name with a conflicting shape is
// dropped and recreated. This protects against the deployment failure where
// the schema evolves but stale indexes linger.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	for _, name := range allCollections {
		// Already-exists errors are expected here.
		_ = m.db.CreateCollection(ctx, name)
	}

	type indexSpec struct {
		collection string
		keys       bson.D
		unique     bool
	}
	specs := []indexSpec{
		{colCases, bson.D{{Key: "case_id", Value: 1}}, true},

		{colArguments, bson.D{{Key: "case_id", Value: 1}}, false},
		{colArguments, bson.D{{Key: "argument_id", Value: 1}}, true},
		{colArguments, bson.D{{Key: "agent", Value: 1}}, false},
		{colArguments, bson.D{{Key: "case_id", Value: 1}, {Key: "agent", Value: 1}, {Key: "round", Value: 1}}, true},

		{colCounterarguments, bson.D{{Key: "case_id", Value: 1}}, false},
		{colCounterarguments, bson.D{{Key: "counterargument_id", Value: 1}}, true},

		{colConflicts, bson.D{{Key: "case_id", Value: 1}}, false},
		{colConflicts, bson.D{{Key: "conflict_id", Value: 1}}, true},

		{colStrategies, bson.D{{Key: "case_id", Value: 1}}, false},
		{colStrategies, bson.D{{Key: "strategy_id", Value: 1}}, true},
		{colStrategies, bson.D{{Key: "case_id", Value: 1}, {Key: "version", Value: -1}}, false},

		{colAgentRuns, bson.D{{Key: "run_id", Value: 1}}, true},
		{colAgentRuns, bson.D{{Key: "case_id", Value: 1}}, false},
		{colAgentRuns, bson.D{{Key: "agent", Value: 1}}, false},

		{colReasoningSteps, bson.D{{Key: "step_id", Value: 1}}, true},
		{colReasoningSteps, bson.D{{Key: "run_id", Value: 1}}, false},
		{colReasoningSteps, bson.D{{Key: "case_id", Value: 1}}, false},

		{colAgentMessages, bson.D{{Key: "message_id", Value: 1}}, true},
		{colAgentMessages, bson.D{{Key: "case_id", Value: 1}}, false},
		{colAgentMessages, bson.D{{Key: "sender", Value: 1}, {Key: "recipient", Value: 1}}, false},
	}

	for _, s := range specs {
		if err := m.safeCreateIndex(ctx, s.collection, s.keys, s.unique); err != nil {
			return fmt.Errorf("index %v on %s: %w", s.keys, s.collection, err)
		}
	}
	slog.Info("Collections initialized")
	return nil
}

// defaultIndexName reproduces the server's auto-generated index name
// ("case_id_1", "case_id_1_version_-1") so conflicting shapes can be found.
func defaultIndexName(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s_%v", k.Key, k.Value))
	}
	return strings.Join(parts, "_")
}

func (m *Mongo) safeCreateIndex(ctx context.Context, collection string, keys bson.D, unique bool) error {
	coll := m.db.Collection(collection)
	name := defaultIndexName(keys)

	// Drop an index holding the expected name so it is recreated with the
	// current shape. Listing failures are non-fatal; creation decides.
	if cursor, err := coll.Indexes().List(ctx); err == nil {
		var existing []bson.M
		if err := cursor.All(ctx, &existing); err == nil {
			for _, idx := range existing {
				existingName, _ := idx["name"].(string)
				if existingName != name {
					continue
				}
				existingUnique, _ := idx["unique"].(bool)
				if existingUnique == unique {
					break // same shape, creation below is a no-op
				}
				if _, err := coll.Indexes().DropOne(ctx, name); err != nil {
					slog.Warn("Could not drop conflicting index",
						"collection", collection, "index", name, "error", err)
				} else {
					slog.Info("Dropped conflicting index to recreate",
						"collection", collection, "index", name)
				}
				break
			}
		}
	}

	model := mongo.IndexModel{Keys: keys}
	if unique {
		model.Options = options.Index().SetUnique(true)
	}
	_, err := coll.Indexes().CreateOne(ctx, model)
	if err == nil {
		return nil
	}

	// Shape conflict under a different options set: drop by name and retry.
	if strings.Contains(err.Error(), "IndexKeySpecsConflict") ||
		strings.Contains(err.Error(), "IndexOptionsConflict") {
		if _, dropErr := coll.Indexes().DropOne(ctx, name); dropErr != nil {
			return fmt.Errorf("drop conflicting index %s: %w", name, dropErr)
		}
		_, err = coll.Indexes().CreateOne(ctx, model)
	}
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return nil
	}
	return err
}

// =============================================================================
// Cases
// =============================================================================

func (m *Mongo) CreateCase(ctx context.Context, c *datatypes.Case) error {
	return m.insert(ctx, colCases, c, c.CaseID)
}

func (m *Mongo) GetCase(ctx context.Context, caseID string) (*datatypes.Case, error) {
	var c datatypes.Case
	err := m.db.Collection(colCases).
		FindOne(ctx, bson.M{"case_id": caseID}, options.FindOne().SetProjection(findProjection)).
		Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("case %s: %w", caseID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return &c, nil
}

func (m *Mongo) ListCases(ctx context.Context, limit int) ([]datatypes.Case, error) {
	opts := options.Find().
		SetProjection(findProjection).
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := m.db.Collection(colCases).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	cases := []datatypes.Case{}
	if err := cursor.All(ctx, &cases); err != nil {
		return nil, fmt.Errorf("decode cases: %w", err)
	}
	return cases, nil
}

func (m *Mongo) UpdateCaseStatus(ctx context.Context, caseID, status string) error {
	res, err := m.db.Collection(colCases).UpdateOne(ctx,
		bson.M{"case_id": caseID},
		bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return fmt.Errorf("update case status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("case %s: %w", caseID, ErrNotFound)
	}
	return nil
}

// DeleteCase cascades across every dependent collection concurrently.
// Each delete targets only rows for the given case_id.
func (m *Mongo) DeleteCase(ctx context.Context, caseID string) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range allCollections {
		coll := m.db.Collection(name)
		g.Go(func() error {
			if _, err := coll.DeleteMany(gctx, bson.M{"case_id": caseID}); err != nil {
				return fmt.Errorf("delete from %s: %w", coll.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// =============================================================================
// Arguments and Counterarguments
// =============================================================================

func (m *Mongo) PutArgument(ctx context.Context, a *datatypes.Argument) error {
	return m.insert(ctx, colArguments, a, a.ArgumentID)
}

func (m *Mongo) ArgumentsForCase(ctx context.Context, caseID string) ([]datatypes.Argument, error) {
	return findAll[datatypes.Argument](ctx, m.db.Collection(colArguments),
		bson.M{"case_id": caseID})
}

func (m *Mongo) ArgumentsForRound(ctx context.Context, caseID string, round int) ([]datatypes.Argument, error) {
	return findAll[datatypes.Argument](ctx, m.db.Collection(colArguments),
		bson.M{"case_id": caseID, "round": round})
}

func (m *Mongo) PutCounterargument(ctx context.Context, c *datatypes.Counterargument) error {
	return m.insert(ctx, colCounterarguments, c, c.CounterargumentID)
}

func (m *Mongo) CounterargumentsForCase(ctx context.Context, caseID string) ([]datatypes.Counterargument, error) {
	return findAll[datatypes.Counterargument](ctx, m.db.Collection(colCounterarguments),
		bson.M{"case_id": caseID})
}

func (m *Mongo) CounterargumentsForRound(ctx context.Context, caseID string, round int) ([]datatypes.Counterargument, error) {
	return findAll[datatypes.Counterargument](ctx, m.db.Collection(colCounterarguments),
		bson.M{"case_id": caseID, "round": round})
}

// =============================================================================
// Conflicts and Strategies
// =============================================================================

func (m *Mongo) PutConflict(ctx context.Context, c *datatypes.Conflict) error {
	return m.insert(ctx, colConflicts, c, c.ConflictID)
}

func (m *Mongo) ConflictsForCase(ctx context.Context, caseID string) ([]datatypes.Conflict, error) {
	return findAll[datatypes.Conflict](ctx, m.db.Collection(colConflicts),
		bson.M{"case_id": caseID})
}

func (m *Mongo) PutStrategy(ctx context.Context, s *datatypes.Strategy) error {
	return m.insert(ctx, colStrategies, s, s.StrategyID)
}

func (m *Mongo) LatestStrategy(ctx context.Context, caseID string) (*datatypes.Strategy, error) {
	var s datatypes.Strategy
	opts := options.FindOne().
		SetProjection(findProjection).
		SetSort(bson.D{{Key: "version", Value: -1}})
	err := m.db.Collection(colStrategies).
		FindOne(ctx, bson.M{"case_id": caseID}, opts).
		Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("strategy for case %s: %w", caseID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest strategy: %w", err)
	}
	return &s, nil
}

func (m *Mongo) MaxStrategyVersion(ctx context.Context, caseID string) (int, error) {
	s, err := m.LatestStrategy(ctx, caseID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.Version, nil
}

// =============================================================================
// Audit Records
// =============================================================================

func (m *Mongo) PutAgentRun(ctx context.Context, r *datatypes.AgentRun) error {
	return m.insert(ctx, colAgentRuns, r, r.RunID)
}

func (m *Mongo) CloseAgentRun(ctx context.Context, runID, status, artifactID, errMsg string) error {
	now := time.Now().UTC()
	set := bson.M{"status": status, "ended_at": now}
	if artifactID != "" {
		set["artifact_id"] = artifactID
	}
	if errMsg != "" {
		set["error"] = errMsg
	}
	res, err := m.db.Collection(colAgentRuns).UpdateOne(ctx,
		bson.M{"run_id": runID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("close agent run: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

func (m *Mongo) PutReasoningStep(ctx context.Context, s *datatypes.ReasoningStep) error {
	return m.insert(ctx, colReasoningSteps, s, s.StepID)
}

func (m *Mongo) PutAgentMessage(ctx context.Context, msg *datatypes.AgentMessage) error {
	return m.insert(ctx, colAgentMessages, msg, msg.MessageID)
}

// =============================================================================
// Helpers
// =============================================================================

func (m *Mongo) insert(ctx context.Context, collection string, doc any, id string) error {
	_, err := m.db.Collection(collection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s %s: %w", collection, id, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) ([]T, error) {
	opts := options.Find().
		SetProjection(findProjection).
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode from %s: %w", coll.Name(), err)
	}
	return out, nil
}

var _ Store = (*Mongo)(nil)
