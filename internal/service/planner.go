package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pageza/nutriplan/backend/internal/types"
	"go.uber.org/zap"
)

const (
	retrievalK      = 4
	historyTurns    = 4
	DefaultTimeout  = 120 * time.Second
	outcomeSuccess  = "success"
	outcomeEmpty    = "empty_query"
	outcomeCanceled = "canceled"
	outcomeFailed   = "failed"
)

// PlanState is a step of a planning request.
type PlanState int

const (
	StateIdle PlanState = iota
	StateValidating
	StateRetrievingContext
	StateComputingEnergy
	StateFilteringCatalog
	StateBuildingPrompt
	StateAwaitingGeneration
	StateValidatingOutput
	StateRetrying
	StateDone
)

var planStateNames = [...]string{
	"idle",
	"validating",
	"retrieving_context",
	"computing_energy",
	"filtering_catalog",
	"building_prompt",
	"awaiting_generation",
	"validating_output",
	"retrying",
	"done",
}

func (s PlanState) String() string {
	if int(s) < len(planStateNames) {
		return planStateNames[s]
	}
	return fmt.Sprintf("PlanState(%d)", int(s))
}

// PlanRequest is one request for a meal plan.
type PlanRequest struct {
	Profile  types.UserProfile
	Query    string
	Feedback string
}

// PlanService generates seven-day meal plans.
type PlanService struct {
	retriever ContextRetriever
	catalog   CatalogFilter
	generator TextGenerator
	observer  PlanObserver
	timeout   time.Duration
	logger    *zap.Logger
}

var _ IPlanService = (*PlanService)(nil)

// NewPlanService creates a plan service. observer may be nil. A zero
// timeout uses DefaultTimeout for each oracle call.
func NewPlanService(retriever ContextRetriever, catalog CatalogFilter, generator TextGenerator, observer PlanObserver, timeout time.Duration, logger *zap.Logger) *PlanService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PlanService{
		retriever: retriever,
		catalog:   catalog,
		generator: generator,
		observer:  observer,
		timeout:   timeout,
		logger:    logger.Named("plan-service"),
	}
}

// Generate runs one planning request against session. On success it returns
// the session with the new turn appended; on any error it returns session
// unchanged.
func (s *PlanService) Generate(ctx context.Context, session types.Session, req PlanRequest) (types.Session, *types.PlanResult, error) {
	start := time.Now()
	log := s.logger.With(zap.String("session_id", session.ID))

	result, retried, err := s.run(ctx, log, session, req)
	s.transition(log, StateIdle)
	if s.observer != nil {
		s.observer.ObservePlan(outcomeOf(err), retried, time.Since(start))
	}
	if err != nil {
		log.Warn("plan request aborted", zap.Error(err))
		return session, nil, err
	}

	updated := session.WithTurn(types.ConversationTurn{
		User:      req.Query,
		Assistant: result.Raw,
		CreatedAt: time.Now().UTC(),
	})
	log.Info("plan generated",
		zap.Bool("retried", retried),
		zap.Int("turns", len(updated.Turns)),
		zap.Duration("duration", time.Since(start)))
	return updated, result, nil
}

func (s *PlanService) run(ctx context.Context, log *zap.Logger, session types.Session, req PlanRequest) (*types.PlanResult, bool, error) {
	s.transition(log, StateValidating)
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, false, ErrEmptyQuery
	}

	s.transition(log, StateRetrievingContext)
	passages, err := s.retriever.Search(ctx, query, retrievalK)
	if err != nil {
		return nil, false, s.abort(ctx, "failed to retrieve context", err)
	}
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Content
	}

	s.transition(log, StateComputingEnergy)
	targets, err := ComputeTargets(req.Profile)
	if err != nil {
		return nil, false, err
	}

	s.transition(log, StateFilteringCatalog)
	rows, err := s.catalog.Filter(ctx, req.Profile.Age, req.Profile.Conditions, req.Profile.Goal)
	if err != nil {
		return nil, false, s.abort(ctx, "failed to filter catalog", err)
	}

	s.transition(log, StateBuildingPrompt)
	in := PromptInput{
		Targets:  targets,
		Profile:  req.Profile,
		Catalog:  rows,
		Passages: texts,
		History:  session.RecentTurns(historyTurns),
		Feedback: req.Feedback,
	}
	if session.LastImage != nil {
		in.FoodDescription = session.LastImage.Description
		in.Macros = session.LastImage.Macros
	}
	prompt, err := BuildPlanPrompt(in)
	if err != nil {
		return nil, false, err
	}

	s.transition(log, StateAwaitingGeneration)
	answer, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, false, err
	}

	s.transition(log, StateValidatingOutput)
	retried := false
	if LooksTruncated(answer) {
		s.transition(log, StateRetrying)
		retried = true
		answer, err = s.generate(ctx, prompt+continuationInstruction)
		if err != nil {
			return nil, true, err
		}
	}

	s.transition(log, StateDone)
	result := SplitPlan(answer)
	result.Retried = retried
	result.Targets = targets
	return &result, retried, nil
}

// generate makes one oracle call bounded by the per-call timeout.
func (s *PlanService) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	answer, err := s.generator.Generate(callCtx, prompt)
	if err == nil {
		return answer, nil
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: timed out after %s", ErrGeneration, s.timeout)
	}
	if errors.Is(err, ErrGeneration) {
		return "", err
	}
	return "", fmt.Errorf("%w: %v", ErrGeneration, err)
}

func (s *PlanService) abort(ctx context.Context, msg string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (s *PlanService) transition(log *zap.Logger, to PlanState) {
	log.Debug("plan state", zap.Stringer("state", to))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrEmptyQuery):
		return outcomeEmpty
	case errors.Is(err, ErrCanceled):
		return outcomeCanceled
	default:
		return outcomeFailed
	}
}
