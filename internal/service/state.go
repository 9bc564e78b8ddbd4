package service

import (
	"context"
	"time"

	"tablebook/internal/domain"
	"tablebook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StateService drives the step-by-step booking wizard. Sessions live in
// the state repository under an opaque token.
type StateService struct {
	stateRepo domain.StateRepository
	rateLimit int
	rateWin   time.Duration
	logger    *zerolog.Logger
}

func NewStateService(stateRepo domain.StateRepository, rateLimit int, rateWindow time.Duration, logger *zerolog.Logger) *StateService {
	return &StateService{
		stateRepo: stateRepo,
		rateLimit: rateLimit,
		rateWin:   rateWindow,
		logger:    logger,
	}
}

// StartSession creates a fresh wizard session and returns its token.
func (s *StateService) StartSession(ctx context.Context) (*models.GuestState, error) {
	state := &models.GuestState{
		Token:       uuid.NewString(),
		CurrentStep: models.StepSelectTable,
		TempData:    make(map[string]interface{}),
	}

	if err := s.stateRepo.SetState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *StateService) GetSession(ctx context.Context, token string) (*models.GuestState, error) {
	state, err := s.stateRepo.GetState(ctx, token)
	if err != nil {
		s.logger.Error().Err(err).Str("token", token).Msg("failed to get session state")
		return nil, err
	}
	return state, nil
}

// AdvanceSession merges data into the session and moves it to step.
func (s *StateService) AdvanceSession(ctx context.Context, token, step string, data map[string]interface{}) (*models.GuestState, error) {
	state, err := s.stateRepo.GetState(ctx, token)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	if state.TempData == nil {
		state.TempData = make(map[string]interface{})
	}
	for k, v := range data {
		state.TempData[k] = v
	}
	state.CurrentStep = step

	if err := s.stateRepo.SetState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *StateService) ClearSession(ctx context.Context, token string) error {
	return s.stateRepo.ClearState(ctx, token)
}

// CheckRateLimit reports whether the session may make another request.
func (s *StateService) CheckRateLimit(ctx context.Context, token string) (bool, error) {
	return s.stateRepo.CheckRateLimit(ctx, token, s.rateLimit, s.rateWin)
}
