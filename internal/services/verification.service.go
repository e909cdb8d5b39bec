package services

import (
	"context"

	"sevadesk/internal/events"
	"sevadesk/internal/logger"
	"sevadesk/internal/models"
	"sevadesk/internal/syncerr"
)

// VerificationService drives the approval lifecycle of suggestions and
// rendered services. Decisions always read the current record first and
// refuse any move out of a terminal state locally, before a byte hits the
// network; the gateway's updated_at precondition then catches the race
// where two reviewers decide at once.
type VerificationService struct {
	gateway *SyncGateway
	events  *events.EventBus
	log     logger.Logger
}

func NewVerificationService(gateway *SyncGateway, bus *events.EventBus) *VerificationService {
	return &VerificationService{
		gateway: gateway,
		events:  bus,
		log:     logger.New("VerificationService"),
	}
}

// ApproveSuggestion moves a pending suggestion to approved and announces
// the new canonical name on the bus.
func (s *VerificationService) ApproveSuggestion(ctx context.Context, session Session, id string) (*models.ServiceSuggestion, error) {
	return s.decideSuggestion(ctx, session, id, models.StatusApproved, "")
}

// RejectSuggestion moves a pending suggestion to rejected, recording why.
func (s *VerificationService) RejectSuggestion(ctx context.Context, session Session, id, reason string) (*models.ServiceSuggestion, error) {
	return s.decideSuggestion(ctx, session, id, models.StatusRejected, reason)
}

func (s *VerificationService) decideSuggestion(ctx context.Context, session Session, id string, decision models.VerificationStatus, reason string) (*models.ServiceSuggestion, error) {
	log := s.log.Function("decideSuggestion")

	suggestion, err := Get[models.ServiceSuggestion](ctx, s.gateway, session, id)
	if err != nil {
		return nil, err
	}

	if err := checkTransition(suggestion.Status, decision); err != nil {
		log.Warn("Refused verification transition",
			"id", id, "from", suggestion.Status, "to", decision)
		return nil, err
	}

	suggestion.Status = decision
	if reason != "" {
		suggestion.Reason = reason
	}

	updated, err := Update[models.ServiceSuggestion](ctx, s.gateway, session, suggestion)
	if err != nil {
		return nil, err
	}

	s.events.PublishSuggestionDecision(decision == models.StatusApproved, updated.Name)
	log.Info("Suggestion decided", "id", id, "service", updated.Name, "status", decision)
	return updated, nil
}

// ApproveService marks a rendered service verified.
func (s *VerificationService) ApproveService(ctx context.Context, session Session, id string) (*models.ServiceRecord, error) {
	return s.decideService(ctx, session, id, models.StatusApproved)
}

// RejectService marks a rendered service rejected.
func (s *VerificationService) RejectService(ctx context.Context, session Session, id string) (*models.ServiceRecord, error) {
	return s.decideService(ctx, session, id, models.StatusRejected)
}

func (s *VerificationService) decideService(ctx context.Context, session Session, id string, decision models.VerificationStatus) (*models.ServiceRecord, error) {
	log := s.log.Function("decideService")

	record, err := Get[models.ServiceRecord](ctx, s.gateway, session, id)
	if err != nil {
		return nil, err
	}

	if err := checkTransition(record.Status, decision); err != nil {
		log.Warn("Refused verification transition",
			"id", id, "from", record.Status, "to", decision)
		return nil, err
	}

	record.Status = decision
	updated, err := Update[models.ServiceRecord](ctx, s.gateway, session, record)
	if err != nil {
		return nil, err
	}

	log.Info("Service decided", "id", id, "service", updated.Name, "status", decision)
	return updated, nil
}

// checkTransition enforces the only legal moves: pending to approved and
// pending to rejected. Terminal states never change again.
func checkTransition(from, to models.VerificationStatus) error {
	if from.Terminal() || !to.Terminal() || !to.Valid() {
		return &syncerr.InvalidTransitionError{From: string(from), To: string(to)}
	}
	return nil
}
