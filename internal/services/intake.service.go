package services

import (
	"context"
	"errors"
	"time"

	"sevadesk/internal/logger"
	"sevadesk/internal/models"
	"sevadesk/internal/syncerr"
	"sevadesk/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IntakeService runs the front-desk submission: one visit log, a service
// and payment row per rendered service, and a pending suggestion for any
// name the catalog does not know. Everything is validated locally before
// the first network call, and once any record lands in the offline queue
// the rest of the submission follows it there so parents always replay
// before children.
type IntakeService struct {
	gateway *SyncGateway
	suggest *SuggestService
	log     logger.Logger
}

// ServiceLine is one rendered service as entered on the form, with its
// price split into the base fee and the service charge on top.
type ServiceLine struct {
	Name   string
	Base   decimal.Decimal
	Charge decimal.Decimal
}

// IntakeSubmission is the raw front-desk form.
type IntakeSubmission struct {
	CustomerName  string
	Phone         string
	Remarks       string
	Lines         []ServiceLine
	PaymentMethod string
	PaymentRef    string
}

// IntakeResult reports what a submission produced. When Queued is true
// some or all records are waiting in the offline queue rather than
// confirmed by the server; their ids are final either way.
type IntakeResult struct {
	Log         *models.LogRecord
	Services    []*models.ServiceRecord
	Payments    []*models.PaymentRecord
	Suggestions []*models.ServiceSuggestion
	Queued      bool
}

func NewIntakeService(gateway *SyncGateway, suggest *SuggestService) *IntakeService {
	return &IntakeService{
		gateway: gateway,
		suggest: suggest,
		log:     logger.New("IntakeService"),
	}
}

// Submit persists one visit. Service names are snapped onto the catalog
// where a close enough entry exists; genuinely new names are recorded as
// rendered anyway and additionally proposed as pending suggestions. A
// failed suggestion never fails the visit.
func (s *IntakeService) Submit(ctx context.Context, session Session, sub IntakeSubmission) (*IntakeResult, error) {
	log := s.log.Function("Submit")

	lines := dedupeLines(sub.Lines)
	if len(lines) == 0 {
		return nil, &syncerr.ValidationError{Field: "services", Reason: "at least one service is required"}
	}
	for _, line := range lines {
		if line.Base.IsNegative() || line.Charge.IsNegative() {
			return nil, &syncerr.ValidationError{Field: line.Name, Reason: "amounts must not be negative"}
		}
	}

	logRec := &models.LogRecord{
		StaffID:      session.StaffID,
		CustomerName: sub.CustomerName,
		Phone:        sub.Phone,
		Remarks:      sub.Remarks,
		Timestamp:    time.Now().UTC(),
		Status:       models.LogStatusActive,
	}
	logRec.ID = uuid.NewString()
	if err := logRec.Validate(); err != nil {
		return nil, err
	}

	result := &IntakeResult{}

	created, err := Create[models.LogRecord](ctx, s.gateway, session, logRec, QueueOnFailure())
	switch {
	case err == nil:
		result.Log = created
	case isQueued(err):
		result.Log = logRec
		result.Queued = true
	default:
		return nil, err
	}

	for _, line := range lines {
		canonical, known := s.suggest.Canonicalize(line.Name)

		svc := &models.ServiceRecord{
			LogID:  logRec.ID,
			Name:   line.Name,
			Status: models.StatusPending,
		}
		if known {
			svc.Name = canonical
			svc.Status = models.StatusApproved
		}
		svc.ID = uuid.NewString()

		if err := s.create(ctx, session, svc, result); err != nil {
			return result, err
		}
		result.Services = append(result.Services, svc)

		payment := &models.PaymentRecord{
			LogID:      logRec.ID,
			ServiceID:  svc.ID,
			Base:       line.Base,
			Charge:     line.Charge,
			Method:     sub.PaymentMethod,
			Ref:        sub.PaymentRef,
			ReceivedAt: time.Now().UTC(),
			CreatedBy:  session.StaffID,
		}
		payment.ID = uuid.NewString()

		if err := s.create(ctx, session, payment, result); err != nil {
			return result, err
		}
		result.Payments = append(result.Payments, payment)

		if known {
			s.suggest.RecordUse(canonical)
			continue
		}

		suggestion := &models.ServiceSuggestion{
			Name:        line.Name,
			SuggestedBy: session.StaffID,
			Status:      models.StatusPending,
		}
		suggestion.ID = uuid.NewString()
		if err := s.create(ctx, session, suggestion, result); err != nil {
			// A lost proposal is an inconvenience, not a lost visit.
			log.Er("Failed to record service suggestion", err, "service", line.Name)
			continue
		}
		result.Suggestions = append(result.Suggestions, suggestion)
	}

	log.Info("Submission recorded",
		"logId", logRec.ID,
		"services", len(result.Services),
		"suggestions", len(result.Suggestions),
		"queued", result.Queued,
	)
	return result, nil
}

// create sends one child record, or queues it directly once the
// submission has already gone offline.
func (s *IntakeService) create(ctx context.Context, session Session, rec models.Record, result *IntakeResult) error {
	if result.Queued {
		_, err := s.gateway.EnqueueCreate(ctx, rec)
		return err
	}

	var err error
	switch r := rec.(type) {
	case *models.ServiceRecord:
		_, err = Create[models.ServiceRecord](ctx, s.gateway, session, r, QueueOnFailure())
	case *models.ServiceSuggestion:
		_, err = Create[models.ServiceSuggestion](ctx, s.gateway, session, r, QueueOnFailure())
	case *models.PaymentRecord:
		_, err = Create[models.PaymentRecord](ctx, s.gateway, session, r, QueueOnFailure())
	default:
		_, err = s.gateway.EnqueueCreate(ctx, rec)
	}

	if isQueued(err) {
		result.Queued = true
		return nil
	}
	return err
}

func isQueued(err error) bool {
	var qe *syncerr.QueuedError
	return errors.As(err, &qe)
}

// dedupeLines collapses whitespace in names, drops empties and removes
// fold-equal duplicates while keeping first-seen order and pricing.
func dedupeLines(raw []ServiceLine) []ServiceLine {
	seen := make(map[string]struct{}, len(raw))
	lines := make([]ServiceLine, 0, len(raw))
	for _, line := range raw {
		line.Name = utils.CollapseSpaces(line.Name)
		if line.Name == "" {
			continue
		}
		folded := utils.Fold(line.Name)
		if _, dup := seen[folded]; dup {
			continue
		}
		seen[folded] = struct{}{}
		lines = append(lines, line)
	}
	return lines
}
