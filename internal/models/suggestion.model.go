package models

import (
	"sevadesk/internal/syncerr"
	"sevadesk/internal/utils"
)

// ServiceSuggestion is a service name proposed by staff that has not been
// approved yet. Its status only ever moves pending -> approved or
// pending -> rejected; the verification service enforces that.
type ServiceSuggestion struct {
	Meta
	Name        string             `json:"service"`
	SuggestedBy string             `json:"suggested_by"`
	Status      VerificationStatus `json:"status"`
	Reason      string             `json:"reason"`
}

func (r *ServiceSuggestion) Table() string { return "service_suggestions" }

func (r *ServiceSuggestion) DeactivatePatch() (Payload, error) {
	return Payload{"status": string(StatusRejected)}, nil
}

func (r *ServiceSuggestion) Validate() error {
	if utils.CollapseSpaces(r.Name) == "" {
		return &syncerr.ValidationError{Field: "service", Reason: "proposed name is required"}
	}
	if r.SuggestedBy == "" {
		return &syncerr.ValidationError{Field: "suggested_by", Reason: "proposer reference is required"}
	}
	if r.Status != "" && !r.Status.Valid() {
		return &syncerr.ValidationError{Field: "status", Reason: "unknown verification status"}
	}
	return nil
}

var suggestionFields = append([]string{"service", "suggested_by", "status", "reason"}, metaFields...)

func (r *ServiceSuggestion) ToWire() (Payload, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	status := r.Status
	if status == "" {
		status = StatusPending
	}

	p := Payload{
		"service":      utils.CollapseSpaces(r.Name),
		"suggested_by": r.SuggestedBy,
		"status":       string(status),
	}
	if r.Reason != "" {
		p["reason"] = r.Reason
	}
	r.metaToWire(p)
	return p, nil
}

func (r *ServiceSuggestion) FromWire(p Payload) error {
	if err := r.metaFromWire(p); err != nil {
		return err
	}

	var err error
	if r.Name, err = p.requiredString("service"); err != nil {
		return err
	}
	if r.SuggestedBy, err = p.requiredString("suggested_by"); err != nil {
		return err
	}

	status, err := p.requiredString("status")
	if err != nil {
		return err
	}
	r.Status = VerificationStatus(status)
	if !r.Status.Valid() {
		return &syncerr.MalformedDataError{Field: "status", Reason: "unknown verification status " + status}
	}

	if r.Reason, err = p.optionalString("reason"); err != nil {
		return err
	}
	r.Extra = p.extraFields(suggestionFields...)
	return nil
}
