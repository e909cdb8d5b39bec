package models

import (
	"sevadesk/internal/syncerr"
	"sevadesk/internal/utils"
)

// ServiceRecord is one service rendered during a visit. It belongs to
// exactly one LogRecord and carries the verification status that the admin
// side drives through approve/reject.
type ServiceRecord struct {
	Meta
	LogID          string             `json:"log_id"`
	Name           string             `json:"service"`
	DocumentListID string             `json:"document_list_id"`
	Status         VerificationStatus `json:"status"`
}

func (r *ServiceRecord) Table() string { return "services" }

// DeactivatePatch marks the rendered service rejected; the row stays for
// the visit's audit trail.
func (r *ServiceRecord) DeactivatePatch() (Payload, error) {
	return Payload{"status": string(StatusRejected)}, nil
}

func (r *ServiceRecord) Validate() error {
	if utils.CollapseSpaces(r.Name) == "" {
		return &syncerr.ValidationError{Field: "service", Reason: "service name is required"}
	}
	if r.LogID == "" {
		return &syncerr.ValidationError{Field: "log_id", Reason: "log reference is required"}
	}
	if r.Status != "" && !r.Status.Valid() {
		return &syncerr.ValidationError{Field: "status", Reason: "unknown verification status"}
	}
	return nil
}

var serviceFields = append([]string{"log_id", "service", "document_list_id", "status"}, metaFields...)

func (r *ServiceRecord) ToWire() (Payload, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	status := r.Status
	if status == "" {
		status = StatusPending
	}

	p := Payload{
		"log_id":  r.LogID,
		"service": utils.CollapseSpaces(r.Name),
		"status":  string(status),
	}
	if r.DocumentListID != "" {
		p["document_list_id"] = r.DocumentListID
	}
	r.metaToWire(p)
	return p, nil
}

func (r *ServiceRecord) FromWire(p Payload) error {
	if err := r.metaFromWire(p); err != nil {
		return err
	}

	var err error
	if r.LogID, err = p.requiredString("log_id"); err != nil {
		return err
	}
	if r.Name, err = p.requiredString("service"); err != nil {
		return err
	}
	if r.DocumentListID, err = p.optionalString("document_list_id"); err != nil {
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
	r.Extra = p.extraFields(serviceFields...)
	return nil
}
