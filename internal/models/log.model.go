package models

import (
	"time"

	"sevadesk/internal/syncerr"
	"sevadesk/internal/utils"
)

// LogRecord is one customer visit entered by staff. It owns the
// ServiceRecords created during the visit and is never hard-deleted;
// archiving is a status change so the audit trail stays intact.
type LogRecord struct {
	Meta
	StaffID      string    `json:"staff_id"`
	CustomerName string    `json:"name"`
	Phone        string    `json:"phone"`
	Remarks      string    `json:"remarks"`
	Timestamp    time.Time `json:"timestamp"`
	Status       string    `json:"status"`
}

const (
	LogStatusActive   = "active"
	LogStatusArchived = "archived"
)

func (r *LogRecord) Table() string { return "logs" }

// DeactivatePatch archives the visit instead of deleting it.
func (r *LogRecord) DeactivatePatch() (Payload, error) {
	return Payload{"status": LogStatusArchived}, nil
}

func (r *LogRecord) Validate() error {
	if utils.CollapseSpaces(r.CustomerName) == "" {
		return &syncerr.ValidationError{Field: "name", Reason: "customer name is required"}
	}
	if r.StaffID == "" {
		return &syncerr.ValidationError{Field: "staff_id", Reason: "staff reference is required"}
	}
	if utils.CollapseSpaces(r.Phone) == "" {
		return &syncerr.ValidationError{Field: "phone", Reason: "contact number is required"}
	}
	if r.Status != "" && r.Status != LogStatusActive && r.Status != LogStatusArchived {
		return &syncerr.ValidationError{Field: "status", Reason: "unknown log status"}
	}
	return nil
}

var logFields = append([]string{"staff_id", "name", "phone", "remarks", "timestamp", "status"}, metaFields...)

func (r *LogRecord) ToWire() (Payload, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	status := r.Status
	if status == "" {
		status = LogStatusActive
	}

	p := Payload{
		"staff_id":  r.StaffID,
		"name":      utils.CollapseSpaces(r.CustomerName),
		"phone":     utils.CollapseSpaces(r.Phone),
		"remarks":   r.Remarks,
		"timestamp": ts.UTC().Format(time.RFC3339Nano),
		"status":    status,
	}
	r.metaToWire(p)
	return p, nil
}

func (r *LogRecord) FromWire(p Payload) error {
	if err := r.metaFromWire(p); err != nil {
		return err
	}

	var err error
	if r.StaffID, err = p.requiredString("staff_id"); err != nil {
		return err
	}
	if r.CustomerName, err = p.requiredString("name"); err != nil {
		return err
	}
	if r.Phone, err = p.optionalString("phone"); err != nil {
		return err
	}
	if r.Remarks, err = p.optionalString("remarks"); err != nil {
		return err
	}
	if r.Timestamp, err = p.requiredTime("timestamp"); err != nil {
		return err
	}
	if r.Status, err = p.optionalString("status"); err != nil {
		return err
	}
	if r.Status == "" {
		r.Status = LogStatusActive
	}
	r.Extra = p.extraFields(logFields...)
	return nil
}
