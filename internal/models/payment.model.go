package models

import (
	"time"

	"sevadesk/internal/syncerr"

	"github.com/shopspring/decimal"
)

// PaymentRecord is the money side of a rendered service. The wire row
// carries an "amount" column for server-side reporting, but the client
// never trusts it back: Total is always re-derived from base plus charge
// so a drifted stored value cannot propagate.
type PaymentRecord struct {
	Meta
	LogID      string          `json:"log_id"`
	ServiceID  string          `json:"service_id"`
	Base       decimal.Decimal `json:"base_amount"`
	Charge     decimal.Decimal `json:"service_charge"`
	Method     string          `json:"payment_method"`
	Ref        string          `json:"payment_ref"`
	Notes      string          `json:"notes"`
	ReceivedAt time.Time       `json:"received_at"`
	CreatedBy  string          `json:"created_by"`
}

func (r *PaymentRecord) Table() string { return "payments" }

// DeactivatePatch is refused: payments are the money audit trail and are
// append-only from the client's side.
func (r *PaymentRecord) DeactivatePatch() (Payload, error) {
	return nil, &syncerr.ValidationError{Field: "payments", Reason: "payment records are append-only"}
}

// Total is base + service charge, derived on every call.
func (r *PaymentRecord) Total() decimal.Decimal {
	return r.Base.Add(r.Charge)
}

func (r *PaymentRecord) Validate() error {
	if r.LogID == "" {
		return &syncerr.ValidationError{Field: "log_id", Reason: "log reference is required"}
	}
	if r.Base.IsNegative() {
		return &syncerr.ValidationError{Field: "base_amount", Reason: "must not be negative"}
	}
	if r.Charge.IsNegative() {
		return &syncerr.ValidationError{Field: "service_charge", Reason: "must not be negative"}
	}
	return nil
}

var paymentFields = append([]string{
	"log_id", "service_id", "amount", "base_amount", "service_charge",
	"payment_method", "payment_ref", "notes", "received_at", "created_by",
}, metaFields...)

func (r *PaymentRecord) ToWire() (Payload, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	receivedAt := r.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	p := Payload{
		"log_id":         r.LogID,
		"base_amount":    r.Base.String(),
		"service_charge": r.Charge.String(),
		"amount":         r.Total().String(),
		"payment_method": r.Method,
		"payment_ref":    r.Ref,
		"notes":          r.Notes,
		"received_at":    receivedAt.UTC().Format(time.RFC3339Nano),
		"created_by":     r.CreatedBy,
	}
	if r.ServiceID != "" {
		p["service_id"] = r.ServiceID
	}
	r.metaToWire(p)
	return p, nil
}

func (r *PaymentRecord) FromWire(p Payload) error {
	if err := r.metaFromWire(p); err != nil {
		return err
	}

	var err error
	if r.LogID, err = p.requiredString("log_id"); err != nil {
		return err
	}
	if r.ServiceID, err = p.optionalString("service_id"); err != nil {
		return err
	}
	if r.Base, err = p.requiredDecimal("base_amount"); err != nil {
		return err
	}
	if r.Charge, err = p.requiredDecimal("service_charge"); err != nil {
		return err
	}
	// "amount" is intentionally ignored here; see Total.
	if r.Method, err = p.optionalString("payment_method"); err != nil {
		return err
	}
	if r.Ref, err = p.optionalString("payment_ref"); err != nil {
		return err
	}
	if r.Notes, err = p.optionalString("notes"); err != nil {
		return err
	}
	if r.ReceivedAt, err = p.requiredTime("received_at"); err != nil {
		return err
	}
	if r.CreatedBy, err = p.optionalString("created_by"); err != nil {
		return err
	}
	r.Extra = p.extraFields(paymentFields...)
	return nil
}
