package models

import (
	"sevadesk/internal/syncerr"
	"sevadesk/internal/utils"
)

// StaffAccount is a service-desk operator. Deactivation flips IsActive
// instead of deleting the row so historical LogRecords keep a valid
// reference; new visits must not reference an inactive account.
type StaffAccount struct {
	Meta
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	PasswordHash string `json:"password_hash"`
	IsActive     bool   `json:"is_active"`
	Role         string `json:"role"`
}

const RoleStaff = "staff"

func (r *StaffAccount) Table() string { return "staff" }

func (r *StaffAccount) DeactivatePatch() (Payload, error) {
	return Payload{"is_active": false}, nil
}

func (r *StaffAccount) Validate() error {
	if utils.CollapseSpaces(r.Name) == "" {
		return &syncerr.ValidationError{Field: "name", Reason: "staff name is required"}
	}
	if r.PasswordHash != "" && !utils.ValidateHash(r.PasswordHash) {
		return &syncerr.ValidationError{Field: "password_hash", Reason: "not a sha-256 digest"}
	}
	return nil
}

var staffFields = append([]string{"name", "phone", "password_hash", "is_active", "role"}, metaFields...)

func (r *StaffAccount) ToWire() (Payload, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	role := r.Role
	if role == "" {
		role = RoleStaff
	}

	p := Payload{
		"name":      utils.CollapseSpaces(r.Name),
		"phone":     r.Phone,
		"is_active": r.IsActive,
		"role":      role,
	}
	if r.PasswordHash != "" {
		p["password_hash"] = r.PasswordHash
	}
	r.metaToWire(p)
	return p, nil
}

func (r *StaffAccount) FromWire(p Payload) error {
	if err := r.metaFromWire(p); err != nil {
		return err
	}

	var err error
	if r.Name, err = p.requiredString("name"); err != nil {
		return err
	}
	if r.Phone, err = p.optionalString("phone"); err != nil {
		return err
	}
	if r.PasswordHash, err = p.optionalString("password_hash"); err != nil {
		return err
	}

	active, present, err := p.optionalBool("is_active")
	if err != nil {
		return err
	}
	// Rows written before the flag existed count as active.
	r.IsActive = active || !present

	if r.Role, err = p.optionalString("role"); err != nil {
		return err
	}
	if r.Role == "" {
		r.Role = RoleStaff
	}
	r.Extra = p.extraFields(staffFields...)
	return nil
}
