package models

import (
	"slices"

	"sevadesk/internal/syncerr"
	"sevadesk/internal/utils"
)

// AdminAccount is an operator with review powers: verifying suggested
// services, managing staff, auditing logs. Permissions gate which of those
// surfaces the admin sees.
type AdminAccount struct {
	Meta
	Name         string   `json:"name"`
	PasswordHash string   `json:"password_hash"`
	IsActive     bool     `json:"is_active"`
	Role         string   `json:"role"`
	Permissions  []string `json:"permissions"`
}

const RoleAdmin = "admin"

// Known admin permissions.
const (
	PermVerifyServices = "verify_services"
	PermManageStaff    = "manage_staff"
	PermManageAdmins   = "manage_admins"
	PermViewLogs       = "view_logs"
)

func (r *AdminAccount) Table() string { return "admins" }

func (r *AdminAccount) DeactivatePatch() (Payload, error) {
	return Payload{"is_active": false}, nil
}

// HasPermission reports whether the account carries the named permission.
func (r *AdminAccount) HasPermission(perm string) bool {
	return slices.Contains(r.Permissions, perm)
}

func (r *AdminAccount) Validate() error {
	if utils.CollapseSpaces(r.Name) == "" {
		return &syncerr.ValidationError{Field: "name", Reason: "admin name is required"}
	}
	if r.PasswordHash != "" && !utils.ValidateHash(r.PasswordHash) {
		return &syncerr.ValidationError{Field: "password_hash", Reason: "not a sha-256 digest"}
	}
	return nil
}

var adminFields = append([]string{"name", "password_hash", "is_active", "role", "permissions"}, metaFields...)

func (r *AdminAccount) ToWire() (Payload, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	role := r.Role
	if role == "" {
		role = RoleAdmin
	}

	p := Payload{
		"name":      utils.CollapseSpaces(r.Name),
		"is_active": r.IsActive,
		"role":      role,
	}
	if r.PasswordHash != "" {
		p["password_hash"] = r.PasswordHash
	}
	if len(r.Permissions) > 0 {
		p["permissions"] = slices.Clone(r.Permissions)
	}
	r.metaToWire(p)
	return p, nil
}

func (r *AdminAccount) FromWire(p Payload) error {
	if err := r.metaFromWire(p); err != nil {
		return err
	}

	var err error
	if r.Name, err = p.requiredString("name"); err != nil {
		return err
	}
	if r.PasswordHash, err = p.optionalString("password_hash"); err != nil {
		return err
	}

	active, present, err := p.optionalBool("is_active")
	if err != nil {
		return err
	}
	r.IsActive = active || !present

	if r.Role, err = p.optionalString("role"); err != nil {
		return err
	}
	if r.Role == "" {
		r.Role = RoleAdmin
	}
	if r.Permissions, err = p.optionalStringSlice("permissions"); err != nil {
		return err
	}
	r.Extra = p.extraFields(adminFields...)
	return nil
}
