package models

import (
	"sevadesk/internal/syncerr"
	"sevadesk/internal/utils"
)

// ServiceDocument names one document a customer must bring for a given
// service type, e.g. "Address Proof" for "Ration Card".
type ServiceDocument struct {
	Meta
	Name        string `json:"document"`
	ServiceType string `json:"service"`
	Required    bool   `json:"required"`
}

func (r *ServiceDocument) Table() string { return "service_documents" }

// DeactivatePatch drops the required flag; the row itself stays so old
// visits can still resolve the document list they were served with.
func (r *ServiceDocument) DeactivatePatch() (Payload, error) {
	return Payload{"required": false}, nil
}

func (r *ServiceDocument) Validate() error {
	if utils.CollapseSpaces(r.Name) == "" {
		return &syncerr.ValidationError{Field: "document", Reason: "document name is required"}
	}
	if utils.CollapseSpaces(r.ServiceType) == "" {
		return &syncerr.ValidationError{Field: "service", Reason: "service type reference is required"}
	}
	return nil
}

var documentFields = append([]string{"document", "service", "required"}, metaFields...)

func (r *ServiceDocument) ToWire() (Payload, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	p := Payload{
		"document": utils.CollapseSpaces(r.Name),
		"service":  utils.CollapseSpaces(r.ServiceType),
		"required": r.Required,
	}
	r.metaToWire(p)
	return p, nil
}

func (r *ServiceDocument) FromWire(p Payload) error {
	if err := r.metaFromWire(p); err != nil {
		return err
	}

	var err error
	if r.Name, err = p.requiredString("document"); err != nil {
		return err
	}
	if r.ServiceType, err = p.requiredString("service"); err != nil {
		return err
	}

	required, _, err := p.optionalBool("required")
	if err != nil {
		return err
	}
	r.Required = required
	r.Extra = p.extraFields(documentFields...)
	return nil
}
