package models

import (
	"time"
)

// SchemaVersion is the current client wire schema. It rides along on every
// encoded payload so a future reader can tell what it is looking at.
const SchemaVersion = 1

// Meta carries the server-assigned identity and bookkeeping fields shared
// by every record kind. UpdatedAt doubles as the optimistic-concurrency
// precondition on updates.
type Meta struct {
	ID            string         `json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	SchemaVersion int            `json:"schema_version"`
	Extra         map[string]any `json:"-"`
}

// Record is the contract every synced record kind satisfies. ToWire
// validates first; no partially-valid record is ever encoded.
// DeactivatePatch is the kind's stand-in for deletion: records are never
// hard-deleted by the client, a status flip preserves audit history.
// Append-only kinds return an error instead of a patch.
type Record interface {
	Table() string
	Validate() error
	ToWire() (Payload, error)
	DeactivatePatch() (Payload, error)
}

// Wire ties a concrete record type to its pointer decoder, which is what
// the gateway's generic resource core works against.
type Wire[T any] interface {
	*T
	Record
	FromWire(Payload) error
}

func (m *Meta) metaToWire(p Payload) {
	if m.ID != "" {
		p["id"] = m.ID
	}
	if !m.CreatedAt.IsZero() {
		p["created_at"] = m.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !m.UpdatedAt.IsZero() {
		p["updated_at"] = m.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	version := m.SchemaVersion
	if version == 0 {
		version = SchemaVersion
	}
	p["schema_version"] = version
	for k, v := range m.Extra {
		if _, known := p[k]; !known {
			p[k] = v
		}
	}
}

func (m *Meta) metaFromWire(p Payload) error {
	id, err := p.requiredString("id")
	if err != nil {
		return err
	}
	m.ID = id

	m.CreatedAt, err = p.optionalTime("created_at")
	if err != nil {
		return err
	}
	m.UpdatedAt, err = p.optionalTime("updated_at")
	if err != nil {
		return err
	}
	m.SchemaVersion, err = p.optionalInt("schema_version")
	if err != nil {
		return err
	}
	if m.SchemaVersion == 0 {
		m.SchemaVersion = SchemaVersion
	}
	return nil
}
