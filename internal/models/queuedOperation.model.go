package models

import (
	"time"

	"gorm.io/datatypes"
)

// OperationVerb names the mutating verbs the offline queue can replay.
type OperationVerb string

const (
	OpCreate     OperationVerb = "create"
	OpUpdate     OperationVerb = "update"
	OpDeactivate OperationVerb = "deactivate"
)

// QueuedOperation is one buffered mutation awaiting replay, persisted in
// the local sqlite store so it survives a process restart. Position is an
// auto-incrementing rowid; replay order is strictly ascending Position.
type QueuedOperation struct {
	Position       uint           `gorm:"primaryKey;autoIncrement"          json:"position"`
	IdempotencyKey string         `gorm:"uniqueIndex;not null"              json:"idempotencyKey"`
	Table          string         `gorm:"column:target_table;not null"      json:"table"`
	Verb           OperationVerb  `gorm:"not null"                          json:"verb"`
	TargetID       string         `json:"targetId"`
	KnownUpdatedAt time.Time      `json:"knownUpdatedAt"`
	Payload        datatypes.JSON `json:"payload"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"                    json:"createdAt"`
}

func (QueuedOperation) TableName() string { return "queued_operations" }
