package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Assistance request statuses. The full lifecycle state machine lives
// outside this service; the messaging core only cares about "pending"
// (watcher trigger) and the owning user (conversation resolution).
const (
	RequestStatusPending   = "pending"
	RequestStatusAccepted  = "accepted"
	RequestStatusCompleted = "completed"
)

// AssistRequest is a roadside assistance request. Writes come from the
// request lifecycle service; this core reads it to resolve the requesting
// user and watches inserts for the operator broadcast.
type AssistRequest struct {
	ID     string `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"not null;index" json:"userId"`
	Status string `gorm:"not null;default:'pending';index" json:"status"`

	ClientName string `json:"clientName,omitempty"`
	PlaceName  string `json:"placeName,omitempty"`
	Address    string `json:"address,omitempty"`
	Vehicle    string `json:"vehicle,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (AssistRequest) TableName() string { return "assist_requests" }

func (r *AssistRequest) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// AssistSummary is the normalized operator-facing payload broadcast for a
// newly pending request. Field values are extracted from the raw row with
// first-non-empty precedence (see internal/assist).
type AssistSummary struct {
	RequestID  string `json:"requestId"`
	ClientName string `json:"clientName,omitempty"`
	PlaceName  string `json:"placeName,omitempty"`
	Address    string `json:"address,omitempty"`
	Vehicle    string `json:"vehicle,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
}
