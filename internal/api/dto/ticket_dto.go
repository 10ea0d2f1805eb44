package dto

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// CreateComplaintRequest payload.
type CreateComplaintRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status  domain.TicketStatus `json:"status"`
	Message string              `json:"message"`
}

// ReopenRequest payload.
type ReopenRequest struct {
	Message string `json:"message"`
}

// AssignRequest payload.
type AssignRequest struct {
	HandlerID string `json:"handler_id"`
}

// EscalateRequest payload.
type EscalateRequest struct {
	Reason string `json:"reason"`
}

// CommentRequest payload.
type CommentRequest struct {
	Message string `json:"message"`
}

// InternalNoteRequest payload.
type InternalNoteRequest struct {
	Note string `json:"note"`
}

// AutoAssignResponse reports a backlog assignment run.
type AutoAssignResponse struct {
	Assigned int `json:"assigned"`
}

// FeedbackRequest payload.
type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// ClassifyRequest payload.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// TicketSummary response.
type TicketSummary struct {
	ID          string                `json:"id"`
	ExternalKey string                `json:"external_key"`
	OwnerID     string                `json:"owner_id"`
	Title       string                `json:"title"`
	Category    domain.Category       `json:"category"`
	Sentiment   domain.Sentiment      `json:"sentiment"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	AssignedTo  *string               `json:"assigned_to"`
	SLATarget   time.Time             `json:"sla_target"`
	IsEscalated bool                  `json:"is_escalated"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Description      string           `json:"description"`
	AssignedTeam     *string          `json:"assigned_team"`
	Confidence       float64          `json:"confidence"`
	Keywords         []string         `json:"keywords"`
	EscalationReason *string          `json:"escalation_reason,omitempty"`
	Feedback         *domain.Feedback `json:"feedback,omitempty"`
	SLA              SLAStatus        `json:"sla"`
	Updates          []UpdateResponse `json:"updates"`
}

// UpdateResponse represents one log entry.
type UpdateResponse struct {
	ID        string            `json:"id"`
	Seq       int               `json:"seq"`
	Type      domain.UpdateType `json:"type"`
	Message   string            `json:"message"`
	Author    string            `json:"author"`
	Internal  bool              `json:"internal"`
	CreatedAt time.Time         `json:"created_at"`
}

// SLAStatus response.
type SLAStatus struct {
	Target    time.Time `json:"target"`
	Breached  bool      `json:"breached"`
	HoursLeft int       `json:"hours_left"`
}

// ClassificationResponse response.
type ClassificationResponse struct {
	Category    domain.Category       `json:"category"`
	Sentiment   domain.Sentiment      `json:"sentiment"`
	Priority    domain.TicketPriority `json:"priority"`
	Confidence  float64               `json:"confidence"`
	Keywords    []string              `json:"keywords"`
	Suggestions []domain.Category     `json:"suggestions"`
}
