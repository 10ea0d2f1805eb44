package events

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventComplaintCreated   EventType = "complaint_created"
	EventStatusChanged      EventType = "complaint_status_changed"
	EventComplaintAssigned  EventType = "complaint_assigned"
	EventComplaintEscalated EventType = "complaint_escalated"
	EventUpdateAdded        EventType = "complaint_update_added"
	EventFeedbackSubmitted  EventType = "complaint_feedback_submitted"
	EventComplaintReopened  EventType = "complaint_reopened"
	EventSLABreached        EventType = "complaint_sla_breached"
	EventInternalNoteAdded  EventType = "complaint_internal_note_added"
)

// AllEventTypes lists every type the service publishes.
var AllEventTypes = []EventType{
	EventComplaintCreated,
	EventStatusChanged,
	EventComplaintAssigned,
	EventComplaintEscalated,
	EventUpdateAdded,
	EventFeedbackSubmitted,
	EventComplaintReopened,
	EventSLABreached,
	EventInternalNoteAdded,
}

var kindToType = map[domain.MutationKind]EventType{
	domain.MutationCreated:           EventComplaintCreated,
	domain.MutationStatusChanged:     EventStatusChanged,
	domain.MutationAssigned:          EventComplaintAssigned,
	domain.MutationEscalated:         EventComplaintEscalated,
	domain.MutationCommented:         EventUpdateAdded,
	domain.MutationFeedbackSubmitted: EventFeedbackSubmitted,
	domain.MutationReopened:          EventComplaintReopened,
	domain.MutationSLABreached:       EventSLABreached,
	domain.MutationNoted:             EventInternalNoteAdded,
}

// TypeForMutation maps a lifecycle mutation kind to its event type.
func TypeForMutation(kind domain.MutationKind) EventType {
	return kindToType[kind]
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Event represents a committed ticket mutation together with the
// notifications fanned out from it.
type Event struct {
	ID            string                `json:"id"`
	Type          EventType             `json:"type"`
	TicketID      string                `json:"ticket_id"`
	Seq           int                   `json:"seq"`
	Actor         Actor                 `json:"actor"`
	Timestamp     time.Time             `json:"timestamp"`
	Payload       interface{}           `json:"payload"`
	Notifications []domain.Notification `json:"notifications"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Message   string              `json:"message,omitempty"`
}

// CreatedPayload payload.
type CreatedPayload struct {
	Category   domain.Category       `json:"category"`
	Priority   domain.TicketPriority `json:"priority"`
	Title      string                `json:"title"`
	AssignedTo *string               `json:"assigned_to,omitempty"`
	SLATarget  time.Time             `json:"sla_target"`
}

// AssignedPayload payload.
type AssignedPayload struct {
	OldAssignee *string `json:"old_assignee,omitempty"`
	NewAssignee *string `json:"new_assignee,omitempty"`
	Team        *string `json:"team,omitempty"`
}

// EscalatedPayload payload.
type EscalatedPayload struct {
	Reason      string                `json:"reason"`
	OldPriority domain.TicketPriority `json:"old_priority"`
	NewPriority domain.TicketPriority `json:"new_priority"`
	SLATarget   time.Time             `json:"sla_target"`
}

// UpdateAddedPayload payload.
type UpdateAddedPayload struct {
	UpdateID    string            `json:"update_id"`
	Type        domain.UpdateType `json:"type"`
	Author      string            `json:"author"`
	BodyPreview string            `json:"body_preview"`
	Internal    bool              `json:"internal,omitempty"`
}

// FeedbackPayload payload.
type FeedbackPayload struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// SLABreachedPayload payload.
type SLABreachedPayload struct {
	SLATarget  time.Time             `json:"sla_target"`
	Priority   domain.TicketPriority `json:"priority"`
	AssignedTo *string               `json:"assigned_to,omitempty"`
}

// PayloadFor builds the typed payload describing m.
func PayloadFor(m domain.Mutation) interface{} {
	after := m.After
	switch m.Kind {
	case domain.MutationCreated:
		return CreatedPayload{
			Category:   after.Category,
			Priority:   after.Priority,
			Title:      after.Title,
			AssignedTo: after.AssignedTo,
			SLATarget:  after.SLATarget,
		}
	case domain.MutationStatusChanged, domain.MutationReopened:
		return StatusChangedPayload{
			OldStatus: m.Before.Status,
			NewStatus: after.Status,
			Message:   lastMessage(m),
		}
	case domain.MutationAssigned:
		return AssignedPayload{
			OldAssignee: m.Before.AssignedTo,
			NewAssignee: after.AssignedTo,
			Team:        after.AssignedTeam,
		}
	case domain.MutationEscalated:
		reason := ""
		if after.EscalationReason != nil {
			reason = *after.EscalationReason
		}
		return EscalatedPayload{
			Reason:      reason,
			OldPriority: m.Before.Priority,
			NewPriority: after.Priority,
			SLATarget:   after.SLATarget,
		}
	case domain.MutationCommented, domain.MutationNoted:
		if len(m.Updates) == 0 {
			return nil
		}
		u := m.Updates[len(m.Updates)-1]
		return UpdateAddedPayload{
			UpdateID:    u.ID,
			Type:        u.Type,
			Author:      u.Author,
			BodyPreview: stringPreview(u.Message, 120),
			Internal:    u.Internal,
		}
	case domain.MutationFeedbackSubmitted:
		if after.Feedback == nil {
			return nil
		}
		return FeedbackPayload{Rating: after.Feedback.Rating, Comment: after.Feedback.Comment}
	case domain.MutationSLABreached:
		return SLABreachedPayload{
			SLATarget:  after.SLATarget,
			Priority:   after.Priority,
			AssignedTo: after.AssignedTo,
		}
	}
	return nil
}

func lastMessage(m domain.Mutation) string {
	if len(m.Updates) == 0 {
		return ""
	}
	return m.Updates[len(m.Updates)-1].Message
}

func stringPreview(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
