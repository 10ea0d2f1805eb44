package domain

import (
	"fmt"
	"strings"
	"time"
)

// AudienceKind identifies the kind of recipient a notification targets.
type AudienceKind string

const (
	AudienceRoom        AudienceKind = "ROOM"
	AudienceUser        AudienceKind = "USER"
	AudienceHandler     AudienceKind = "HANDLER"
	AudienceSupervisors AudienceKind = "SUPERVISORS"
)

// Audience addresses one recipient or group.
type Audience struct {
	Kind AudienceKind `json:"kind"`
	ID   string       `json:"id,omitempty"`
}

// Key renders the audience as a stable channel name fragment.
func (a Audience) Key() string {
	switch a.Kind {
	case AudienceRoom:
		return "complaint:" + a.ID
	case AudienceSupervisors:
		return "supervisors"
	default:
		return fmt.Sprintf("%s:%s", strings.ToLower(string(a.Kind)), a.ID)
	}
}

func RoomAudience(ticketID string) Audience { return Audience{Kind: AudienceRoom, ID: ticketID} }

func UserAudience(userID string) Audience { return Audience{Kind: AudienceUser, ID: userID} }

func HandlerAudience(handlerID string) Audience {
	return Audience{Kind: AudienceHandler, ID: handlerID}
}

func SupervisorsAudience() Audience { return Audience{Kind: AudienceSupervisors} }

// NotificationType enumerates the messages observers can receive.
type NotificationType string

const (
	NotificationComplaintCreated   NotificationType = "complaint_created"
	NotificationComplaintAssigned  NotificationType = "complaint_assigned"
	NotificationComplaintEscalated NotificationType = "complaint_escalated"
	NotificationComplaintResolved  NotificationType = "complaint_resolved"
	NotificationComplaintReopened  NotificationType = "complaint_reopened"
	NotificationStatusChange       NotificationType = "status_change"
	NotificationNewComment         NotificationType = "new_comment"
	NotificationInternalNote       NotificationType = "internal_note"
	NotificationFeedbackSubmitted  NotificationType = "feedback_submitted"
	NotificationSLABreached        NotificationType = "sla_breached"
	NotificationTicketUpdated      NotificationType = "complaint_updated"
)

// Notification is one addressed message produced by fan-out. ID is
// deterministic per (ticket, seq, kind, position) so redeliveries can be
// discarded by receivers.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	TicketID  string           `json:"ticket_id"`
	Audience  Audience         `json:"audience"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Priority  TicketPriority   `json:"priority"`
	Seq       int              `json:"seq"`
	CreatedAt time.Time        `json:"created_at"`
	Data      map[string]any   `json:"data,omitempty"`
}
