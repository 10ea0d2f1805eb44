package events

import (
	"fmt"
	"slices"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// FanOut translates a committed mutation into addressed notifications. The
// ticket room comes first, followed by the audiences specific to the
// mutation kind. A new ticket reaches every category handler before the
// supervisors. Internal notes skip the room, which the owner can read.
// Audiences without a target (e.g. no assigned handler) are skipped. It
// performs no delivery.
func FanOut(m domain.Mutation) []domain.Notification {
	t := m.After
	if t == nil {
		return nil
	}

	var audiences []domain.Audience
	if m.Kind != domain.MutationNoted {
		audiences = append(audiences, domain.RoomAudience(t.ID))
	}
	owner := domain.UserAudience(t.OwnerID)
	supervisors := domain.SupervisorsAudience()
	handler := func() []domain.Audience {
		if id := t.AssigneeID(); id != "" {
			return []domain.Audience{domain.HandlerAudience(id)}
		}
		return nil
	}

	switch m.Kind {
	case domain.MutationCreated:
		for _, id := range m.CategoryHandlers {
			audiences = append(audiences, domain.HandlerAudience(id))
		}
		audiences = append(audiences, supervisors)
		if id := t.AssigneeID(); id != "" {
			if !slices.Contains(m.CategoryHandlers, id) {
				audiences = append(audiences, domain.HandlerAudience(id))
			}
			audiences = append(audiences, owner)
		}
	case domain.MutationAssigned:
		audiences = append(audiences, handler()...)
		audiences = append(audiences, owner)
	case domain.MutationEscalated:
		audiences = append(audiences, supervisors, owner)
	case domain.MutationSLABreached:
		audiences = append(audiences, supervisors)
		audiences = append(audiences, handler()...)
	case domain.MutationStatusChanged:
		if t.Status == domain.TicketStatusResolved {
			audiences = append(audiences, owner)
		}
	case domain.MutationFeedbackSubmitted:
		audiences = append(audiences, supervisors)
		audiences = append(audiences, handler()...)
	case domain.MutationReopened:
		audiences = append(audiences, handler()...)
	case domain.MutationNoted:
		audiences = append(audiences, handler()...)
		audiences = append(audiences, supervisors)
	}

	ntype, title, message := describe(m)
	seq := m.Seq()
	out := make([]domain.Notification, 0, len(audiences))
	for _, a := range audiences {
		if a.Kind != domain.AudienceSupervisors && a.ID == "" {
			continue
		}
		out = append(out, domain.Notification{
			ID:        fmt.Sprintf("%s:%d:%s:%d", t.ID, seq, m.Kind, len(out)),
			Type:      ntype,
			TicketID:  t.ID,
			Audience:  a,
			Title:     title,
			Message:   message,
			Priority:  t.Priority,
			Seq:       seq,
			CreatedAt: m.At,
			Data: map[string]any{
				"external_key": t.ExternalKey,
				"status":       t.Status,
			},
		})
	}
	return out
}

func describe(m domain.Mutation) (domain.NotificationType, string, string) {
	t := m.After
	switch m.Kind {
	case domain.MutationCreated:
		return domain.NotificationComplaintCreated, "New complaint",
			fmt.Sprintf("%s: %s (%s, %s)", t.ExternalKey, t.Title, t.Category, t.Priority)
	case domain.MutationAssigned:
		return domain.NotificationComplaintAssigned, "Complaint assigned",
			fmt.Sprintf("%s was assigned to %s", t.ExternalKey, t.AssigneeID())
	case domain.MutationEscalated:
		reason := ""
		if t.EscalationReason != nil {
			reason = *t.EscalationReason
		}
		return domain.NotificationComplaintEscalated, "Complaint escalated",
			fmt.Sprintf("%s was escalated: %s", t.ExternalKey, reason)
	case domain.MutationSLABreached:
		return domain.NotificationSLABreached, "SLA breached",
			fmt.Sprintf("%s passed its %s deadline", t.ExternalKey, t.SLATarget.Format("2006-01-02 15:04 MST"))
	case domain.MutationStatusChanged:
		if t.Status == domain.TicketStatusResolved {
			return domain.NotificationComplaintResolved, "Complaint resolved",
				fmt.Sprintf("%s was resolved. Tell us how we did.", t.ExternalKey)
		}
		return domain.NotificationStatusChange, "Status updated",
			fmt.Sprintf("%s is now %s", t.ExternalKey, t.Status)
	case domain.MutationFeedbackSubmitted:
		rating := 0
		if t.Feedback != nil {
			rating = t.Feedback.Rating
		}
		return domain.NotificationFeedbackSubmitted, "Feedback received",
			fmt.Sprintf("%s was rated %d/5", t.ExternalKey, rating)
	case domain.MutationReopened:
		return domain.NotificationComplaintReopened, "Complaint reopened",
			fmt.Sprintf("%s was reopened", t.ExternalKey)
	case domain.MutationCommented:
		return domain.NotificationNewComment, "New update",
			fmt.Sprintf("%s has a new update", t.ExternalKey)
	case domain.MutationNoted:
		return domain.NotificationInternalNote, "Internal note",
			fmt.Sprintf("%s has a new internal note", t.ExternalKey)
	}
	return domain.NotificationTicketUpdated, "Complaint updated", t.ExternalKey
}

// NewEvent wraps a committed mutation and its fan-out into an Event.
func NewEvent(m domain.Mutation) Event {
	return Event{
		Type:          TypeForMutation(m.Kind),
		TicketID:      m.TicketID(),
		Seq:           m.Seq(),
		Actor:         Actor{ID: m.Actor.ID, Role: m.Actor.Role},
		Timestamp:     m.At,
		Payload:       PayloadFor(m),
		Notifications: FanOut(m),
	}
}
