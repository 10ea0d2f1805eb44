package domain

import "time"

// MutationKind names the lifecycle operation that produced a mutation.
type MutationKind string

const (
	MutationCreated           MutationKind = "CREATED"
	MutationStatusChanged     MutationKind = "STATUS_CHANGED"
	MutationAssigned          MutationKind = "ASSIGNED"
	MutationEscalated         MutationKind = "ESCALATED"
	MutationCommented         MutationKind = "COMMENTED"
	MutationFeedbackSubmitted MutationKind = "FEEDBACK_SUBMITTED"
	MutationReopened          MutationKind = "REOPENED"
	MutationSLABreached       MutationKind = "SLA_BREACHED"
	MutationNoted             MutationKind = "NOTED"
)

// Mutation is the result of one lifecycle operation: the ticket before and
// after, plus the updates appended to its log. Before is nil on creation.
type Mutation struct {
	Kind    MutationKind
	Actor   Actor
	Before  *Ticket
	After   *Ticket
	Updates []Update
	At      time.Time

	// CategoryHandlers lists the handlers tagged for the ticket's category
	// when it was created. Empty for every other kind.
	CategoryHandlers []string
}

// TicketID returns the id of the mutated ticket.
func (m Mutation) TicketID() string {
	if m.After == nil {
		return ""
	}
	return m.After.ID
}

// Seq returns the log position the mutation left the ticket at.
func (m Mutation) Seq() int {
	if m.After == nil {
		return 0
	}
	return m.After.LastSeq()
}
