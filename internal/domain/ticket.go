package domain

import (
	"slices"
	"time"
)

// TicketStatus enumerates lifecycle states for complaints.
type TicketStatus string

const (
	TicketStatusOpen        TicketStatus = "OPEN"
	TicketStatusInProgress  TicketStatus = "IN_PROGRESS"
	TicketStatusUnderReview TicketStatus = "UNDER_REVIEW"
	TicketStatusResolved    TicketStatus = "RESOLVED"
	TicketStatusClosed      TicketStatus = "CLOSED"
	TicketStatusEscalated   TicketStatus = "ESCALATED"
)

// IsValid reports whether s is a known status.
func (s TicketStatus) IsValid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusUnderReview,
		TicketStatusResolved, TicketStatusClosed, TicketStatusEscalated:
		return true
	}
	return false
}

// IsTerminal reports whether SLA tracking and escalation stop in this status.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Rank orders priorities from LOW (1) to URGENT (4); unknown values rank 0.
func (p TicketPriority) Rank() int {
	switch p {
	case TicketPriorityLow:
		return 1
	case TicketPriorityMedium:
		return 2
	case TicketPriorityHigh:
		return 3
	case TicketPriorityUrgent:
		return 4
	}
	return 0
}

// Category is the complaint area assigned by the classifier.
type Category string

const (
	CategoryBilling   Category = "BILLING"
	CategoryTechnical Category = "TECHNICAL"
	CategoryService   Category = "SERVICE"
	CategoryProduct   Category = "PRODUCT"
	CategoryGeneral   Category = "GENERAL"
)

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	switch c {
	case CategoryBilling, CategoryTechnical, CategoryService, CategoryProduct, CategoryGeneral:
		return true
	}
	return false
}

// Sentiment is the customer tone detected at intake.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
)

// Feedback is the customer's rating of a finished ticket.
type Feedback struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Ticket is the aggregate for customer complaints.
type Ticket struct {
	ID                string
	ExternalKey       string
	OwnerID           string
	Title             string
	Description       string
	Category          Category
	Sentiment         Sentiment
	Priority          TicketPriority
	Confidence        float64
	Keywords          []string
	Status            TicketStatus
	AssignedTo        *string
	AssignedTeam      *string
	SLATarget         time.Time
	IsEscalated       bool
	EscalationReason  *string
	Feedback          *Feedback
	SLABreachNotified bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Updates           []Update
}

// Clone returns a deep copy so callers can derive a new ticket value without
// aliasing the original.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Keywords = slices.Clone(t.Keywords)
	cp.Updates = slices.Clone(t.Updates)
	cp.AssignedTo = clonePtr(t.AssignedTo)
	cp.AssignedTeam = clonePtr(t.AssignedTeam)
	cp.EscalationReason = clonePtr(t.EscalationReason)
	if t.Feedback != nil {
		fb := *t.Feedback
		cp.Feedback = &fb
	}
	return &cp
}

// AssigneeID returns the assigned handler id or "".
func (t *Ticket) AssigneeID() string {
	if t.AssignedTo == nil {
		return ""
	}
	return *t.AssignedTo
}

// WithoutInternal returns a copy of t whose log omits internal notes.
func (t *Ticket) WithoutInternal() *Ticket {
	cp := t.Clone()
	cp.Updates = slices.DeleteFunc(cp.Updates, func(u Update) bool { return u.Internal })
	return cp
}

// InternalNotes returns the internal entries of the log in sequence order.
func (t *Ticket) InternalNotes() []Update {
	notes := []Update{}
	for _, u := range t.Updates {
		if u.Internal {
			notes = append(notes, u)
		}
	}
	return notes
}

// LastSeq returns the sequence number of the newest update.
func (t *Ticket) LastSeq() int {
	return len(t.Updates)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
