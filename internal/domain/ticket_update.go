package domain

import "time"

// UpdateType captures what kind of entry was appended to a ticket log.
type UpdateType string

const (
	UpdateTypeStatusChange UpdateType = "STATUS_CHANGE"
	UpdateTypeComment      UpdateType = "COMMENT"
	UpdateTypeAssignment   UpdateType = "ASSIGNMENT"
)

// IsValid reports whether u is a known update type.
func (u UpdateType) IsValid() bool {
	switch u {
	case UpdateTypeStatusChange, UpdateTypeComment, UpdateTypeAssignment:
		return true
	}
	return false
}

// Update is an immutable audit trail entry. Seq is its 1-based position in
// the ticket log. Internal entries are staff notes the owner never sees.
type Update struct {
	ID        string
	TicketID  string
	Seq       int
	Message   string
	Author    string
	Type      UpdateType
	Internal  bool
	CreatedAt time.Time
}
