package sla

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
)

// Status describes where a ticket stands against its deadline.
type Status struct {
	Breached  bool `json:"breached"`
	HoursLeft int  `json:"hours_left"`
}

// Calculator maps priorities to resolution windows.
type Calculator struct {
	windows map[domain.TicketPriority]time.Duration
}

// NewCalculator builds a calculator from configured hours.
func NewCalculator(cfg config.SLAConfig) *Calculator {
	return &Calculator{windows: map[domain.TicketPriority]time.Duration{
		domain.TicketPriorityUrgent: time.Duration(cfg.UrgentHours) * time.Hour,
		domain.TicketPriorityHigh:   time.Duration(cfg.HighHours) * time.Hour,
		domain.TicketPriorityMedium: time.Duration(cfg.MediumHours) * time.Hour,
		domain.TicketPriorityLow:    time.Duration(cfg.LowHours) * time.Hour,
	}}
}

// DefaultConfig returns the standard 4/24/48/72 hour windows.
func DefaultConfig() config.SLAConfig {
	return config.SLAConfig{UrgentHours: 4, HighHours: 24, MediumHours: 48, LowHours: 72}
}

// Window returns the resolution window for a priority. Unknown priorities
// get the LOW window.
func (c *Calculator) Window(p domain.TicketPriority) time.Duration {
	if w, ok := c.windows[p]; ok {
		return w
	}
	return c.windows[domain.TicketPriorityLow]
}

// TargetFor returns the deadline for a ticket of priority p created at createdAt.
func (c *Calculator) TargetFor(p domain.TicketPriority, createdAt time.Time) time.Time {
	return createdAt.Add(c.Window(p))
}

// Remaining reports breach state and whole hours left, floored and never negative.
// Terminal tickets are never breached.
func (c *Calculator) Remaining(target time.Time, status domain.TicketStatus, now time.Time) Status {
	left := target.Sub(now)
	hours := 0
	if left > 0 {
		hours = int(left / time.Hour)
	}
	return Status{
		Breached:  !now.Before(target) && !status.IsTerminal(),
		HoursLeft: hours,
	}
}

// ForTicket is Remaining applied to t.
func (c *Calculator) ForTicket(t *domain.Ticket, now time.Time) Status {
	return c.Remaining(t.SLATarget, t.Status, now)
}
