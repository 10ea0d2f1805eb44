package lifecycle

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/complaint-service/internal/classifier"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/sla"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

var (
	owner      = domain.Actor{ID: "user-1", Role: domain.RoleUser}
	supervisor = domain.Actor{ID: "sup-1", Role: domain.RoleSupervisor}
	handlerX   = domain.Handler{ID: "handler-x", Name: "Xavier", Team: "billing-team", Role: domain.RoleHandler, Availability: domain.AvailabilityAvailable}
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestMachine() (*Machine, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)}
	seq := 0
	m := NewMachine(sla.NewCalculator(sla.DefaultConfig()),
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%04d", seq)
		}),
	)
	return m, clock
}

func createTicket(t *testing.T, m *Machine, priority domain.TicketPriority, handler *domain.Handler) *domain.Ticket {
	t.Helper()
	mut, err := m.Create(CreateInput{
		Owner:       owner,
		Title:       "Card charged twice",
		Description: "I was charged twice for one order",
		Classification: classifier.Result{
			Category:   domain.CategoryBilling,
			Sentiment:  domain.SentimentNeutral,
			Priority:   priority,
			Confidence: 0.5,
			Keywords:   []string{"charge"},
		},
		Handler: handler,
	})
	require.NoError(t, err)
	return mut.After
}

func TestCreate(t *testing.T) {
	m, clock := newTestMachine()

	ticket := createTicket(t, m, domain.TicketPriorityUrgent, nil)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, clock.now.Add(4*time.Hour), ticket.SLATarget)
	assert.Equal(t, owner.ID, ticket.OwnerID)
	assert.Nil(t, ticket.AssignedTo)
	require.Len(t, ticket.Updates, 1)
	assert.Equal(t, domain.UpdateTypeStatusChange, ticket.Updates[0].Type)
	assert.Equal(t, createdMessage, ticket.Updates[0].Message)
	assert.Equal(t, 1, ticket.Updates[0].Seq)
	assert.Regexp(t, `^CMP-[A-Z0-9]{1,8}$`, ticket.ExternalKey)
}

func TestCreateWithHandler(t *testing.T) {
	m, _ := newTestMachine()
	h := handlerX

	mut, err := m.Create(CreateInput{
		Owner:          owner,
		Title:          "t",
		Description:    "d",
		Classification: classifier.Result{Category: domain.CategoryBilling, Priority: domain.TicketPriorityLow},
		Handler:        &h,
	})
	require.NoError(t, err)

	ticket := mut.After
	assert.Equal(t, domain.MutationCreated, mut.Kind)
	assert.Nil(t, mut.Before)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, "handler-x", *ticket.AssignedTo)
	assert.Equal(t, "billing-team", *ticket.AssignedTeam)
	require.Len(t, ticket.Updates, 2)
	assert.Equal(t, domain.UpdateTypeStatusChange, ticket.Updates[0].Type)
	assert.Equal(t, domain.UpdateTypeAssignment, ticket.Updates[1].Type)
	assert.Len(t, mut.Updates, 2)
}

func TestCreateRejectsBlankInput(t *testing.T) {
	m, _ := newTestMachine()

	_, err := m.Create(CreateInput{Owner: owner, Title: "  ", Description: "x"})
	require.ErrorIs(t, err, domain.ErrEmptyTitle)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSLATargetPerPriority(t *testing.T) {
	m, clock := newTestMachine()
	for priority, hours := range map[domain.TicketPriority]int{
		domain.TicketPriorityUrgent: 4,
		domain.TicketPriorityHigh:   24,
		domain.TicketPriorityMedium: 48,
		domain.TicketPriorityLow:    72,
	} {
		ticket := createTicket(t, m, priority, nil)
		assert.Equal(t, clock.now.Add(time.Duration(hours)*time.Hour), ticket.SLATarget, priority)
		assert.False(t, ticket.SLATarget.Before(ticket.CreatedAt))
	}
}

func TestSetStatus(t *testing.T) {
	m, clock := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityLow, nil)
	clock.Advance(time.Minute)

	mut, err := m.SetStatus(ticket, domain.TicketStatusUnderReview, "", supervisor)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusOpen, ticket.Status, "input must not be mutated")
	assert.Len(t, ticket.Updates, 1)
	assert.Equal(t, domain.TicketStatusUnderReview, mut.After.Status)
	assert.Equal(t, clock.now, mut.After.UpdatedAt)
	require.Len(t, mut.After.Updates, 2)
	assert.Equal(t, "Status changed from OPEN to UNDER_REVIEW", mut.After.Updates[1].Message)
	assert.Equal(t, supervisor.ID, mut.After.Updates[1].Author)
}

func TestSetStatusGuards(t *testing.T) {
	m, _ := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityLow, nil)

	_, err := m.SetStatus(ticket, domain.TicketStatus("DONE"), "", supervisor)
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	closed, err := m.SetStatus(ticket, domain.TicketStatusClosed, "", supervisor)
	require.NoError(t, err)

	_, err = m.SetStatus(closed.After, domain.TicketStatusOpen, "", supervisor)
	require.ErrorIs(t, err, domain.ErrReopenRequired)
	assert.True(t, apperrors.IsStateConflict(err))

	reopened, err := m.Reopen(closed.After, "", supervisor)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, reopened.After.Status)
	assert.Len(t, reopened.After.Updates, 3)
}

func TestReopenRequiresTerminal(t *testing.T) {
	m, _ := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityLow, nil)

	_, err := m.Reopen(ticket, "", supervisor)
	require.ErrorIs(t, err, domain.ErrNotReopenable)
}

func TestAssignForcesInProgress(t *testing.T) {
	m, _ := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityMedium, nil)

	mut, err := m.Assign(ticket, handlerX, supervisor)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusInProgress, mut.After.Status)
	require.NotNil(t, mut.After.AssignedTo)
	assert.Equal(t, handlerX.ID, *mut.After.AssignedTo)
	require.Len(t, mut.Updates, 1)
	assert.Equal(t, domain.UpdateTypeAssignment, mut.Updates[0].Type)
	assert.Len(t, mut.After.Updates, len(ticket.Updates)+1)
}

func TestAssignKeepsNonOpenStatus(t *testing.T) {
	m, _ := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityMedium, nil)
	review, err := m.SetStatus(ticket, domain.TicketStatusUnderReview, "", supervisor)
	require.NoError(t, err)

	mut, err := m.Assign(review.After, handlerX, supervisor)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusUnderReview, mut.After.Status)
}

func TestEscalate(t *testing.T) {
	m, clock := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityLow, nil)
	clock.Advance(2 * time.Hour)

	mut, err := m.Escalate(ticket, "customer threatens to leave", supervisor)
	require.NoError(t, err)

	after := mut.After
	assert.True(t, after.IsEscalated)
	require.NotNil(t, after.EscalationReason)
	assert.Equal(t, "customer threatens to leave", *after.EscalationReason)
	assert.Equal(t, domain.TicketStatusEscalated, after.Status)
	assert.Equal(t, domain.TicketPriorityUrgent, after.Priority)
	assert.Equal(t, clock.now.Add(4*time.Hour), after.SLATarget)
	require.Len(t, mut.Updates, 1)
	assert.Equal(t, "escalated: customer threatens to leave", mut.Updates[0].Message)
	assert.Equal(t, domain.UpdateTypeStatusChange, mut.Updates[0].Type)
}

func TestEscalateAlreadyUrgentKeepsDeadline(t *testing.T) {
	m, clock := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityUrgent, nil)
	clock.Advance(time.Hour)

	mut, err := m.Escalate(ticket, "still broken", supervisor)
	require.NoError(t, err)
	assert.Equal(t, ticket.SLATarget, mut.After.SLATarget)
	assert.Equal(t, domain.TicketPriorityUrgent, mut.After.Priority)
}

func TestEscalateGuards(t *testing.T) {
	m, _ := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityLow, nil)

	_, err := m.Escalate(ticket, "", supervisor)
	require.ErrorIs(t, err, domain.ErrEmptyReason)
	assert.True(t, apperrors.IsValidation(err))
	assert.False(t, ticket.IsEscalated)
	assert.Len(t, ticket.Updates, 1)

	_, err = m.Escalate(ticket, "   ", supervisor)
	require.ErrorIs(t, err, domain.ErrEmptyReason)

	resolved, err := m.SetStatus(ticket, domain.TicketStatusResolved, "", supervisor)
	require.NoError(t, err)
	_, err = m.Escalate(resolved.After, "too late", supervisor)
	require.ErrorIs(t, err, domain.ErrAlreadyTerminal)
	assert.True(t, apperrors.IsStateConflict(err))
}

func TestEscalationIsMonotonic(t *testing.T) {
	m, _ := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityMedium, nil)

	esc, err := m.Escalate(ticket, "angry customer", supervisor)
	require.NoError(t, err)

	current := esc.After
	for _, status := range []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusUnderReview, domain.TicketStatusResolved} {
		next, err := m.SetStatus(current, status, "", supervisor)
		require.NoError(t, err)
		assert.True(t, next.After.IsEscalated)
		assert.Equal(t, domain.TicketPriorityUrgent, next.After.Priority)
		current = next.After
	}
}

func TestAddUpdate(t *testing.T) {
	m, _ := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityLow, nil)

	mut, err := m.AddUpdate(ticket, "Looking into it", domain.UpdateTypeComment, supervisor)
	require.NoError(t, err)
	assert.Equal(t, ticket.Status, mut.After.Status)
	assert.Len(t, mut.After.Updates, 2)

	_, err = m.AddUpdate(ticket, "", domain.UpdateTypeComment, supervisor)
	require.ErrorIs(t, err, domain.ErrEmptyMessage)

	_, err = m.AddUpdate(ticket, "x", domain.UpdateType("NOTE"), supervisor)
	require.ErrorIs(t, err, domain.ErrInvalidUpdateType)
}

func TestSubmitFeedback(t *testing.T) {
	m, _ := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityLow, nil)

	_, err := m.SubmitFeedback(ticket, 5, "great", owner)
	require.ErrorIs(t, err, domain.ErrFeedbackNotAllowed)
	assert.True(t, apperrors.IsStateConflict(err))

	resolved, err := m.SetStatus(ticket, domain.TicketStatusResolved, "", supervisor)
	require.NoError(t, err)

	fb, err := m.SubmitFeedback(resolved.After, 5, "great", owner)
	require.NoError(t, err)
	require.NotNil(t, fb.After.Feedback)
	assert.Equal(t, 5, fb.After.Feedback.Rating)
	assert.Equal(t, "great", fb.After.Feedback.Comment)
	require.Len(t, fb.Updates, 1)
	assert.Equal(t, domain.UpdateTypeComment, fb.Updates[0].Type)

	_, err = m.SubmitFeedback(fb.After, 4, "again", owner)
	require.ErrorIs(t, err, domain.ErrFeedbackAlreadySubmitted)
}

func TestSubmitFeedbackRating(t *testing.T) {
	m, _ := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityLow, nil)
	closed, err := m.SetStatus(ticket, domain.TicketStatusClosed, "", supervisor)
	require.NoError(t, err)

	for _, rating := range []int{0, 6, -1} {
		_, err := m.SubmitFeedback(closed.After, rating, "", owner)
		require.ErrorIs(t, err, domain.ErrInvalidRating)
		assert.True(t, apperrors.IsValidation(err))
	}
	_, err = m.SubmitFeedback(closed.After, 1, "", owner)
	require.NoError(t, err)
}

func TestUpdatesStrictlyGrow(t *testing.T) {
	m, _ := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityLow, nil)

	steps := []func(*domain.Ticket) (*domain.Mutation, error){
		func(t *domain.Ticket) (*domain.Mutation, error) { return m.Assign(t, handlerX, supervisor) },
		func(t *domain.Ticket) (*domain.Mutation, error) {
			return m.AddUpdate(t, "note", domain.UpdateTypeComment, supervisor)
		},
		func(t *domain.Ticket) (*domain.Mutation, error) { return m.Escalate(t, "slow", supervisor) },
		func(t *domain.Ticket) (*domain.Mutation, error) {
			return m.SetStatus(t, domain.TicketStatusResolved, "", supervisor)
		},
		func(t *domain.Ticket) (*domain.Mutation, error) { return m.SubmitFeedback(t, 3, "", owner) },
		func(t *domain.Ticket) (*domain.Mutation, error) { return m.Reopen(t, "", supervisor) },
	}

	current := ticket
	for i, step := range steps {
		mut, err := step(current)
		require.NoError(t, err, "step %d", i)
		require.Len(t, mut.Updates, 1, "step %d", i)
		require.Len(t, mut.After.Updates, len(current.Updates)+1, "step %d", i)
		last := mut.After.Updates[len(mut.After.Updates)-1]
		assert.Equal(t, len(mut.After.Updates), last.Seq)
		current = mut.After
	}
}

func TestMarkBreachNotified(t *testing.T) {
	m, clock := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityUrgent, nil)

	assert.Nil(t, m.MarkBreachNotified(ticket, clock.now.Add(3*time.Hour)))

	mut := m.MarkBreachNotified(ticket, clock.now.Add(4*time.Hour))
	require.NotNil(t, mut)
	assert.Equal(t, domain.MutationSLABreached, mut.Kind)
	assert.True(t, mut.After.SLABreachNotified)
	assert.Empty(t, mut.Updates)
	assert.Len(t, mut.After.Updates, len(ticket.Updates))

	assert.Nil(t, m.MarkBreachNotified(mut.After, clock.now.Add(5*time.Hour)))

	clock.Advance(6 * time.Hour)
	moved, err := m.SetStatus(mut.After, domain.TicketStatusInProgress, "", supervisor)
	require.NoError(t, err)
	assert.False(t, moved.After.SLABreachNotified)
	assert.NotNil(t, m.MarkBreachNotified(moved.After, clock.now))

	resolved, err := m.SetStatus(moved.After, domain.TicketStatusResolved, "", supervisor)
	require.NoError(t, err)
	assert.Nil(t, m.MarkBreachNotified(resolved.After, clock.now))
}

func TestMarkBreachNotifiedBumpsUpdatedAt(t *testing.T) {
	m, clock := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityUrgent, nil)

	at := clock.now.Add(5 * time.Hour)
	mut := m.MarkBreachNotified(ticket, at)
	require.NotNil(t, mut)
	assert.Equal(t, at, mut.After.UpdatedAt)
	assert.Equal(t, ticket.UpdatedAt, mut.Before.UpdatedAt)
}

func TestBreachMarkerSurvivesNoOpTransitions(t *testing.T) {
	m, clock := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityLow, nil)

	escalated, err := m.Escalate(ticket, "customer threatens to leave", supervisor)
	require.NoError(t, err)
	clock.Advance(5 * time.Hour)

	breach := m.MarkBreachNotified(escalated.After, clock.now)
	require.NotNil(t, breach)

	again, err := m.Escalate(breach.After, "still waiting", supervisor)
	require.NoError(t, err)
	assert.Equal(t, breach.After.SLATarget, again.After.SLATarget)
	assert.True(t, again.After.SLABreachNotified)
	assert.Nil(t, m.MarkBreachNotified(again.After, clock.now))

	same, err := m.SetStatus(again.After, domain.TicketStatusEscalated, "note", supervisor)
	require.NoError(t, err)
	assert.True(t, same.After.SLABreachNotified)
	assert.Nil(t, m.MarkBreachNotified(same.After, clock.now))
}

func TestEscalateRearmsWhenDeadlineMoves(t *testing.T) {
	m, clock := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityHigh, nil)

	flagged, err := m.SetStatus(ticket, domain.TicketStatusEscalated, "", supervisor)
	require.NoError(t, err)
	clock.Advance(25 * time.Hour)

	breach := m.MarkBreachNotified(flagged.After, clock.now)
	require.NotNil(t, breach)

	escalated, err := m.Escalate(breach.After, "customer threatens to leave", supervisor)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalated, escalated.Before.Status)
	assert.False(t, escalated.After.SLABreachNotified)
	assert.Equal(t, clock.now.Add(4*time.Hour), escalated.After.SLATarget)
}

func TestAddInternalNote(t *testing.T) {
	m, clock := newTestMachine()
	ticket := createTicket(t, m, domain.TicketPriorityLow, nil)
	clock.Advance(time.Minute)

	_, err := m.AddInternalNote(ticket, " ", supervisor)
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	mut, err := m.AddInternalNote(ticket, "  call back after 5pm ", supervisor)
	require.NoError(t, err)
	assert.Equal(t, domain.MutationNoted, mut.Kind)
	assert.Equal(t, ticket.Status, mut.After.Status)
	assert.Equal(t, clock.now, mut.After.UpdatedAt)
	require.Len(t, mut.Updates, 1)
	note := mut.Updates[0]
	assert.True(t, note.Internal)
	assert.Equal(t, "call back after 5pm", note.Message)
	assert.Equal(t, domain.UpdateTypeComment, note.Type)
	assert.Equal(t, len(ticket.Updates)+1, note.Seq)

	view := mut.After.WithoutInternal()
	assert.Len(t, view.Updates, len(ticket.Updates))
	assert.Equal(t, []domain.Update{note}, mut.After.InternalNotes())
	assert.Len(t, mut.After.Updates, len(ticket.Updates)+1)
}

func TestCreateCarriesCategoryHandlers(t *testing.T) {
	m, _ := newTestMachine()
	tagged := []string{"anna", "ben"}

	mut, err := m.Create(CreateInput{
		Owner:            owner,
		Title:            "t",
		Description:      "d",
		Classification:   classifier.Result{Category: domain.CategoryBilling, Priority: domain.TicketPriorityLow},
		CategoryHandlers: tagged,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"anna", "ben"}, mut.CategoryHandlers)

	tagged[0] = "mallory"
	assert.Equal(t, "anna", mut.CategoryHandlers[0])
}
