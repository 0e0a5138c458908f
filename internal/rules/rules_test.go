package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-service/internal/domain"
)

var (
	student    = domain.Actor{ID: "s1", Role: domain.RoleStudent}
	technician = domain.Actor{ID: "t1", Role: domain.RoleTechnician}
	otherTech  = domain.Actor{ID: "t2", Role: domain.RoleTechnician}
	admin      = domain.Actor{ID: "a1", Role: domain.RoleAdmin}
)

func pendingRequest() domain.Request {
	return domain.Request{
		ID:          "r1",
		Title:       "leaking pipe",
		Status:      domain.RequestStatusPending,
		Priority:    domain.RequestPriorityMedium,
		CreatedBy:   student.ID,
		DateCreated: time.Now(),
	}
}

func claimedRequest(t *testing.T) domain.Request {
	t.Helper()
	req, err := Claim(pendingRequest(), technician)
	require.NoError(t, err)
	return req
}

func TestTransitionTable(t *testing.T) {
	type transition struct {
		from, to domain.RequestStatus
	}
	legal := map[transition]bool{
		{domain.RequestStatusPending, domain.RequestStatusAssigned}:   true,
		{domain.RequestStatusPending, domain.RequestStatusCancelled}:  true,
		{domain.RequestStatusAssigned, domain.RequestStatusActive}:    true,
		{domain.RequestStatusAssigned, domain.RequestStatusPending}:   true,
		{domain.RequestStatusAssigned, domain.RequestStatusCancelled}: true,
		{domain.RequestStatusActive, domain.RequestStatusCompleted}:   true,
		{domain.RequestStatusActive, domain.RequestStatusCancelled}:   true,
	}

	all := []domain.RequestStatus{
		domain.RequestStatusPending,
		domain.RequestStatusAssigned,
		domain.RequestStatusActive,
		domain.RequestStatusCompleted,
		domain.RequestStatusCancelled,
	}
	for _, from := range all {
		for _, to := range all {
			expected := legal[transition{from, to}]
			require.Equalf(t, expected, CanTransition(from, to), "transition %s -> %s", from, to)
		}
	}
}

func TestTerminalStatesAdmitNothing(t *testing.T) {
	for _, from := range []domain.RequestStatus{domain.RequestStatusCompleted, domain.RequestStatusCancelled} {
		for _, to := range []domain.RequestStatus{
			domain.RequestStatusPending,
			domain.RequestStatusAssigned,
			domain.RequestStatusActive,
			domain.RequestStatusCompleted,
			domain.RequestStatusCancelled,
		} {
			require.False(t, CanTransition(from, to))
		}
	}
}

func TestClaimSetsAssignmentFields(t *testing.T) {
	req, err := Claim(pendingRequest(), technician)
	require.NoError(t, err)

	require.Equal(t, domain.RequestStatusAssigned, req.Status)
	require.NotNil(t, req.AssignedTechnicianID)
	require.Equal(t, technician.ID, *req.AssignedTechnicianID)
	require.NotNil(t, req.AssignmentSource)
	require.Equal(t, domain.AssignmentSourceTechnician, *req.AssignmentSource)
	require.NotNil(t, req.AssignedByUserID)
	require.Equal(t, technician.ID, *req.AssignedByUserID)
}

func TestClaimRejectsAlreadyAssigned(t *testing.T) {
	claimed := claimedRequest(t)
	claimed.Status = domain.RequestStatusPending // even a stale-looking status cannot bypass the assignee check

	_, err := Claim(claimed, otherTech)
	require.Error(t, err)
}

func TestClaimRejectsNonPending(t *testing.T) {
	req := pendingRequest()
	req.Status = domain.RequestStatusCancelled

	_, err := Claim(req, technician)
	require.Error(t, err)
}

func TestClaimRejectsStudent(t *testing.T) {
	_, err := Claim(pendingRequest(), student)
	require.Error(t, err)
}

func TestReleaseClearsAssignment(t *testing.T) {
	claimed := claimedRequest(t)
	at := time.Now().Add(time.Hour)
	claimed.ScheduledTime = &at

	released, err := Release(claimed, technician)
	require.NoError(t, err)

	require.Equal(t, domain.RequestStatusPending, released.Status)
	require.Nil(t, released.AssignedTechnicianID)
	require.Nil(t, released.AssignmentSource)
	require.Nil(t, released.AssignedByUserID)
	require.Nil(t, released.ScheduledTime)
}

func TestReleaseRejectsAdminSourcedAssignment(t *testing.T) {
	assigned, err := Assign(pendingRequest(), admin, otherTech.ID)
	require.NoError(t, err)

	_, err = Release(assigned, otherTech)
	require.Error(t, err)
}

func TestReleaseRejectsOtherTechnician(t *testing.T) {
	claimed := claimedRequest(t)

	_, err := Release(claimed, otherTech)
	require.Error(t, err)
}

func TestAssignRecordsAdminSource(t *testing.T) {
	req, err := Assign(pendingRequest(), admin, technician.ID)
	require.NoError(t, err)

	require.Equal(t, domain.RequestStatusAssigned, req.Status)
	require.Equal(t, technician.ID, *req.AssignedTechnicianID)
	require.Equal(t, domain.AssignmentSourceAdmin, *req.AssignmentSource)
	require.Equal(t, admin.ID, *req.AssignedByUserID)
}

func TestAssignReassignmentClearsSchedule(t *testing.T) {
	claimed := claimedRequest(t)
	at := time.Now().Add(time.Hour)
	claimed.ScheduledTime = &at

	reassigned, err := Assign(claimed, admin, otherTech.ID)
	require.NoError(t, err)

	require.Equal(t, otherTech.ID, *reassigned.AssignedTechnicianID)
	require.Equal(t, domain.AssignmentSourceAdmin, *reassigned.AssignmentSource)
	require.Nil(t, reassigned.ScheduledTime)
}

func TestAssignRejectsNonAdmin(t *testing.T) {
	_, err := Assign(pendingRequest(), technician, technician.ID)
	require.Error(t, err)
}

func TestAssignRejectsTerminal(t *testing.T) {
	req := pendingRequest()
	req.Status = domain.RequestStatusCancelled

	_, err := Assign(req, admin, technician.ID)
	require.Error(t, err)
}

func TestStartAndComplete(t *testing.T) {
	claimed := claimedRequest(t)

	active, err := Start(claimed, technician)
	require.NoError(t, err)
	require.Equal(t, domain.RequestStatusActive, active.Status)

	completed, err := Complete(active, technician)
	require.NoError(t, err)
	require.Equal(t, domain.RequestStatusCompleted, completed.Status)
	// assignment retained for history
	require.Equal(t, technician.ID, *completed.AssignedTechnicianID)
}

func TestStartRejectsUnassignedActor(t *testing.T) {
	claimed := claimedRequest(t)

	_, err := Start(claimed, otherTech)
	require.Error(t, err)
}

func TestCompleteRejectsFromAssigned(t *testing.T) {
	claimed := claimedRequest(t)

	_, err := Complete(claimed, technician)
	require.Error(t, err)
}

func TestCancelByCreator(t *testing.T) {
	req, err := Cancel(pendingRequest(), student)
	require.NoError(t, err)
	require.Equal(t, domain.RequestStatusCancelled, req.Status)
}

func TestCancelByAdmin(t *testing.T) {
	req, err := Cancel(claimedRequest(t), admin)
	require.NoError(t, err)
	require.Equal(t, domain.RequestStatusCancelled, req.Status)
}

func TestCancelRejectsStranger(t *testing.T) {
	_, err := Cancel(pendingRequest(), otherTech)
	require.Error(t, err)
}

func TestCancelRejectsTerminal(t *testing.T) {
	req := pendingRequest()
	req.Status = domain.RequestStatusCompleted

	_, err := Cancel(req, student)
	require.Error(t, err)
}

func TestScheduleOnlyWhileAssigned(t *testing.T) {
	claimed := claimedRequest(t)
	at := time.Now().Add(2 * time.Hour)

	scheduled, err := Schedule(claimed, technician, at)
	require.NoError(t, err)
	require.NotNil(t, scheduled.ScheduledTime)
	require.True(t, scheduled.ScheduledTime.Equal(at))

	_, err = Schedule(claimed, otherTech, at)
	require.Error(t, err)

	claimed.Status = domain.RequestStatusCompleted
	_, err = Schedule(claimed, technician, at)
	require.Error(t, err)
}

func TestRateWriteOnce(t *testing.T) {
	req := pendingRequest()
	req.Status = domain.RequestStatusCompleted

	rated, err := Rate(req, student, 5, "Great")
	require.NoError(t, err)
	require.Equal(t, 5, *rated.Rating)
	require.Equal(t, "Great", *rated.RatingComment)

	_, err = Rate(rated, student, 2, "changed my mind")
	require.Error(t, err)
	require.Equal(t, 5, *rated.Rating)
}

func TestRateGuards(t *testing.T) {
	req := pendingRequest()

	// not completed yet
	_, err := Rate(req, student, 4, "")
	require.Error(t, err)

	req.Status = domain.RequestStatusCompleted

	// only the creator may rate
	_, err = Rate(req, otherTech, 4, "")
	require.Error(t, err)

	// range check
	_, err = Rate(req, student, 0, "")
	require.Error(t, err)
	_, err = Rate(req, student, 6, "")
	require.Error(t, err)
}
