package services

import (
	"context"
	"sync"
	"testing"

	"pulsepath/internal/models"
	"pulsepath/internal/repositories/memory"
	"pulsepath/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type testEnv struct {
	store    *memory.Store
	dispatch DispatchService

	mu     sync.Mutex
	events []*models.RequestEvent
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{store: memory.NewStore()}
	collect := func(evt *models.RequestEvent) {
		env.mu.Lock()
		env.events = append(env.events, evt)
		env.mu.Unlock()
	}
	env.store.OnCommit(collect)

	env.dispatch = NewDispatchService(
		env.store,
		env.store.Hospitals(),
		env.store.Ambulances(),
		NewRoleGateway(),
		collect,
		logger.NewNopLogger(),
	)
	return env
}

func (e *testEnv) collectedEvents() []*models.RequestEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*models.RequestEvent, len(e.events))
	copy(out, e.events)
	return out
}

func (e *testEnv) addHospital(t *testing.T, hospitalType models.HospitalType, capacity map[models.WardType]int) *models.Hospital {
	t.Helper()

	wards := make(map[models.WardType]models.BedCount, len(capacity))
	for ward, beds := range capacity {
		wards[ward] = models.BedCount{Total: beds, Available: beds}
	}
	hospital := &models.Hospital{
		Name:     "General Hospital " + primitive.NewObjectID().Hex()[:6],
		Type:     hospitalType,
		Capacity: wards,
	}
	require.NoError(t, e.store.Hospitals().Create(context.Background(), hospital))
	return hospital
}

func (e *testEnv) addAmbulance(t *testing.T, hospitalID primitive.ObjectID) *models.Ambulance {
	t.Helper()

	ambulance := &models.Ambulance{
		HospitalID: hospitalID,
		CallSign:   "unit-" + primitive.NewObjectID().Hex()[:6],
		Available:  true,
	}
	require.NoError(t, e.store.Ambulances().Create(context.Background(), ambulance))
	return ambulance
}

func (e *testEnv) submit(t *testing.T, ward models.WardType, hospitalType models.HospitalType) *models.SOSRequest {
	t.Helper()

	request, err := e.dispatch.Submit(context.Background(), &SubmitRequestInput{
		PatientID:    primitive.NewObjectID(),
		HospitalType: hospitalType,
		WardType:     ward,
	})
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, request.Status)
	return request
}

func TestSubmitAssignsNumberAndBroadcasts(t *testing.T) {
	env := newTestEnv(t)

	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	assert.Contains(t, request.RequestNumber, "SOS-")
	assert.EqualValues(t, 1, request.Version)

	events := env.collectedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.RequestStatusPending, events[0].NewStatus)
	assert.Equal(t, request.ID, events[0].RequestID)
}

func TestAcceptReservesBedAndAssignsHospital(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 2})
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	updated, err := env.dispatch.Accept(context.Background(), hospital.ID, request.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusAccepted, updated.Status)
	require.NotNil(t, updated.AssignedHospitalID)
	assert.Equal(t, hospital.ID, *updated.AssignedHospitalID)
	assert.NotNil(t, updated.AcceptedAt)

	stored, err := env.store.Hospitals().GetByID(context.Background(), hospital.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AvailableBeds(models.WardTypeICU))
}

func TestAcceptExactlyOneWinnerUnderContention(t *testing.T) {
	env := newTestEnv(t)
	request := env.submit(t, models.WardTypeEmergency, models.HospitalTypeGovernment)

	const contenders = 8
	hospitals := make([]*models.Hospital, contenders)
	for i := range hospitals {
		hospitals[i] = env.addHospital(t, models.HospitalTypeGovernment, map[models.WardType]int{models.WardTypeEmergency: 1})
	}

	var wg sync.WaitGroup
	results := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.dispatch.Accept(context.Background(), hospitals[i].ID, request.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.True(t, models.IsKind(err, models.ErrKindStaleState), "loser got %v", err)
		}
	}
	assert.Equal(t, 1, winners)

	// Exactly one hospital paid a bed.
	reserved := 0
	for _, h := range hospitals {
		stored, err := env.store.Hospitals().GetByID(context.Background(), h.ID)
		require.NoError(t, err)
		if stored.AvailableBeds(models.WardTypeEmergency) == 0 {
			reserved++
		}
	}
	assert.Equal(t, 1, reserved)
}

func TestAcceptFailsWhenWardFull(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeMaternity: 2})

	for i := 0; i < 2; i++ {
		request := env.submit(t, models.WardTypeMaternity, models.HospitalTypePrivate)
		_, err := env.dispatch.Accept(context.Background(), hospital.ID, request.ID)
		require.NoError(t, err)
	}

	third := env.submit(t, models.WardTypeMaternity, models.HospitalTypePrivate)
	_, err := env.dispatch.Accept(context.Background(), hospital.ID, third.ID)
	assert.True(t, models.IsKind(err, models.ErrKindCapacityExceeded))

	// The failed accept left the request open for someone else.
	current, err := env.dispatch.Get(context.Background(), third.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, current.Status)
}

func TestAcceptConcurrentNeverOverbooksWard(t *testing.T) {
	env := newTestEnv(t)
	const beds = 3
	const requests = 12
	hospital := env.addHospital(t, models.HospitalTypeGovernment, map[models.WardType]int{models.WardTypeICU: beds})

	pending := make([]*models.SOSRequest, requests)
	for i := range pending {
		pending[i] = env.submit(t, models.WardTypeICU, models.HospitalTypeGovernment)
	}

	var wg sync.WaitGroup
	results := make([]error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.dispatch.Accept(context.Background(), hospital.ID, pending[i].ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.True(t, models.IsKind(err, models.ErrKindCapacityExceeded), "loser got %v", err)
		}
	}
	assert.Equal(t, beds, winners)

	// The counter drained to exactly zero, never below.
	stored, err := env.store.Hospitals().GetByID(context.Background(), hospital.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.AvailableBeds(models.WardTypeICU))

	// Every loser is still open for another hospital.
	accepted := 0
	for _, request := range pending {
		current, err := env.dispatch.Get(context.Background(), request.ID)
		require.NoError(t, err)
		if current.Status == models.RequestStatusAccepted {
			accepted++
		} else {
			assert.Equal(t, models.RequestStatusPending, current.Status)
		}
	}
	assert.Equal(t, beds, accepted)
}

func TestAcceptUnservedWard(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeGeneral: 5})
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	_, err := env.dispatch.Accept(context.Background(), hospital.ID, request.ID)
	assert.True(t, models.IsKind(err, models.ErrKindCapacityExceeded))
}

func TestDispatchClaimsAmbulance(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 1})
	ambulance := env.addAmbulance(t, hospital.ID)
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	_, err := env.dispatch.Accept(context.Background(), hospital.ID, request.ID)
	require.NoError(t, err)

	updated, err := env.dispatch.Dispatch(context.Background(), hospital.ID, request.ID, ambulance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusDispatched, updated.Status)
	require.NotNil(t, updated.AssignedAmbulanceID)
	assert.Equal(t, ambulance.ID, *updated.AssignedAmbulanceID)

	stored, err := env.store.Ambulances().GetByID(context.Background(), ambulance.ID)
	require.NoError(t, err)
	assert.False(t, stored.Available)
}

func TestDispatchBusyAmbulanceLosesRace(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 2})
	ambulance := env.addAmbulance(t, hospital.ID)

	first := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)
	second := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)
	for _, req := range []*models.SOSRequest{first, second} {
		_, err := env.dispatch.Accept(context.Background(), hospital.ID, req.ID)
		require.NoError(t, err)
	}

	_, err := env.dispatch.Dispatch(context.Background(), hospital.ID, first.ID, ambulance.ID)
	require.NoError(t, err)

	_, err = env.dispatch.Dispatch(context.Background(), hospital.ID, second.ID, ambulance.ID)
	assert.True(t, models.IsKind(err, models.ErrKindStaleState))

	// Second request stays accepted, untouched by the failed dispatch.
	current, err := env.dispatch.Get(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, current.Status)
	assert.Nil(t, current.AssignedAmbulanceID)
}

func TestDispatchByOtherHospitalForbidden(t *testing.T) {
	env := newTestEnv(t)
	owner := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 1})
	intruder := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 1})
	ambulance := env.addAmbulance(t, intruder.ID)
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	_, err := env.dispatch.Accept(context.Background(), owner.ID, request.ID)
	require.NoError(t, err)

	_, err = env.dispatch.Dispatch(context.Background(), intruder.ID, request.ID, ambulance.ID)
	assert.True(t, models.IsKind(err, models.ErrKindForbidden))
}

func TestDispatchForeignAmbulanceForbidden(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 1})
	other := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 1})
	foreign := env.addAmbulance(t, other.ID)
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	_, err := env.dispatch.Accept(context.Background(), hospital.ID, request.ID)
	require.NoError(t, err)

	_, err = env.dispatch.Dispatch(context.Background(), hospital.ID, request.ID, foreign.ID)
	assert.True(t, models.IsKind(err, models.ErrKindForbidden))
}

func TestCompleteFreesAmbulanceKeepsBed(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 2})
	ambulance := env.addAmbulance(t, hospital.ID)
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	_, err := env.dispatch.Accept(context.Background(), hospital.ID, request.ID)
	require.NoError(t, err)
	_, err = env.dispatch.Dispatch(context.Background(), hospital.ID, request.ID, ambulance.ID)
	require.NoError(t, err)

	caller := models.Caller{ID: hospital.ID, Role: models.RoleHospital}
	require.NoError(t, env.dispatch.Complete(context.Background(), caller, request.ID))

	current, err := env.dispatch.Get(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, current.Status)
	assert.NotNil(t, current.CompletedAt)

	storedAmbulance, err := env.store.Ambulances().GetByID(context.Background(), ambulance.ID)
	require.NoError(t, err)
	assert.True(t, storedAmbulance.Available)

	// The patient now occupies the bed; completion does not release it.
	storedHospital, err := env.store.Hospitals().GetByID(context.Background(), hospital.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, storedHospital.AvailableBeds(models.WardTypeICU))
}

func TestCompleteTwiceInvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 1})
	ambulance := env.addAmbulance(t, hospital.ID)
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	_, err := env.dispatch.Accept(context.Background(), hospital.ID, request.ID)
	require.NoError(t, err)
	_, err = env.dispatch.Dispatch(context.Background(), hospital.ID, request.ID, ambulance.ID)
	require.NoError(t, err)

	caller := models.Caller{ID: hospital.ID, Role: models.RoleHospital}
	require.NoError(t, env.dispatch.Complete(context.Background(), caller, request.ID))

	err = env.dispatch.Complete(context.Background(), caller, request.ID)
	assert.True(t, models.IsKind(err, models.ErrKindInvalidTransition))
}

func TestCompleteByAssignedAmbulance(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 1})
	ambulance := env.addAmbulance(t, hospital.ID)
	other := env.addAmbulance(t, hospital.ID)
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	_, err := env.dispatch.Accept(context.Background(), hospital.ID, request.ID)
	require.NoError(t, err)
	_, err = env.dispatch.Dispatch(context.Background(), hospital.ID, request.ID, ambulance.ID)
	require.NoError(t, err)

	// A unit that was never assigned cannot close the request.
	err = env.dispatch.Complete(context.Background(), models.Caller{ID: other.ID, Role: models.RoleAmbulance}, request.ID)
	assert.True(t, models.IsKind(err, models.ErrKindForbidden))

	err = env.dispatch.Complete(context.Background(), models.Caller{ID: ambulance.ID, Role: models.RoleAmbulance}, request.ID)
	require.NoError(t, err)
}

func TestCancelAcceptedReleasesBed(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 1})
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	_, err := env.dispatch.Accept(context.Background(), hospital.ID, request.ID)
	require.NoError(t, err)

	caller := models.Caller{ID: request.PatientID, Role: models.RolePatient}
	require.NoError(t, env.dispatch.Cancel(context.Background(), caller, request.ID))

	current, err := env.dispatch.Get(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, current.Status)
	assert.Equal(t, string(models.RolePatient), current.CancelledBy)

	stored, err := env.store.Hospitals().GetByID(context.Background(), hospital.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AvailableBeds(models.WardTypeICU))
}

func TestCancelDispatchedReleasesBedAndAmbulance(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 1})
	ambulance := env.addAmbulance(t, hospital.ID)
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	_, err := env.dispatch.Accept(context.Background(), hospital.ID, request.ID)
	require.NoError(t, err)
	_, err = env.dispatch.Dispatch(context.Background(), hospital.ID, request.ID, ambulance.ID)
	require.NoError(t, err)

	caller := models.Caller{ID: hospital.ID, Role: models.RoleHospital}
	require.NoError(t, env.dispatch.Cancel(context.Background(), caller, request.ID))

	storedHospital, err := env.store.Hospitals().GetByID(context.Background(), hospital.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, storedHospital.AvailableBeds(models.WardTypeICU))

	storedAmbulance, err := env.store.Ambulances().GetByID(context.Background(), ambulance.ID)
	require.NoError(t, err)
	assert.True(t, storedAmbulance.Available)
}

func TestPatientCannotCancelDispatched(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 1})
	ambulance := env.addAmbulance(t, hospital.ID)
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	_, err := env.dispatch.Accept(context.Background(), hospital.ID, request.ID)
	require.NoError(t, err)
	_, err = env.dispatch.Dispatch(context.Background(), hospital.ID, request.ID, ambulance.ID)
	require.NoError(t, err)

	caller := models.Caller{ID: request.PatientID, Role: models.RolePatient}
	err = env.dispatch.Cancel(context.Background(), caller, request.ID)
	assert.True(t, models.IsKind(err, models.ErrKindForbidden))
}

func TestPatientCannotCancelOthersRequest(t *testing.T) {
	env := newTestEnv(t)
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	stranger := models.Caller{ID: primitive.NewObjectID(), Role: models.RolePatient}
	err := env.dispatch.Cancel(context.Background(), stranger, request.ID)
	assert.True(t, models.IsKind(err, models.ErrKindForbidden))
}

func TestCancelTerminalInvalidTransition(t *testing.T) {
	env := newTestEnv(t)
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	caller := models.Caller{ID: request.PatientID, Role: models.RolePatient}
	require.NoError(t, env.dispatch.Cancel(context.Background(), caller, request.ID))

	err := env.dispatch.Cancel(context.Background(), caller, request.ID)
	assert.True(t, models.IsKind(err, models.ErrKindInvalidTransition))
}

func TestDeclineLeavesNoAssignment(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 1})
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	require.NoError(t, env.dispatch.Decline(context.Background(), hospital.ID, request.ID))

	current, err := env.dispatch.Get(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, current.Status)
	assert.Nil(t, current.AssignedHospitalID)

	stored, err := env.store.Hospitals().GetByID(context.Background(), hospital.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AvailableBeds(models.WardTypeICU))
}

func TestGetUnknownRequestNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dispatch.Get(context.Background(), primitive.NewObjectID())
	assert.True(t, models.IsKind(err, models.ErrKindNotFound))
}

func TestListEligibleFiltersTypeAndWard(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{
		models.WardTypeICU:     1,
		models.WardTypeGeneral: 2,
	})

	matching := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)
	// Unserved ward and wrong hospital type must both be filtered out.
	env.submit(t, models.WardTypeMaternity, models.HospitalTypePrivate)
	env.submit(t, models.WardTypeICU, models.HospitalTypeGovernment)
	alsoMatching := env.submit(t, models.WardTypeGeneral, models.HospitalTypePrivate)

	eligible, err := env.dispatch.ListEligible(context.Background(), hospital.ID)
	require.NoError(t, err)
	require.Len(t, eligible, 2)

	ids := []primitive.ObjectID{eligible[0].ID, eligible[1].ID}
	assert.Contains(t, ids, matching.ID)
	assert.Contains(t, ids, alsoMatching.ID)
}

func TestListEligiblePreferredFirst(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 3})

	env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)
	preferred, err := env.dispatch.Submit(context.Background(), &SubmitRequestInput{
		PatientID:           primitive.NewObjectID(),
		HospitalType:        models.HospitalTypePrivate,
		WardType:            models.WardTypeICU,
		PreferredHospitalID: &hospital.ID,
	})
	require.NoError(t, err)
	env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	eligible, err := env.dispatch.ListEligible(context.Background(), hospital.ID)
	require.NoError(t, err)
	require.NotEmpty(t, eligible)
	assert.Equal(t, preferred.ID, eligible[0].ID)
}

func TestLifecycleEventsArriveInCommitOrder(t *testing.T) {
	env := newTestEnv(t)
	hospital := env.addHospital(t, models.HospitalTypePrivate, map[models.WardType]int{models.WardTypeICU: 1})
	ambulance := env.addAmbulance(t, hospital.ID)
	request := env.submit(t, models.WardTypeICU, models.HospitalTypePrivate)

	_, err := env.dispatch.Accept(context.Background(), hospital.ID, request.ID)
	require.NoError(t, err)
	_, err = env.dispatch.Dispatch(context.Background(), hospital.ID, request.ID, ambulance.ID)
	require.NoError(t, err)
	require.NoError(t, env.dispatch.Complete(context.Background(), models.Caller{ID: hospital.ID, Role: models.RoleHospital}, request.ID))

	events := env.collectedEvents()
	require.Len(t, events, 4)

	wantStatuses := []models.RequestStatus{
		models.RequestStatusPending,
		models.RequestStatusAccepted,
		models.RequestStatusDispatched,
		models.RequestStatusCompleted,
	}
	for i, evt := range events {
		assert.Equal(t, wantStatuses[i], evt.NewStatus)
		assert.EqualValues(t, i+1, evt.Version)
	}
}
