package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/avidast/ticketd/internal/model"
	"github.com/avidast/ticketd/internal/repository"
)

// fakeSeatMap is an in-memory stand-in for the Redis bitmap with the same
// atomicity guarantees: AcquireAll checks and sets under one lock.
type fakeSeatMap struct {
	mu   sync.Mutex
	bits map[uint64]map[uint32]bool
}

func newFakeSeatMap() *fakeSeatMap {
	return &fakeSeatMap{bits: make(map[uint64]map[uint32]bool)}
}

func (f *fakeSeatMap) AcquireAll(_ context.Context, eventID uint64, seats []uint32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.bits[eventID]
	for _, s := range seats {
		if m[s] {
			return false, nil
		}
	}
	if m == nil {
		m = make(map[uint32]bool)
		f.bits[eventID] = m
	}
	for _, s := range seats {
		m[s] = true
	}
	return true, nil
}

func (f *fakeSeatMap) Release(_ context.Context, eventID uint64, seat uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bits[eventID], seat)
	return nil
}

func (f *fakeSeatMap) taken(eventID uint64, seat uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bits[eventID][seat]
}

func (f *fakeSeatMap) count(eventID uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bits[eventID])
}

// fakeEventStore implements both EventStore and CapacityLedger over one
// mutex-guarded event table, mirroring the conditional-update semantics of
// the real ledger.
type fakeEventStore struct {
	mu         sync.Mutex
	events     map[uint64]model.Event
	reserveErr error // forced Reserve failure for compensation tests
}

func newFakeEventStore(events ...model.Event) *fakeEventStore {
	m := make(map[uint64]model.Event, len(events))
	for _, e := range events {
		m[e.ID] = e
	}
	return &fakeEventStore{events: m}
}

func (f *fakeEventStore) GetByID(_ context.Context, id uint64) (model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return model.Event{}, repository.ErrEventNotFound
	}
	return e, nil
}

func (f *fakeEventStore) Reserve(_ context.Context, eventID uint64, count uint32, _ int) (model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveErr != nil {
		return model.Event{}, f.reserveErr
	}
	e, ok := f.events[eventID]
	if !ok {
		return model.Event{}, repository.ErrEventNotFound
	}
	if e.BookedSeats+count > e.Capacity {
		return model.Event{}, repository.ErrNotEnoughCapacity
	}
	e.BookedSeats += count
	f.events[eventID] = e
	return e, nil
}

func (f *fakeEventStore) Release(_ context.Context, eventID uint64, count uint32) (model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok {
		return model.Event{}, repository.ErrEventNotFound
	}
	if count >= e.BookedSeats {
		e.BookedSeats = 0
	} else {
		e.BookedSeats -= count
	}
	f.events[eventID] = e
	return e, nil
}

func (f *fakeEventStore) booked(eventID uint64) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[eventID].BookedSeats
}

// fakeBookingStore keeps rows in memory and enforces the active-seat
// uniqueness the real table's functional index provides.
type fakeBookingStore struct {
	mu        sync.Mutex
	rows      map[uint64]model.Booking
	nextID    uint64
	createErr error // forced CreateBatch failure
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{rows: make(map[uint64]model.Booking)}
}

func (f *fakeBookingStore) CreateBatch(_ context.Context, bookings []model.Booking) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	for _, b := range bookings {
		if b.SeatNumber == nil {
			continue
		}
		for _, existing := range f.rows {
			if existing.Status == model.BookingStatusBooked &&
				existing.EventID == b.EventID &&
				existing.SeatNumber != nil && *existing.SeatNumber == *b.SeatNumber {
				return nil, repository.ErrPersistenceConflict
			}
		}
	}
	out := make([]model.Booking, 0, len(bookings))
	for _, b := range bookings {
		f.nextID++
		b.ID = f.nextID
		b.CreatedAt = time.Now().UTC()
		f.rows[b.ID] = b
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBookingStore) GetByID(_ context.Context, id uint64) (model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok {
		return model.Booking{}, repository.ErrBookingNotFound
	}
	return b, nil
}

func (f *fakeBookingStore) UpdateStatus(_ context.Context, id uint64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.Status = status
	f.rows[id] = b
	return nil
}

type fakeUserStore struct{ ids map[uint64]bool }

func (f *fakeUserStore) Exists(_ context.Context, id uint64) (bool, error) {
	return f.ids[id], nil
}

type fixture struct {
	seats    *fakeSeatMap
	store    *fakeEventStore
	bookings *fakeBookingStore
	users    *fakeUserStore
	orc      *Orchestrator
}

func newFixture(t *testing.T, events ...model.Event) *fixture {
	t.Helper()
	f := &fixture{
		seats:    newFakeSeatMap(),
		store:    newFakeEventStore(events...),
		bookings: newFakeBookingStore(),
		users:    &fakeUserStore{ids: map[uint64]bool{1: true, 2: true}},
	}
	f.orc = NewOrchestrator(f.seats, f.store, f.bookings, f.store, f.users, 3)
	return f
}

func futureEvent(id uint64, capacity, booked uint32) model.Event {
	return model.Event{
		ID:          id,
		Name:        "test event",
		Capacity:    capacity,
		BookedSeats: booked,
		StartsAt:    time.Now().UTC().Add(time.Hour),
	}
}

func TestCreateSeatedBooking(t *testing.T) {
	f := newFixture(t, futureEvent(10, 5, 0))
	ctx := context.Background()

	created, err := f.orc.CreateBooking(ctx, 1, 10, []uint32{2, 3})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(created))
	}
	for i, want := range []uint32{2, 3} {
		b := created[i]
		if b.Status != model.BookingStatusBooked || b.SeatNumber == nil || *b.SeatNumber != want {
			t.Errorf("row %d: got %+v, want booked seat %d", i, b, want)
		}
	}
	if got := f.store.booked(10); got != 2 {
		t.Errorf("booked seats: got %d, want 2", got)
	}
	if !f.seats.taken(10, 2) || !f.seats.taken(10, 3) {
		t.Error("expected seats 2 and 3 to be taken")
	}
}

func TestCreateGeneralAdmission(t *testing.T) {
	f := newFixture(t, futureEvent(10, 3, 0))
	created, err := f.orc.CreateBooking(context.Background(), 1, 10, nil)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if len(created) != 1 || created[0].SeatNumber != nil {
		t.Fatalf("expected one seatless row, got %+v", created)
	}
	if got := f.store.booked(10); got != 1 {
		t.Errorf("booked seats: got %d, want 1", got)
	}
	if got := f.seats.count(10); got != 0 {
		t.Errorf("bitmap should be untouched, %d bits set", got)
	}
}

func TestCreateBookingValidation(t *testing.T) {
	tests := []struct {
		name    string
		userID  uint64
		eventID uint64
		seats   []uint32
		want    error
	}{
		{"unknown event", 1, 99, nil, repository.ErrEventNotFound},
		{"unknown user", 42, 10, nil, repository.ErrUserNotFound},
		{"seat zero", 1, 10, []uint32{0}, repository.ErrInvalidArgument},
		{"seat past capacity", 1, 10, []uint32{6}, repository.ErrInvalidArgument},
		{"duplicate seat", 1, 10, []uint32{2, 2}, repository.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, futureEvent(10, 5, 0))
			_, err := f.orc.CreateBooking(context.Background(), tt.userID, tt.eventID, tt.seats)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if f.seats.count(10) != 0 || f.store.booked(10) != 0 {
				t.Error("validation failure must not mutate any store")
			}
		})
	}
}

func TestCreateBookingPastEvent(t *testing.T) {
	f := newFixture(t, futureEvent(10, 5, 0))
	f.orc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	_, err := f.orc.CreateBooking(context.Background(), 1, 10, []uint32{1})
	if !errors.Is(err, repository.ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
	if f.seats.count(10) != 0 || f.store.booked(10) != 0 {
		t.Error("no store may be mutated for a past event")
	}
}

func TestSeatConflictLeavesOtherSeatsFree(t *testing.T) {
	f := newFixture(t, futureEvent(10, 5, 0))
	ctx := context.Background()
	if _, err := f.orc.CreateBooking(ctx, 2, 10, []uint32{4}); err != nil {
		t.Fatalf("setup booking: %v", err)
	}

	_, err := f.orc.CreateBooking(ctx, 1, 10, []uint32{3, 4})
	if !errors.Is(err, repository.ErrSeatConflict) {
		t.Fatalf("got %v, want ErrSeatConflict", err)
	}
	if f.seats.taken(10, 3) {
		t.Error("seat 3 must remain free after the all-or-nothing failure")
	}
	if got := f.store.booked(10); got != 1 {
		t.Errorf("booked seats: got %d, want 1", got)
	}
}

func TestNotEnoughCapacityUnseated(t *testing.T) {
	f := newFixture(t, futureEvent(10, 1, 1))
	_, err := f.orc.CreateBooking(context.Background(), 1, 10, nil)
	if !errors.Is(err, repository.ErrNotEnoughCapacity) {
		t.Fatalf("got %v, want ErrNotEnoughCapacity", err)
	}
	if got := f.store.booked(10); got != 1 {
		t.Errorf("booked seats changed: got %d, want 1", got)
	}
}

func TestReserveFailureReleasesSeats(t *testing.T) {
	f := newFixture(t, futureEvent(10, 5, 0))
	f.store.reserveErr = repository.ErrNotEnoughCapacity

	_, err := f.orc.CreateBooking(context.Background(), 1, 10, []uint32{1, 2})
	if !errors.Is(err, repository.ErrNotEnoughCapacity) {
		t.Fatalf("got %v, want ErrNotEnoughCapacity", err)
	}
	if got := f.seats.count(10); got != 0 {
		t.Errorf("compensation left %d seats taken", got)
	}
}

func TestPersistenceFailureCompensatesBoth(t *testing.T) {
	f := newFixture(t, futureEvent(10, 5, 0))
	f.bookings.createErr = repository.ErrPersistenceConflict

	_, err := f.orc.CreateBooking(context.Background(), 1, 10, []uint32{1, 2})
	if !errors.Is(err, repository.ErrPersistenceConflict) {
		t.Fatalf("got %v, want ErrPersistenceConflict", err)
	}
	if got := f.seats.count(10); got != 0 {
		t.Errorf("compensation left %d seats taken", got)
	}
	if got := f.store.booked(10); got != 0 {
		t.Errorf("compensation left booked seats at %d", got)
	}
}

func TestCancelBooking(t *testing.T) {
	f := newFixture(t, futureEvent(10, 5, 0))
	ctx := context.Background()
	created, err := f.orc.CreateBooking(ctx, 1, 10, []uint32{5})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if got := f.store.booked(10); got != 1 {
		t.Fatalf("booked seats after create: got %d, want 1", got)
	}

	b, err := f.orc.CancelBooking(ctx, created[0].ID, 1, false)
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if b.Status != model.BookingStatusCancelled {
		t.Errorf("status: got %s, want CANCELLED", b.Status)
	}
	if got := f.store.booked(10); got != 0 {
		t.Errorf("booked seats after cancel: got %d, want 0", got)
	}
	if f.seats.taken(10, 5) {
		t.Error("seat 5 must be free after cancel")
	}

	// Cancelling again is a no-op: same result, zero further mutation.
	again, err := f.orc.CancelBooking(ctx, created[0].ID, 1, false)
	if err != nil {
		t.Fatalf("second CancelBooking: %v", err)
	}
	if again.Status != model.BookingStatusCancelled {
		t.Errorf("second cancel status: got %s", again.Status)
	}
	if got := f.store.booked(10); got != 0 {
		t.Errorf("idempotent cancel must not release again, booked=%d", got)
	}
}

func TestCancelBookingAuthorization(t *testing.T) {
	f := newFixture(t, futureEvent(10, 5, 0))
	ctx := context.Background()
	created, err := f.orc.CreateBooking(ctx, 1, 10, []uint32{1})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}

	if _, err := f.orc.CancelBooking(ctx, created[0].ID, 2, false); !errors.Is(err, repository.ErrForbidden) {
		t.Fatalf("stranger cancel: got %v, want ErrForbidden", err)
	}
	if b, err := f.orc.CancelBooking(ctx, created[0].ID, 2, true); err != nil || b.Status != model.BookingStatusCancelled {
		t.Fatalf("admin cancel: got %+v, %v", b, err)
	}
}

func TestCancelUnknownBooking(t *testing.T) {
	f := newFixture(t, futureEvent(10, 5, 0))
	if _, err := f.orc.CancelBooking(context.Background(), 999, 1, false); !errors.Is(err, repository.ErrBookingNotFound) {
		t.Fatalf("got %v, want ErrBookingNotFound", err)
	}
}

func TestConcurrentSameSeat(t *testing.T) {
	f := newFixture(t, futureEvent(10, 2, 0))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.orc.CreateBooking(ctx, uint64(i+1), 10, []uint32{1})
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, repository.ErrSeatConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("got %d wins and %d conflicts, want exactly 1 of each", wins, conflicts)
	}
	if got := f.store.booked(10); got != 1 {
		t.Errorf("booked seats: got %d, want 1", got)
	}
}

func TestConcurrentOverlappingSets(t *testing.T) {
	const capacity = 20
	f := newFixture(t, futureEvent(10, capacity, 0))
	ctx := context.Background()

	// Worker i races for the overlapping pair {i+1, i+2}: neighbours can
	// never both win, so winners hold disjoint pairs.
	const workers = capacity - 1
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.orc.CreateBooking(ctx, 1, 10, []uint32{uint32(i + 1), uint32(i + 2)})
		}(i)
	}
	wg.Wait()

	var seatsHeld uint32
	for i, err := range errs {
		switch {
		case err == nil:
			seatsHeld += 2
			if i+1 < workers && errs[i+1] == nil {
				t.Errorf("workers %d and %d overlap on seat %d yet both succeeded", i, i+1, i+2)
			}
		case errors.Is(err, repository.ErrSeatConflict):
		default:
			t.Fatalf("worker %d: unexpected error: %v", i, err)
		}
	}
	if got := f.store.booked(10); got != seatsHeld {
		t.Errorf("ledger says %d booked, winners hold %d seats", got, seatsHeld)
	}
	if got := uint32(f.seats.count(10)); got != seatsHeld {
		t.Errorf("bitmap has %d bits set, winners hold %d seats", got, seatsHeld)
	}
}

func TestConcurrentCapacityRace(t *testing.T) {
	f := newFixture(t, futureEvent(10, 3, 0))
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.orc.CreateBooking(ctx, 1, 10, nil)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, repository.ErrNotEnoughCapacity):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 3 {
		t.Fatalf("got %d winners, want 3", wins)
	}
	if got := f.store.booked(10); got != 3 {
		t.Errorf("booked seats: got %d, want 3", got)
	}
}
