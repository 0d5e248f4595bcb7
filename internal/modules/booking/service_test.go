package booking

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/nablus1/TurfArena-booking/internal/database"
	"github.com/nablus1/TurfArena-booking/internal/domain"
	"github.com/nablus1/TurfArena-booking/internal/pkg/authz"
	"github.com/nablus1/TurfArena-booking/internal/pkg/keylock"
	"github.com/nablus1/TurfArena-booking/internal/pkg/mq"
	"github.com/nablus1/TurfArena-booking/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc    *Service
	slots  *repository.SlotRepository
	users  *repository.UserRepository
	events *recordingPublisher
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLiteMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))

	env := &testEnv{
		slots:  repository.NewSlotRepository(db),
		users:  repository.NewUserRepository(db),
		events: &recordingPublisher{},
	}
	env.svc = NewService(repository.NewBookingRepository(db), keylock.New())
	env.svc.SetEventPublisher(env.events)
	return env
}

func (e *testEnv) slot(t *testing.T, capacity int) *domain.Slot {
	t.Helper()
	s := &domain.Slot{Date: "2030-06-01", StartTime: "18:00", EndTime: "19:00", Price: 2500, Capacity: capacity, IsAvailable: true}
	require.NoError(t, e.slots.Create(context.Background(), s))
	return s
}

func (e *testEnv) user(t *testing.T, email, phone string) *domain.User {
	t.Helper()
	u := &domain.User{Name: "Player", Email: email, Phone: phone, PasswordHash: "x", Role: domain.RoleUser}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func TestCreate_PendingWithCodes(t *testing.T) {
	env := newTestEnv(t)
	slot := env.slot(t, 1)
	u := env.user(t, "a@example.com", "254700000001")

	b, err := env.svc.Create(context.Background(), u.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: 10, Notes: "  five a side "})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, 2500.0, b.TotalAmount)
	assert.Equal(t, "five a side", b.Notes)
	assert.Regexp(t, regexp.MustCompile(`^JTA-\d{13}-[0-9A-F]{6}$`), b.Reference)
	assert.Len(t, b.EntryToken, 32)
	assert.Equal(t, []string{mq.KeyBookingCreated}, env.events.keys)
}

func TestCreate_PlayerCountBoundaries(t *testing.T) {
	env := newTestEnv(t)
	slot := env.slot(t, 5)
	u := env.user(t, "a@example.com", "254700000001")

	for _, n := range []int{0, 23} {
		_, err := env.svc.Create(context.Background(), u.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: n})
		assert.ErrorIs(t, err, ErrValidation, "playerCount=%d", n)
	}
	for _, n := range []int{1, 22} {
		_, err := env.svc.Create(context.Background(), u.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: n})
		assert.NoError(t, err, "playerCount=%d", n)
	}
}

func TestCreate_SlotErrors(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "a@example.com", "254700000001")
	ctx := context.Background()

	_, err := env.svc.Create(ctx, u.ID, CreateBookingRequest{SlotID: 404, PlayerCount: 5})
	assert.ErrorIs(t, err, ErrSlotNotFound)

	slot := env.slot(t, 1)
	_, err = env.slots.SetAvailability(ctx, slot.ID, false)
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, u.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: 5})
	assert.ErrorIs(t, err, ErrSlotUnavailable)
}

func TestCreate_ConcurrentRequestsRespectCapacity(t *testing.T) {
	env := newTestEnv(t)
	slot := env.slot(t, 2)
	u := env.user(t, "a@example.com", "254700000001")

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Create(context.Background(), u.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: 8})
		}(i)
	}
	wg.Wait()

	created, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrSlotFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, created)
	assert.Equal(t, n-2, full)
}

func TestCancel_OwnerOnlyWhilePending(t *testing.T) {
	env := newTestEnv(t)
	slot := env.slot(t, 1)
	owner := env.user(t, "a@example.com", "254700000001")
	other := env.user(t, "b@example.com", "254700000002")
	ctx := context.Background()

	b, err := env.svc.Create(ctx, owner.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: 5})
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, b.ID, authz.Actor{UserID: other.ID, Role: domain.RoleUser})
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := env.svc.Cancel(ctx, b.ID, authz.Actor{UserID: owner.ID, Role: domain.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	_, err = env.svc.Cancel(ctx, b.ID, authz.Actor{UserID: owner.ID, Role: domain.RoleUser})
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.ErrorIs(t, err, ErrForbidden)

	// capacity is free again
	_, err = env.svc.Create(ctx, other.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: 5})
	assert.NoError(t, err)
}

func TestCancel_ConfirmedBookingIsForbiddenForOwner(t *testing.T) {
	env := newTestEnv(t)
	slot := env.slot(t, 1)
	owner := env.user(t, "a@example.com", "254700000001")
	ctx := context.Background()
	admin := authz.Actor{UserID: 900, Role: domain.RoleAdmin}

	b, err := env.svc.Create(ctx, owner.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: 5})
	require.NoError(t, err)
	_, err = env.svc.SetStatus(ctx, b.ID, admin, "CONFIRMED")
	require.NoError(t, err)

	_, err = env.svc.Cancel(ctx, b.ID, authz.Actor{UserID: owner.ID, Role: domain.RoleUser})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := env.svc.Get(ctx, b.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Booking.Status)
}

func TestCancel_StaffOwnerMaySetAnyStatus(t *testing.T) {
	env := newTestEnv(t)
	slot := env.slot(t, 1)
	staff := env.user(t, "staff@example.com", "254700000009")
	ctx := context.Background()
	actor := authz.Actor{UserID: staff.ID, Role: domain.RoleAdmin}

	b, err := env.svc.Create(ctx, staff.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: 5})
	require.NoError(t, err)
	_, err = env.svc.SetStatus(ctx, b.ID, actor, "CONFIRMED")
	require.NoError(t, err)

	cancelled, err := env.svc.Cancel(ctx, b.ID, actor)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Status)
}

func TestSetStatus_ReactivationRespectsCapacity(t *testing.T) {
	env := newTestEnv(t)
	slot := env.slot(t, 1)
	first := env.user(t, "a@example.com", "254700000001")
	second := env.user(t, "b@example.com", "254700000002")
	ctx := context.Background()
	admin := authz.Actor{UserID: 900, Role: domain.RoleAdmin}

	a, err := env.svc.Create(ctx, first.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: 5})
	require.NoError(t, err)
	_, err = env.svc.Cancel(ctx, a.ID, authz.Actor{UserID: first.ID, Role: domain.RoleUser})
	require.NoError(t, err)
	b, err := env.svc.Create(ctx, second.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: 5})
	require.NoError(t, err)

	for _, status := range []string{"CONFIRMED", "PENDING"} {
		_, err = env.svc.SetStatus(ctx, a.ID, admin, status)
		assert.ErrorIs(t, err, ErrSlotFull, status)
	}

	all, err := env.svc.ListAll(ctx, ListQuery{Limit: 10})
	require.NoError(t, err)
	active := 0
	for _, d := range all.Bookings {
		if d.Booking.Status.Active() {
			active++
		}
	}
	assert.Equal(t, 1, active)

	_, err = env.svc.SetStatus(ctx, b.ID, admin, "CANCELLED")
	require.NoError(t, err)
	restored, err := env.svc.SetStatus(ctx, a.ID, admin, "CONFIRMED")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, restored.Status)
}

func TestStaffOperations(t *testing.T) {
	env := newTestEnv(t)
	slot := env.slot(t, 1)
	owner := env.user(t, "a@example.com", "254700000001")
	ctx := context.Background()
	admin := authz.Actor{UserID: 900, Role: domain.RoleAdmin}
	superAdmin := authz.Actor{UserID: 901, Role: domain.RoleSuperAdmin}

	b, err := env.svc.Create(ctx, owner.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: 5})
	require.NoError(t, err)

	d, err := env.svc.Get(ctx, b.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, owner.Email, d.User.Email)

	_, err = env.svc.SetStatus(ctx, b.ID, admin, "bogus")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	updated, err := env.svc.SetStatus(ctx, b.ID, admin, "no_show")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingNoShow, updated.Status)

	_, err = env.svc.SetStatus(ctx, b.ID, authz.Actor{UserID: owner.ID, Role: domain.RoleUser}, "CONFIRMED")
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, env.svc.Delete(ctx, b.ID, admin), ErrForbidden)
	require.NoError(t, env.svc.Delete(ctx, b.ID, superAdmin))
	assert.ErrorIs(t, env.svc.Delete(ctx, b.ID, superAdmin), ErrNotFound)

	_, err = env.svc.Get(ctx, b.ID, admin)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_PagingAndFilters(t *testing.T) {
	env := newTestEnv(t)
	slot := env.slot(t, 10)
	u := env.user(t, "a@example.com", "254700000001")
	other := env.user(t, "b@example.com", "254700000002")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.svc.Create(ctx, u.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: 5})
		require.NoError(t, err)
	}
	_, err := env.svc.Create(ctx, other.ID, CreateBookingRequest{SlotID: slot.ID, PlayerCount: 5})
	require.NoError(t, err)

	mine, err := env.svc.ListMine(ctx, u.ID, ListQuery{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), mine.Total)
	assert.Len(t, mine.Bookings, 2)
	assert.Equal(t, 1, mine.Page)

	all, err := env.svc.ListAll(ctx, ListQuery{Status: "pending", Sort: "oldest", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Total)
	assert.Equal(t, maxLimit, all.Limit)
	assert.Equal(t, u.ID, all.Bookings[0].Booking.UserID)

	_, err = env.svc.ListAll(ctx, ListQuery{Status: "LOST"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = env.svc.ListAll(ctx, ListQuery{Sort: "random"})
	assert.ErrorIs(t, err, ErrValidation)
}

type collidingRepo struct {
	BookingRepository
	calls int
}

func (r *collidingRepo) CreateWithCapacity(_ context.Context, b *domain.Booking) error {
	r.calls++
	if r.calls < 3 {
		return errors.Join(repository.ErrDuplicate, errors.New("UNIQUE constraint failed: bookings.reference"))
	}
	b.ID = 77
	b.Status = domain.BookingPending
	return nil
}

func TestCreate_RetriesCodeCollisions(t *testing.T) {
	repo := &collidingRepo{}
	svc := NewService(repo, nil)

	b, err := svc.Create(context.Background(), 1, CreateBookingRequest{SlotID: 3, PlayerCount: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(77), b.ID)
	assert.Equal(t, 3, repo.calls)
}
