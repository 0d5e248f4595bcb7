package payment

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/nablus1/TurfArena-booking/internal/database"
	"github.com/nablus1/TurfArena-booking/internal/domain"
	"github.com/nablus1/TurfArena-booking/internal/pkg/keylock"
	"github.com/nablus1/TurfArena-booking/internal/pkg/mpesa"
	"github.com/nablus1/TurfArena-booking/internal/repository"

	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	mu       sync.Mutex
	pushes   []mpesa.PushRequest
	pushErr  error
	status   *mpesa.ProviderStatus
	queryErr error
}

func (g *fakeGateway) Initiate(_ context.Context, req mpesa.PushRequest) (*mpesa.PushResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pushErr != nil {
		return nil, g.pushErr
	}
	g.pushes = append(g.pushes, req)
	n := len(g.pushes)
	return &mpesa.PushResult{
		MerchantRequestID: fmt.Sprintf("mr-%d", n),
		CheckoutRequestID: fmt.Sprintf("ws_CO_%d", n),
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

func (g *fakeGateway) QueryStatus(_ context.Context, id string) (*mpesa.ProviderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	st := *g.status
	st.CheckoutRequestID = id
	return &st, nil
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

type recordingNotifier struct {
	mu      sync.Mutex
	results []domain.PaymentStatus
}

func (n *recordingNotifier) NotifyPaymentResult(_ context.Context, d *domain.BookingDetails) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, d.Payment.Status)
	return nil
}

type testEnv struct {
	svc      *Service
	gateway  *fakeGateway
	events   *recordingPublisher
	notifier *recordingNotifier
	hub      *Hub
	slots    *repository.SlotRepository
	users    *repository.UserRepository
	bookings *repository.BookingRepository
	payments *repository.PaymentRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLiteMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, repository.AutoMigrate(db))

	env := &testEnv{
		gateway:  &fakeGateway{},
		events:   &recordingPublisher{},
		notifier: &recordingNotifier{},
		hub:      NewHub(),
		slots:    repository.NewSlotRepository(db),
		users:    repository.NewUserRepository(db),
		bookings: repository.NewBookingRepository(db),
		payments: repository.NewPaymentRepository(db),
	}
	env.svc = NewService(env.payments, env.bookings, env.gateway, keylock.New(), t.Logf)
	env.svc.SetEventPublisher(env.events)
	env.svc.SetNotifier(env.notifier)
	env.svc.SetBroadcaster(env.hub)
	return env
}

// pendingBooking creates a user and a PENDING booking on a fresh slot.
func (e *testEnv) pendingBooking(t *testing.T, n int) (*domain.User, *domain.Booking) {
	t.Helper()
	ctx := context.Background()
	u := &domain.User{
		Name:         "Player",
		Email:        fmt.Sprintf("p%d@example.com", n),
		Phone:        fmt.Sprintf("2547000000%02d", n),
		PasswordHash: "x",
		Role:         domain.RoleUser,
	}
	require.NoError(t, e.users.Create(ctx, u))

	s := &domain.Slot{Date: "2030-07-01", StartTime: fmt.Sprintf("%02d:00", 6+n), EndTime: fmt.Sprintf("%02d:00", 7+n), Price: 2500, Capacity: 1, IsAvailable: true}
	require.NoError(t, e.slots.Create(ctx, s))

	b := &domain.Booking{
		Reference:   fmt.Sprintf("JTA-1-%06d", n),
		EntryToken:  fmt.Sprintf("token%027d", n),
		UserID:      u.ID,
		SlotID:      s.ID,
		PlayerCount: 10,
	}
	require.NoError(t, e.bookings.CreateWithCapacity(ctx, b))
	return u, b
}

func successCallback(checkoutID string) *CallbackResult {
	return &CallbackResult{
		CheckoutRequestID: checkoutID,
		ResultCode:        0,
		ResultDesc:        "The service request is processed successfully.",
		Metadata: Metadata{
			"MpesaReceiptNumber": "NLJ7RT61SV",
			"Amount":             jsonNumber("2500"),
			"PhoneNumber":        jsonNumber("254708374149"),
		},
	}
}

func failedCallback(checkoutID string) *CallbackResult {
	return &CallbackResult{
		CheckoutRequestID: checkoutID,
		ResultCode:        1032,
		ResultDesc:        "Request cancelled by user",
		Metadata:          Metadata{},
	}
}
