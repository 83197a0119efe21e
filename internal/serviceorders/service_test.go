package serviceorders

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/internal/catalog"
	"github.com/codinglabe/believe-app/internal/fees"
	"github.com/codinglabe/believe-app/internal/notifications"
	"github.com/codinglabe/believe-app/pkg/db"
	"github.com/codinglabe/believe-app/pkg/db/dbtest"
	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/outbox"
	"github.com/codinglabe/believe-app/pkg/types"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	to     []uuid.UUID
}

func (n *recordingNotifier) Notify(_ context.Context, event notifications.Event, recipient notifications.Recipient) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.to = append(n.to, recipient.UserID)
}

func (n *recordingNotifier) last() (notifications.Event, uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[len(n.events)-1], n.to[len(n.to)-1]
}

type fixture struct {
	db       *gorm.DB
	svc      Service
	notifier *recordingNotifier
	seller   uuid.UUID
	buyer    uuid.UUID
	listing  *models.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t, &models.Service{}, &models.ServicePackage{}, &models.ServiceOrder{}, &models.OutboxEvent{})
	logg := logger.Nop()

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), logg)
	require.NoError(t, err)
	calc, err := fees.NewCalculator(decimal.RequireFromString("0.10"), decimal.Zero)
	require.NoError(t, err)

	seller := uuid.New()
	listing, err := catalogSvc.Create(context.Background(), catalog.CreateServiceRequest{
		SellerID: seller,
		Title:    "Grant writing",
		Packages: []catalog.PackageInput{{Name: "Basic", PriceCents: 10000, DeliveryDays: 5}},
	})
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	svc, err := NewService(Deps{
		Repo:     NewRepository(conn),
		Tx:       db.FromGorm(conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logg),
		Listings: catalogSvc,
		Fees:     calc,
		Notifier: notifier,
		Logger:   logg,
	})
	require.NoError(t, err)

	return &fixture{db: conn, svc: svc, notifier: notifier, seller: seller, buyer: uuid.New(), listing: listing}
}

func (f *fixture) createOrder(t *testing.T, method enums.PaymentMethod) *models.ServiceOrder {
	t.Helper()
	order, err := f.svc.Create(context.Background(), CreateOrderRequest{
		BuyerID:       f.buyer,
		ServiceID:     f.listing.ID,
		PackageID:     f.listing.Packages[0].ID,
		Requirements:  "Need a two page grant summary",
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) paidOrder(t *testing.T) *models.ServiceOrder {
	t.Helper()
	order := f.createOrder(t, enums.PaymentMethodCard)
	paid, err := f.svc.MarkPaid(context.Background(), MarkPaidRequest{OrderID: order.ID, Reference: "sq_pay_1"})
	require.NoError(t, err)
	return paid
}

func (f *fixture) outboxCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

// reload reads the stored row into a fresh value so gorm adds no primary key
// condition from a previous lookup.
func (f *fixture) reload(t *testing.T, id uuid.UUID) models.ServiceOrder {
	t.Helper()
	var order models.ServiceOrder
	require.NoError(t, f.db.First(&order, "id = ?", id).Error)
	return order
}

func deliverables() types.Deliverables {
	return types.Deliverables{{Name: "summary.pdf", URL: "https://files.example.org/summary.pdf", Type: enums.DeliverableTypeDocument}}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, pkgerrors.HasCode(err, code), "expected %s, got %v", code, err)
}

func TestCreateFreezesFeeBreakdown(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, enums.PaymentMethodCard)

	require.Equal(t, enums.ServiceOrderStatusPending, order.Status)
	require.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.Regexp(t, `^SO-\d{8}-[0-9A-F]{8}$`, order.OrderNumber)
	require.EqualValues(t, 10000, order.AmountCents)
	require.EqualValues(t, 1000, order.PlatformFeeCents)
	require.EqualValues(t, 300, order.TransactionFeeCents)
	require.EqualValues(t, 8700, order.SellerEarningsCents)
	require.Equal(t, order.AmountCents,
		order.PlatformFeeCents+order.TransactionFeeCents+order.SalesTaxCents+order.SellerEarningsCents)
	require.EqualValues(t, 1, f.outboxCount(t, enums.EventServiceOrderCreated))

	event, to := f.notifier.last()
	require.Equal(t, string(enums.EventServiceOrderCreated), event.Name)
	require.Equal(t, f.seller, to)
}

func TestCreateRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateOrderRequest{BuyerID: f.buyer, ServiceID: f.listing.ID})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Create(ctx, CreateOrderRequest{
		BuyerID:       f.seller,
		ServiceID:     f.listing.ID,
		PackageID:     f.listing.Packages[0].ID,
		Requirements:  "Ordering from myself again",
		PaymentMethod: enums.PaymentMethodCard,
	})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.Create(ctx, CreateOrderRequest{
		BuyerID:       f.buyer,
		ServiceID:     f.listing.ID,
		PackageID:     f.listing.Packages[0].ID,
		Requirements:  "Paying with seashells please",
		PaymentMethod: enums.PaymentMethod("seashells"),
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestHappyPathToCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.paidOrder(t)

	approved, err := f.svc.Approve(ctx, TransitionRequest{OrderID: order.ID, ActorID: f.seller})
	require.NoError(t, err)
	require.Equal(t, enums.ServiceOrderStatusInProgress, approved.Status)
	_, to := f.notifier.last()
	require.Equal(t, f.buyer, to)

	delivered, err := f.svc.Deliver(ctx, TransitionRequest{OrderID: order.ID, ActorID: f.seller, Deliverables: deliverables()})
	require.NoError(t, err)
	require.Equal(t, enums.ServiceOrderStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)
	require.Len(t, delivered.Deliverables, 1)
	require.Equal(t, "summary.pdf", delivered.Deliverables[0].Name)

	completed, err := f.svc.AcceptDelivery(ctx, TransitionRequest{OrderID: order.ID, ActorID: f.buyer})
	require.NoError(t, err)
	require.Equal(t, enums.ServiceOrderStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	require.Equal(t, order.SellerEarningsCents, completed.SellerEarningsCents)

	event, to := f.notifier.last()
	require.Equal(t, string(enums.EventServiceOrderCompleted), event.Name)
	require.Equal(t, f.seller, to)
	require.EqualValues(t, 1, f.outboxCount(t, enums.EventServiceOrderCompleted))
}

func TestApproveRequiresPayment(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, enums.PaymentMethodBelievePoints)

	_, err := f.svc.Approve(context.Background(), TransitionRequest{OrderID: order.ID, ActorID: f.seller})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	var reloaded models.ServiceOrder
	require.NoError(t, f.db.First(&reloaded, "id = ?", order.ID).Error)
	require.Equal(t, enums.ServiceOrderStatusPending, reloaded.Status)
	require.EqualValues(t, 0, f.outboxCount(t, enums.EventServiceOrderApproved))
}

func TestRepeatedTransitionIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.paidOrder(t)

	_, err := f.svc.Approve(ctx, TransitionRequest{OrderID: order.ID, ActorID: f.seller})
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, TransitionRequest{OrderID: order.ID, ActorID: f.seller})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
	require.EqualValues(t, 1, f.outboxCount(t, enums.EventServiceOrderApproved))

	_, err = f.svc.MarkPaid(ctx, MarkPaidRequest{OrderID: order.ID, Reference: "again"})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
}

func TestWrongActorIsUnauthorized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.paidOrder(t)
	stranger := uuid.New()

	_, err := f.svc.Approve(ctx, TransitionRequest{OrderID: order.ID, ActorID: f.buyer})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	_, err = f.svc.Cancel(ctx, TransitionRequest{OrderID: order.ID, ActorID: f.seller})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	_, err = f.svc.Reject(ctx, TransitionRequest{OrderID: order.ID, ActorID: stranger})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = f.svc.Get(ctx, Viewer{UserID: stranger}, order.ID)
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	detail, err := f.svc.Get(ctx, Viewer{UserID: stranger, IsAdmin: true}, order.ID)
	require.NoError(t, err)
	require.Nil(t, detail.ViewerRole)
}

func TestCancelOnlyWhilePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.createOrder(t, enums.PaymentMethodCard)
	reason := "  changed my mind  "
	cancelled, err := f.svc.Cancel(ctx, TransitionRequest{OrderID: pending.ID, ActorID: f.buyer, Reason: &reason})
	require.NoError(t, err)
	require.Equal(t, enums.ServiceOrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	require.Equal(t, "changed my mind", *cancelled.CancellationReason)

	active := f.paidOrder(t)
	_, err = f.svc.Approve(ctx, TransitionRequest{OrderID: active.ID, ActorID: f.seller})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, TransitionRequest{OrderID: active.ID, ActorID: f.buyer})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	rejected, err := f.svc.Reject(ctx, TransitionRequest{OrderID: active.ID, ActorID: f.seller})
	require.NoError(t, err)
	require.Equal(t, enums.ServiceOrderStatusCancelled, rejected.Status)
}

func TestDeliverRequiresDeliverables(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.paidOrder(t)
	_, err := f.svc.Approve(ctx, TransitionRequest{OrderID: order.ID, ActorID: f.seller})
	require.NoError(t, err)

	_, err = f.svc.Deliver(ctx, TransitionRequest{OrderID: order.ID, ActorID: f.seller})
	requireCode(t, err, pkgerrors.CodeValidation)

	bad := types.Deliverables{{Name: "x", URL: "not a url", Type: enums.DeliverableTypeLink}}
	_, err = f.svc.Deliver(ctx, TransitionRequest{OrderID: order.ID, ActorID: f.seller, Deliverables: bad})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestOutOfStateTransitionsLeaveOrderUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.paidOrder(t)
	_, err := f.svc.Deliver(ctx, TransitionRequest{OrderID: pending.ID, ActorID: f.seller, Deliverables: deliverables()})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
	_, err = f.svc.Deliver(ctx, TransitionRequest{OrderID: pending.ID, ActorID: f.seller})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
	stored := f.reload(t, pending.ID)
	require.Equal(t, enums.ServiceOrderStatusPending, stored.Status)
	require.Nil(t, stored.DeliveredAt)
	require.Empty(t, stored.Deliverables)

	_, err = f.svc.Approve(ctx, TransitionRequest{OrderID: pending.ID, ActorID: f.seller})
	require.NoError(t, err)
	delivered, err := f.svc.Deliver(ctx, TransitionRequest{OrderID: pending.ID, ActorID: f.seller, Deliverables: deliverables()})
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, TransitionRequest{OrderID: delivered.ID, ActorID: f.seller})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
	_, err = f.svc.Deliver(ctx, TransitionRequest{OrderID: delivered.ID, ActorID: f.seller})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)
	_, err = f.svc.Cancel(ctx, TransitionRequest{OrderID: delivered.ID, ActorID: f.buyer})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	stored = f.reload(t, delivered.ID)
	require.Equal(t, enums.ServiceOrderStatusDelivered, stored.Status)
	require.Nil(t, stored.CancelledAt)
	require.Nil(t, stored.CancellationReason)
	require.Len(t, stored.Deliverables, 1)
	require.EqualValues(t, 0, f.outboxCount(t, enums.EventServiceOrderRejected))
	require.EqualValues(t, 1, f.outboxCount(t, enums.EventServiceOrderDelivered))
}

func TestConcurrentApproveAppliesOnce(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder(t)

	const workers = 5
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Approve(context.Background(), TransitionRequest{OrderID: order.ID, ActorID: f.seller})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		requireCode(t, err, pkgerrors.CodeInvalidTransition)
	}
	require.Equal(t, 1, succeeded)
	require.EqualValues(t, 1, f.outboxCount(t, enums.EventServiceOrderApproved))
}

func TestGetListsAvailableOperations(t *testing.T) {
	f := newFixture(t)
	order := f.paidOrder(t)

	detail, err := f.svc.Get(context.Background(), Viewer{UserID: f.seller}, order.ID)
	require.NoError(t, err)
	require.Equal(t, PartySeller, *detail.ViewerRole)
	require.Equal(t, []Operation{OpApprove, OpReject}, detail.Operations)

	detail, err = f.svc.Get(context.Background(), Viewer{UserID: f.buyer}, order.ID)
	require.NoError(t, err)
	require.Equal(t, []Operation{OpCancel}, detail.Operations)
}

func TestListByView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.createOrder(t, enums.PaymentMethodCard)
	}

	page, err := f.svc.List(ctx, ListParams{ActorID: f.buyer, View: PartyBuyer, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	rest, err := f.svc.List(ctx, ListParams{ActorID: f.buyer, View: PartyBuyer, Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	require.NotEqual(t, page.Items[0].ID, rest.Items[0].ID)

	selling, err := f.svc.List(ctx, ListParams{ActorID: f.seller, View: PartySeller})
	require.NoError(t, err)
	require.Len(t, selling.Items, 3)

	status := enums.ServiceOrderStatusCompleted
	none, err := f.svc.List(ctx, ListParams{ActorID: f.seller, View: PartySeller, Status: &status})
	require.NoError(t, err)
	require.Empty(t, none.Items)
}

func TestExpireUnpaidSkipsPaidOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unpaid := f.createOrder(t, enums.PaymentMethodCard)
	paid := f.paidOrder(t)

	cutoff := f.svc.(*service).now().Add(1)
	expired, err := f.svc.ExpireUnpaid(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	require.Equal(t, enums.ServiceOrderStatusCancelled, f.reload(t, unpaid.ID).Status)
	require.Equal(t, enums.ServiceOrderStatusPending, f.reload(t, paid.ID).Status)

	expired, err = f.svc.ExpireUnpaid(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Zero(t, expired)
}
