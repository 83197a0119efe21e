package offerings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/db"
	"github.com/codinglabe/believe-app/pkg/db/dbtest"
	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/outbox"
	"github.com/codinglabe/believe-app/pkg/pagination"
	"github.com/codinglabe/believe-app/pkg/square"
)

type stubCharger struct {
	calls  []square.PaymentCreateParams
	err    error
	paymID string
}

func (c *stubCharger) CreatePayment(_ context.Context, params square.PaymentCreateParams) (*sq.Payment, error) {
	c.calls = append(c.calls, params)
	if c.err != nil {
		return nil, c.err
	}
	id := c.paymID
	return &sq.Payment{ID: &id}, nil
}

type offeringsFixture struct {
	db      *gorm.DB
	tracker *Tracker
	svc     Service
	charger *stubCharger
}

func newOfferingsFixture(t *testing.T) *offeringsFixture {
	t.Helper()
	conn := dbtest.Open(t, &models.FractionalAsset{}, &models.FractionalOffering{}, &models.FractionalOrder{}, &models.OutboxEvent{})
	logg := logger.Nop()
	repo := NewRepository(conn)
	txRunner := db.FromGorm(conn)
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)

	tracker, err := NewTracker(repo, txRunner, publisher, nil, logg)
	require.NoError(t, err)
	charger := &stubCharger{paymID: "sq_payment_1"}
	svc, err := NewService(Deps{Repo: repo, Tx: txRunner, Outbox: publisher, Tracker: tracker, Charger: charger, Logger: logg})
	require.NoError(t, err)
	return &offeringsFixture{db: conn, tracker: tracker, svc: svc, charger: charger}
}

func (f *offeringsFixture) liveOffering(t *testing.T, shares int64) *models.FractionalOffering {
	t.Helper()
	ctx := context.Background()
	offering, err := f.svc.Create(ctx, CreateOfferingRequest{
		Asset:              &AssetInput{Name: "Community solar farm", AssetType: "energy"},
		Title:              "Solar farm round 1",
		TotalShares:        shares,
		PricePerShareCents: 1000,
		TokenPriceCents:    10,
	})
	require.NoError(t, err)
	live, err := f.svc.Publish(ctx, offering.ID)
	require.NoError(t, err)
	return live
}

func (f *offeringsFixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func TestCreateDerivesOwnership(t *testing.T) {
	f := newOfferingsFixture(t)
	offering := f.liveOffering(t, 10)
	require.Equal(t, enums.OfferingStatusLive, offering.Status)
	require.EqualValues(t, 10, offering.AvailableShares)
	require.Equal(t, "USD", offering.Currency)
	require.True(t, offering.OwnershipPercentage.Valid)
	require.True(t, offering.OwnershipPercentage.Decimal.Equal(decimal.NewFromInt(1)))
}

func TestReserveSharesDecrementsAndSellsOut(t *testing.T) {
	f := newOfferingsFixture(t)
	ctx := context.Background()
	offering := f.liveOffering(t, 3)
	user := uuid.New()

	order, err := f.tracker.ReserveShares(ctx, ReserveRequest{OfferingID: offering.ID, UserID: user, FullShares: 2, TokenUnits: 5})
	require.NoError(t, err)
	require.EqualValues(t, 3, order.UnitsReserved)
	require.EqualValues(t, 2050, order.AmountCents)
	require.Regexp(t, `^FO-\d{8}-[0-9A-F]{8}$`, order.OrderNumber)
	require.Regexp(t, `^TAG-\d{8}-[0-9A-F]{8}$`, order.TagNumber)
	require.False(t, order.PaidAt.IsZero())

	reloaded, err := f.svc.Get(ctx, offering.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, reloaded.AvailableShares)
	require.EqualValues(t, 950, reloaded.TokenBalanceCents)
	require.Equal(t, enums.OfferingStatusLive, reloaded.Status)

	_, err = f.tracker.ReserveShares(ctx, ReserveRequest{OfferingID: offering.ID, UserID: user, FullShares: 1})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientInventory), "no whole shares left: %v", err)

	last, err := f.tracker.ReserveShares(ctx, ReserveRequest{OfferingID: offering.ID, UserID: user, TokenUnits: 95})
	require.NoError(t, err)
	require.Zero(t, last.UnitsReserved)

	reloaded, err = f.svc.Get(ctx, offering.ID)
	require.NoError(t, err)
	require.Zero(t, reloaded.TokenBalanceCents)
	require.Equal(t, enums.OfferingStatusSoldOut, reloaded.Status)
	require.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOfferingSoldOut))

	_, err = f.tracker.ReserveShares(ctx, ReserveRequest{OfferingID: offering.ID, UserID: user, TokenUnits: 1})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeOfferingNotLive), "sold out offerings are not live: %v", err)
}

func TestTokenPurchasesShareOneBrokenShare(t *testing.T) {
	f := newOfferingsFixture(t)
	ctx := context.Background()
	offering := f.liveOffering(t, 5)

	var revenue int64
	for i := 0; i < 6; i++ {
		order, err := f.tracker.ReserveShares(ctx, ReserveRequest{OfferingID: offering.ID, UserID: uuid.New(), TokenUnits: 1})
		require.NoError(t, err)
		revenue += int64(order.AmountCents)
	}
	require.EqualValues(t, 60, revenue)

	reloaded, err := f.svc.Get(ctx, offering.ID)
	require.NoError(t, err)
	require.EqualValues(t, 4, reloaded.AvailableShares)
	require.EqualValues(t, 940, reloaded.TokenBalanceCents)
	require.Equal(t, enums.OfferingStatusLive, reloaded.Status)

	var reserved int64
	require.NoError(t, f.db.Model(&models.FractionalOrder{}).
		Where("offering_id = ?", offering.ID).
		Select("COALESCE(SUM(units_reserved), 0)").
		Scan(&reserved).Error)
	require.EqualValues(t, 1, reserved)
}

func TestReserveSharesRejectsOversell(t *testing.T) {
	f := newOfferingsFixture(t)
	offering := f.liveOffering(t, 2)

	_, err := f.tracker.ReserveShares(context.Background(), ReserveRequest{OfferingID: offering.ID, UserID: uuid.New(), FullShares: 3})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientInventory))

	reloaded, err := f.svc.Get(context.Background(), offering.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, reloaded.AvailableShares)
	require.Zero(t, f.count(t, &models.FractionalOrder{}, "offering_id = ?", offering.ID))
}

func TestReserveSharesChecksWindow(t *testing.T) {
	f := newOfferingsFixture(t)
	ctx := context.Background()
	offering := f.liveOffering(t, 5)

	future := time.Now().UTC().Add(time.Hour)
	_, err := f.svc.Update(ctx, offering.ID, UpdateOfferingRequest{GoLiveAt: &future})
	require.NoError(t, err)
	_, err = f.tracker.ReserveShares(ctx, ReserveRequest{OfferingID: offering.ID, UserID: uuid.New(), FullShares: 1})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeOfferingNotLive))

	draft, err := f.svc.Create(ctx, CreateOfferingRequest{AssetID: &offering.AssetID, Title: "Draft", TotalShares: 5, PricePerShareCents: 100})
	require.NoError(t, err)
	_, err = f.tracker.ReserveShares(ctx, ReserveRequest{OfferingID: draft.ID, UserID: uuid.New(), FullShares: 1})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeOfferingNotLive))
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	f := newOfferingsFixture(t)
	const available = 3
	const buyers = 8
	offering := f.liveOffering(t, available)

	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.tracker.ReserveShares(context.Background(), ReserveRequest{
				OfferingID: offering.ID,
				UserID:     uuid.New(),
				FullShares: 1,
			})
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
		require.True(t,
			pkgerrors.HasCode(err, pkgerrors.CodeInsufficientInventory) || pkgerrors.HasCode(err, pkgerrors.CodeOfferingNotLive),
			"unexpected error %v", err)
	}
	require.Equal(t, available, succeeded)
	require.EqualValues(t, available, f.count(t, &models.FractionalOrder{}, "offering_id = ?", offering.ID))

	reloaded, err := f.svc.Get(context.Background(), offering.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, reloaded.AvailableShares)
	require.Equal(t, enums.OfferingStatusSoldOut, reloaded.Status)
}

func TestUpdateOnlyChangesSharesWhileDraft(t *testing.T) {
	f := newOfferingsFixture(t)
	ctx := context.Background()
	offering := f.liveOffering(t, 5)

	shares := int64(50)
	_, err := f.svc.Update(ctx, offering.ID, UpdateOfferingRequest{TotalShares: &shares})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	title := "Renamed"
	pct := decimal.RequireFromString("3.25")
	updated, err := f.svc.Update(ctx, offering.ID, UpdateOfferingRequest{Title: &title, OwnershipPercentage: &pct})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Title)
	require.True(t, updated.OwnershipPercentage.Decimal.Equal(pct))
	require.EqualValues(t, 5, updated.TotalShares)
}

func TestPublishAndCloseTransitions(t *testing.T) {
	f := newOfferingsFixture(t)
	ctx := context.Background()
	offering := f.liveOffering(t, 5)

	_, err := f.svc.Publish(ctx, offering.ID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))

	closed, err := f.svc.Close(ctx, offering.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OfferingStatusClosed, closed.Status)

	_, err = f.svc.Close(ctx, offering.ID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))
	require.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventOfferingClosed))
}

func TestCloseExpired(t *testing.T) {
	f := newOfferingsFixture(t)
	ctx := context.Background()
	offering := f.liveOffering(t, 5)
	open := f.liveOffering(t, 5)

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, f.db.Model(&models.FractionalOffering{}).Where("id = ?", offering.ID).Update("close_at", past).Error)

	closed, err := f.svc.CloseExpired(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	reloaded, err := f.svc.Get(ctx, open.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OfferingStatusLive, reloaded.Status)
}

func TestPurchaseChargesCardThenReserves(t *testing.T) {
	f := newOfferingsFixture(t)
	ctx := context.Background()
	offering := f.liveOffering(t, 5)
	user := uuid.New()

	order, err := f.svc.Purchase(ctx, PurchaseRequest{
		OfferingID:    offering.ID,
		UserID:        user,
		FullShares:    2,
		PaymentMethod: enums.PaymentMethodCard,
		SourceID:      "cnon:card-ok",
		RequestID:     "req-1",
	})
	require.NoError(t, err)
	require.Len(t, f.charger.calls, 1)
	require.EqualValues(t, 2000, f.charger.calls[0].AmountCents)
	require.Equal(t, "req-1", f.charger.calls[0].IdempotencyKey)
	require.NotNil(t, order.PaymentIntentID)
	require.Equal(t, "sq_payment_1", *order.PaymentIntentID)

	page, err := f.svc.ListOrders(ctx, user, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
}

func TestPurchaseStopsOnChargeFailure(t *testing.T) {
	f := newOfferingsFixture(t)
	offering := f.liveOffering(t, 5)
	f.charger.err = pkgerrors.Wrap(pkgerrors.CodeValidation, errors.New("CARD_DECLINED"), "square create payment failed")

	_, err := f.svc.Purchase(context.Background(), PurchaseRequest{
		OfferingID:    offering.ID,
		UserID:        uuid.New(),
		FullShares:    1,
		PaymentMethod: enums.PaymentMethodCard,
		SourceID:      "cnon:declined",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	require.Zero(t, f.count(t, &models.FractionalOrder{}, "offering_id = ?", offering.ID))
}

func TestPurchaseRejectsClosedOfferingBeforeCharging(t *testing.T) {
	f := newOfferingsFixture(t)
	ctx := context.Background()
	offering := f.liveOffering(t, 5)
	_, err := f.svc.Close(ctx, offering.ID)
	require.NoError(t, err)

	_, err = f.svc.Purchase(ctx, PurchaseRequest{
		OfferingID:    offering.ID,
		UserID:        uuid.New(),
		FullShares:    1,
		PaymentMethod: enums.PaymentMethodCard,
		SourceID:      "cnon:card-ok",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeOfferingNotLive))
	require.Empty(t, f.charger.calls)
}

func TestPurchaseRequiresCardSource(t *testing.T) {
	f := newOfferingsFixture(t)
	ctx := context.Background()
	offering := f.liveOffering(t, 5)

	_, err := f.svc.Purchase(ctx, PurchaseRequest{
		OfferingID:    offering.ID,
		UserID:        uuid.New(),
		FullShares:    3,
		PaymentMethod: enums.PaymentMethodCard,
		SourceID:      "  ",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "missing source must be rejected: %v", err)
	require.Empty(t, f.charger.calls)
	require.Zero(t, f.count(t, &models.FractionalOrder{}, "offering_id = ?", offering.ID))

	reloaded, err := f.svc.Get(ctx, offering.ID)
	require.NoError(t, err)
	require.EqualValues(t, 5, reloaded.AvailableShares)
}

func TestPurchaseRejectsBelievePoints(t *testing.T) {
	f := newOfferingsFixture(t)
	ctx := context.Background()
	offering := f.liveOffering(t, 5)

	_, err := f.svc.Purchase(ctx, PurchaseRequest{
		OfferingID:    offering.ID,
		UserID:        uuid.New(),
		FullShares:    2,
		PaymentMethod: enums.PaymentMethodBelievePoints,
		SourceID:      "cnon:card-ok",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "points cannot settle offerings: %v", err)
	require.Empty(t, f.charger.calls)
	require.Zero(t, f.count(t, &models.FractionalOrder{}, "offering_id = ?", offering.ID))
}

func TestPurchaseWithoutChargerFails(t *testing.T) {
	f := newOfferingsFixture(t)
	offering := f.liveOffering(t, 5)
	logg := logger.Nop()
	svc, err := NewService(Deps{
		Repo:    NewRepository(f.db),
		Tx:      db.FromGorm(f.db),
		Outbox:  outbox.NewService(outbox.NewRepository(f.db), logg),
		Tracker: f.tracker,
		Logger:  logg,
	})
	require.NoError(t, err)

	_, err = svc.Purchase(context.Background(), PurchaseRequest{
		OfferingID:    offering.ID,
		UserID:        uuid.New(),
		FullShares:    1,
		PaymentMethod: enums.PaymentMethodCard,
		SourceID:      "cnon:card-ok",
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	require.Zero(t, f.count(t, &models.FractionalOrder{}, "offering_id = ?", offering.ID))
}

func TestListHidesDraftsFromPublic(t *testing.T) {
	f := newOfferingsFixture(t)
	ctx := context.Background()
	live := f.liveOffering(t, 5)
	_, err := f.svc.Create(ctx, CreateOfferingRequest{AssetID: &live.AssetID, Title: "Draft", TotalShares: 5, PricePerShareCents: 100})
	require.NoError(t, err)

	public, err := f.svc.List(ctx, ListParams{PublicOnly: true})
	require.NoError(t, err)
	require.Len(t, public.Items, 1)
	require.Equal(t, live.ID, public.Items[0].ID)

	all, err := f.svc.List(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
}
