package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/codinglabe/believe-app/pkg/db/dbtest"
	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	db := dbtest.Open(t, &models.Service{}, &models.ServicePackage{})
	svc, err := NewService(NewRepository(db), logger.Nop())
	require.NoError(t, err)
	return svc
}

func validRequest(seller uuid.UUID) CreateServiceRequest {
	return CreateServiceRequest{
		SellerID: seller,
		Title:    "Logo design",
		Category: "design",
		Packages: []PackageInput{
			{Name: "Premium", PriceCents: 25000, DeliveryDays: 7},
			{Name: "Basic", PriceCents: 5000, DeliveryDays: 3},
		},
	}
}

func TestCreateAndListing(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := uuid.New()

	created, err := svc.Create(ctx, validRequest(seller))
	require.NoError(t, err)
	require.Equal(t, enums.ServiceStatusActive, created.Status)
	require.Len(t, created.Packages, 2)

	loaded, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Basic", loaded.Packages[0].Name, "packages ordered by price")

	listing, pkg, err := svc.Listing(ctx, created.ID, loaded.Packages[1].ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, listing.ID)
	require.EqualValues(t, 25000, pkg.PriceCents)

	_, _, err = svc.Listing(ctx, created.ID, uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = svc.Get(ctx, uuid.New())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	req := validRequest(uuid.New())
	req.Packages = nil
	_, err := svc.Create(context.Background(), req)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	req = validRequest(uuid.New())
	req.Packages[0].PriceCents = 0
	_, err = svc.Create(context.Background(), req)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	seller := uuid.New()
	created, err := svc.Create(ctx, validRequest(seller))
	require.NoError(t, err)

	err = svc.SetStatus(ctx, SetStatusRequest{SellerID: uuid.New(), ServiceID: created.ID, Status: enums.ServiceStatusPaused})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))

	require.NoError(t, svc.SetStatus(ctx, SetStatusRequest{SellerID: seller, ServiceID: created.ID, Status: enums.ServiceStatusPaused}))

	_, _, err = svc.Listing(ctx, created.ID, created.Packages[0].ID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "paused services cannot be ordered")

	err = svc.SetStatus(ctx, SetStatusRequest{SellerID: seller, ServiceID: created.ID, Status: "archived"})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
