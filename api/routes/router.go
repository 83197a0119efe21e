package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codinglabe/believe-app/api/controllers"
	webhookcontrollers "github.com/codinglabe/believe-app/api/controllers/webhooks"
	"github.com/codinglabe/believe-app/api/middleware"
	"github.com/codinglabe/believe-app/internal/catalog"
	"github.com/codinglabe/believe-app/internal/chat"
	"github.com/codinglabe/believe-app/internal/dashboard"
	"github.com/codinglabe/believe-app/internal/notifications"
	"github.com/codinglabe/believe-app/internal/offerings"
	"github.com/codinglabe/believe-app/internal/reviews"
	"github.com/codinglabe/believe-app/internal/serviceorders"
	"github.com/codinglabe/believe-app/internal/users"
	"github.com/codinglabe/believe-app/internal/verification"
	"github.com/codinglabe/believe-app/pkg/config"
	"github.com/codinglabe/believe-app/pkg/logger"
	pkgredis "github.com/codinglabe/believe-app/pkg/redis"
)

// redisStore is the Redis surface the HTTP middleware needs. *redis.Client
// satisfies it.
type redisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type squareVerifier interface {
	VerifyWebhook(body []byte, signature string) bool
}

// Deps carries everything the router mounts. Nil services answer with an
// internal error instead of panicking.
type Deps struct {
	Redis   redisStore
	Health  map[string]controllers.Pinger
	Metrics prometheus.Gatherer
	Policy  middleware.PolicyChecker

	Users         users.Service
	Catalog       catalog.Service
	Orders        serviceorders.Service
	Chat          chat.Service
	Reviews       reviews.Service
	Dashboard     dashboard.Service
	Notifications notifications.Service
	Offerings     offerings.Service
	Verification  verification.Service

	SquareWebhook  webhookcontrollers.SquareWebhookService
	SquareVerifier squareVerifier
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOriginList()),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy("login", cfg.RateLimit.Window,
		cfg.RateLimit.LoginIPLimit, cfg.RateLimit.LoginEmailLimit)
	registerPolicy := middleware.NewAuthRateLimitPolicy("register", cfg.RateLimit.Window,
		cfg.RateLimit.RegisterIPLimit, cfg.RateLimit.RegisterEmailLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Health))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/register", controllers.AuthRegister(deps.Users, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Users, logg))
	})

	r.Post("/api/v1/webhooks/square", webhookcontrollers.SquareWebhook(deps.SquareWebhook, deps.SquareVerifier, logg))

	// Public reads.
	r.Get("/api/v1/services/{serviceId}", controllers.ServiceGet(deps.Catalog, logg))
	r.Get("/api/v1/sellers/{sellerId}/reviews", controllers.SellerReviews(deps.Reviews, logg))
	r.Get("/api/v1/offerings", controllers.OfferingList(deps.Offerings, logg))
	r.Get("/api/v1/offerings/{offeringId}", controllers.OfferingGet(deps.Offerings, logg))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.UserRateLimit(deps.Redis, cfg.RateLimit.UserLimit, cfg.RateLimit.Window, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		// Flat paths share the tree with the public service read.
		r.Post("/api/v1/services", controllers.ServiceCreate(deps.Catalog, logg))
		r.Get("/api/v1/services/mine", controllers.MyServices(deps.Catalog, logg))
		r.Post("/api/v1/services/{serviceId}/status", controllers.ServiceSetStatus(deps.Catalog, logg))

		ops := orderOperations(deps.Orders)
		r.Route("/api/v1/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(deps.Orders, logg))
			r.Get("/", controllers.OrderList(deps.Orders, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.OrderGet(deps.Orders, logg))
				for name, op := range ops {
					r.Post("/"+name, controllers.OrderTransition(op, logg))
				}
				r.Get("/messages", controllers.OrderMessages(deps.Chat, logg))
				r.Post("/messages", controllers.OrderMessagePost(deps.Chat, logg))
				r.Get("/review-eligibility", controllers.ReviewEligibility(deps.Reviews, logg))
				r.Post("/reviews", controllers.ReviewSubmit(deps.Reviews, logg))
			})
		})

		r.Get("/api/v1/dashboard/seller", controllers.SellerDashboard(deps.Dashboard, logg))

		r.Route("/api/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})

		r.Post("/api/v1/offerings/{offeringId}/purchase", controllers.OfferingPurchase(deps.Offerings, logg))
		r.Get("/api/v1/me/fractional-orders", controllers.MyFractionalOrders(deps.Offerings, logg))

		r.Route("/api/v1/admin", func(r chi.Router) {
			r.Use(middleware.RequirePolicy(deps.Policy, logg))

			r.Post("/orders/{orderId}/mark-paid", controllers.AdminOrderMarkPaid(deps.Orders, logg))

			var publish, closeOffering controllers.OfferingStatusFunc
			if deps.Offerings != nil {
				publish, closeOffering = deps.Offerings.Publish, deps.Offerings.Close
			}
			r.Route("/offerings", func(r chi.Router) {
				r.Post("/", controllers.AdminOfferingCreate(deps.Offerings, logg))
				r.Patch("/{offeringId}", controllers.AdminOfferingUpdate(deps.Offerings, logg))
				r.Post("/{offeringId}/publish", controllers.AdminOfferingStatus(publish, logg))
				r.Post("/{offeringId}/close", controllers.AdminOfferingStatus(closeOffering, logg))
			})

			r.Route("/organizations/{orgId}/bank-verifications", func(r chi.Router) {
				r.Post("/", controllers.AdminBankVerificationRecord(deps.Verification, logg))
				r.Get("/latest", controllers.AdminBankVerificationLatest(deps.Verification, logg))
			})
		})
	})

	return r
}

// orderOperations maps the lifecycle path segment to its service call.
func orderOperations(svc serviceorders.Service) map[string]controllers.OrderTransitionFunc {
	if svc == nil {
		return map[string]controllers.OrderTransitionFunc{
			"approve": nil, "reject": nil, "cancel": nil, "deliver": nil, "accept": nil,
		}
	}
	return map[string]controllers.OrderTransitionFunc{
		"approve": svc.Approve,
		"reject":  svc.Reject,
		"cancel":  svc.Cancel,
		"deliver": svc.Deliver,
		"accept":  svc.AcceptDelivery,
	}
}
