package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/glowmart/storefront-backend/api/controllers"
	webhookcontrollers "github.com/glowmart/storefront-backend/api/controllers/webhooks"
	"github.com/glowmart/storefront-backend/api/middleware"
	"github.com/glowmart/storefront-backend/internal/cart"
	checkoutsvc "github.com/glowmart/storefront-backend/internal/checkout"
	"github.com/glowmart/storefront-backend/internal/notifications"
	"github.com/glowmart/storefront-backend/internal/orders"
	"github.com/glowmart/storefront-backend/internal/payments"
	"github.com/glowmart/storefront-backend/internal/rewards"
	gatewaywebhook "github.com/glowmart/storefront-backend/internal/webhooks/gateway"
	"github.com/glowmart/storefront-backend/pkg/config"
	"github.com/glowmart/storefront-backend/pkg/db"
	"github.com/glowmart/storefront-backend/pkg/logger"
	"github.com/glowmart/storefront-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config *config.Config
	Logger *logger.Logger

	DBPinger    db.Pinger
	RedisClient *redis.Client

	CheckoutService      checkoutsvc.Service
	OrdersService        orders.Service
	CartService          cart.Service
	RewardsService       rewards.Service
	NotificationsService notifications.Service

	GatewayClient         *payments.GatewayClient
	GatewayWebhookService gatewaywebhook.Service
	GatewayWebhookGuard   *gatewaywebhook.IdempotencyGuard

	MetricsRegistry *prometheus.Registry
}

// NewRouter wires middleware and handlers into the API surface.
func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, p.DBPinger, p.RedisClient))
	})

	if p.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.GatewayWebhook(p.GatewayWebhookService, p.GatewayClient, p.GatewayWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/checkout", controllers.Checkout(p.CheckoutService, logg))
		r.Post("/checkout/payment-request", controllers.CreatePaymentRequest(p.GatewayClient, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(p.OrdersService, logg))
			r.Get("/{orderID}", controllers.GetOrder(p.OrdersService, logg))
			r.Post("/{orderID}/cancel", controllers.CancelOrder(p.OrdersService, logg))
			r.Post("/{orderID}/delivery-confirmation", controllers.ConfirmDelivery(p.OrdersService, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(p.CartService, logg))
			r.Put("/items/{productID}", controllers.SetCartItem(p.CartService, logg))
			r.Delete("/items/{productID}", controllers.RemoveCartItem(p.CartService, logg))
		})

		r.Get("/rewards", controllers.GetRewards(p.RewardsService, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.NotificationsService, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(p.NotificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.NotificationsService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))

		r.Post("/orders/{orderID}/status", controllers.TransitionOrder(p.OrdersService, logg))
	})

	return r
}
