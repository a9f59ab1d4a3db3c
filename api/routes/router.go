package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lacucina/restaurant-backend/api/controllers"
	"github.com/lacucina/restaurant-backend/api/middleware"
	"github.com/lacucina/restaurant-backend/api/responses"
	"github.com/lacucina/restaurant-backend/internal/orders"
	"github.com/lacucina/restaurant-backend/pkg/config"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/logger"
	"github.com/lacucina/restaurant-backend/pkg/redis"
)

// Params carries everything the HTTP surface is wired to.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer

	Orders     orders.Service
	Intents    controllers.IntentCreator
	Redirects  controllers.RedirectInitiator
	Reconciler controllers.OrderReconciler
	Retention  controllers.RetentionService
}

func NewRouter(p Params) http.Handler {
	logg := p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(p.Config.CORS.AllowedOrigins),
	)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, logg, p.DB, p.Redis))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	idempotent := middleware.Idempotency(p.Idempotency, logg)

	r.Route("/orders", func(r chi.Router) {
		r.With(idempotent).Post("/", controllers.OrderCheckout(p.Orders, logg))
		r.Get("/cleanup", controllers.OrdersCleanupPreview(p.Retention, logg))
		r.Delete("/cleanup", controllers.OrdersCleanupPurge(p.Retention, logg))
		r.Get("/{orderId}", controllers.OrderGet(p.Orders, logg))
		r.Get("/{orderId}/payment-status", controllers.OrderPaymentStatus(p.Reconciler, logg))
	})

	r.Route("/payment", func(r chi.Router) {
		r.With(idempotent).Post("/intent", controllers.PaymentIntent(p.Intents, logg))
		r.Route("/redirect", func(r chi.Router) {
			r.With(idempotent).Post("/initiate", controllers.RedirectInitiate(p.Redirects, logg))
			r.Post("/check-status", controllers.RedirectCheckStatus(p.Reconciler, logg))
			r.Get("/return", controllers.RedirectLanding(p.Reconciler, logg))
			r.Get("/fail", controllers.RedirectLanding(p.Reconciler, logg))
		})
	})

	return r
}
