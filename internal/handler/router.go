package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/efreitasn/papertrade/internal/service"
)

// Services bundles the service layer the router dispatches to.
type Services struct {
	Accounts   *service.AccountService
	Orders     *service.OrderService
	Operations *service.OperationService
	Simulation *service.SimulationService
	Instrument *service.InstrumentService
	MarketData *service.MarketDataService
	Webhooks   *service.WebhookService
}

// NewRouter creates a chi router with all routes registered, CORS, request
// logging, and Content-Type validation middleware. metricsHandler may be
// nil, in which case /metrics is not served.
func NewRouter(svc Services, metricsHandler http.Handler, corsOrigins []string, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler)
	}
	r.Use(contentTypeJSON)

	// Create handlers.
	accountH := NewAccountHandler(svc.Accounts, svc.Operations)
	orderH := NewOrderHandler(svc.Orders)
	simulationH := NewSimulationHandler(svc.Simulation)
	marketH := NewMarketHandler(svc.Instrument, svc.MarketData)
	webhookH := NewWebhookHandler(svc.Webhooks)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	// Account routes.
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", accountH.Open)
		r.Get("/", accountH.List)
		r.Route("/{account_id}", func(r chi.Router) {
			r.Get("/", accountH.Get)
			r.Delete("/", accountH.Close)
			r.Post("/pay-in", accountH.PayIn)
			r.Get("/positions", accountH.GetPositions)
			r.Get("/portfolio", accountH.GetPortfolio)
			r.Get("/operations", accountH.GetOperations)

			// Order routes.
			r.Post("/orders", orderH.SubmitOrder)
			r.Get("/orders", orderH.ListOrders)
			r.Get("/orders/{order_id}", orderH.GetOrderState)
			r.Delete("/orders/{order_id}", orderH.CancelOrder)
			r.Put("/orders/{order_id}", orderH.ReplaceOrder)
			r.Post("/stop-orders", orderH.PostStopOrder)
			r.Get("/margin", orderH.GetMarginAttributes)
		})
	})

	// Simulation routes.
	r.Post("/simulation/tick", simulationH.Tick)
	r.Get("/simulation/clock", simulationH.Clock)

	// Instrument and market data routes.
	r.Get("/instruments", marketH.ListInstruments)
	r.Get("/instruments/{id_type}/{id}", marketH.GetInstrument)
	r.Get("/market/last-prices", marketH.GetLastPrices)
	r.Get("/market/{instrument_id}/candle", marketH.GetLastCandle)

	// Webhook routes.
	r.Post("/webhooks", webhookH.Upsert)
	r.Get("/webhooks", webhookH.List)
	r.Delete("/webhooks/{webhook_id}", webhookH.Delete)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration.
func requestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT,
// and PATCH requests that carry a body. Bodiless requests such as
// POST /simulation/tick pass through.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasBody := r.ContentLength != 0
		if hasBody && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
