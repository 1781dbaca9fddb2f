package handlers

import (
	"net/http"
	"strings"

	"merchantpay/internal/config"
	"merchantpay/internal/db"
	"merchantpay/internal/middleware"
	"merchantpay/internal/models"
	"merchantpay/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Metrics interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
}

// Deps is everything the HTTP layer calls into.
type Deps struct {
	TxRunner    db.TxRunner
	Config      config.Config
	Logger      *zap.Logger
	Users       UserStore
	Settings    SettingsStore
	Commissions CommissionStore
	Balances    BalanceService
	Payments    PaymentService
	Cards       CardService
	Withdrawals PayoutService
	Settlements PayoutService
	Hub         *websocket.Hub
	Metrics     Metrics
}

type Handler struct {
	txRunner    db.TxRunner
	cfg         config.Config
	logger      *zap.Logger
	users       UserStore
	settings    SettingsStore
	commissions CommissionStore
	balances    BalanceService
	payments    PaymentService
	cards       CardService
	withdrawals PayoutService
	settlements PayoutService
	hub         *websocket.Hub
	metrics     Metrics
}

func New(deps Deps) *Handler {
	return &Handler{
		txRunner:    deps.TxRunner,
		cfg:         deps.Config,
		logger:      deps.Logger,
		users:       deps.Users,
		settings:    deps.Settings,
		commissions: deps.Commissions,
		balances:    deps.Balances,
		payments:    deps.Payments,
		cards:       deps.Cards,
		withdrawals: deps.Withdrawals,
		settlements: deps.Settlements,
		hub:         deps.Hub,
		metrics:     deps.Metrics,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(h.logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(h.metrics.Middleware)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(h.cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticated := middleware.Auth(h.cfg.JWTSecret)
	merchants := middleware.RequireRole(models.RoleMerchant, models.RoleMerchantLeader)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(authenticated).Get("/me", h.Me)
	})

	router.With(authenticated).Get("/balance", h.GetBalance)
	router.With(authenticated, middleware.RequireRole(models.RoleMerchantLeader)).Get("/commissions", h.ListCommissions)

	router.Route("/payment-requests", func(r chi.Router) {
		r.Use(authenticated)
		r.Post("/", h.CreatePaymentRequest)
		r.Get("/", h.ListPaymentRequests)
		r.Get("/{id}", h.GetPaymentRequest)
		r.Get("/{id}/timeline", h.GetPaymentTimeline)
	})

	router.Route("/pay/{token}", func(r chi.Router) {
		r.Get("/", h.ViewPayment)
		r.Post("/card", h.SubmitCard)
		r.Post("/verify", h.SubmitVerification)
	})

	router.Route("/withdrawals", func(r chi.Router) {
		r.Use(authenticated, merchants)
		r.Post("/", h.CreateWithdrawal)
		r.Get("/", h.ListWithdrawals)
	})

	router.Route("/admin", func(r chi.Router) {
		r.Use(authenticated, middleware.RequireRole(models.RoleAdmin))
		r.Post("/payment-requests/{id}/status", h.AdminTransitionPayment)
		r.Get("/card-submissions/{id}", h.AdminGetSubmission)
		r.Post("/card-submissions/{id}/review", h.AdminReviewSubmission)
		r.Post("/withdrawals/{id}/status", h.AdminUpdateWithdrawal)
		r.Post("/settlements", h.AdminCreateSettlement)
		r.Post("/settlements/{id}/status", h.AdminUpdateSettlement)
		r.Put("/users/{id}/profile", h.AdminUpdateProfile)
		r.Put("/settings/{key}", h.AdminPutSetting)
	})

	router.Get("/ws/notifications", h.WSNotifications)
	router.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
