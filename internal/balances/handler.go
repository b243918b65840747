package balances

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/yfarmers/feedledger/internal/ledger"
	"github.com/yfarmers/feedledger/internal/platform/httpx"
	"github.com/yfarmers/feedledger/internal/rbac"
	"github.com/yfarmers/feedledger/internal/shared"
)

// Handler exposes balance reports over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	rateLimit func(http.Handler) http.Handler
	now       func() time.Time
}

// NewHandler constructs the balances handler. Every report scans the whole
// ledger, so requests are limited per actor.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
		if actor, ok := shared.ActorFromContext(r.Context()); ok && actor.ID != "" {
			return "actor:" + actor.ID, nil
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return "ip:" + r.RemoteAddr, nil
		}
		return "ip:" + host, nil
	}))
	return &Handler{logger: logger, service: service, rbac: rbac, rateLimit: limiter, now: time.Now}
}

// MountRoutes registers balance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermBalancesView), h.rateLimit)
		r.Get("/balances/debtors", h.handleDebtors)
		r.Get("/balances/creditors", h.handleCreditors)
		r.Get("/balances/net-value", h.handleNetValue)
		r.Get("/balances/sales", h.handleSales)
	})
}

func (h *Handler) handleDebtors(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Debtors(r.Context())
	if err != nil {
		h.fail(w, "debtors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleCreditors(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Creditors(r.Context())
	if err != nil {
		h.fail(w, "creditors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleNetValue(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.NetValue(r.Context(), date)
	if err != nil {
		h.fail(w, "net value", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleSales(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.SalesSummary(r.Context(), date)
	if err != nil {
		h.fail(w, "sales summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// dateParam reads ?date=, defaulting to today.
func (h *Handler) dateParam(r *http.Request) (ledger.Date, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return ledger.DateOf(h.now()), nil
	}
	return ledger.ParseDate(raw)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, shared.ErrValidation) {
		h.logger.Error("balances "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
