package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/yfarmers/feedledger/internal/platform/httpx"
	"github.com/yfarmers/feedledger/internal/rbac"
	"github.com/yfarmers/feedledger/internal/shared"
)

// Handler wires HTTP endpoints for the ledger module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermLedgerView))
		r.Get("/shops", h.handleShops)
		r.With(h.shopAccess).Get("/shops/{shop}/days/{date}", h.handleDayView)
		r.With(h.shopAccess).Get("/shops/{shop}/days/{date}/record", h.handleRecord)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermLedgerWrite), h.shopAccess)
		r.Post("/shops/{shop}/days/{date}/entries/{kind}", h.handleRecordTransaction)
		r.Patch("/shops/{shop}/days/{date}/entries/{kind}/{id}", h.handleEditEntry)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermOpeningWrite), h.shopAccess)
		r.Put("/shops/{shop}/days/{date}/opening", h.handleSaveOpening)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermLedgerDelete), h.shopAccess)
		r.Delete("/shops/{shop}/days/{date}/entries/{kind}/{id}", h.handleDeleteEntry)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermLedgerAnyShop))
		r.Get("/mirrors/{date}", h.handleMirrorCheck)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermLedgerDelete))
		r.Post("/mirrors/{date}/repair", h.handleMirrorRepair)
	})
}

// shopAccess keeps attendants on their own shop.
func (h *Handler) shopAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		shop := chi.URLParam(r, "shop")
		actor, _ := shared.ActorFromContext(r.Context())
		if !rbac.CanAccessShop(actor, shop) {
			httpx.RespondError(w, ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleShops(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"shops": h.service.Shops()})
}

func (h *Handler) handleDayView(w http.ResponseWriter, r *http.Request) {
	date, err := ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	view, err := h.service.DayView(r.Context(), chi.URLParam(r, "shop"), date)
	if err != nil {
		h.logError("day view", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	date, err := ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, ok, err := h.service.GetRecord(r.Context(), chi.URLParam(r, "shop"), date)
	if err != nil {
		h.logError("get record", err)
		httpx.RespondError(w, err)
		return
	}
	if !ok {
		httpx.RespondError(w, ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

type openingRequest struct {
	OpeningStock map[string]decimal.Decimal `json:"openingStock"`
}

func (h *Handler) handleSaveOpening(w http.ResponseWriter, r *http.Request) {
	date, err := ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req openingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	rec, err := h.service.SaveOpeningStock(r.Context(), chi.URLParam(r, "shop"), date, req.OpeningStock)
	if err != nil {
		h.logError("save opening stock", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	date, kind, err := dateAndKind(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var input EntryInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	input.IdempotencyKey = r.Header.Get("Idempotency-Key")
	rec, err := h.service.RecordTransaction(r.Context(), chi.URLParam(r, "shop"), date, kind, input)
	if err != nil {
		h.logError("record transaction", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleEditEntry(w http.ResponseWriter, r *http.Request) {
	date, kind, err := dateAndKind(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var patch EntryPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	rec, err := h.service.EditEntry(r.Context(), chi.URLParam(r, "shop"), date, kind, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.logError("edit entry", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	date, kind, err := dateAndKind(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	result, err := h.service.DeleteEntry(r.Context(), chi.URLParam(r, "shop"), date, kind, chi.URLParam(r, "id"), actor.Role)
	if err != nil {
		h.logError("delete entry", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleMirrorCheck(w http.ResponseWriter, r *http.Request) {
	h.mirrors(w, r, false)
}

func (h *Handler) handleMirrorRepair(w http.ResponseWriter, r *http.Request) {
	h.mirrors(w, r, true)
}

func (h *Handler) mirrors(w http.ResponseWriter, r *http.Request, apply bool) {
	date, err := ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.CheckTransferMirrors(r.Context(), date, apply)
	if err != nil {
		h.logError("check transfer mirrors", err)
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("X-Mirror-Consistent", strconv.FormatBool(report.Consistent()))
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) logError(op string, err error) {
	if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrForbidden) {
		return
	}
	h.logger.Error("ledger "+op, slog.Any("error", err))
}

func dateAndKind(r *http.Request) (Date, Kind, error) {
	date, err := ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		return Date{}, "", err
	}
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return Date{}, "", err
	}
	return date, kind, nil
}
