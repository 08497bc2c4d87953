package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"refledger/internal/models"
	"refledger/internal/services"

	"github.com/go-chi/chi/v5"
)

const adminTokenHeader = "X-Admin-Token"

type LedgerHandler struct {
	intake     *services.IntakeService
	referrals  *services.ReferralService
	ledger     *services.LedgerService
	drawings   *services.DrawingService
	adminToken string
}

func NewLedgerHandler(
	intake *services.IntakeService,
	referrals *services.ReferralService,
	ledger *services.LedgerService,
	drawings *services.DrawingService,
	adminToken string,
) *LedgerHandler {
	return &LedgerHandler{
		intake:     intake,
		referrals:  referrals,
		ledger:     ledger,
		drawings:   drawings,
		adminToken: adminToken,
	}
}

func (h *LedgerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegistrationRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.intake.Register(r.Context(), req))
}

func (h *LedgerHandler) Drawing(w http.ResponseWriter, r *http.Request) {
	var req models.DrawingRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.intake.Drawing(r.Context(), req))
}

func (h *LedgerHandler) UserActive(w http.ResponseWriter, r *http.Request) {
	active, err := h.referrals.UserActive(r.Context(), r.URL.Query().Get("account"))
	respond(w, active, err)
}

func (h *LedgerHandler) ReadonlyUserList(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)
	users, err := h.referrals.ReferredUsers(r.Context(), r.URL.Query().Get("account"), offset, limit)
	respond(w, users, err)
}

func (h *LedgerHandler) Link(w http.ResponseWriter, r *http.Request) {
	link, err := h.referrals.GenerateLink(r.Context(), r.URL.Query().Get("account"))
	respond(w, link, err)
}

func (h *LedgerHandler) IsLink(w http.ResponseWriter, r *http.Request) {
	ok, err := h.referrals.IsReferralLink(r.Context(), r.URL.Query().Get("link"))
	respond(w, ok, err)
}

func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	view, err := h.ledger.Balance(r.Context(), r.URL.Query().Get("account"))
	respond(w, view, err)
}

func (h *LedgerHandler) Withdrawals(w http.ResponseWriter, r *http.Request) {
	offset, limit := page(r)
	res, err := h.drawings.Withdrawals(r.Context(), r.URL.Query().Get("account"), offset, limit)
	respond(w, res, err)
}

func (h *LedgerHandler) Compensate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeResult(w, models.Fail(models.NewError(models.InvalidRequest, "invalid withdrawal id")))
		return
	}
	record, err := h.drawings.Compensate(r.Context(), id)
	respond(w, record, err)
}

type commissionRequest struct {
	Account string `json:"account"`
	Key     string `json:"key"`
	Percent int64  `json:"percent"`
}

func (h *LedgerHandler) SetCommission(w http.ResponseWriter, r *http.Request) {
	var req commissionRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.ledger.SetCommissionPercent(r.Context(), req.Account, req.Key, req.Percent)
	respond(w, true, err)
}

func (h *LedgerHandler) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(adminTokenHeader)
		if h.adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func page(r *http.Request) (int, int) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return offset, limit
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeResult(w, models.Fail(models.NewError(models.InvalidRequest, "malformed request body")))
		return false
	}
	return true
}

func respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		writeResult(w, models.Fail(err))
		return
	}
	writeResult(w, models.Success(data))
}

// writeResult always answers 200; the outcome is in the envelope.
func writeResult(w http.ResponseWriter, res *models.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Error("Failed to write response: ", err)
	}
}
