package httpd

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"solpay_gateway/internal/chain"
	"solpay_gateway/internal/domain"
	"solpay_gateway/internal/rates"
	"solpay_gateway/internal/repository"
	"solpay_gateway/internal/usecase"
)

type Handler struct {
	payments *usecase.PaymentUsecase
	txs      *usecase.TxUsecase
	repo     *repository.SQLiteRepo
	store    *repository.MemoryStore
	rates    *rates.Feed
	validate *validator.Validate
}

func NewHandler(
	payments *usecase.PaymentUsecase,
	txs *usecase.TxUsecase,
	repo *repository.SQLiteRepo,
	store *repository.MemoryStore,
	feed *rates.Feed,
) *Handler {
	return &Handler{
		payments: payments,
		txs:      txs,
		repo:     repo,
		store:    store,
		rates:    feed,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("solpubkey", func(fl validator.FieldLevel) bool {
		return chain.IsValidPublicKey(fl.Field().String())
	})
	v.RegisterValidation("posdecimal", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && d.IsPositive()
	})
	return v
}

type RouterConfig struct {
	Sig         SigConfig
	CORSOrigins []string
}

func (h *Handler) Routes(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Timestamp", "X-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.Sig.Secret != "" {
		r.Use(SignatureMiddleware(cfg.Sig))
	}

	r.Post("/api/v1/pay", h.CreatePayment)
	r.Get("/api/v1/verify", h.VerifyPayment)
	r.Get("/api/v1/rates", h.Rates)
	r.Post("/api/v1/transactions", h.InitiatePayment)
	r.Get("/api/v1/transactions", h.ListTransactions)
	r.Get("/api/v1/transactions/{id}", h.GetTransaction)
	r.Get("/api/v1/healthz", h.Healthz)

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// validationMessage names the first failing field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "Invalid or missing " + verrs[0].Field()
	}
	return err.Error()
}

// decodeMessage names the field when the body is valid JSON with a value of
// the wrong type.
func decodeMessage(err error) string {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		return "Invalid or missing " + te.Field
	}
	return "invalid json"
}

// POST /api/v1/pay
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, decodeMessage(err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	amount, err := decimal.NewFromString(string(req.Amount))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing amount")
		return
	}

	res, err := h.payments.CreateRequest(r.Context(), usecase.CreateInput{
		Recipient: req.Recipient,
		Amount:    amount,
		Currency:  domain.Currency(req.Currency),
		Label:     req.Label,
		Message:   req.Message,
		Memo:      req.Memo,
	})
	if err != nil {
		switch {
		case errors.Is(err, chain.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, rates.ErrUnsupportedCurrency):
			writeError(w, http.StatusBadRequest, "Invalid or missing currency")
		default:
			logger(r).Error("create payment request", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to create payment request")
		}
		return
	}

	writeJSON(w, http.StatusOK, CreatePaymentResp{
		URL:       res.URL,
		Reference: res.Request.Reference,
		Amount:    res.Request.Amount.String(),
		Currency:  string(domain.SettlementCurrency),
	})
}

// GET /api/v1/verify?reference=
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("reference")
	if ref == "" {
		writeJSON(w, http.StatusBadRequest, VerifyResp{Status: "error", Message: "Missing reference parameter"})
		return
	}

	res, err := h.payments.Verify(r.Context(), ref)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, VerifyResp{
			Status:    "verified",
			Message:   "Transaction verified successfully",
			Signature: res.Signature,
		})
	case errors.Is(err, usecase.ErrInvalidReference):
		writeJSON(w, http.StatusBadRequest, VerifyResp{Status: "error", Message: "Invalid reference parameter"})
	case errors.Is(err, domain.ErrRequestNotFound):
		writeJSON(w, http.StatusNotFound, VerifyResp{Status: "not_found", Message: "Payment request not found"})
	case errors.Is(err, domain.ErrTransferNotFound):
		writeJSON(w, http.StatusNotFound, VerifyResp{Status: "not_found", Message: "Transaction not found on chain"})
	case errors.Is(err, domain.ErrTransferMismatch):
		writeJSON(w, http.StatusUnprocessableEntity, VerifyResp{Status: "failed", Message: "Transaction does not match payment request"})
	case errors.Is(err, domain.ErrUpstream):
		logger(r).Error("verify payment: rpc", "reference", ref, "error", err)
		writeJSON(w, http.StatusBadGateway, VerifyResp{
			Status:   "error",
			Message:  "Failed to fetch transaction details from RPC",
			RPCError: err.Error(),
		})
	default:
		logger(r).Error("verify payment", "reference", ref, "error", err)
		writeJSON(w, http.StatusInternalServerError, VerifyResp{Status: "error", Message: "Internal server error"})
	}
}

// GET /api/v1/rates
func (h *Handler) Rates(w http.ResponseWriter, r *http.Request) {
	cur := h.rates.Current()
	resp := RatesResp{
		SOL:   cur.SOL.InexactFloat64(),
		USDC:  cur.USDC.InexactFloat64(),
		USDT:  cur.USDT.InexactFloat64(),
		KES:   cur.KES.InexactFloat64(),
		USD:   cur.USD.InexactFloat64(),
		Error: cur.Error,
	}
	if !cur.LastUpdated.IsZero() {
		resp.LastUpdated = cur.LastUpdated.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/v1/transactions
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req InitiatePaymentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, decodeMessage(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	amount, err := decimal.NewFromString(string(req.Amount))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing amount")
		return
	}

	tx, err := h.txs.Initiate(r.Context(), usecase.InitiateInput{
		Amount:   amount,
		Currency: req.Currency,
		Payer:    req.Payer,
		Payee:    req.Payee,
		Method:   domain.PaymentMethod(req.Method),
	})
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidMethod) {
			writeError(w, http.StatusBadRequest, "Invalid payment method")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, InitiatePaymentResp{
		Message:     "Payment initiated",
		Transaction: toTxItem(*tx),
	})
}

// GET /api/v1/transactions?referenceNo=&method=&status=&limit=&offset=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TxFilter{
		ReferenceNo: q.Get("referenceNo"),
		Method:      domain.PaymentMethod(q.Get("method")),
		Status:      domain.TxStatus(q.Get("status")),
	}

	limit := 50
	offset := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	items, err := h.repo.ListTransactions(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]TxItem, 0, len(items))
	for _, t := range items {
		out = append(out, toTxItem(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/v1/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toTxItem(*t))
}

func toTxItem(t domain.Transaction) TxItem {
	return TxItem{
		ID:          t.ID,
		ReferenceNo: t.ReferenceNo,
		Amount:      t.Amount.String(),
		Currency:    t.Currency,
		Payer:       t.Payer,
		Payee:       t.Payee,
		Method:      string(t.Method),
		Status:      string(t.Status),
		Signature:   t.Signature,
		CreatedAt:   t.CreatedAt,
		SettledAt:   t.SettledAt,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "pending": h.store.Len()})
}
