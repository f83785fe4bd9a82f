package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shopengine/orderflow/internal/core/domain"
	"github.com/shopengine/orderflow/internal/core/service"
)

// HTTPHandler is the thin controller layer over the core services. It owns
// no business rules: it decodes JSON, passes the acting user's identity
// explicitly, and maps domain errors onto status codes.
type HTTPHandler struct {
	carts  *service.CartService
	orders *service.OrderService
	ledger *service.StockLedger
	logger *zap.Logger
}

func NewHTTPHandler(carts *service.CartService, orders *service.OrderService, ledger *service.StockLedger, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{carts: carts, orders: orders, ledger: ledger, logger: logger}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("POST /api/cart", h.AddToCart)
	mux.HandleFunc("PUT /api/cart/{line}", h.UpdateCartLine)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)
	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	mux.HandleFunc("POST /api/orders/{id}/status", h.TransitionOrder)
	mux.HandleFunc("GET /api/products/{id}/availability", h.CheckAvailability)
}

type addToCartRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.ProductID == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	line, err := h.carts.AddToCart(r.Context(), req.UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, line)
}

type updateCartLineRequest struct {
	Quantity int `json:"quantity"`
}

func (h *HTTPHandler) UpdateCartLine(w http.ResponseWriter, r *http.Request) {
	var req updateCartLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	line, err := h.carts.UpdateLine(r.Context(), r.PathValue("line"), req.Quantity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, line)
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	cart, err := h.carts.GetCart(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cart)
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.carts.ClearCart(r.Context(), userID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type createOrderRequest struct {
	UserID         string   `json:"user_id"`
	ProductIDs     []string `json:"product_ids,omitempty"`
	ShippingMethod string   `json:"shipping_method"`
	PaymentMethod  string   `json:"payment_method"`
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.ShippingMethod == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	cart, err := h.carts.GetCart(r.Context(), req.UserID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	// Default to the whole cart; product_ids narrows the order to a subset.
	lines := cart.Lines
	if len(req.ProductIDs) > 0 {
		wanted := make(map[string]bool, len(req.ProductIDs))
		for _, id := range req.ProductIDs {
			wanted[id] = true
		}
		var selected []domain.CartLine
		for _, line := range cart.Lines {
			if wanted[line.ProductID] {
				selected = append(selected, line)
			}
		}
		lines = selected
	}
	if len(lines) == 0 {
		writeError(w, http.StatusBadRequest, "cart is empty")
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), req.UserID, lines, req.ShippingMethod, req.PaymentMethod)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

type transitionRequest struct {
	Status      string     `json:"status"`
	ShippedDate *time.Time `json:"shipped_date,omitempty"`
}

func (h *HTTPHandler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.orders.Transition(r.Context(), r.PathValue("id"),
		domain.OrderStatus(req.Status), domain.ShippingPatch{ShippedDate: req.ShippedDate})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *HTTPHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	quantity := 1
	if q := r.URL.Query().Get("quantity"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "quantity must be a positive integer")
			return
		}
		quantity = parsed
	}

	availability, err := h.ledger.CheckAvailable(r.Context(), r.PathValue("id"), quantity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, availability)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Domain errors carry user-actionable messages; everything else is opaque.
func (h *HTTPHandler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrCartLineNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrStaleWrite):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnknownShippingMethod):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
