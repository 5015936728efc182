package carthandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dijistore/storefront/internal/service/models/cart"
	"github.com/dijistore/storefront/internal/service/services/cartsvc"
	"github.com/dijistore/storefront/internal/service/services/couponsvc"
	"github.com/go-playground/validator/v10"
)

// Service is an interface for the cart service layer.
type Service interface {
	Add(ctx context.Context, sessionID string, userID int64, productID int64, qty int) (cart.Snapshot, error)
	Update(ctx context.Context, sessionID string, userID int64, productID int64, qty int) (cart.Snapshot, error)
	Remove(ctx context.Context, sessionID string, userID int64, productID int64) (cart.Snapshot, error)
	Clear(ctx context.Context, sessionID string) error
	Snapshot(ctx context.Context, sessionID string, userID int64) (cart.Snapshot, error)
	ApplyCoupon(ctx context.Context, sessionID string, userID int64, code string) (cart.Snapshot, error)
	RemoveCoupon(ctx context.Context, sessionID string, userID int64) (cart.Snapshot, error)
}

// cartRequest represents one cart mutation or read.
type cartRequest struct {
	Action     string `json:"action"      validate:"required,oneof=add update remove clear summary apply_coupon remove_coupon"`
	ProductID  int64  `json:"product_id"`
	Quantity   int    `json:"quantity"`
	CouponCode string `json:"coupon_code"`
}

// Validate validates the cart request.
func (r *cartRequest) Validate() error {
	return validator.New().Struct(r)
}

type cartResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Cart    *cart.Snapshot `json:"cart,omitempty"`
}

// Handle dispatches a cart action.
func Handle(w http.ResponseWriter, r *http.Request, service Service) {
	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		writeError(w, http.StatusUnprocessableEntity, "Oturum bulunamadı.")

		return
	}

	userID := parseUserID(r)

	req := cartRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Geçersiz istek.")
		slog.Error("Error decoding cart request body", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		slog.Error("Error validating cart request body", "error", err)

		return
	}

	if req.Action == "apply_coupon" && userID == 0 {
		writeError(w, http.StatusUnauthorized, "Kupon kullanmak için giriş yapmalısınız.")

		return
	}

	var (
		snap cart.Snapshot
		err  error
	)

	switch req.Action {
	case "add":
		snap, err = service.Add(r.Context(), sessionID, userID, req.ProductID, req.Quantity)
	case "update":
		snap, err = service.Update(r.Context(), sessionID, userID, req.ProductID, req.Quantity)
	case "remove":
		snap, err = service.Remove(r.Context(), sessionID, userID, req.ProductID)
	case "clear":
		if err = service.Clear(r.Context(), sessionID); err == nil {
			snap, err = service.Snapshot(r.Context(), sessionID, userID)
		}
	case "summary":
		snap, err = service.Snapshot(r.Context(), sessionID, userID)
	case "apply_coupon":
		snap, err = service.ApplyCoupon(r.Context(), sessionID, userID, req.CouponCode)
	case "remove_coupon":
		snap, err = service.RemoveCoupon(r.Context(), sessionID, userID)
	}

	if err != nil {
		status, message := mapError(err)
		writeError(w, status, message)
		slog.Error("Error handling cart action", "action", req.Action, "error", err)

		return
	}

	writeJSON(w, http.StatusOK, cartResponse{Success: true, Cart: &snap})
}

func parseUserID(r *http.Request) int64 {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}

	return id
}

func mapError(err error) (int, string) {
	var vErr *couponsvc.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity, vErr.Message
	}

	switch {
	case errors.Is(err, cartsvc.ErrProductNotFound):
		return http.StatusUnprocessableEntity, "Ürün bulunamadı."
	case errors.Is(err, cartsvc.ErrOutOfStock):
		return http.StatusUnprocessableEntity, "Ürün stokta yok."
	case errors.Is(err, cartsvc.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "Sepetiniz boş."
	default:
		return http.StatusInternalServerError, "Beklenmeyen bir hata oluştu."
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, cartResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error sending cart response", "error", err)
	}
}
