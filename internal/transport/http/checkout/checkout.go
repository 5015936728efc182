package checkouthandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dijistore/storefront/internal/service/services/checkoutsvc"
	"github.com/dijistore/storefront/internal/service/services/couponsvc"
	"github.com/go-playground/validator/v10"
)

// Service is an interface for the checkout service layer.
type Service interface {
	Checkout(ctx context.Context, sessionID string, userID int64, method checkoutsvc.PaymentMethod) (*checkoutsvc.Receipt, error)
}

// checkoutRequest represents a checkout attempt.
type checkoutRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// Validate validates the checkout request.
func (r *checkoutRequest) Validate() error {
	return validator.New().Struct(r)
}

type checkoutResponse struct {
	Success  bool   `json:"success"`
	Redirect string `json:"redirect,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Handle runs one checkout attempt for the session cart.
func Handle(w http.ResponseWriter, r *http.Request, service Service) {
	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		writeError(w, http.StatusUnprocessableEntity, "Oturum bulunamadı.")

		return
	}

	userID, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || userID == 0 {
		writeError(w, http.StatusUnauthorized, "Ödeme için giriş yapmalısınız.")

		return
	}

	req := checkoutRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Geçersiz istek.")
		slog.Error("Error decoding checkout request body", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		slog.Error("Error validating checkout request body", "error", err)

		return
	}

	method, err := checkoutsvc.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Geçersiz ödeme yöntemi.")

		return
	}

	receipt, err := service.Checkout(r.Context(), sessionID, userID, method)
	if err != nil {
		status, message := mapError(err)
		writeError(w, status, message)
		slog.Error("Error performing checkout", "method", method, "error", err)

		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{Success: true, Redirect: receipt.RedirectURL})
}

func mapError(err error) (int, string) {
	var vErr *couponsvc.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity, vErr.Message
	}

	switch {
	case errors.Is(err, checkoutsvc.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "Sepetiniz boş."
	case errors.Is(err, checkoutsvc.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "Bakiyeniz yetersiz."
	case errors.Is(err, couponsvc.ErrSessionMismatch):
		return http.StatusUnprocessableEntity, "Kupon bu oturum için geçerli değil."
	default:
		return http.StatusInternalServerError, "Sipariş oluşturulamadı."
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, checkoutResponse{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error sending checkout response", "error", err)
	}
}
