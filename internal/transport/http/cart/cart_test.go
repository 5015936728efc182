package carthandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dijistore/storefront/internal/service/models/cart"
	"github.com/dijistore/storefront/internal/service/models/money"
	"github.com/dijistore/storefront/internal/service/services/cartsvc"
	"github.com/dijistore/storefront/internal/service/services/couponsvc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceStub struct {
	snap cart.Snapshot
	err  error

	lastAction string
	sessionID  string
	userID     int64
	productID  int64
	qty        int
	couponCode string
}

func (s *serviceStub) Add(_ context.Context, sessionID string, userID, productID int64, qty int) (cart.Snapshot, error) {
	s.lastAction, s.sessionID, s.userID, s.productID, s.qty = "add", sessionID, userID, productID, qty

	return s.snap, s.err
}

func (s *serviceStub) Update(_ context.Context, sessionID string, userID, productID int64, qty int) (cart.Snapshot, error) {
	s.lastAction, s.sessionID, s.userID, s.productID, s.qty = "update", sessionID, userID, productID, qty

	return s.snap, s.err
}

func (s *serviceStub) Remove(_ context.Context, sessionID string, userID, productID int64) (cart.Snapshot, error) {
	s.lastAction, s.sessionID, s.userID, s.productID = "remove", sessionID, userID, productID

	return s.snap, s.err
}

func (s *serviceStub) Clear(_ context.Context, sessionID string) error {
	s.lastAction, s.sessionID = "clear", sessionID

	return s.err
}

func (s *serviceStub) Snapshot(_ context.Context, sessionID string, userID int64) (cart.Snapshot, error) {
	s.sessionID, s.userID = sessionID, userID
	if s.lastAction != "clear" {
		s.lastAction = "summary"
	}

	return s.snap, s.err
}

func (s *serviceStub) ApplyCoupon(_ context.Context, sessionID string, userID int64, code string) (cart.Snapshot, error) {
	s.lastAction, s.sessionID, s.userID, s.couponCode = "apply_coupon", sessionID, userID, code

	return s.snap, s.err
}

func (s *serviceStub) RemoveCoupon(_ context.Context, sessionID string, userID int64) (cart.Snapshot, error) {
	s.lastAction, s.sessionID, s.userID = "remove_coupon", sessionID, userID

	return s.snap, s.err
}

func doRequest(t *testing.T, service Service, body string, headers map[string]string) (*httptest.ResponseRecorder, cartResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/cart", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()

	Handle(rec, req, service)

	var resp cartResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	return rec, resp
}

func sessionHeaders() map[string]string {
	return map[string]string{"X-Session-ID": "s1", "X-User-ID": "7"}
}

func TestHandle_MissingSession(t *testing.T) {
	rec, resp := doRequest(t, &serviceStub{}, `{"action":"summary"}`, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Oturum bulunamadı.", resp.Message)
}

func TestHandle_InvalidBody(t *testing.T) {
	rec, _ := doRequest(t, &serviceStub{}, `{`, sessionHeaders())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandle_UnknownAction(t *testing.T) {
	rec, resp := doRequest(t, &serviceStub{}, `{"action":"destroy"}`, sessionHeaders())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, resp.Success)
}

func TestHandle_Add(t *testing.T) {
	stub := &serviceStub{snap: cart.Snapshot{Totals: cart.Totals{
		Currency:   money.CurrencyTRY,
		Subtotal:   decimal.RequireFromString("50.00"),
		GrandTotal: decimal.RequireFromString("50.00"),
	}}}

	rec, resp := doRequest(t, stub, `{"action":"add","product_id":1,"quantity":2}`, sessionHeaders())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Cart)

	assert.Equal(t, "add", stub.lastAction)
	assert.Equal(t, "s1", stub.sessionID)
	assert.Equal(t, int64(7), stub.userID)
	assert.Equal(t, int64(1), stub.productID)
	assert.Equal(t, 2, stub.qty)
}

func TestHandle_AnonymousUserCanMutateCart(t *testing.T) {
	stub := &serviceStub{}

	rec, _ := doRequest(t, stub, `{"action":"add","product_id":1,"quantity":1}`, map[string]string{"X-Session-ID": "s1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), stub.userID)
}

func TestHandle_ApplyCouponRequiresUser(t *testing.T) {
	stub := &serviceStub{}

	rec, resp := doRequest(t, stub, `{"action":"apply_coupon","coupon_code":"SAVE10"}`, map[string]string{"X-Session-ID": "s1"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Kupon kullanmak için giriş yapmalısınız.", resp.Message)
	assert.Empty(t, stub.lastAction)
}

func TestHandle_ApplyCoupon(t *testing.T) {
	stub := &serviceStub{}

	rec, resp := doRequest(t, stub, `{"action":"apply_coupon","coupon_code":"SAVE10"}`, sessionHeaders())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "apply_coupon", stub.lastAction)
	assert.Equal(t, "SAVE10", stub.couponCode)
}

func TestHandle_ValidationErrorMessageSurfaced(t *testing.T) {
	stub := &serviceStub{err: &couponsvc.ValidationError{Message: "Kupon süresi doldu."}}

	rec, resp := doRequest(t, stub, `{"action":"apply_coupon","coupon_code":"OLD"}`, sessionHeaders())

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Kupon süresi doldu.", resp.Message)
}

func TestHandle_ErrorMapping(t *testing.T) {
	for _, tc := range []struct {
		err     error
		status  int
		message string
	}{
		{cartsvc.ErrProductNotFound, http.StatusUnprocessableEntity, "Ürün bulunamadı."},
		{cartsvc.ErrOutOfStock, http.StatusUnprocessableEntity, "Ürün stokta yok."},
		{cartsvc.ErrEmptyCart, http.StatusUnprocessableEntity, "Sepetiniz boş."},
		{assert.AnError, http.StatusInternalServerError, "Beklenmeyen bir hata oluştu."},
	} {
		stub := &serviceStub{err: tc.err}

		rec, resp := doRequest(t, stub, `{"action":"add","product_id":1}`, sessionHeaders())

		assert.Equal(t, tc.status, rec.Code)
		assert.Equal(t, tc.message, resp.Message)
	}
}

func TestHandle_ClearReturnsEmptyCart(t *testing.T) {
	stub := &serviceStub{}

	rec, resp := doRequest(t, stub, `{"action":"clear"}`, sessionHeaders())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "clear", stub.lastAction)
}
