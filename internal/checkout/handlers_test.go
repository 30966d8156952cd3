package checkout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/common"
)

func newTestRouter(h *Handler, customerID string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if customerID != "" {
				req = req.WithContext(common.WithCustomerID(req.Context(), customerID))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/api/v1/checkout", func(c chi.Router) { h.Routes(c) })
	return r
}

type quoteEnvelope struct {
	Data Quote `json:"data"`
}

type errorEnvelope struct {
	Error common.ErrorBody `json:"error"`
}

func TestHandlerQuoteAndGet(t *testing.T) {
	svc, _ := newTestService(t, fixtureLookups())
	router := newTestRouter(&Handler{Svc: svc}, "cust-1")

	body := `{"items":[{"sku":"a","qty":1,"unitPriceCents":1000}],"promotionCode":"HALF","giftCardCode":"GIFT900"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created quoteEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, int64(500), created.Data.PromoDiscount)
	require.Equal(t, int64(500), created.Data.GiftCardDiscount)
	require.Zero(t, created.Data.Total)
	require.Contains(t, rec.Body.String(), `"promoDiscountCents":500`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/checkout/quote/"+created.Data.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched quoteEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	require.Equal(t, created.Data.ID, fetched.Data.ID)
}

func TestHandlerQuoteErrors(t *testing.T) {
	svc, _ := newTestService(t, fixtureLookups())
	router := newTestRouter(&Handler{Svc: svc}, "cust-1")

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"items":`, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown field", `{"items":[{"sku":"a","qty":1,"unitPriceCents":1}],"coupon":"X"}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"validation", `{"items":[]}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"expired promotion", `{"items":[{"sku":"a","qty":1,"unitPriceCents":1000}],"promotionCode":"OLD"}`, http.StatusUnprocessableEntity, "PROMOTION_EXPIRED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", strings.NewReader(tc.body)))
			require.Equal(t, tc.status, rec.Code)
			var env errorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			require.Equal(t, tc.code, env.Error.Code)
		})
	}
}

func TestHandlerRequiresCustomer(t *testing.T) {
	svc, _ := newTestService(t, fixtureLookups())
	router := newTestRouter(&Handler{Svc: svc}, "")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerSettle(t *testing.T) {
	svc, _ := newTestService(t, fixtureLookups())
	settler := &stubSettler{}
	svc.Settler = settler
	router := newTestRouter(&Handler{Svc: svc}, "cust-1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote",
		strings.NewReader(`{"items":[{"sku":"a","qty":3,"unitPriceCents":250}]}`)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created quoteEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	settlePath := "/api/v1/checkout/quote/" + created.Data.ID + "/settle"
	orderBody := `{"orderId":"0f8c3a7e-1f0b-4bb3-9d2f-3d4f5e6a7b8c"}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, settlePath, strings.NewReader(orderBody)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"orderId":"0f8c3a7e-1f0b-4bb3-9d2f-3d4f5e6a7b8c"`)
	require.Len(t, settler.calls, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, settlePath, strings.NewReader(orderBody)))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Len(t, settler.calls, 1)
}
