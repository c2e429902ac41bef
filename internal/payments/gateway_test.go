package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalGatewayCreateOrder(t *testing.T) {
	g := LocalGateway{Secret: testSecret}
	id, err := g.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR", Receipt: "job-1"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "order_"))
	assert.Len(t, id, len("order_")+14)

	_, err = g.CreateOrder(context.Background(), OrderRequest{Amount: 0})
	assert.Error(t, err)

	assert.True(t, g.Verify(id, "pay_1", Sign(testSecret, id, "pay_1")))
}

func TestNewRazorpayGatewayRequiresKeys(t *testing.T) {
	_, err := NewRazorpayGateway("", "secret")
	assert.Error(t, err)
	_, err = NewRazorpayGateway("key", " ")
	assert.Error(t, err)
}

func TestRazorpayGatewayCreateOrder(t *testing.T) {
	var got razorpayOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "rzp_secret", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_Rzp123","status":"created"}`))
	}))
	defer srv.Close()

	g, err := NewRazorpayGateway("rzp_test_key", "rzp_secret")
	require.NoError(t, err)
	g.baseURL = srv.URL

	id, err := g.CreateOrder(context.Background(), OrderRequest{Amount: 50000, Currency: "INR", Receipt: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, "order_Rzp123", id)
	assert.Equal(t, int64(50000), got.Amount)
	assert.Equal(t, "job-1", got.Receipt)
	assert.Equal(t, "job-1", got.Notes["jobId"])
	assert.Equal(t, "razorpay", g.Name())
	assert.Equal(t, "rzp_test_key", g.KeyID())
}

func TestRazorpayGatewayErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer srv.Close()

	g, err := NewRazorpayGateway("key", "secret")
	require.NoError(t, err)
	g.baseURL = srv.URL

	_, err = g.CreateOrder(context.Background(), OrderRequest{Amount: 1, Currency: "INR", Receipt: "job-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount too small")
	assert.Contains(t, err.Error(), "BAD_REQUEST_ERROR")
}
