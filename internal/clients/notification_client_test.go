package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"go.uber.org/zap"
)

func TestHTTPNotificationClient_Send(t *testing.T) {
	var got models.SendNotificationRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/notifications", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"id":"n-1","status":"queued"}`))
	}))
	defer srv.Close()

	client := NewHTTPNotificationClient(config.ServiceConfig{BaseURL: srv.URL, Timeout: time.Second, APIKey: "key-1"}, zap.NewNop())

	resp, err := client.Send(context.Background(), &models.SendNotificationRequest{
		Type:      models.NotificationTypeOrderShipped,
		Recipient: "u1",
		Subject:   "Order Shipped",
	})
	require.NoError(t, err)
	assert.Equal(t, "n-1", resp.ID)
	assert.Equal(t, models.NotificationTypeOrderShipped, got.Type)
	assert.Equal(t, "u1", got.Recipient)
}

func TestHTTPNotificationClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPNotificationClient(config.ServiceConfig{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())

	_, err := client.Send(context.Background(), &models.SendNotificationRequest{Recipient: "u1"})
	assert.Error(t, err)
}
