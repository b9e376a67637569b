package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"go.uber.org/zap"
)

// HTTPNotificationClient sends order notifications to the notification
// service.
type HTTPNotificationClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *zap.Logger
}

// NewHTTPNotificationClient creates a new HTTP-based notification client.
func NewHTTPNotificationClient(cfg config.ServiceConfig, logger *zap.Logger) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey: cfg.APIKey,
		logger: logger.Named("notification-client"),
	}
}

// Send posts a notification. Any status other than 200, 201 or 202 is an
// error.
func (c *HTTPNotificationClient) Send(ctx context.Context, notification *models.SendNotificationRequest) (*models.SendNotificationResponse, error) {
	c.logger.Debug("Sending notification",
		zap.String("recipient", notification.Recipient),
		zap.String("type", string(notification.Type)),
	)

	body, err := json.Marshal(notification)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v2/notifications", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	c.setHeaders(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to send notification",
			zap.String("recipient", notification.Recipient),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		return nil, fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	var result models.SendNotificationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode notification response: %w", err)
	}

	c.logger.Info("Notification sent",
		zap.String("recipient", notification.Recipient),
		zap.String("type", string(notification.Type)),
		zap.String("notification_id", result.ID),
	)

	return &result, nil
}

func (c *HTTPNotificationClient) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if requestID := middleware.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(middleware.HeaderRequestID, requestID)
	}
}
