package models

type NotificationType string

const (
	NotificationTypeOrderConfirmation NotificationType = "order_confirmation"
	NotificationTypeOrderShipped      NotificationType = "order_shipped"
	NotificationTypeOrderDelivered    NotificationType = "order_delivered"
	NotificationTypeOrderCancelled    NotificationType = "order_cancelled"
)

// SendNotificationRequest is the payload accepted by the notification service.
type SendNotificationRequest struct {
	Type      NotificationType  `json:"type"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type SendNotificationResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
