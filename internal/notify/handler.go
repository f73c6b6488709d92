package notify

import (
	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ringline/backend/pkg/response"
)

// SubscribeRequest is the body for POST /api/subscribe.
type SubscribeRequest struct {
	UserID       string               `json:"userId" binding:"required"`
	Subscription webpush.Subscription `json:"subscription"`
}

// SendRequest is the body for POST /api/sendNotification.
type SendRequest struct {
	UserID string `json:"_id" binding:"required"`
	Notification
}

// Handler handles push key, subscribe and send endpoints.
type Handler struct {
	notifier *Notifier
	logger   *zap.Logger
}

// NewHandler creates a push notification handler.
func NewHandler(notifier *Notifier, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{notifier: notifier, logger: logger}
}

// Keys handles GET /vapidkeys. Only the public half ever leaves the server.
func (h *Handler) Keys(c *gin.Context) {
	response.OK(c, gin.H{"keys": gin.H{"publicKey": h.notifier.PublicKey()}})
}

// Subscribe handles POST /api/subscribe.
func (h *Handler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sub := req.Subscription
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		response.BadRequest(c, "subscription endpoint and keys are required")
		return
	}
	if err := h.notifier.Subscribe(c.Request.Context(), req.UserID, sub); err != nil {
		h.logger.Error("save push subscription failed", zap.Error(err), zap.String("user_id", req.UserID))
		response.Internal(c, "failed to save subscription")
		return
	}
	response.OK(c, gin.H{"message": "Subscription received"})
}

// Send handles POST /api/sendNotification.
func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	delivered, err := h.notifier.Notify(c.Request.Context(), req.UserID, req.Notification)
	if err != nil {
		h.logger.Error("send notification failed", zap.Error(err), zap.String("user_id", req.UserID))
		response.Internal(c, "Error sending notification")
		return
	}
	response.OK(c, gin.H{"message": "Notification sent successfully", "delivered": delivered})
}
