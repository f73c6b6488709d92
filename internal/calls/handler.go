package calls

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ringline/backend/internal/models"
	"github.com/ringline/backend/pkg/response"
)

// RegisterRequest is the body for POST /api/v1/call/register.
type RegisterRequest struct {
	CallID    string           `json:"callId" binding:"required"`
	CallType  string           `json:"callType"`
	CreatorID string           `json:"creatorId"`
	Receivers models.Receivers `json:"receivers"`
}

// Handler handles call registry HTTP endpoints.
type Handler struct {
	registry Registry
	logger   *zap.Logger
}

// NewHandler creates a calls handler.
func NewHandler(registry Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{registry: registry, logger: logger}
}

// Register handles POST /api/v1/call/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.registry.Register(models.CallRecord{
		CallID:    req.CallID,
		CreatorID: req.CreatorID,
		Receivers: req.Receivers,
		Type:      req.CallType,
	})
	h.logger.Debug("call registered", zap.String("call_id", req.CallID), zap.String("creator_id", req.CreatorID))
	response.OK(c, gin.H{"message": "Call registered successfully."})
}

// Lookup handles GET /api/v1/call/:callId.
func (h *Handler) Lookup(c *gin.Context) {
	rec, err := h.registry.Lookup(c.Param("callId"))
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "call data not found")
		return
	}
	if err != nil {
		h.logger.Error("lookup call failed", zap.Error(err), zap.String("call_id", c.Param("callId")))
		response.Internal(c, "failed to look up call")
		return
	}
	response.OK(c, rec)
}
