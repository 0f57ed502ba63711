package ingress

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"callrelay/internal/constants"
	"callrelay/internal/logger"
	"callrelay/pkg/metrics"
	"callrelay/pkg/models"
)

// Handler terminates the inbound HTTP API and hands normalized envelopes to
// the configured forwarder.
type Handler struct {
	forwarder Forwarder
	logger    logger.Logger
}

func NewHandler(forwarder Forwarder, log logger.Logger) *Handler {
	return &Handler{
		forwarder: forwarder,
		logger:    log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/simple", h.ReceiveSimpleCall)
	}

	router.POST("/ID_REQ_KC_STORE7D3BPACKET", h.ReceiveMessage)
}

// ReceiveSimpleCall accepts a call record from query parameters or a JSON
// body. Query parameters win when the whole set is present. A request with
// neither source complete gets the legacy "missing input" body, which ships
// with status 200 for compatibility with existing callers.
func (h *Handler) ReceiveSimpleCall(c *gin.Context) {
	ctx := c.Request.Context()

	call, ok := h.bindCall(c)
	if !ok {
		metrics.IncIngressRequest("simple", "missing_input")
		h.logger.WarnwCtx(ctx, "Rejecting call without usable input")
		c.JSON(http.StatusOK, gin.H{
			"error": "Missing input: provide either query parameters or a JSON body.",
		})
		return
	}

	if err := call.Validate(); err != nil {
		metrics.IncIngressRequest("simple", "invalid")
		h.logger.ErrorwCtx(ctx, "Rejecting invalid call record", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": fmt.Sprintf("Internal server error: %v", err),
		})
		return
	}

	env := models.EnvelopeForCall(call, c.GetHeader(constants.RequestIDHeader))
	h.forward(c, "simple", env)
}

func (h *Handler) bindCall(c *gin.Context) (models.SimpleCall, bool) {
	var query models.SimpleCall
	if err := c.ShouldBindQuery(&query); err == nil && query.Complete() {
		return query, true
	}

	var body models.SimpleCall
	if err := c.ShouldBindJSON(&body); err == nil && body.Complete() {
		return body, true
	}

	return models.SimpleCall{}, false
}

// ReceiveMessage accepts the relay contract used between proxy hops: a JSON
// body carrying id and body, with the correlation id in the Request-Id
// header. Malformed bodies collapse into the catch-all 500 shape.
func (h *Handler) ReceiveMessage(c *gin.Context) {
	ctx := c.Request.Context()

	var env models.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		metrics.IncIngressRequest("relay", "invalid")
		h.logger.ErrorwCtx(ctx, "Rejecting malformed relay payload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": fmt.Sprintf("Internal server error: %v", err),
		})
		return
	}

	if env.ID == "" || env.Body == "" {
		metrics.IncIngressRequest("relay", "invalid")
		h.logger.WarnwCtx(ctx, "Rejecting relay payload without id or body")
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": "Internal server error: id and body are required",
		})
		return
	}

	if rid := c.GetHeader(constants.RequestIDHeader); rid != "" {
		env.RequestID = rid
	}

	h.forward(c, "relay", env)
}

func (h *Handler) forward(c *gin.Context, endpoint string, env models.Envelope) {
	ctx := c.Request.Context()

	if err := h.forwarder.Forward(ctx, env); err != nil {
		metrics.IncIngressRequest(endpoint, "error")
		h.logger.ErrorwCtx(ctx, "Forward failed",
			"error", err,
			"message_id", env.ID,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"detail": h.forwarder.FailureMessage(err),
		})
		return
	}

	metrics.IncIngressRequest(endpoint, "success")
	h.logger.InfowCtx(ctx, "Message forwarded", "message_id", env.ID)
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": h.forwarder.SuccessMessage(),
	})
}
