package api

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftdesk/craftdesk/internal/apierrors"
	"github.com/craftdesk/craftdesk/internal/gateway"
	"github.com/craftdesk/craftdesk/internal/invoice"
)

// maxCallbackBody bounds inbound provider callbacks.
const maxCallbackBody = 1 << 20

type ipnHandler struct {
	dispatcher *invoice.Dispatcher
	gateways   *gateway.Registry
}

// info answers GETs from people poking the endpoint in a browser.
// Providers only ever POST.
func (h *ipnHandler) info(c *gin.Context) {
	c.String(http.StatusOK, "This endpoint receives payment notifications. There is nothing to see here.")
}

// callback hands the raw request to the dispatcher. Unknown gateways
// and unmatched invoices answer 200 with ok:false so providers stop
// retrying; dropped (unverified) callbacks look identical to success.
func (h *ipnHandler) callback(c *gin.Context) {
	gatewayID := c.Param("gateway")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		apierrors.Error(c, apierrors.CodeInvalidRequest)
		return
	}

	cb := &gateway.Callback{Body: body, Header: c.Request.Header}
	if err := h.dispatcher.Dispatch(c.Request.Context(), gatewayID, cb); err != nil {
		if ue, ok := apierrors.AsUserError(err); ok {
			c.JSON(http.StatusOK, gin.H{"ok": false, "message": ue.Message})
			return
		}
		log.Printf("[api] ipn dispatch for %s failed: %v", gatewayID, err)
		apierrors.Error(c, apierrors.CodeInternalError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
