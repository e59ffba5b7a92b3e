package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/channel"
	"github.com/testforge/smartfill/internal/domain"
	"github.com/testforge/smartfill/pkg/httputil"
)

// messageHandler carries the message channel over HTTP. Dispatched messages
// always answer 200 with the envelope; only transport failures (bad body,
// page guard) use other status codes.
type messageHandler struct {
	dispatcher *channel.Dispatcher
	guard      *PageGuard
	logger     *zap.Logger
}

func newMessageHandler(d *channel.Dispatcher, guard *PageGuard, logger *zap.Logger) *messageHandler {
	return &messageHandler{dispatcher: d, guard: guard, logger: logger}
}

// Post handles POST /api/v1/messages
func (h *messageHandler) Post(w http.ResponseWriter, r *http.Request) {
	var msg channel.Message
	if err := httputil.DecodeJSON(r, &msg); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}
	if msg.Type == "" {
		httputil.ErrorFromDomain(w, domain.ErrValidationField("type", "message type is required"))
		return
	}

	if guarded(msg) {
		release, err := h.guard.Acquire(msg.PageID)
		if err != nil {
			h.logger.Debug("analysis rejected by page guard",
				zap.String("page_id", msg.PageID),
				zap.String("code", domain.GetErrorCode(err)),
			)
			httputil.ErrorFromDomain(w, err)
			return
		}
		defer release()
	}

	resp := h.dispatcher.Call(r.Context(), msg)
	httputil.Raw(w, http.StatusOK, resp)
}

// Operations handles GET /api/v1/operations
func (h *messageHandler) Operations(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, h.dispatcher.Operations())
}

// guarded reports whether msg analyzes a page and so goes through the page
// guard. AUTOFILL_FORM analyzes the page itself when it carries no fields.
func guarded(msg channel.Message) bool {
	if msg.PageID == "" {
		return false
	}
	switch msg.Type {
	case domain.OpAnalyzePage, domain.OpSmartAnalyze:
		return true
	case domain.OpAutofillForm:
		var req struct {
			Fields []json.RawMessage `json:"formFields"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return true
		}
		return len(req.Fields) == 0
	}
	return false
}
