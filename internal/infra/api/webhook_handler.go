package api

import (
	"io"
	"net/http"

	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/infra/logging"
	"rust-vip-platform/internal/infra/metrics"
	"rust-vip-platform/internal/infra/payment"
)

type webhookResponse struct {
	Received       bool                   `json:"received"`
	Success        bool                   `json:"success"`
	Message        string                 `json:"message,omitempty"`
	Status         string                 `json:"status,omitempty"`
	Data           *model.ApprovedPayment `json:"data,omitempty"`
	SubscriptionID string                 `json:"subscriptionId,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

// handleWebhook acknowledges every provider callback that passes the method
// and secret checks with 200, whatever the business outcome. Missed work is
// picked up by the pending sweep.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), s.log)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.opts.Webhook.Secret != "" && !secretEqual(r.Header.Get("X-Webhook-Secret"), s.opts.Webhook.Secret) {
		metrics.IncWebhook("unknown", "unauthorized")
		log.Warn().Msg("webhook secret mismatch")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	n, strategy, ok := s.parser.Parse(r.URL.Query(), body)
	if !ok {
		metrics.IncWebhook("unknown", "unparsed")
		log.Warn().Str("query", r.URL.RawQuery).Int("body_bytes", len(body)).Msg("webhook without notification id")
		writeJSON(w, http.StatusOK, webhookResponse{Received: true, Message: model.MsgMissingID})
		return
	}

	if secret := s.opts.Webhook.SignatureSecret; secret != "" {
		if !payment.VerifySignature(secret, r.Header.Get("x-signature"), n.ID, r.Header.Get("x-request-id")) {
			metrics.IncWebhook(n.Topic, "unauthorized")
			log.Warn().Str("payment_id", n.ID).Msg("webhook signature mismatch")
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	ctx := logging.WithPaymentID(r.Context(), n.ID)
	log = logging.With(ctx, s.log)
	log.Info().Str("topic", n.Topic).Str("strategy", strategy).Msg("webhook received")

	out, err := s.svc.Notifications.Handle(ctx, n)
	if err != nil {
		metrics.IncWebhook(n.Topic, "error")
		log.Error().Err(err).Msg("webhook processing failed")
		writeJSON(w, http.StatusOK, webhookResponse{Received: true, Error: "processing failed"})
		return
	}

	res := out.Result
	switch {
	case res.AlreadyProcessed:
		metrics.IncWebhook(n.Topic, "duplicate")
	case res.Success:
		metrics.IncWebhook(n.Topic, "processed")
	default:
		metrics.IncWebhook(n.Topic, "ignored")
	}
	writeJSON(w, http.StatusOK, webhookResponse{
		Received:       true,
		Success:        res.Success,
		Message:        res.Message,
		Status:         res.Status,
		Data:           res.Data,
		SubscriptionID: out.SubscriptionID,
	})
}
