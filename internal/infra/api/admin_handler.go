package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/infra/logging"
)

func (s *Server) requireAdminSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !secretEqual(r.Header.Get("X-Admin-Secret"), s.opts.AdminSecret) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type reprocessRequest struct {
	PaymentID string `json:"paymentId" validate:"required,max=64"`
	Topic     string `json:"topic" validate:"omitempty,oneof=payment merchant_order"`
}

type reprocessResponse struct {
	Success                bool                    `json:"success"`
	Message                string                  `json:"message,omitempty"`
	Status                 string                  `json:"status,omitempty"`
	Data                   *model.ApprovedPayment  `json:"data,omitempty"`
	SubscriptionID         string                  `json:"subscriptionId,omitempty"`
	DiscordRoleAssigned    bool                    `json:"discordRoleAssigned"`
	RustPermissionAssigned bool                    `json:"rustPermissionAssigned"`
	Provisioning           *model.ProvisionSummary `json:"provisioning,omitempty"`
}

// handleReprocess re-runs the notification chain for one payment, ignoring
// the processed marker. Unlike the webhook, outcomes map to HTTP statuses.
func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	var req reprocessRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Topic == "" {
		req.Topic = model.TopicPayment
	}

	ctx := logging.WithPaymentID(r.Context(), req.PaymentID)
	log := logging.With(ctx, s.log)
	log.Info().Str("topic", req.Topic).Str("admin", sessionFrom(ctx).UserID()).Msg("admin reprocess")

	out, err := s.svc.Notifications.Reprocess(ctx, model.Notification{ID: req.PaymentID, Topic: req.Topic})
	if err != nil {
		log.Error().Err(err).Msg("reprocess failed")
		writeError(w, statusFor(err), err.Error())
		return
	}

	resp := reprocessResponse{
		Success:        out.Result.Success,
		Message:        out.Result.Message,
		Status:         out.Result.Status,
		Data:           out.Result.Data,
		SubscriptionID: out.SubscriptionID,
		Provisioning:   out.Provisioning,
	}
	if out.Provisioning != nil {
		resp.DiscordRoleAssigned = out.Provisioning.Discord.OK()
		resp.RustPermissionAssigned = out.Provisioning.GameServer.OK()
	}
	status := http.StatusOK
	if !out.Result.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, resp)
}

type provisioningStatusResponse struct {
	UserID     string                `json:"userId"`
	DiscordID  string                `json:"discordId,omitempty"`
	SteamID    string                `json:"steamId,omitempty"`
	Discord    model.ProvisionResult `json:"discord"`
	GameServer model.ProvisionResult `json:"gameserver"`
}

func (s *Server) handleProvisioningStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, summary, err := s.svc.Provisioning.Status(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, provisioningStatusResponse{
		UserID:     user.ID,
		DiscordID:  user.DiscordIDOrEmpty(),
		SteamID:    user.SteamIDOrEmpty(),
		Discord:    summary.Discord,
		GameServer: summary.GameServer,
	})
}
