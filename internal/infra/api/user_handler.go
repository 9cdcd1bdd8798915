package api

import (
	"net/http"
	"time"

	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/infra/logging"
	"rust-vip-platform/internal/infra/redis"
)

type planView struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	plans := model.Plans()
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		out = append(out, planView{ID: p.ID, Name: p.Name, Price: p.Price})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

type checkoutRequest struct {
	PlanID string `json:"planId" validate:"required,max=64"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	userID := sessionFrom(r.Context()).UserID()
	ctx := logging.WithUserID(r.Context(), userID)
	log := logging.With(ctx, s.log)

	if s.svc.RateLimiter != nil {
		allowed, err := s.svc.RateLimiter.Allow(ctx, redis.CheckoutKey(userID), s.opts.CheckoutLimit, time.Minute)
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable; allowing checkout")
		} else if !allowed {
			writeError(w, http.StatusTooManyRequests, "too many checkout attempts")
			return
		}
	}

	sess, err := s.svc.Checkout.Start(ctx, userID, req.PlanID)
	if err != nil {
		log.Error().Err(err).Str("plan_id", req.PlanID).Msg("checkout failed")
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type userView struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	DiscordID string     `json:"discordId,omitempty"`
	SteamID   string     `json:"steamId,omitempty"`
}

func newUserView(u *model.User) userView {
	return userView{ID: u.ID, Email: u.Email, Role: u.Role, DiscordID: u.DiscordIDOrEmpty(), SteamID: u.SteamIDOrEmpty()}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Users.Get(r.Context(), sessionFrom(r.Context()).UserID())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newUserView(u))
}

// linkRequest fields are optional; an empty string unlinks the account.
type linkRequest struct {
	DiscordID *string `json:"discordId" validate:"omitempty,numeric,min=17,max=20"`
	SteamID   *string `json:"steamId" validate:"omitempty,numeric,len=17"`
}

func (s *Server) handleLinkAccounts(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	userID := sessionFrom(r.Context()).UserID()
	u, err := s.svc.Users.LinkAccounts(r.Context(), userID, req.DiscordID, req.SteamID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	logging.With(r.Context(), s.log).Info().
		Str("user_id", userID).
		Str("discord_id", logging.Redact(u.DiscordIDOrEmpty(), s.opts.Dev)).
		Str("steam_id", logging.Redact(u.SteamIDOrEmpty(), s.opts.Dev)).
		Msg("accounts linked")
	writeJSON(w, http.StatusOK, newUserView(u))
}
