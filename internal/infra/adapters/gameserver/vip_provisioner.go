// File: internal/infra/adapters/gameserver/vip_provisioner.go
package gameserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"rust-vip-platform/internal/config"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/adapter"
	"rust-vip-platform/internal/infra/retry"
)

var _ adapter.Provisioner = (*VIPProvisioner)(nil)

// SteamID64 is always 17 digits.
var steamID = regexp.MustCompile(`^\d{17}$`)

func ValidSteamID(id string) bool { return steamID.MatchString(id) }

// VIPProvisioner talks to the game server's admin plugin: POST /addvip,
// POST /removevip and GET /vipstatus, all behind a bearer token.
type VIPProvisioner struct {
	baseURL string
	token   string
	client  *http.Client
	policy  retry.Policy
	log     *zerolog.Logger
}

func NewVIPProvisioner(cfg config.GameServerConfig, policy retry.Policy, logger *zerolog.Logger) *VIPProvisioner {
	l := logger.With().Str("component", "GameServerProvisioner").Logger()
	return &VIPProvisioner{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
		policy:  policy,
		log:     &l,
	}
}

func (p *VIPProvisioner) Target() model.ProvisionTarget { return model.TargetGameServer }

func (p *VIPProvisioner) precheck(action model.ProvisionAction, id string) (model.ProvisionResult, bool) {
	if p.baseURL == "" || p.token == "" {
		return model.ProvisionFailure(model.TargetGameServer, action, model.ProvisionNotConfigured, "game server url or token missing"), false
	}
	if id == "" {
		return model.ProvisionFailure(model.TargetGameServer, action, model.ProvisionMissingLink, "user has no linked steam account"), false
	}
	if !ValidSteamID(id) {
		return model.ProvisionFailure(model.TargetGameServer, action, model.ProvisionInvalidID, "steam id must be 17 digits: "+id), false
	}
	return model.ProvisionResult{}, true
}

type vipRequest struct {
	SteamID string `json:"steamId"`
}

type vipStatus struct {
	SteamID string `json:"steamId"`
	VIP     bool   `json:"vip"`
}

func (p *VIPProvisioner) Add(ctx context.Context, id string) model.ProvisionResult {
	return p.mutate(ctx, model.ActionAdd, "/addvip", id)
}

func (p *VIPProvisioner) Remove(ctx context.Context, id string) model.ProvisionResult {
	return p.mutate(ctx, model.ActionRemove, "/removevip", id)
}

func (p *VIPProvisioner) mutate(ctx context.Context, action model.ProvisionAction, path, id string) model.ProvisionResult {
	if res, ok := p.precheck(action, id); !ok {
		return res
	}
	body, _ := json.Marshal(vipRequest{SteamID: id})
	if err := p.call(ctx, http.MethodPost, path, body, nil); err != nil {
		return p.failure(action, id, err)
	}
	p.log.Info().Str("steam_id", id).Str("action", string(action)).Msg("game server vip call succeeded")
	return model.ProvisionSuccess(model.TargetGameServer, action)
}

func (p *VIPProvisioner) Status(ctx context.Context, id string) model.ProvisionResult {
	if res, ok := p.precheck(model.ActionStatus, id); !ok {
		return res
	}
	var st vipStatus
	if err := p.call(ctx, http.MethodGet, "/vipstatus?steamId="+url.QueryEscape(id), nil, &st); err != nil {
		return p.failure(model.ActionStatus, id, err)
	}
	res := model.ProvisionSuccess(model.TargetGameServer, model.ActionStatus)
	res.Active = st.VIP
	return res
}

func (p *VIPProvisioner) call(ctx context.Context, method, path string, body []byte, out any) error {
	return retry.Do(ctx, p.policy, func(ctx context.Context) error {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rd)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+p.token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &adapter.ProviderError{Provider: "gameserver", Op: strings.TrimPrefix(strings.SplitN(path, "?", 2)[0], "/"), StatusCode: resp.StatusCode, Body: string(b)}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(fmt.Errorf("decode game server response: %w", err))
		}
		return nil
	}, func(err error, attempt int, wait time.Duration) {
		p.log.Warn().Err(err).Str("path", path).Int("attempt", attempt).Dur("wait", wait).Msg("game server call failed; retrying")
	})
}

func (p *VIPProvisioner) failure(action model.ProvisionAction, id string, err error) model.ProvisionResult {
	var pe *adapter.ProviderError
	if errors.As(err, &pe) {
		res := model.ProvisionFailure(model.TargetGameServer, action, model.ProvisionRejected, pe.Body)
		res.StatusCode = pe.StatusCode
		p.log.Warn().Str("steam_id", id).Str("action", string(action)).Int("status", pe.StatusCode).Msg("game server rejected vip call")
		return res
	}
	p.log.Warn().Err(err).Str("steam_id", id).Str("action", string(action)).Msg("game server vip call failed")
	return model.ProvisionFailure(model.TargetGameServer, action, model.ProvisionTransport, err.Error())
}
