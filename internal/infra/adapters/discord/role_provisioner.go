// File: internal/infra/adapters/discord/role_provisioner.go
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"rust-vip-platform/internal/config"
	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/adapter"
)

var _ adapter.Provisioner = (*RoleProvisioner)(nil)

// Discord user ids are snowflakes.
var snowflake = regexp.MustCompile(`^\d{17,20}$`)

// RoleProvisioner grants and revokes the VIP guild role through the bot's
// REST credential. No gateway connection is opened.
type RoleProvisioner struct {
	session *discordgo.Session
	guildID string
	roleID  string
	log     *zerolog.Logger
}

// NewRoleProvisioner never fails on missing settings; an unconfigured
// provisioner answers every call with ProvisionNotConfigured.
func NewRoleProvisioner(cfg config.DiscordConfig, logger *zerolog.Logger) (*RoleProvisioner, error) {
	l := logger.With().Str("component", "DiscordRoleProvisioner").Logger()
	p := &RoleProvisioner{guildID: cfg.GuildID, roleID: cfg.VIPRole, log: &l}
	if cfg.BotToken == "" {
		return p, nil
	}
	s, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	s.Client = &http.Client{Timeout: cfg.Timeout}
	p.session = s
	return p, nil
}

// Session exposes the REST session so tests can swap its transport.
func (p *RoleProvisioner) Session() *discordgo.Session { return p.session }

func (p *RoleProvisioner) Target() model.ProvisionTarget { return model.TargetDiscord }

func (p *RoleProvisioner) configured() bool {
	return p.session != nil && p.guildID != "" && p.roleID != ""
}

func (p *RoleProvisioner) precheck(action model.ProvisionAction, userID string) (model.ProvisionResult, bool) {
	if !p.configured() {
		return model.ProvisionFailure(model.TargetDiscord, action, model.ProvisionNotConfigured, "discord bot token, guild or role missing"), false
	}
	if userID == "" {
		return model.ProvisionFailure(model.TargetDiscord, action, model.ProvisionMissingLink, "user has no linked discord account"), false
	}
	if !snowflake.MatchString(userID) {
		return model.ProvisionFailure(model.TargetDiscord, action, model.ProvisionInvalidID, "malformed discord id "+userID), false
	}
	return model.ProvisionResult{}, true
}

// Add puts the VIP role on the member. Discord answers 204 on success.
func (p *RoleProvisioner) Add(ctx context.Context, userID string) model.ProvisionResult {
	if res, ok := p.precheck(model.ActionAdd, userID); !ok {
		return res
	}
	err := p.session.GuildMemberRoleAdd(p.guildID, userID, p.roleID, discordgo.WithContext(ctx))
	return p.result(model.ActionAdd, userID, err)
}

// Remove deletes the VIP role from the member.
func (p *RoleProvisioner) Remove(ctx context.Context, userID string) model.ProvisionResult {
	if res, ok := p.precheck(model.ActionRemove, userID); !ok {
		return res
	}
	err := p.session.GuildMemberRoleRemove(p.guildID, userID, p.roleID, discordgo.WithContext(ctx))
	return p.result(model.ActionRemove, userID, err)
}

// Status reports whether the member currently holds the VIP role.
func (p *RoleProvisioner) Status(ctx context.Context, userID string) model.ProvisionResult {
	if res, ok := p.precheck(model.ActionStatus, userID); !ok {
		return res
	}
	m, err := p.session.GuildMember(p.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return p.result(model.ActionStatus, userID, err)
	}
	res := model.ProvisionSuccess(model.TargetDiscord, model.ActionStatus)
	res.Active = slices.Contains(m.Roles, p.roleID)
	return res
}

func (p *RoleProvisioner) result(action model.ProvisionAction, userID string, err error) model.ProvisionResult {
	if err == nil {
		p.log.Info().Str("discord_id", userID).Str("action", string(action)).Msg("discord role call succeeded")
		return model.ProvisionSuccess(model.TargetDiscord, action)
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		res := model.ProvisionFailure(model.TargetDiscord, action, model.ProvisionRejected, string(restErr.ResponseBody))
		res.StatusCode = restErr.Response.StatusCode
		p.log.Warn().Str("discord_id", userID).Str("action", string(action)).Int("status", res.StatusCode).Msg("discord rejected role call")
		return res
	}

	p.log.Warn().Err(err).Str("discord_id", userID).Str("action", string(action)).Msg("discord role call failed")
	return model.ProvisionFailure(model.TargetDiscord, action, model.ProvisionTransport, err.Error())
}
