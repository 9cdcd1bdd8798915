// File: internal/usecase/provisioning_uc.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rust-vip-platform/internal/domain/model"
	"rust-vip-platform/internal/domain/ports/adapter"
	"rust-vip-platform/internal/domain/ports/repository"
	"rust-vip-platform/internal/infra/metrics"
)

// ProvisioningUseCase drives the Discord and game-server adapters for a
// subscription. Both calls are attempted independently and concurrently;
// failures end up in the returned summary, never as errors.
type ProvisioningUseCase struct {
	discord adapter.Provisioner
	game    adapter.Provisioner
	users   repository.UserRepository
	subs    repository.SubscriptionRepository
	log     *zerolog.Logger
}

func NewProvisioningUseCase(discord, game adapter.Provisioner, users repository.UserRepository, subs repository.SubscriptionRepository, logger *zerolog.Logger) *ProvisioningUseCase {
	l := logger.With().Str("component", "ProvisioningUseCase").Logger()
	return &ProvisioningUseCase{discord: discord, game: game, users: users, subs: subs, log: &l}
}

type provisionCall func(p adapter.Provisioner, ctx context.Context, id string) model.ProvisionResult

func callAdd(p adapter.Provisioner, ctx context.Context, id string) model.ProvisionResult {
	return p.Add(ctx, id)
}

func callRemove(p adapter.Provisioner, ctx context.Context, id string) model.ProvisionResult {
	return p.Remove(ctx, id)
}

func callStatus(p adapter.Provisioner, ctx context.Context, id string) model.ProvisionResult {
	return p.Status(ctx, id)
}

// Grant gives the user VIP access in both systems and sets the assigned
// flags of sub for every call that succeeded.
func (uc *ProvisioningUseCase) Grant(ctx context.Context, user *model.User, sub *model.Subscription) model.ProvisionSummary {
	return uc.apply(ctx, user, sub, callAdd, true, true)
}

// GrantMissing only retries the systems whose flag on sub is still false.
func (uc *ProvisioningUseCase) GrantMissing(ctx context.Context, user *model.User, sub *model.Subscription) model.ProvisionSummary {
	return uc.apply(ctx, user, sub, callAdd, !sub.DiscordRoleAssigned, !sub.RustPermissionAssigned)
}

// Revoke removes VIP access in both systems and clears the flags.
func (uc *ProvisioningUseCase) Revoke(ctx context.Context, user *model.User, sub *model.Subscription) model.ProvisionSummary {
	return uc.apply(ctx, user, sub, callRemove, true, true)
}

// Status asks both systems whether the user currently holds VIP access.
func (uc *ProvisioningUseCase) Status(ctx context.Context, userID string) (*model.User, model.ProvisionSummary, error) {
	user, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, model.ProvisionSummary{}, err
	}
	return user, uc.apply(ctx, user, nil, callStatus, true, true), nil
}

func (uc *ProvisioningUseCase) apply(ctx context.Context, user *model.User, sub *model.Subscription, call provisionCall, doDiscord, doGame bool) model.ProvisionSummary {
	summary := model.ProvisionSummary{
		Discord:    model.ProvisionSuccess(model.TargetDiscord, model.ActionStatus),
		GameServer: model.ProvisionSuccess(model.TargetGameServer, model.ActionStatus),
	}

	var g errgroup.Group
	if doDiscord {
		g.Go(func() error {
			summary.Discord = uc.run(ctx, uc.discord, call, user.DiscordIDOrEmpty(), sub)
			return nil
		})
	}
	if doGame {
		g.Go(func() error {
			summary.GameServer = uc.run(ctx, uc.game, call, user.SteamIDOrEmpty(), sub)
			return nil
		})
	}
	_ = g.Wait()
	return summary
}

func (uc *ProvisioningUseCase) run(ctx context.Context, p adapter.Provisioner, call provisionCall, accountID string, sub *model.Subscription) model.ProvisionResult {
	res := call(p, ctx, accountID)
	metrics.ObserveProvision(res)

	evt := uc.log.Info()
	if !res.OK() {
		evt = uc.log.Warn()
	}
	evt.Str("target", string(res.Target)).Str("action", string(res.Action)).Str("kind", string(res.Kind)).Int("status", res.StatusCode).Msg(res.String())

	if sub == nil || !res.OK() || res.Action == model.ActionStatus {
		return res
	}
	assigned := res.Action == model.ActionAdd
	if err := uc.subs.SetProvisioned(ctx, repository.NoTX, sub.ID, res.Target, assigned); err != nil {
		uc.log.Error().Err(err).Str("subscription_id", sub.ID).Str("target", string(res.Target)).Msg("failed to record provisioning flag")
		return res
	}
	switch res.Target {
	case model.TargetDiscord:
		sub.DiscordRoleAssigned = assigned
	case model.TargetGameServer:
		sub.RustPermissionAssigned = assigned
	}
	return res
}
