package adapter

import (
	"context"

	"rust-vip-platform/internal/domain/model"
)

// Provisioner grants or revokes VIP access in one external system. The id is
// the user's account id in that system (Discord user id, SteamID64).
//
// Implementations never return errors: missing configuration, invalid ids and
// remote failures all come back as a non-OK ProvisionResult. Add and Remove
// must be safe to repeat.
type Provisioner interface {
	Target() model.ProvisionTarget
	Add(ctx context.Context, id string) model.ProvisionResult
	Remove(ctx context.Context, id string) model.ProvisionResult
	Status(ctx context.Context, id string) model.ProvisionResult
}
