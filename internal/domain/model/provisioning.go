package model

import "fmt"

type ProvisionTarget string

const (
	TargetDiscord    ProvisionTarget = "discord"
	TargetGameServer ProvisionTarget = "gameserver"
)

type ProvisionAction string

const (
	ActionAdd    ProvisionAction = "add"
	ActionRemove ProvisionAction = "remove"
	ActionStatus ProvisionAction = "status"
)

// ProvisionKind tells why a provisioning call ended the way it did.
type ProvisionKind string

const (
	ProvisionOK            ProvisionKind = "ok"
	ProvisionNotConfigured ProvisionKind = "not_configured"
	ProvisionInvalidID     ProvisionKind = "invalid_id"
	ProvisionMissingLink   ProvisionKind = "missing_link" // user has no linked account
	ProvisionRejected      ProvisionKind = "rejected"     // remote answered with a non-success status
	ProvisionTransport     ProvisionKind = "transport"    // request never got an answer
)

// ProvisionResult is returned by provisioning adapters instead of an error.
// OK() is the boolean contract; Kind and Detail say why.
type ProvisionResult struct {
	Target     ProvisionTarget `json:"target"`
	Action     ProvisionAction `json:"action"`
	Kind       ProvisionKind   `json:"kind"`
	StatusCode int             `json:"status_code,omitempty"`
	Detail     string          `json:"detail,omitempty"`
	// Active is only meaningful for ActionStatus.
	Active bool `json:"active,omitempty"`
}

func (r ProvisionResult) OK() bool { return r.Kind == ProvisionOK }

func (r ProvisionResult) String() string {
	if r.OK() {
		return fmt.Sprintf("%s %s ok", r.Target, r.Action)
	}
	return fmt.Sprintf("%s %s failed (%s): %s", r.Target, r.Action, r.Kind, r.Detail)
}

func ProvisionSuccess(t ProvisionTarget, a ProvisionAction) ProvisionResult {
	return ProvisionResult{Target: t, Action: a, Kind: ProvisionOK}
}

func ProvisionFailure(t ProvisionTarget, a ProvisionAction, kind ProvisionKind, detail string) ProvisionResult {
	return ProvisionResult{Target: t, Action: a, Kind: kind, Detail: detail}
}

// ProvisionSummary collects the outcome of the best-effort calls made for a
// single subscription.
type ProvisionSummary struct {
	Discord    ProvisionResult `json:"discord"`
	GameServer ProvisionResult `json:"gameserver"`
}

func (s ProvisionSummary) AllOK() bool { return s.Discord.OK() && s.GameServer.OK() }

// Errors lists the failed calls in human-readable form.
func (s ProvisionSummary) Errors() []string {
	var out []string
	for _, r := range []ProvisionResult{s.Discord, s.GameServer} {
		if !r.OK() {
			out = append(out, r.String())
		}
	}
	return out
}
