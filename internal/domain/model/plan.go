package model

import "strings"

// Plan is a purchasable VIP tier. The catalog is fixed; prices are in BRL.
type Plan struct {
	ID    string
	Name  string
	Price float64
	Role  Role
}

const (
	PlanVIPBasic   = "vip-basic"
	PlanVIPPlus    = "vip-plus"
	PlanVIPPremium = "vip-premium"
)

var catalog = []Plan{
	{ID: PlanVIPBasic, Name: "VIP Básico", Price: 19.90, Role: RoleVIP},
	{ID: PlanVIPPlus, Name: "VIP Plus", Price: 39.90, Role: RoleVIPPlus},
	{ID: PlanVIPPremium, Name: "VIP Premium", Price: 59.90, Role: RoleVIPPlus},
}

// Plans returns a copy of the catalog.
func Plans() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

// LookupPlan resolves an exact plan id.
func LookupPlan(id string) (Plan, bool) {
	for _, p := range catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// nameRules is checked in order; more specific substrings come first.
var nameRules = []struct {
	substr string
	name   string
}{
	{"vip-premium", "VIP Premium"},
	{"vip-plus", "VIP Plus"},
	{"vip-basic", "VIP Básico"},
	{"premium", "VIP Premium"},
	{"plus", "VIP Plus"},
	{"basic", "VIP Básico"},
}

// PlanDisplayName maps a plan id coming from a payment reference to the name
// stored in the ledger. Ids are matched by substring so suffixed ids such as
// "vip-plus-monthly" still resolve.
func PlanDisplayName(planID string) string {
	id := strings.ToLower(strings.TrimSpace(planID))
	for _, r := range nameRules {
		if strings.Contains(id, r.substr) {
			return r.name
		}
	}
	return "VIP"
}

// PlanRole is the user role granted while a subscription to planID is active.
func PlanRole(planID string) Role {
	id := strings.ToLower(planID)
	if strings.Contains(id, "plus") || strings.Contains(id, "premium") {
		return RoleVIPPlus
	}
	return RoleVIP
}
