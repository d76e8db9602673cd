package model

import (
	"fmt"
	"strings"
)

// Plan is one purchasable subscription tier. The catalog is configuration
// data and is never mutated at runtime.
type Plan struct {
	ID           string
	Name         string
	PriceRUB     int64
	Description  string
	DurationDays int
}

// AmountKopeks returns the plan price in minor units as the gateway expects it.
func (p Plan) AmountKopeks() int64 { return p.PriceRUB * 100 }

// PlanCatalog is a read-only index of plans, the single source of truth for
// prices and durations.
type PlanCatalog struct {
	plans []Plan
	byID  map[string]Plan
}

func NewPlanCatalog(plans []Plan) (*PlanCatalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("plan catalog is empty")
	}
	byID := make(map[string]Plan, len(plans))
	for _, p := range plans {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("plan with empty id")
		}
		if p.PriceRUB <= 0 || p.DurationDays <= 0 {
			return nil, fmt.Errorf("plan %q: price and duration must be positive", id)
		}
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("duplicate plan id %q", id)
		}
		byID[id] = p
	}
	cp := make([]Plan, len(plans))
	copy(cp, plans)
	return &PlanCatalog{plans: cp, byID: byID}, nil
}

func (c *PlanCatalog) FindByID(id string) (Plan, bool) {
	p, ok := c.byID[id]
	return p, ok
}

func (c *PlanCatalog) List() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

// DefaultPlans mirrors the catalog the mini-app shipped with.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: "basic", Name: "Basic", PriceRUB: 20, Description: "Access to basic features for 1 month", DurationDays: 30},
		{ID: "standard", Name: "Standard", PriceRUB: 499, Description: "Access to all features for 1 month", DurationDays: 30},
		{ID: "premium", Name: "Premium", PriceRUB: 999, Description: "Access to all features for 3 months with discount", DurationDays: 90},
	}
}
