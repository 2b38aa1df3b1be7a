// Package access resolves what a caller may do from a signed license key.
package access

import (
	"fmt"
	"strings"
	"time"
)

type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Limits are the capabilities of a plan. MaxRows 0 means unlimited.
type Limits struct {
	MaxRows int  `json:"max_rows"`
	Export  bool `json:"export"`
}

var planLimits = map[Plan]Limits{
	PlanFree:       {MaxRows: 200, Export: false},
	PlanPro:        {MaxRows: 10000, Export: true},
	PlanEnterprise: {MaxRows: 0, Export: true},
}

// ParsePlan accepts a plan name in any case
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := planLimits[p]; !ok {
		return "", fmt.Errorf("unknown plan %q (want free, pro or enterprise)", s)
	}
	return p, nil
}

func (p Plan) Limits() Limits {
	return planLimits[p]
}

// Grant is the resolved access decision for one request.
type Grant struct {
	Plan      Plan      `json:"plan"`
	Subject   string    `json:"subject,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Anonymous bool      `json:"anonymous"`
}

// AllowRows rejects tables larger than the plan permits
func (g Grant) AllowRows(n int) error {
	limit := g.Plan.Limits().MaxRows
	if limit > 0 && n > limit {
		return fmt.Errorf("the %s plan scores up to %d employees per upload; this file has %d", g.Plan, limit, n)
	}
	return nil
}

// AllowExport rejects CSV downloads on plans without export
func (g Grant) AllowExport() error {
	if !g.Plan.Limits().Export {
		return fmt.Errorf("CSV export is not included in the %s plan", g.Plan)
	}
	return nil
}
