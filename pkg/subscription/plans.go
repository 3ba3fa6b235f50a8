package subscription

import "errors"

var ErrUnknownPlan = errors.New("unknown plan")

// Plan is a static catalog entry. Plans are not persisted; the catalog is
// the source of truth and plan ids are stored on subscription rows.
type Plan struct {
	ID           string
	Name         string
	Price        float64
	Currency     string
	DurationDays int // 0 means lifetime access
	Description  string
}

func (p Plan) Lifetime() bool {
	return p.DurationDays == 0
}

var Plans = []Plan{
	{
		ID:           "monthly",
		Name:         "Monthly VIP",
		Price:        29,
		Currency:     "eur",
		DurationDays: 30,
		Description:  "Access to the VIP channel for 30 days.",
	},
	{
		ID:           "lifetime",
		Name:         "Lifetime VIP",
		Price:        199,
		Currency:     "eur",
		DurationDays: 0,
		Description:  "Lifetime access to the VIP channel.",
	},
}

func PlanByID(id string) (Plan, bool) {
	for _, p := range Plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
