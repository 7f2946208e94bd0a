package model

// DefaultPlans is the static sponsorship plan catalog. The admin side
// prices these offline once a season, so they ship with the binary
// rather than living in the database.
var DefaultPlans = []SponsorshipPlan{
	{
		ID:    "gold",
		Name:  "Gold Sponsorship",
		Price: 2501,
		Limits: map[string]Limit{
			"matchday":  Unbounded,
			"board":     Finite(2),
			"matchball": Finite(2),
		},
		AutoSelect: []string{"matchday"},
	},
	{
		ID:    "silver",
		Name:  "Silver Sponsorship",
		Price: 1500,
		Limits: map[string]Limit{
			"matchday":  Finite(4),
			"board":     Finite(1),
			"matchball": Finite(1),
		},
	},
	{
		ID:    "bronze",
		Name:  "Bronze Sponsorship",
		Price: 750,
		Limits: map[string]Limit{
			"matchday": Finite(2),
		},
	},
}

// PlanByID looks a plan up in a plan list; nil when absent.
func PlanByID(plans []SponsorshipPlan, id string) *SponsorshipPlan {
	for i := range plans {
		if plans[i].ID == id {
			return &plans[i]
		}
	}
	return nil
}
