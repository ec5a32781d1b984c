package domain

// Plan is a pricing tier.
type Plan struct {
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Period      string   `json:"period"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	CTA         string   `json:"cta"`
	Highlighted bool     `json:"highlighted"`
}

// Plans are the published pricing tiers.
var Plans = []Plan{
	{
		Name:        "Free",
		Price:       "$0",
		Period:      "forever",
		Description: "Perfect for trying out agenti",
		Features: []string{
			"Access to 5 basic agents",
			"1,000 API calls per month",
			"Community support",
			"Public agent hosting",
		},
		CTA: "Get Started",
	},
	{
		Name:        "Pro",
		Price:       "$29",
		Period:      "per month",
		Description: "For professional developers",
		Features: []string{
			"Unlimited access to all agents",
			"100,000 API calls per month",
			"Priority support",
			"Private agent hosting",
			"Custom agent deployment",
			"Analytics dashboard",
		},
		CTA:         "Start Free Trial",
		Highlighted: true,
	},
	{
		Name:        "Enterprise",
		Price:       "Custom",
		Period:      "contact us",
		Description: "For teams and organizations",
		Features: []string{
			"Everything in Pro",
			"Unlimited API calls",
			"Dedicated support",
			"SLA guarantee",
			"Custom integrations",
			"Team collaboration",
			"Advanced security",
		},
		CTA: "Contact Sales",
	},
}
