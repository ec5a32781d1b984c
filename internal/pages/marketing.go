package pages

import (
	"fmt"
	"net/url"

	"github.com/agenti/agenti-web/internal/domain"
	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

func LandingPage() g.Node {
	features := []struct {
		Title string
		Body  string
	}{
		{"Deploy Instantly", "Upload your agents and get them running in the cloud within minutes. No infrastructure management required."},
		{"Access Everything", "One subscription gives you unlimited access to all agents in the marketplace. Use what you need, when you need it."},
		{"Secure & Reliable", "Enterprise-grade security with 99.9% uptime. Your agents run in isolated environments with full monitoring."},
	}
	stats := [][2]string{{"500+", "Active Agents"}, {"10k+", "Developers"}, {"99.9%", "Uptime"}}

	return Layout(
		PageConfig{},
		Section(
			Class("hero"),
			H1(
				g.Text("Deploy AI Agents,"), Br(),
				Span(Class("gradient"), g.Text("Access Them Anywhere")),
			),
			P(Class("lead"), g.Text("Host your AI agents in the cloud and get instant access to a marketplace of powerful developer tools. One subscription, unlimited possibilities.")),
			Div(
				Class("actions"),
				A(Href("/pricing"), Class("btn btn-primary btn-lg"), g.Text("Start Free Trial")),
				A(Href("/agents"), Class("btn btn-ghost btn-lg"), g.Text("Browse Agents")),
			),
		),
		Section(
			Class("container grid-3"),
			g.Group(g.Map(features, func(f struct {
				Title string
				Body  string
			}) g.Node {
				return Div(Class("card"), H3(g.Text(f.Title)), P(Class("muted"), g.Text(f.Body)))
			})),
		),
		Section(
			Class("container grid-3 stats"),
			g.Group(g.Map(stats, func(s [2]string) g.Node {
				return Div(Class("stat"), Strong(g.Text(s[0])), Span(Class("muted"), g.Text(s[1])))
			})),
		),
		Section(
			Class("container cta"),
			H2(g.Text("Ready to get started?")),
			P(Class("muted"), g.Text("Join thousands of developers using agenti to power their applications.")),
			A(Href("/pricing"), Class("btn btn-primary btn-lg"), g.Text("Start Your Free Trial")),
		),
	)
}

// AgentsPage lists agents with the category filter and search box. Filtering
// happens on the server through plain GET links and a form.
func AgentsPage(agents []domain.AgentSummary, categories []string, filter domain.AgentFilter) g.Node {
	active := filter.Category
	if active == "" {
		active = domain.CategoryAll
	}

	return Layout(
		PageConfig{Title: "Browse Agents - agenti"},
		Section(
			Class("container"),
			H1(g.Text("Browse Agents")),
			P(Class("lead"), g.Text("Discover powerful AI agents built by developers around the world. Access all of them with a single subscription.")),
			Form(
				Method("get"), Action("/agents"), Class("search"),
				Input(Type("search"), Name("q"), Value(filter.Query), Placeholder("Search agents...")),
				g.If(active != domain.CategoryAll, Input(Type("hidden"), Name("category"), Value(active))),
			),
			Div(
				Class("chips"),
				g.Group(g.Map(categories, func(c string) g.Node {
					cls := "chip"
					if c == active {
						cls = "chip chip-active"
					}
					return A(Href(agentsURL(c, filter.Query)), Class(cls), g.Text(c))
				})),
			),
			g.If(len(agents) == 0, P(Class("empty muted"), g.Text("No agents match your search."))),
			Div(
				Class("grid-3"),
				g.Group(g.Map(agents, agentCard)),
			),
		),
	)
}

func agentsURL(category, query string) string {
	v := url.Values{}
	if category != "" && category != domain.CategoryAll {
		v.Set("category", category)
	}
	if query != "" {
		v.Set("q", query)
	}
	if len(v) == 0 {
		return "/agents"
	}
	return "/agents?" + v.Encode()
}

func agentCard(a domain.AgentSummary) g.Node {
	return A(
		Href(fmt.Sprintf("/agent/%d", a.ID)),
		Class("card agent-card"),
		Span(Class("badge"), g.Text(a.Category)),
		H3(g.Text(a.Name)),
		P(Class("muted"), g.Text(a.Description)),
		Div(
			Class("agent-meta"),
			Span(g.Textf("by %s", a.Author)),
			Span(g.Textf("%d users", a.Users)),
			Span(g.Textf("★ %.1f", a.Rating)),
		),
	)
}

func PricingPage(plans []domain.Plan) g.Node {
	return Layout(
		PageConfig{Title: "Pricing - agenti"},
		Section(
			Class("container"),
			H1(g.Text("Pricing")),
			P(Class("lead"), g.Text("One subscription, unlimited possibilities.")),
			Div(
				Class("grid-3"),
				g.Group(g.Map(plans, planCard)),
			),
		),
	)
}

func planCard(p domain.Plan) g.Node {
	cls := "card plan"
	btn := "btn btn-ghost"
	if p.Highlighted {
		cls = "card plan plan-highlighted"
		btn = "btn btn-primary"
	}
	return Div(
		Class(cls),
		H3(g.Text(p.Name)),
		P(Class("price"), Strong(g.Text(p.Price)), Span(Class("muted"), g.Text(" "+p.Period))),
		P(Class("muted"), g.Text(p.Description)),
		Ul(
			Class("features"),
			g.Group(g.Map(p.Features, func(f string) g.Node { return Li(g.Text(f)) })),
		),
		A(Href("/upload"), Class(btn), g.Text(p.CTA)),
	)
}
