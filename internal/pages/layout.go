// Package pages renders the marketplace site with gomponents.
package pages

import (
	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

type PageConfig struct {
	Title       string
	Description string
	// SessionID is embedded on interactive pages so the browser script can
	// attach to the page-view session.
	SessionID string
	Script    bool
}

func Layout(config PageConfig, content ...g.Node) g.Node {
	if config.Title == "" {
		config.Title = "agenti - Deploy AI Agents, Access Them Anywhere"
	}
	if config.Description == "" {
		config.Description = "Host your AI agents in the cloud and get instant access to a marketplace of powerful developer tools."
	}

	return g.Group([]g.Node{
		g.Raw("<!DOCTYPE html>"),
		HTML(
			Lang("en"),
			Head(
				Meta(Charset("utf-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1.0")),
				TitleEl(g.Text(config.Title)),
				Meta(Name("description"), Content(config.Description)),
				Meta(g.Attr("property", "og:title"), Content(config.Title)),
				Meta(g.Attr("property", "og:description"), Content(config.Description)),
				Link(Rel("stylesheet"), Href("/static/styles.css")),
			),
			Body(
				Class("page"),
				g.If(config.SessionID != "", g.Attr("data-session-id", config.SessionID)),
				Navbar(),
				Main(Class("content"), g.Group(content)),
				PageFooter(),
				g.If(config.Script, Script(Src("/static/app.js"), Defer())),
			),
		),
	})
}

func Navbar() g.Node {
	links := []struct {
		Href  string
		Label string
	}{
		{"/agents", "Browse Agents"},
		{"/upload", "Upload"},
		{"/pricing", "Pricing"},
	}

	return Nav(
		Class("navbar"),
		Div(
			Class("container navbar-inner"),
			A(Href("/"), Class("logo"), g.Text("agenti")),
			Div(
				Class("navbar-links"),
				g.Group(g.Map(links, func(l struct {
					Href  string
					Label string
				}) g.Node {
					return A(Href(l.Href), Class("nav-link"), g.Text(l.Label))
				})),
				A(Href("/pricing"), Class("btn btn-primary"), g.Text("Get Started")),
			),
		),
	)
}

func PageFooter() g.Node {
	columns := []struct {
		Title string
		Links []string
	}{
		{"Product", []string{"Browse Agents", "Pricing", "Documentation"}},
		{"Developers", []string{"Upload", "API"}},
		{"Company", []string{"About", "Blog", "Careers"}},
		{"Legal", []string{"Privacy", "Terms"}},
	}

	return Footer(
		Class("footer"),
		Div(
			Class("container footer-grid"),
			Div(
				Span(Class("logo"), g.Text("agenti")),
				P(Class("muted"), g.Text("The platform for hosting and accessing AI agents.")),
			),
			g.Group(g.Map(columns, func(c struct {
				Title string
				Links []string
			}) g.Node {
				return Div(
					H4(g.Text(c.Title)),
					Ul(g.Group(g.Map(c.Links, func(l string) g.Node {
						return Li(Class("muted"), g.Text(l))
					}))),
				)
			})),
		),
	)
}
