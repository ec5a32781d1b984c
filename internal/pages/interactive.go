package pages

import (
	"strings"

	"github.com/agenti/agenti-web/internal/controller"
	"github.com/agenti/agenti-web/internal/domain"
	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"
)

const inputPlaceholder = `# Paste your Python code here
def fibonacci(n):
    if n <= 1:
        return n
    return fibonacci(n-1) + fibonacci(n-2)

print(fibonacci(10))`

// AgentPage renders the interactive demo for an agent, seeded with the
// current run state so a reload-free first paint matches the session.
func AgentPage(agent domain.AgentSummary, sessionID string, st controller.RunState) g.Node {
	processing := st.Status == controller.RunProcessing

	runLabel := "Run Agent"
	if processing {
		runLabel = "Processing..."
	}
	output := g.Node(Span(Class("placeholder"), g.Text("Your converted code will appear here")))
	if processing {
		output = Span(Class("placeholder"), g.Text("Converting code..."))
	} else if st.Output != "" {
		output = g.Text(st.Output)
	}

	return Layout(
		PageConfig{Title: agent.Name + " - agenti", Description: agent.Description, SessionID: sessionID, Script: true},
		Section(
			Class("container"),
			A(Href("/agents"), Class("muted"), g.Text("← Back to agents")),
			Span(Class("badge"), g.Text(agent.Category)),
			H1(g.Text(agent.Name)),
			P(Class("lead"), g.Text(agent.Description)),
			Div(
				Class("agent-meta"),
				Span(g.Textf("by %s", agent.Author)),
				Span(g.Textf("%d users", agent.Users)),
				Span(g.Textf("★ %.1f", agent.Rating)),
			),
		),
		Section(
			Class("container demo"),
			g.Attr("data-run-status", string(st.Status)),
			Div(
				Class("pane"),
				Div(
					Class("pane-header"),
					H3(g.Text("Input (Python)")),
					Button(ID("run-clear"), Class("btn btn-ghost btn-sm"), Type("button"), g.Text("Clear")),
				),
				Textarea(ID("run-input"), Class("code"), g.Attr("spellcheck", "false"), Placeholder(inputPlaceholder), g.Text(st.Input)),
			),
			Div(
				Class("pane"),
				Div(
					Class("pane-header"),
					H3(g.Text("Output (JavaScript)")),
					Button(ID("run-copy"), Class("btn btn-ghost btn-sm"), Type("button"), g.If(st.Output == "", Disabled()), g.Text("Copy")),
				),
				Pre(ID("run-output"), Class("code"), output),
				P(ID("run-error"), Class("error"), g.Text(st.Error)),
			),
		),
		Section(
			Class("container actions"),
			Button(ID("run-submit"), Class("btn btn-primary btn-lg"), Type("button"), g.If(!st.CanRun(), Disabled()), g.Text(runLabel)),
		),
		Section(
			Class("container grid-3"),
			Div(Class("card"), H3(g.Text("How it works")), P(Class("muted"), g.Text("This agent uses advanced AI to analyze your Python code and convert it to equivalent JavaScript syntax while preserving functionality."))),
			Div(Class("card"), H3(g.Text("Supported Features")), P(Class("muted"), g.Text("Functions, classes, loops, conditionals, list comprehensions, and most Python standard library features."))),
			Div(Class("card"), H3(g.Text("API Access")), P(Class("muted"), g.Text("Integrate this agent into your workflow via REST API. Pro plan required for API access."))),
		),
	)
}

// UploadPage renders the drop zone in the given upload state.
func UploadPage(sessionID string, st controller.UploadState, extensions []string) g.Node {
	var heading, detail string
	switch {
	case st.Status == controller.UploadUploading:
		heading, detail = "Uploading...", "Processing your agent"
	case st.Status == controller.UploadComplete:
		heading, detail = "Upload Complete!", "Your agent has been received"
	case st.DragActive:
		heading, detail = "Drop it here!", "Release to upload your agent"
	default:
		heading, detail = "Drag & drop your agent here", "or click to browse files"
	}

	steps := []struct {
		Title string
		Body  string
	}{
		{"Prepare Your Agent", "Package your agent code with dependencies and configuration files."},
		{"Upload & Configure", "Drop your file here and configure deployment settings."},
		{"Deploy & Share", "Your agent goes live and becomes accessible to the community."},
	}

	return Layout(
		PageConfig{Title: "Upload Your Agent - agenti", SessionID: sessionID, Script: true},
		Section(
			Class("container"),
			H1(g.Text("Upload Your Agent")),
			P(Class("lead"), g.Text("Deploy your AI agent to the cloud and make it accessible to thousands of developers.")),
			Div(
				ID("dropzone"),
				Class("dropzone"),
				g.Attr("role", "button"),
				g.Attr("tabindex", "0"),
				g.Attr("data-status", string(st.Status)),
				g.If(st.DragActive, g.Attr("data-drag-active", "true")),
				H3(ID("dropzone-heading"), g.Text(heading)),
				P(ID("dropzone-detail"), Class("muted"), g.Text(detail)),
				g.If(st.File != nil && st.Status == controller.UploadUploading, P(ID("dropzone-file"), Class("muted"), g.Text(fileName(st.File)))),
				P(Class("muted small"), g.Textf("Supports: %s files", strings.Join(extensions, ", "))),
				P(ID("upload-error"), Class("error"), g.Text(st.Error)),
				Input(ID("file-input"), Type("file"), Class("visually-hidden"), Accept(strings.Join(extensions, ","))),
			),
		),
		Section(
			Class("container"),
			H2(g.Text("How it works")),
			Div(
				Class("grid-3"),
				g.Group(g.Map(steps, func(s struct {
					Title string
					Body  string
				}) g.Node {
					return Div(Class("card"), H3(g.Text(s.Title)), P(Class("muted"), g.Text(s.Body)))
				})),
			),
		),
		Section(
			Class("container cta"),
			H2(g.Text("Want unlimited access?")),
			P(Class("muted"), g.Text("Subscribe now and get access to all agents with no limits.")),
			A(Href("/pricing"), Class("btn btn-primary"), g.Text("View Pricing")),
		),
	)
}

func fileName(f *controller.FileRef) string {
	if f == nil {
		return ""
	}
	return f.Name
}

func NotFoundPage() g.Node {
	return Layout(
		PageConfig{Title: "Not found - agenti"},
		Section(
			Class("container cta"),
			H1(g.Text("Agent not found")),
			A(Href("/agents"), Class("btn btn-primary"), g.Text("Browse Agents")),
		),
	)
}
