// Package domain contains core domain types for the agenti marketplace site.
package domain

import (
	"strings"
)

// CategoryAll is the pseudo-category that disables category filtering.
const CategoryAll = "All"

// AgentSummary is the display record for an agent in the marketplace.
type AgentSummary struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Author      string  `json:"author"`
	Users       int     `json:"users"`
	Rating      float64 `json:"rating"`
}

// AgentFilter narrows a catalog listing.
type AgentFilter struct {
	Category string
	Query    string
}

// Matches reports whether the agent passes the filter.
// Category matching is exact; the query is a case-insensitive substring of
// the name or description.
func (f AgentFilter) Matches(a AgentSummary) bool {
	if f.Category != "" && f.Category != CategoryAll && a.Category != f.Category {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(a.Name), q) ||
		strings.Contains(strings.ToLower(a.Description), q)
}

// DemoAgentID is the agent whose demo page runs the Python to JavaScript conversion.
const DemoAgentID int64 = 10

// SeedAgents is the catalog shipped with the site.
var SeedAgents = []AgentSummary{
	{ID: 1, Name: "Code Assistant", Description: "AI-powered code completion and refactoring agent that helps write better code faster.", Category: "Development", Author: "agenti", Users: 5420, Rating: 4.8},
	{ID: 2, Name: "Documentation Generator", Description: "Automatically generates comprehensive documentation from your codebase.", Category: "Development", Author: "agenti", Users: 3210, Rating: 4.6},
	{ID: 3, Name: "Bug Hunter", Description: "Analyzes code to detect potential bugs and security vulnerabilities.", Category: "Security", Author: "agenti", Users: 4890, Rating: 4.9},
	{ID: 4, Name: "API Builder", Description: "Quickly scaffold RESTful APIs with best practices and authentication.", Category: "Development", Author: "agenti", Users: 2340, Rating: 4.7},
	{ID: 5, Name: "Test Generator", Description: "Creates unit and integration tests based on your code structure.", Category: "Testing", Author: "agenti", Users: 3670, Rating: 4.5},
	{ID: 6, Name: "Database Designer", Description: "Design and optimize database schemas with AI assistance.", Category: "Database", Author: "agenti", Users: 2890, Rating: 4.6},
	{ID: 7, Name: "Performance Optimizer", Description: "Identifies performance bottlenecks and suggests optimizations.", Category: "Performance", Author: "agenti", Users: 4120, Rating: 4.8},
	{ID: 8, Name: "Code Reviewer", Description: "Automated code review with style guide enforcement and best practice suggestions.", Category: "Development", Author: "agenti", Users: 5890, Rating: 4.9},
	{ID: 9, Name: "Deployment Manager", Description: "Automates deployment pipelines and infrastructure provisioning.", Category: "DevOps", Author: "agenti", Users: 3450, Rating: 4.7},
	{ID: DemoAgentID, Name: "Python to JavaScript Converter", Description: "Convert Python code to JavaScript with AI-powered syntax transformation", Category: "Development", Author: "agenti", Users: 5420, Rating: 4.8},
}

// Categories lists the browse filters in display order.
var Categories = []string{CategoryAll, "Development", "Security", "Testing", "Database", "Performance", "DevOps"}
