package event

import (
	"fmt"
	"sort"
	"strings"
)

const (
	riskTrendWindow  = 20
	toolsUsedWindow  = 10
	attackPatternTop = 5
)

// SummarizeTimeline aggregates one session's events. The input must already
// be filtered to the session; order does not matter.
func SummarizeTimeline(sessionID string, events []Event) TimelineSummary {
	summary := TimelineSummary{
		SessionID:     sessionID,
		AttackVectors: []string{},
	}
	if len(events) == 0 {
		return summary
	}

	var total float64
	seen := map[string]bool{}
	for _, ev := range events {
		summary.TotalEvents++
		total += ev.Assessment.Score
		if ev.Assessment.Score > summary.MaxRiskScore {
			summary.MaxRiskScore = ev.Assessment.Score
		}
		switch ev.Decision {
		case DecisionBlock:
			summary.BlockedEvents++
			for _, indicator := range ev.Assessment.Indicators {
				if !seen[indicator] {
					seen[indicator] = true
					summary.AttackVectors = append(summary.AttackVectors, indicator)
				}
			}
		case DecisionReview:
			summary.ReviewedEvents++
		default:
			summary.AllowedEvents++
		}
		if summary.StartTime == nil || ev.CreatedAt.Before(*summary.StartTime) {
			t := ev.CreatedAt
			summary.StartTime = &t
		}
		if summary.EndTime == nil || ev.CreatedAt.After(*summary.EndTime) {
			t := ev.CreatedAt
			summary.EndTime = &t
		}
	}
	summary.AvgRiskScore = total / float64(summary.TotalEvents)
	return summary
}

// BuildAgentProfile rolls up one agent's events into a profile. The input
// must be the agent's events in chronological order and non-empty.
func BuildAgentProfile(agentID string, events []Event) (AgentProfile, error) {
	if len(events) == 0 {
		return AgentProfile{}, ErrNotFound
	}

	latest := events[len(events)-1]
	profile := AgentProfile{
		AgentID:      agentID,
		AgentGoal:    latest.AgentGoal,
		IsRegistered: latest.AgentIsRegistered,
		Framework:    latest.Framework,
		FirstSeen:    events[0].CreatedAt,
		LastSeen:     latest.CreatedAt,
	}

	sessions := map[string]bool{}
	indicatorCount := map[string]int{}
	indicatorOrder := []string{}
	var total float64

	for _, ev := range events {
		sessions[ev.SessionID] = true
		profile.TotalEvents++
		total += ev.Assessment.Score
		if ev.Assessment.Score > profile.MaxRiskScore {
			profile.MaxRiskScore = ev.Assessment.Score
		}
		switch ev.Decision {
		case DecisionBlock:
			profile.BlockedEvents++
			for _, indicator := range ev.Assessment.Indicators {
				if indicatorCount[indicator] == 0 {
					indicatorOrder = append(indicatorOrder, indicator)
				}
				indicatorCount[indicator]++
			}
		case DecisionReview:
			profile.ReviewedEvents++
		default:
			profile.AllowedEvents++
		}
	}
	profile.TotalSessions = len(sessions)
	profile.AvgRiskScore = total / float64(profile.TotalEvents)
	profile.AttackPatterns = topIndicators(indicatorCount, indicatorOrder, attackPatternTop)
	profile.ToolsUsed = recentTools(events, toolsUsedWindow)
	profile.RiskTrend = riskTrend(events, riskTrendWindow)
	return profile, nil
}

// topIndicators returns the most frequent indicators, ties broken by first
// appearance.
func topIndicators(counts map[string]int, order []string, limit int) []string {
	firstSeen := map[string]int{}
	for i, indicator := range order {
		firstSeen[indicator] = i
	}
	sorted := append([]string{}, order...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if counts[sorted[i]] != counts[sorted[j]] {
			return counts[sorted[i]] > counts[sorted[j]]
		}
		return firstSeen[sorted[i]] < firstSeen[sorted[j]]
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	if sorted == nil {
		sorted = []string{}
	}
	return sorted
}

// recentTools returns the last distinct tools used, oldest first.
func recentTools(events []Event, limit int) []string {
	seen := map[string]bool{}
	tools := []string{}
	for i := len(events) - 1; i >= 0 && len(tools) < limit; i-- {
		name := events[i].Action.ToolName
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		tools = append(tools, name)
	}
	// Collected newest first; callers want oldest first.
	for i, j := 0, len(tools)-1; i < j; i, j = i+1, j-1 {
		tools[i], tools[j] = tools[j], tools[i]
	}
	return tools
}

// riskTrend returns the trailing window of risk scores, oldest first.
func riskTrend(events []Event, window int) []float64 {
	start := 0
	if len(events) > window {
		start = len(events) - window
	}
	trend := make([]float64, 0, len(events)-start)
	for _, ev := range events[start:] {
		trend = append(trend, ev.Assessment.Score)
	}
	return trend
}

// BuildAgentGraph derives the activity graph for one agent: the agent
// node, one node per distinct session, tool, and indicator, and edges
// agent→session (had_session), session→tool (used_tool, one per event,
// carrying decision and risk score), and tool→indicator
// (exhibited_pattern). The input must be the agent's events in
// chronological order.
func BuildAgentGraph(agentID string, events []Event) AgentGraph {
	graph := AgentGraph{Nodes: []GraphNode{}, Edges: []GraphEdge{}}
	if len(events) == 0 {
		return graph
	}

	latest := events[len(events)-1]
	graph.Nodes = append(graph.Nodes, GraphNode{
		ID:    agentID,
		Type:  "agent",
		Label: latest.AgentGoal,
		Attributes: map[string]any{
			"framework":     latest.Framework,
			"is_registered": latest.AgentIsRegistered,
		},
	})

	sessionSeen := map[string]bool{}
	toolSeen := map[string]bool{}
	patternSeen := map[string]bool{}

	for _, ev := range events {
		sessionNodeID := fmt.Sprintf("session:%s", ev.SessionID)
		if !sessionSeen[ev.SessionID] {
			sessionSeen[ev.SessionID] = true
			graph.Nodes = append(graph.Nodes, GraphNode{
				ID:    sessionNodeID,
				Type:  "session",
				Label: truncate(ev.SessionID, 16),
				Attributes: map[string]any{
					"session_id": ev.SessionID,
					"timestamp":  ev.CreatedAt,
				},
			})
			graph.Edges = append(graph.Edges, GraphEdge{
				Source: agentID,
				Target: sessionNodeID,
				Type:   "had_session",
			})
		}

		tool := ev.Action.ToolName
		if tool == "" {
			continue
		}
		toolNodeID := fmt.Sprintf("tool:%s", tool)
		if !toolSeen[toolNodeID] {
			toolSeen[toolNodeID] = true
			graph.Nodes = append(graph.Nodes, GraphNode{
				ID:    toolNodeID,
				Type:  "tool",
				Label: tool,
			})
		}
		graph.Edges = append(graph.Edges, GraphEdge{
			Source: sessionNodeID,
			Target: toolNodeID,
			Type:   "used_tool",
			Attributes: map[string]any{
				"decision":   ev.Decision.String(),
				"risk_score": ev.Assessment.Score,
			},
		})

		for _, indicator := range ev.Assessment.Indicators {
			patternNodeID := fmt.Sprintf("pattern:%s", indicator)
			if !patternSeen[patternNodeID] {
				patternSeen[patternNodeID] = true
				graph.Nodes = append(graph.Nodes, GraphNode{
					ID:    patternNodeID,
					Type:  "pattern",
					Label: patternLabel(indicator),
					Attributes: map[string]any{
						"indicator": indicator,
					},
				})
			}
			graph.Edges = append(graph.Edges, GraphEdge{
				Source: toolNodeID,
				Target: patternNodeID,
				Type:   "exhibited_pattern",
			})
		}
	}
	return graph
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// patternLabel renders an indicator for display: underscores become
// spaces, words are title-cased.
func patternLabel(indicator string) string {
	words := strings.Fields(strings.ReplaceAll(indicator, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
