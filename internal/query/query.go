// Package query derives console views over a session snapshot. Everything
// here is pure: no function mutates its input beyond reordering the slice it
// was handed.
package query

import (
	"sort"
	"strings"

	"gendesk/internal/domain"
)

// All disables a filter dimension; an empty string means the same.
const All = "all"

// Filter composes with logical AND across its set dimensions.
type Filter struct {
	Status     string
	Priority   string
	Department string
	Search     string
}

// Apply filters and sorts a snapshot. The input must be in insertion order;
// ties on priority and last activity keep that order (stable sort).
func Apply(sessions []*domain.ChatSession, f Filter) []*domain.ChatSession {
	out := make([]*domain.ChatSession, 0, len(sessions))
	for _, s := range sessions {
		if matches(s, f) {
			out = append(out, s)
		}
	}
	Sort(out)
	return out
}

// Sort orders by priority rank descending, then last activity descending.
func Sort(sessions []*domain.ChatSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		return a.LastActivity.After(b.LastActivity)
	})
}

func matches(s *domain.ChatSession, f Filter) bool {
	if !dimensionMatches(f.Status, string(s.Status)) {
		return false
	}
	if !dimensionMatches(f.Priority, string(s.Priority)) {
		return false
	}
	if !dimensionMatches(f.Department, s.Department) {
		return false
	}
	if f.Search != "" && !matchesSearch(s, f.Search) {
		return false
	}
	return true
}

func dimensionMatches(want, got string) bool {
	return want == "" || want == All || want == got
}

// matchesSearch is a case-insensitive substring match over visitor name,
// last message text, and tags.
func matchesSearch(s *domain.ChatSession, q string) bool {
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(s.VisitorName), q) {
		return true
	}
	if strings.Contains(strings.ToLower(s.LastMessage), q) {
		return true
	}
	for _, tag := range s.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// MessageMatch ties a matching message back to its session.
type MessageMatch struct {
	SessionID   string             `json:"sessionId"`
	VisitorName string             `json:"visitorName"`
	Message     domain.ChatMessage `json:"message"`
}

// SearchMessages scans message bodies across all sessions.
func SearchMessages(sessions []*domain.ChatSession, q string) []MessageMatch {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}
	var out []MessageMatch
	for _, s := range sessions {
		for _, m := range s.Messages {
			if strings.Contains(strings.ToLower(m.Text), q) {
				out = append(out, MessageMatch{
					SessionID:   s.ID,
					VisitorName: s.VisitorName,
					Message:     m,
				})
			}
		}
	}
	return out
}

type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Waiting  int `json:"waiting"`
	Closed   int `json:"closed"`
	Archived int `json:"archived"`
	Unread   int `json:"unread"`
}

func ComputeStats(sessions []*domain.ChatSession) Stats {
	st := Stats{Total: len(sessions)}
	for _, s := range sessions {
		switch s.Status {
		case domain.StatusActive:
			st.Active++
		case domain.StatusWaiting:
			st.Waiting++
		case domain.StatusClosed:
			st.Closed++
		case domain.StatusArchived:
			st.Archived++
		}
		st.Unread += s.UnreadCount
	}
	return st
}
