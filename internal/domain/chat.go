package domain

import "strings"

type ChatMessage struct {
	SenderID string `json:"senderId"`
	Content  string `json:"messageContent"`
}

// DedupeKey identifies a logical chat message independent of delivery path.
func (m ChatMessage) DedupeKey() string {
	return m.SenderID + "::" + m.Content
}

// UniquePlayerIDs drops blanks and repeated ids while keeping first-seen order.
func UniquePlayerIDs(ids []string) []string {
	result := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
