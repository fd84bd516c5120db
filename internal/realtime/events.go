package realtime

import (
	"encoding/json"
	"strings"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

const (
	eventAuthenticate = "authenticate"
	eventAuthSuccess  = "auth-success"
	eventAuthError    = "auth-error"
	eventPlayerJoin   = "player-join"
	eventPlayerLeave  = "player-leave"
	eventChatMessage  = "chat-message"

	eventJoinSuccess     = "join-success"
	eventChatMessageSent = "chat-message-sent"
	eventPlayerJoined    = "player-joined"
	eventPlayerLeft      = "player-left"
	eventSessionStarted  = "session-started"
)

type authenticatePayload struct {
	Token         string `json:"token"`
	UserID        string `json:"userId"`
	GameSessionID string `json:"gameSessionId"`
}

type playerPresencePayload struct {
	PlayerID  string `json:"playerId"`
	SessionID string `json:"sessionId"`
}

type chatPayload struct {
	MessageContent string `json:"messageContent"`
}

type authErrorPayload struct {
	Message string `json:"message"`
}

// SessionEvent is a join, leave or session-state event as the server sent
// it. PlayerIDs is the de-duplicated player list when the payload has one.
type SessionEvent struct {
	Name      string
	Payload   json.RawMessage
	PlayerIDs []string
}

type playerListPayload struct {
	PlayerID  string            `json:"playerId"`
	PlayerIDs []string          `json:"playerIds"`
	Players   []json.RawMessage `json:"players"`
}

func newSessionEvent(name string, payload json.RawMessage) SessionEvent {
	event := SessionEvent{Name: name, Payload: payload}

	var parsed playerListPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return event
	}

	ids := make([]string, 0, len(parsed.PlayerIDs)+len(parsed.Players)+1)
	ids = append(ids, parsed.PlayerIDs...)
	for _, raw := range parsed.Players {
		if id := playerIDFrom(raw); id != "" {
			ids = append(ids, id)
		}
	}
	if parsed.PlayerID != "" {
		ids = append(ids, parsed.PlayerID)
	}
	if len(ids) > 0 {
		event.PlayerIDs = domain.UniquePlayerIDs(ids)
	}

	return event
}

// playerIDFrom accepts either a bare id string or an object with an id field.
func playerIDFrom(raw json.RawMessage) string {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}

	var object struct {
		ID       string `json:"id"`
		PlayerID string `json:"playerId"`
		UserID   string `json:"userId"`
	}
	if err := json.Unmarshal(raw, &object); err != nil {
		return ""
	}
	for _, candidate := range []string{object.PlayerID, object.UserID, object.ID} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}
