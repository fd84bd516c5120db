package domain

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

type ActionType string

const (
	ActionCreateCampaign  ActionType = "createCampaign"
	ActionCreateCharacter ActionType = "createCharacter"
)

func (t ActionType) Valid() bool {
	switch t {
	case ActionCreateCampaign, ActionCreateCharacter:
		return true
	default:
		return false
	}
}

// PendingAction is a creation request that has not yet been accepted by the
// backend. It is removed from the outbox only after a confirmed replay.
type PendingAction struct {
	ID             int64
	Type           ActionType
	Data           json.RawMessage
	Files          []FileAttachment
	IdempotencyKey string
	Attempts       int
	LastError      string
	EnqueuedAt     time.Time
}

func (a PendingAction) TotalFileBytes() int64 {
	var total int64
	for _, file := range a.Files {
		total += int64(len(file.Content))
	}
	return total
}

type FileAttachment struct {
	Name         string
	MimeType     string
	LastModified time.Time
	Content      []byte
}

// ReadAttachment drains r so the attachment no longer depends on the source handle.
func ReadAttachment(name, mimeType string, lastModified time.Time, r io.Reader) (FileAttachment, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return FileAttachment{}, fmt.Errorf("read attachment %q: %w", name, err)
	}

	return FileAttachment{
		Name:         name,
		MimeType:     mimeType,
		LastModified: lastModified,
		Content:      content,
	}, nil
}

// Clone returns a copy that shares no memory with the receiver.
func (f FileAttachment) Clone() FileAttachment {
	content := make([]byte, len(f.Content))
	copy(content, f.Content)
	f.Content = content
	return f
}
