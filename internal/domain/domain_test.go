package domain

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionTypeValid(t *testing.T) {
	tests := []struct {
		name string
		kind ActionType
		want bool
	}{
		{name: "campaign", kind: ActionCreateCampaign, want: true},
		{name: "character", kind: ActionCreateCharacter, want: true},
		{name: "unknown", kind: ActionType("deleteCampaign"), want: false},
		{name: "empty", kind: ActionType(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Valid())
		})
	}
}

func TestReadAttachmentCopiesReaderContent(t *testing.T) {
	modified := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	source := bytes.NewBufferString("map-bytes")

	file, err := ReadAttachment("map.png", "image/png", modified, source)
	require.NoError(t, err)

	assert.Equal(t, "map.png", file.Name)
	assert.Equal(t, "image/png", file.MimeType)
	assert.Equal(t, modified, file.LastModified)
	assert.Equal(t, []byte("map-bytes"), file.Content)
	assert.Zero(t, source.Len())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk gone")
}

func TestReadAttachmentWrapsReadError(t *testing.T) {
	_, err := ReadAttachment("map.png", "image/png", time.Time{}, failingReader{})
	require.Error(t, err)
	assert.ErrorContains(t, err, `read attachment "map.png"`)
}

func TestFileAttachmentCloneDoesNotShareContent(t *testing.T) {
	original := FileAttachment{Name: "a.png", Content: []byte{1, 2, 3}}
	clone := original.Clone()
	clone.Content[0] = 9

	assert.Equal(t, byte(1), original.Content[0])
}

func TestPendingActionTotalFileBytes(t *testing.T) {
	action := PendingAction{Files: []FileAttachment{
		{Content: make([]byte, 10)},
		{Content: make([]byte, 32)},
	}}

	assert.Equal(t, int64(42), action.TotalFileBytes())
}

func TestZoneImageKeyString(t *testing.T) {
	assert.Equal(t, "zone-7_2", ZoneImageKey{ZoneID: "zone-7", ImageIndex: 2}.String())
}

func TestChatMessageDedupeKey(t *testing.T) {
	msg := ChatMessage{SenderID: "u1", Content: "roll for initiative"}
	assert.Equal(t, "u1::roll for initiative", msg.DedupeKey())
}

func TestUniquePlayerIDs(t *testing.T) {
	got := UniquePlayerIDs([]string{"p1", "", "p2", " p1 ", "p3", "p2"})
	assert.Equal(t, []string{"p1", "p2", "p3"}, got)
}

func TestTokenPairEmpty(t *testing.T) {
	assert.True(t, TokenPair{}.Empty())
	assert.True(t, TokenPair{AccessToken: "  ", RefreshToken: "r"}.Empty())
	assert.False(t, TokenPair{AccessToken: "a"}.Empty())
}
