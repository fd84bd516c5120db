package domain

import (
	"fmt"
	"time"
)

type ZoneImageKey struct {
	ZoneID     string
	ImageIndex int
}

func (k ZoneImageKey) String() string {
	return fmt.Sprintf("%s_%d", k.ZoneID, k.ImageIndex)
}

type ZoneImage struct {
	Key       ZoneImageKey
	Name      string
	MimeType  string
	Content   []byte
	UpdatedAt time.Time
}
