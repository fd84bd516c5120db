package domain

import (
	"encoding/json"
	"time"
)

type Character struct {
	ID        string
	Data      json.RawMessage
	UpdatedAt time.Time
}
