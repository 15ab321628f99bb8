package entity

import (
	"time"

	"github.com/google/uuid"
)

type Feedback struct {
	Id        uuid.UUID
	SessionId string
	Question  string
	Answer    string
	Rating    int
	Tags      []string
	Comment   string
	CreatedAt time.Time
}
