package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Feedback struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId string         `gorm:"type:varchar(64);index;not null"`
	Question  string         `gorm:"type:text;not null"`
	Answer    string         `gorm:"type:text"`
	Rating    int            `gorm:"not null"`
	Tags      datatypes.JSON `gorm:"type:jsonb"`
	Comment   string         `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (Feedback) TableName() string {
	return "feedbacks"
}
