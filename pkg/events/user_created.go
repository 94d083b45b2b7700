package events

import (
	"time"

	"github.com/google/uuid"
)

// UserCreatedRoutingKey is published by auth-service after a registration commits.
const UserCreatedRoutingKey = "user.created"

type UserCreated struct {
	EventID     uuid.UUID
	UserID      uuid.UUID
	Email       string
	DisplayName string
	CreatedAt   time.Time
}

func EncodeUserCreated(e *UserCreated) ([]byte, error) {
	return NewPayload().
		UUID("event_id", e.EventID).
		UUID("user_id", e.UserID).
		String("email", e.Email).
		String("display_name", e.DisplayName).
		Time("created_at", e.CreatedAt).
		Encode()
}

func DecodeUserCreated(body []byte) (*UserCreated, error) {
	p, err := DecodePayload(body)
	if err != nil {
		return nil, err
	}

	var e UserCreated
	if e.EventID, err = p.UUID("event_id"); err != nil {
		return nil, err
	}
	if e.UserID, err = p.UUID("user_id"); err != nil {
		return nil, err
	}
	if e.Email, err = p.String("email"); err != nil {
		return nil, err
	}
	if e.DisplayName, err = p.String("display_name"); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = p.Time("created_at"); err != nil {
		return nil, err
	}
	return &e, nil
}
