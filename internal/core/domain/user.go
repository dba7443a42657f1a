package domain

import (
	"errors"
	"time"
)

// Tier is a user's subscription level. It gates message quota and feature
// access and is mutated only by the billing process, never by this service.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// TierFromString normalises a stored tier value. Anything unrecognised
// collapses to the most restrictive tier.
func TierFromString(s string) Tier {
	if s == string(TierPaid) {
		return TierPaid
	}
	return TierFree
}

// AtLeast reports whether t satisfies the minimum tier requirement.
func (t Tier) AtLeast(min Tier) bool {
	if min == TierPaid {
		return t == TierPaid
	}
	return true
}

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrUserNotFound = errors.New("user not found")
var ErrUserExists = errors.New("user already exists")

// User models an authenticated actor in the system.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Tier         Tier      `json:"tier" bson:"tier"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// UserContext is the personal context a paid user maintains to steer
// interpretations. One document per user, upserted in place.
type UserContext struct {
	UserID      string    `json:"user_id" bson:"_id"`
	ContextData string    `json:"context_data" bson:"context_data"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}
