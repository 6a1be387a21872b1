package models

import (
	"github.com/golang-jwt/jwt/v4"
)

// User is the slim projection of the account record this service reads.
// Account storage itself is owned by the users service; we only need the
// contact fields the off-channel sinks resolve recipients through.
type User struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name"`
	Email       string `json:"email" gorm:"uniqueIndex"`
	DeviceToken string `json:"-"` // FCM registration token, empty when the user has no device
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
