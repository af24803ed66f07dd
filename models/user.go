package models

import "time"

type User struct {
	ID        string    `json:"id" bson:"id"`
	Username  string    `json:"username" bson:"username"`
	Email     string    `json:"email" bson:"email"`
	Password  string    `json:"-" bson:"password"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Address   string    `json:"address,omitempty" bson:"address,omitempty"`
	Bio       string    `json:"bio,omitempty" bson:"bio,omitempty"`
	Role      []string  `json:"role" bson:"role"`
	Verified  bool      `json:"verified" bson:"verified"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
	LastLogin time.Time `json:"lastLogin,omitempty" bson:"last_login,omitempty"`
}
