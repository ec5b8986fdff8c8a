package model

import "gorm.io/gorm"

// User struct
type User struct {
	gorm.Model
	Username   string `gorm:"uniqueIndex;not null" json:"username"`
	Email      string `gorm:"uniqueIndex;not null" json:"email"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic"`
	Bio        string `json:"bio"`
	Role       string `json:"role"`
}
