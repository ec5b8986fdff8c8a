package model

import "gorm.io/gorm"

type FollowStatus string

const (
	FollowPending  FollowStatus = "pending"
	FollowAccepted FollowStatus = "accepted"
	FollowRejected FollowStatus = "rejected"
)

// Follow is a directed follow edge from FromID to ToID. The pair is unique,
// so re-requesting an existing edge never creates a second one.
type Follow struct {
	gorm.Model
	FromID uint         `gorm:"not null;uniqueIndex:idx_follow_pair" json:"from"`
	ToID   uint         `gorm:"not null;uniqueIndex:idx_follow_pair;index" json:"to"`
	From   User         `gorm:"foreignKey:FromID" json:"-"`
	To     User         `gorm:"foreignKey:ToID" json:"-"`
	Status FollowStatus `gorm:"not null;default:pending;index" json:"status"`
}

// Established reports whether the edge counts towards a mutual follow.
func (f *Follow) Established() bool {
	return f.Status == FollowPending || f.Status == FollowAccepted
}
