package model

import "gorm.io/gorm"

// DeletedPlaceholder replaces the text of a soft deleted message.
const DeletedPlaceholder = "This message was deleted"

type Message struct {
	gorm.Model
	SenderID   uint   `gorm:"not null;index:idx_message_pair" json:"sender"`
	ReceiverID uint   `gorm:"not null;index:idx_message_pair" json:"receiver"`
	Sender     User   `gorm:"foreignKey:SenderID" json:"-"`
	Receiver   User   `gorm:"foreignKey:ReceiverID" json:"-"`
	Text       string `json:"text"`
	Image      string `json:"image"`
	Seen       bool   `gorm:"not null;default:false" json:"seen"`
	Deleted    bool   `gorm:"not null;default:false" json:"deleted"`
}

// Redact applies the soft delete. It is one-way.
func (m *Message) Redact() {
	m.Deleted = true
	m.Text = DeletedPlaceholder
	m.Image = ""
}

// Between reports whether the message belongs to the conversation of a and b.
func (m *Message) Between(a, b uint) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}
