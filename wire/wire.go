// Package wire holds the JSON shapes exchanged between the messenger
// service and its clients, over REST and over socket pushes.
package wire

import (
	"time"

	"dm-service/model"
)

type Message struct {
	Id        uint      `json:"id"`
	Sender    uint      `json:"sender"`
	Receiver  uint      `json:"receiver"`
	Text      string    `json:"text"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"createdAt"`
	Seen      bool      `json:"seen"`
	Deleted   bool      `json:"deleted"`
}

type SendInput struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func (in SendInput) Empty() bool {
	return in.Text == "" && in.Image == ""
}

type Contact struct {
	Id            uint       `json:"id"`
	Username      string     `json:"username"`
	FullName      string     `json:"fullName"`
	ProfilePic    string     `json:"profilePic"`
	Bio           string     `json:"bio"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	MutualFollow  bool       `json:"mutualFollow"`
	Online        bool       `json:"online"`
}

type Contacts struct {
	Users          []Contact      `json:"users"`
	UnseenMessages map[uint]int64 `json:"unseenMessages"`
}

type FollowRequest struct {
	Id        uint         `json:"id"`
	From      uint         `json:"from"`
	To        uint         `json:"to"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	FromUser  *ContactCard `json:"fromUser,omitempty"`
}

type ContactCard struct {
	Id         uint   `json:"id"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic"`
}

type Translation struct {
	MessageId          uint   `json:"messageId"`
	OriginalText       string `json:"originalText"`
	TranslatedText     string `json:"translatedText"`
	DetectedSourceLang string `json:"detectedSourceLang"`
	TargetLang         string `json:"targetLang"`
}

func FromMessage(m *model.Message) Message {
	return Message{
		Id:        m.ID,
		Sender:    m.SenderID,
		Receiver:  m.ReceiverID,
		Text:      m.Text,
		Image:     m.Image,
		CreatedAt: m.CreatedAt,
		Seen:      m.Seen,
		Deleted:   m.Deleted,
	}
}

func FromMessages(messages []model.Message) []Message {
	out := make([]Message, 0, len(messages))
	for i := range messages {
		out = append(out, FromMessage(&messages[i]))
	}
	return out
}

func FromFollow(f *model.Follow) FollowRequest {
	request := FollowRequest{
		Id:        f.ID,
		From:      f.FromID,
		To:        f.ToID,
		Status:    string(f.Status),
		CreatedAt: f.CreatedAt,
	}
	if f.From.ID != 0 {
		request.FromUser = &ContactCard{
			Id:         f.From.ID,
			FullName:   f.From.FullName,
			ProfilePic: f.From.ProfilePic,
		}
	}
	return request
}
