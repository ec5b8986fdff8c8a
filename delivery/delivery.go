// Package delivery validates, authorizes, persists and fans out direct
// messages. A message is always durably stored before any connection is
// told about it; receivers that are offline pull it on their next fetch.
package delivery

import (
	"context"
	"errors"
	"strings"
	"time"

	"dm-service/apperror"
	"dm-service/database"
	"dm-service/metrics"
	"dm-service/model"
	"dm-service/translator"
	"dm-service/wire"

	"github.com/golang/glog"
)

// Bus actions published after a state change has been persisted.
const (
	ActionMessageCreated = "message.created"
	ActionMessageDeleted = "message.deleted"
	ActionMessageSeen    = "message.seen"
)

type MessageStore interface {
	Append(ctx context.Context, m *model.Message) error
	Get(ctx context.Context, id uint) (*model.Message, error)
	Conversation(ctx context.Context, a, b uint) ([]model.Message, error)
	MarkConversationSeen(ctx context.Context, reader, peer uint) (int64, error)
	MarkSeen(ctx context.Context, id uint) (bool, error)
	Redact(ctx context.Context, id uint) (*model.Message, bool, error)
	UnseenCounts(ctx context.Context, reader uint) (map[uint]int64, error)
	LastActivity(ctx context.Context, user uint) (map[uint]time.Time, error)
}

type UserStore interface {
	Exists(ctx context.Context, id uint) (bool, error)
	Others(ctx context.Context, id uint) ([]model.User, error)
}

type EdgeStore interface {
	Edges(ctx context.Context, user uint) ([]model.Follow, error)
}

type Gate interface {
	Check(ctx context.Context, a, b uint) error
}

type Presence interface {
	Send(user uint, ev wire.Event) int
	IsOnline(user uint) bool
}

// Publisher forwards persisted state changes to the event bus.
type Publisher interface {
	Publish(action string, data any)
}

type Translator interface {
	Translate(ctx context.Context, text, target, source string) (*translator.Result, error)
}

type Options struct {
	Gate         Gate
	Messages     MessageStore
	Users        UserStore
	Edges        EdgeStore
	Presence     Presence
	Publisher    Publisher
	Translator   Translator
	StoreTimeout time.Duration
}

type Service struct {
	gate       Gate
	messages   MessageStore
	users      UserStore
	edges      EdgeStore
	presence   Presence
	publisher  Publisher
	translator Translator
	timeout    time.Duration
}

type discard struct{}

func (discard) Publish(string, any) {}

func New(opts Options) *Service {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = discard{}
	}
	return &Service{
		gate:       opts.Gate,
		messages:   opts.Messages,
		users:      opts.Users,
		edges:      opts.Edges,
		presence:   opts.Presence,
		publisher:  publisher,
		translator: opts.Translator,
		timeout:    opts.StoreTimeout,
	}
}

func (s *Service) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func storeError(message string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return apperror.NotFound(message)
	}
	return apperror.Transient("Message store unavailable", err)
}

func (s *Service) push(user uint, ev wire.Event) int {
	delivered := s.presence.Send(user, ev)
	metrics.Pushes.WithLabelValues(string(ev.Kind)).Add(float64(delivered))
	return delivered
}

// SendMessage delivers one message from sender to receiver.
func (s *Service) SendMessage(ctx context.Context, sender, receiver uint, in wire.SendInput) (*model.Message, error) {
	if receiver == 0 {
		return nil, apperror.Validation("Receiver is required.")
	}
	if strings.TrimSpace(in.Text) == "" && in.Image == "" {
		return nil, apperror.Validation("Message cannot be empty.")
	}
	if sender == receiver {
		return nil, apperror.Validation("Cannot message yourself.")
	}

	storeCtx, cancel := s.bounded(ctx)
	exists, err := s.users.Exists(storeCtx, receiver)
	cancel()
	if err != nil {
		return nil, apperror.Transient("User store unavailable", err)
	}
	if !exists {
		return nil, apperror.Validation("Unknown receiver.")
	}

	if err := s.gate.Check(ctx, sender, receiver); err != nil {
		metrics.GateDenials.WithLabelValues("send").Inc()
		return nil, err
	}

	m := &model.Message{
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       in.Text,
		Image:      in.Image,
	}

	storeCtx, cancel = s.bounded(ctx)
	err = s.messages.Append(storeCtx, m)
	cancel()
	if err != nil {
		glog.Errorf("delivery: persist message %d->%d: %v", sender, receiver, err)
		return nil, apperror.Transient("Message could not be saved", err)
	}
	metrics.MessagesSent.Inc()

	payload := wire.FromMessage(m)
	delivered := s.push(receiver, wire.NewMessageEvent(payload))
	glog.V(1).Infof("delivery: message %d %d->%d pushed to %d connections", m.ID, sender, receiver, delivered)

	s.publisher.Publish(ActionMessageCreated, payload)
	return m, nil
}

// Conversation returns the messages between me and peer, oldest first, and
// then marks the peer's messages to me as seen. The returned slice is the
// state before marking.
func (s *Service) Conversation(ctx context.Context, me, peer uint) ([]model.Message, error) {
	if err := s.gate.Check(ctx, me, peer); err != nil {
		metrics.GateDenials.WithLabelValues("read").Inc()
		return nil, err
	}

	storeCtx, cancel := s.bounded(ctx)
	defer cancel()

	messages, err := s.messages.Conversation(storeCtx, me, peer)
	if err != nil {
		return nil, storeError("Conversation not found", err)
	}

	seen, err := s.messages.MarkConversationSeen(storeCtx, me, peer)
	if err != nil {
		glog.Warningf("delivery: mark conversation %d<-%d seen: %v", me, peer, err)
	} else if seen > 0 {
		s.publisher.Publish(ActionMessageSeen, map[string]uint{"reader": me, "peer": peer})
	}

	return messages, nil
}

// DeleteMessage soft deletes a message. Only its sender may delete it, and
// only once; both parties' connections receive the redacted message.
func (s *Service) DeleteMessage(ctx context.Context, me, id uint) (*model.Message, error) {
	storeCtx, cancel := s.bounded(ctx)
	defer cancel()

	m, err := s.messages.Get(storeCtx, id)
	if err != nil {
		return nil, storeError("Message not found", err)
	}
	if m.SenderID != me {
		return nil, apperror.Authorization("Not authorized to delete this message")
	}
	if m.Deleted {
		return nil, apperror.NotFound("Message already deleted")
	}

	m, changed, err := s.messages.Redact(storeCtx, id)
	if err != nil {
		return nil, storeError("Message not found", err)
	}
	if !changed {
		return nil, apperror.NotFound("Message already deleted")
	}
	metrics.MessagesDeleted.Inc()

	payload := wire.FromMessage(m)
	ev := wire.MessageDeletedEvent(payload)
	s.push(m.SenderID, ev)
	s.push(m.ReceiverID, ev)

	s.publisher.Publish(ActionMessageDeleted, payload)
	return m, nil
}

// MarkSeen flags a message addressed to me as seen. Marking an already
// seen message is a no-op.
func (s *Service) MarkSeen(ctx context.Context, me, id uint) error {
	storeCtx, cancel := s.bounded(ctx)
	defer cancel()

	m, err := s.messages.Get(storeCtx, id)
	if err != nil {
		return storeError("Message not found", err)
	}
	if m.ReceiverID != me {
		return apperror.Authorization("Only the receiver can mark a message as seen")
	}
	if m.Seen {
		return nil
	}

	changed, err := s.messages.MarkSeen(storeCtx, id)
	if err != nil {
		return storeError("Message not found", err)
	}
	if changed {
		s.publisher.Publish(ActionMessageSeen, map[string]uint{"reader": me, "message": id})
	}
	return nil
}

// Contacts lists every other user with last activity, follow state,
// presence and the number of unseen messages they sent to me.
func (s *Service) Contacts(ctx context.Context, me uint) (*wire.Contacts, error) {
	storeCtx, cancel := s.bounded(ctx)
	defer cancel()

	users, err := s.users.Others(storeCtx, me)
	if err != nil {
		return nil, storeError("User not found", err)
	}
	unseen, err := s.messages.UnseenCounts(storeCtx, me)
	if err != nil {
		return nil, storeError("User not found", err)
	}
	activity, err := s.messages.LastActivity(storeCtx, me)
	if err != nil {
		return nil, storeError("User not found", err)
	}
	edges, err := s.edges.Edges(storeCtx, me)
	if err != nil {
		return nil, storeError("User not found", err)
	}

	following := map[uint]bool{}
	followers := map[uint]bool{}
	for _, edge := range edges {
		if edge.FromID == me {
			following[edge.ToID] = true
		} else {
			followers[edge.FromID] = true
		}
	}

	contacts := &wire.Contacts{
		Users:          make([]wire.Contact, 0, len(users)),
		UnseenMessages: unseen,
	}
	for _, user := range users {
		contact := wire.Contact{
			Id:           user.ID,
			Username:     user.Username,
			FullName:     user.FullName,
			ProfilePic:   user.ProfilePic,
			Bio:          user.Bio,
			MutualFollow: following[user.ID] && followers[user.ID],
			Online:       s.presence.IsOnline(user.ID),
		}
		if at, ok := activity[user.ID]; ok {
			contact.LastMessageAt = &at
		}
		contacts.Users = append(contacts.Users, contact)
	}
	return contacts, nil
}

// Translate runs a message's text through the translator. Either party of
// the message may translate it.
func (s *Service) Translate(ctx context.Context, me, id uint, target, source string) (*wire.Translation, error) {
	if target == "" {
		return nil, apperror.Validation("Target language is required")
	}
	if s.translator == nil {
		return nil, apperror.Transient("Translation unavailable", errors.New("no translator configured"))
	}

	storeCtx, cancel := s.bounded(ctx)
	m, err := s.messages.Get(storeCtx, id)
	cancel()
	if err != nil {
		return nil, storeError("Message not found", err)
	}
	if m.SenderID != me && m.ReceiverID != me {
		return nil, apperror.Authorization("Unauthorized to translate this message")
	}
	if m.Deleted || strings.TrimSpace(m.Text) == "" {
		return nil, apperror.Validation("Cannot translate this message")
	}
	if source == "" {
		source = translator.AutoDetect
	}

	result, err := s.translator.Translate(ctx, m.Text, target, source)
	if err != nil {
		return nil, apperror.Transient("Translation failed", err)
	}
	return &wire.Translation{
		MessageId:          m.ID,
		OriginalText:       m.Text,
		TranslatedText:     result.Text,
		DetectedSourceLang: result.Source,
		TargetLang:         result.Target,
	}, nil
}
