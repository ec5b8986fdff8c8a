package controller

import (
	"dm-service/apperror"
	"dm-service/wire"

	"github.com/gofiber/fiber/v2"
)

type TranslateInput struct {
	TargetLanguage string `json:"targetLanguage"`
	SourceLanguage string `json:"sourceLanguage"`
}

// MessengerContacts lists the sidebar users with unseen counts.
func (h *Controller) MessengerContacts(c *fiber.Ctx) error {
	me, _, err := identify(c, "")
	if err != nil {
		return failure(c, err)
	}

	contacts, err := h.messenger.Contacts(c.UserContext(), me)
	if err != nil {
		return failure(c, err)
	}
	return success(c, nil, contacts)
}

// MessengerConversation returns the conversation with the peer :id and
// marks the peer's messages as seen.
func (h *Controller) MessengerConversation(c *fiber.Ctx) error {
	me, peer, err := identify(c, "id")
	if err != nil {
		return failure(c, err)
	}

	messages, err := h.messenger.Conversation(c.UserContext(), me, peer)
	if err != nil {
		return failure(c, err)
	}
	return success(c, nil, wire.FromMessages(messages))
}

func (h *Controller) MessengerSend(c *fiber.Ctx) error {
	me, receiver, err := identify(c, "id")
	if err != nil {
		return failure(c, err)
	}

	input := new(wire.SendInput)
	if err := c.BodyParser(input); err != nil {
		return failure(c, apperror.Validation("Review your input"))
	}

	m, err := h.messenger.SendMessage(c.UserContext(), me, receiver, *input)
	if err != nil {
		return failure(c, err)
	}
	return success(c, nil, wire.FromMessage(m))
}

func (h *Controller) MessengerMarkSeen(c *fiber.Ctx) error {
	me, id, err := identify(c, "id")
	if err != nil {
		return failure(c, err)
	}

	if err := h.messenger.MarkSeen(c.UserContext(), me, id); err != nil {
		return failure(c, err)
	}
	return success(c, nil, nil)
}

func (h *Controller) MessengerDelete(c *fiber.Ctx) error {
	me, id, err := identify(c, "messageId")
	if err != nil {
		return failure(c, err)
	}

	m, err := h.messenger.DeleteMessage(c.UserContext(), me, id)
	if err != nil {
		return failure(c, err)
	}
	return success(c, "Message deleted", wire.FromMessage(m))
}

func (h *Controller) MessengerTranslate(c *fiber.Ctx) error {
	me, id, err := identify(c, "messageId")
	if err != nil {
		return failure(c, err)
	}

	input := new(TranslateInput)
	if err := c.BodyParser(input); err != nil {
		return failure(c, apperror.Validation("Review your input"))
	}

	translation, err := h.messenger.Translate(c.UserContext(), me, id, input.TargetLanguage, input.SourceLanguage)
	if err != nil {
		return failure(c, err)
	}
	return success(c, nil, translation)
}
