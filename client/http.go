package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dm-service/apperror"
	"dm-service/wire"

	"github.com/gofiber/fiber/v2"
)

// HTTPAPI talks to the messenger REST routes with a bearer token.
type HTTPAPI struct {
	base    string
	token   string
	timeout time.Duration
}

func NewHTTPAPI(base, token string, timeout time.Duration) *HTTPAPI {
	return &HTTPAPI{
		base:    strings.TrimRight(base, "/"),
		token:   token,
		timeout: timeout,
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message *string         `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// statusError turns an error reply back into the matching apperror kind.
func statusError(code int, message string) error {
	if message == "" {
		message = fmt.Sprintf("request failed with status %d", code)
	}
	switch code {
	case fiber.StatusBadRequest:
		return apperror.Validation(message)
	case fiber.StatusUnauthorized, fiber.StatusForbidden:
		return apperror.Authorization(message)
	case fiber.StatusNotFound:
		return apperror.NotFound(message)
	}
	return apperror.Transient(message, fmt.Errorf("status %d", code))
}

func (api *HTTPAPI) do(ctx context.Context, agent *fiber.Agent, out any) error {
	if err := ctx.Err(); err != nil {
		return apperror.Transient("Request cancelled", err)
	}

	timeout := api.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if timeout > 0 {
		agent.Timeout(timeout)
	}
	agent.Set(fiber.HeaderAuthorization, "Bearer "+api.token)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return apperror.Transient("Messenger unreachable", errors.Join(errs...))
	}

	reply := envelope{}
	if err := json.Unmarshal(body, &reply); err != nil {
		if code >= 400 {
			return statusError(code, "")
		}
		return apperror.Transient("Malformed reply", err)
	}
	if code >= 400 || reply.Status != "success" {
		message := ""
		if reply.Message != nil {
			message = *reply.Message
		}
		return statusError(code, message)
	}

	if out == nil || len(reply.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Data, out); err != nil {
		return apperror.Transient("Malformed reply", err)
	}
	return nil
}

func (api *HTTPAPI) url(format string, args ...any) string {
	return api.base + fmt.Sprintf(format, args...)
}

func (api *HTTPAPI) Contacts(ctx context.Context) (*wire.Contacts, error) {
	contacts := new(wire.Contacts)
	if err := api.do(ctx, fiber.Get(api.url("/v1/messenger/users")), contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (api *HTTPAPI) Conversation(ctx context.Context, peer uint) ([]wire.Message, error) {
	messages := []wire.Message{}
	if err := api.do(ctx, fiber.Get(api.url("/v1/messenger/%d", peer)), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (api *HTTPAPI) Send(ctx context.Context, peer uint, in wire.SendInput) (wire.Message, error) {
	m := wire.Message{}
	err := api.do(ctx, fiber.Post(api.url("/v1/messenger/send/%d", peer)).JSON(in), &m)
	return m, err
}

func (api *HTTPAPI) Delete(ctx context.Context, id uint) (wire.Message, error) {
	m := wire.Message{}
	err := api.do(ctx, fiber.Delete(api.url("/v1/messenger/%d", id)), &m)
	return m, err
}

func (api *HTTPAPI) MarkSeen(ctx context.Context, id uint) error {
	return api.do(ctx, fiber.Put(api.url("/v1/messenger/mark/%d", id)), nil)
}

func (api *HTTPAPI) Incoming(ctx context.Context) ([]wire.FollowRequest, error) {
	requests := []wire.FollowRequest{}
	if err := api.do(ctx, fiber.Get(api.url("/v1/follow/incoming")), &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// RequestFollow asks to follow user.
func (api *HTTPAPI) RequestFollow(ctx context.Context, user uint) (*wire.FollowRequest, error) {
	request := new(wire.FollowRequest)
	if err := api.do(ctx, fiber.Post(api.url("/v1/follow/request/%d", user)), request); err != nil {
		return nil, err
	}
	return request, nil
}

func (api *HTTPAPI) AcceptFollow(ctx context.Context, request uint) error {
	return api.do(ctx, fiber.Post(api.url("/v1/follow/accept/%d", request)), nil)
}

func (api *HTTPAPI) RejectFollow(ctx context.Context, request uint) error {
	return api.do(ctx, fiber.Post(api.url("/v1/follow/reject/%d", request)), nil)
}

func (api *HTTPAPI) Mutual(ctx context.Context, user uint) (bool, error) {
	reply := struct {
		Mutual bool `json:"mutual"`
	}{}
	if err := api.do(ctx, fiber.Get(api.url("/v1/follow/mutual/%d", user)), &reply); err != nil {
		return false, err
	}
	return reply.Mutual, nil
}

func (api *HTTPAPI) Translate(ctx context.Context, id uint, target, source string) (*wire.Translation, error) {
	translation := new(wire.Translation)
	agent := fiber.Post(api.url("/v1/messenger/translate/%d", id)).JSON(fiber.Map{
		"targetLanguage": target,
		"sourceLanguage": source,
	})
	if err := api.do(ctx, agent, translation); err != nil {
		return nil, err
	}
	return translation, nil
}
