// Package translator is the text transform service used to translate
// message text on demand. The default implementation calls the MyMemory
// translation API.
package translator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const AutoDetect = "auto"

var (
	ErrEmptyText     = errors.New("text cannot be empty")
	ErrNoTarget      = errors.New("target language is required")
	ErrNoTranslation = errors.New("translation failed")
)

type Result struct {
	Text   string
	Source string
	Target string
}

// MyMemory translates through the MyMemory HTTP API.
type MyMemory struct {
	url     string
	timeout time.Duration
}

func NewMyMemory(endpoint string, timeout time.Duration) *MyMemory {
	return &MyMemory{url: endpoint, timeout: timeout}
}

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	ResponseStatus  any    `json:"responseStatus"`
	ResponseDetails string `json:"responseDetails"`
}

// Translate translates text into target. A source of "auto" or "" is
// detected from the text.
func (m *MyMemory) Translate(ctx context.Context, text, target, source string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if target == "" {
		return nil, ErrNoTarget
	}
	if source == "" || source == AutoDetect {
		source = Detect(text)
	}

	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout || timeout <= 0 {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	query := url.Values{}
	query.Set("q", text)
	query.Set("langpair", source+"|"+target)

	response := myMemoryResponse{}
	code, _, errs := fiber.Get(m.url).
		QueryString(query.Encode()).
		Timeout(timeout).
		Struct(&response)
	if len(errs) > 0 {
		return nil, fmt.Errorf("translate: %w", errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return nil, fmt.Errorf("translate: status %d: %s", code, response.ResponseDetails)
	}
	if response.ResponseData.TranslatedText == "" {
		return nil, ErrNoTranslation
	}

	return &Result{
		Text:   response.ResponseData.TranslatedText,
		Source: source,
		Target: target,
	}, nil
}
