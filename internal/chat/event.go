package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

type Message struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Callback is a button press; Action carries the action token of the button.
type Callback struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
	Action string `json:"action"`
}

// Event is an inbound event: exactly one of Message or Callback is set.
type Event struct {
	ID       string    `json:"id,omitempty"`
	Message  *Message  `json:"message,omitempty"`
	Callback *Callback `json:"callback,omitempty"`
}

var ErrInvalidEvent = errors.New("invalid inbound event")

func (e Event) Validate() error {
	switch {
	case e.Message != nil && e.Callback != nil:
		return errors.Join(ErrInvalidEvent, errors.New("both message and callback set"))
	case e.Message != nil:
		if e.Message.UserID == "" || e.Message.ChatID == "" {
			return errors.Join(ErrInvalidEvent, errors.New("message without user_id/chat_id"))
		}
	case e.Callback != nil:
		if e.Callback.UserID == "" || e.Callback.ChatID == "" {
			return errors.Join(ErrInvalidEvent, errors.New("callback without user_id/chat_id"))
		}
	default:
		return errors.Join(ErrInvalidEvent, errors.New("empty event"))
	}
	return nil
}

func (e Event) UserID() string {
	if e.Callback != nil {
		return e.Callback.UserID
	}
	if e.Message != nil {
		return e.Message.UserID
	}
	return ""
}

func (e Event) ChatID() string {
	if e.Callback != nil {
		return e.Callback.ChatID
	}
	if e.Message != nil {
		return e.Message.ChatID
	}
	return ""
}

const FormatMarkdown = "Markdown"

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// EscapeMarkdown escapes admin or user supplied text placed in a FormatMarkdown reply.
func EscapeMarkdown(s string) string { return markdownEscaper.Replace(s) }

type Button struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Reply is an outbound instruction for the transport; it is never sent from here.
type Reply struct {
	ChatID  string     `json:"chat_id"`
	Text    string     `json:"text"`
	Format  string     `json:"format,omitempty"`
	Buttons [][]Button `json:"buttons,omitempty"`
}

// Sink hands replies to whatever delivers them (kafka topic, nats subject, log).
type Sink interface {
	Send(ctx context.Context, r Reply) error
}

// MultiSink sends to every sink and returns the joined errors.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, r Reply) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink only logs replies. Used when no outbound transport is configured.
type LogSink struct{ Log *slog.Logger }

func (s LogSink) Send(_ context.Context, r Reply) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("outbound reply", "chat_id", r.ChatID, "text", r.Text, "buttons", len(r.Buttons))
	return nil
}
