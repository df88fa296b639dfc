package kafka

import (
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/go-roti-bot/internal/chat"
)

// DecodeEvent membaca event chat dari value pesan inbound.
func DecodeEvent(b []byte) (chat.Event, error) {
	var ev chat.Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return chat.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// Unwrap memudahkan decode payload spesifik
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
