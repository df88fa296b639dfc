package redisx

import (
	"fmt"
	"time"
)

const (
	// State percakapan per user: convo:{service}:{user_id} -> JSON convo.State
	KeyConvoState = "convo:%s:%s"

	// Dedup event masuk: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLDedup = 48 * time.Hour
)

func convoKey(service, userID string) string { return fmt.Sprintf(KeyConvoState, service, userID) }

func dedupKey(service, eventID string) string { return fmt.Sprintf(KeyDedup, service, eventID) }
