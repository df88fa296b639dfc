package config

import (
	"errors"
	"fmt"
	"github.com/ariefcatur/go-roti-bot/internal/hours"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr    string
	ServiceName string

	AdminID     string
	AdminChatID string

	PostgresDSN string // kosong = katalog & order in-memory
	RedisAddr   string // kosong = state percakapan in-memory

	KafkaBrokers       []string // kosong = kafka mati
	KafkaInboundTopic  string
	KafkaOutboundTopic string
	KafkaGroup         string

	NATSURL          string // kosong = nats mati
	NATSSubject      string
	NATSEventSubject string

	GroqAPIKey        string // kosong = tier classifier dilewati
	GroqModel         string
	GroqBaseURL       string
	ClassifierTimeout string

	StateTTL         string
	ServiceOpen      string
	ServiceClose     string
	ServiceUTCOffset string

	SeedCatalog bool
	LogLevel    string
}

func Load() Config {
	admin := getenv("ADMIN_ID", "")
	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		ServiceName: getenv("SERVICE_NAME", "roti-bot"),

		AdminID:     admin,
		AdminChatID: getenv("ADMIN_CHAT_ID", admin),

		PostgresDSN: getenv("POSTGRES_DSN", ""),
		RedisAddr:   getenv("REDIS_ADDR", ""),

		KafkaBrokers:       splitCSV(getenv("KAFKA_BROKERS", "")),
		KafkaInboundTopic:  getenv("KAFKA_INBOUND_TOPIC", "bot.inbound"),
		KafkaOutboundTopic: getenv("KAFKA_OUTBOUND_TOPIC", "bot.outbound"),
		KafkaGroup:         getenv("KAFKA_GROUP", "roti-bot"),

		NATSURL:          getenv("NATS_URL", ""),
		NATSSubject:      getenv("NATS_SUBJECT", "bot.outbound"),
		NATSEventSubject: getenv("NATS_EVENT_SUBJECT", "order.events"),

		GroqAPIKey:        getenv("GROQ_API_KEY", ""),
		GroqModel:         getenv("GROQ_MODEL", "llama-3.1-8b-instant"),
		GroqBaseURL:       getenv("GROQ_BASE_URL", ""),
		ClassifierTimeout: getenv("CLASSIFIER_TIMEOUT", "4s"),

		StateTTL:         getenv("STATE_TTL", "5m"),
		ServiceOpen:      getenv("SERVICE_OPEN", "08:00"),
		ServiceClose:     getenv("SERVICE_CLOSE", "20:00"),
		ServiceUTCOffset: getenv("SERVICE_UTC_OFFSET", "+07:00"),

		SeedCatalog: getbool("SEED_CATALOG", true),
		LogLevel:    getenv("LOG_LEVEL", "info"),
	}
}

// Validate memeriksa semua nilai yang baru bisa gagal saat dipakai.
func (c Config) Validate() error {
	var errs []error
	if c.AdminID == "" {
		errs = append(errs, errors.New("ADMIN_ID is required"))
	}
	if _, err := c.ClassifierTimeoutDuration(); err != nil {
		errs = append(errs, fmt.Errorf("CLASSIFIER_TIMEOUT: %w", err))
	}
	if _, err := c.StateTTLDuration(); err != nil {
		errs = append(errs, fmt.Errorf("STATE_TTL: %w", err))
	}
	if _, err := c.HoursPolicy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

func (c Config) ClassifierTimeoutDuration() (time.Duration, error) {
	return positiveDuration(c.ClassifierTimeout)
}

func (c Config) StateTTLDuration() (time.Duration, error) {
	return positiveDuration(c.StateTTL)
}

func (c Config) HoursPolicy() (hours.Policy, error) {
	open, err := hours.ParseClock(c.ServiceOpen)
	if err != nil {
		return hours.Policy{}, fmt.Errorf("SERVICE_OPEN: %w", err)
	}
	closeAt, err := hours.ParseClock(c.ServiceClose)
	if err != nil {
		return hours.Policy{}, fmt.Errorf("SERVICE_CLOSE: %w", err)
	}
	if open >= closeAt {
		return hours.Policy{}, fmt.Errorf("SERVICE_OPEN %s must be before SERVICE_CLOSE %s", c.ServiceOpen, c.ServiceClose)
	}
	offset, err := hours.ParseOffset(c.ServiceUTCOffset)
	if err != nil {
		return hours.Policy{}, fmt.Errorf("SERVICE_UTC_OFFSET: %w", err)
	}
	return hours.Policy{Open: open, Close: closeAt, Offset: offset}, nil
}

func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

func positiveDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", s)
	}
	return d, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	v, err := strconv.ParseBool(getenv(k, strconv.FormatBool(def)))
	if err != nil {
		return def
	}
	return v
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
