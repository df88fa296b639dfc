package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/ariefcatur/go-roti-bot/internal/bot"
	"github.com/ariefcatur/go-roti-bot/internal/catalog"
	"github.com/ariefcatur/go-roti-bot/internal/chat"
	"github.com/go-chi/chi/v5"
	"log/slog"
	"net/http"
	"time"
)

const maxEventBytes = 64 << 10

// EventsHandler adalah webhook sinkron: event masuk, balasan langsung di response.
type EventsHandler struct {
	Dispatcher *bot.Dispatcher
	Catalog    catalog.Store
	Log        *slog.Logger
}

type EventsResp struct {
	Replies []chat.Reply `json:"replies"`
}

func (h *EventsHandler) Register(r chi.Router) {
	r.Post("/events", h.postEvent)
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *EventsHandler) postEvent(w http.ResponseWriter, r *http.Request) {
	var ev chat.Event
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if ev.ID == "" {
		ev.ID = r.Header.Get("X-Event-Id")
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	replies, err := h.Dispatcher.Process(ctx, ev)
	if errors.Is(err, chat.ErrInvalidEvent) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		h.log().Error("process event", "event_id", ev.ID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if replies == nil {
		replies = []chat.Reply{}
	}
	writeJSON(w, http.StatusOK, EventsResp{Replies: replies})
}

func (h *EventsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if ps == nil {
		ps = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *EventsHandler) log() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}
