package reminder

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/agendaviva/reminders/pkg/jsonutil"
)

// Handler exposes the three function-style HTTP entry points.
type Handler struct {
	generator *Generator
	processor *Processor
	log       *slog.Logger
}

func NewHandler(generator *Generator, processor *Processor, log *slog.Logger) *Handler {
	return &Handler{generator: generator, processor: processor, log: log}
}

// GenerateReminders recomputes the reminder rows for one resource.
// POST /functions/generate-reminders
func (h *Handler) GenerateReminders(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{
		"message":           "reminders generated",
		"reminders_created": created,
	})
}

// ProcessReminders runs one due batch; the external cron hits this every
// minute. POST /functions/process-reminders
func (h *Handler) ProcessReminders(w http.ResponseWriter, r *http.Request) {
	result, err := h.processor.ProcessDue(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{
		"message":   "batch processed",
		"processed": result.Processed,
		"errors":    result.Errors,
	})
}

// SendInstantReminder fires a one-shot send to an event's participants.
// POST /functions/send-instant-reminder
func (h *Handler) SendInstantReminder(w http.ResponseWriter, r *http.Request) {
	var req InstantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.processor.SendInstant(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	jsonutil.WriteJSON(w, http.StatusOK, map[string]any{
		"message":    "instant reminder sent",
		"recipients": result.Recipients,
		"sent":       result.Sent,
		"failed":     result.Failed,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnsupportedRepeat):
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrEventNotFound), errors.Is(err, ErrOrganizationNotFound):
		jsonutil.WriteErrorJSON(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error("request failed", slog.String("error", err.Error()))
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "internal server error")
	}
}
