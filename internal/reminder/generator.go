package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidRequest = errors.New("invalid request")

// EventPublisher is satisfied by the Kafka producer; lifecycle events are
// optional and a nil publisher is skipped.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Generator derives the full reminder set for one resource from its due
// date and the layered template configuration, and replaces whatever was
// stored before.
type Generator struct {
	store  Store
	events EventPublisher
	log    *slog.Logger
	nowFn  func() time.Time
}

func NewGenerator(store Store, events EventPublisher, log *slog.Logger) *Generator {
	return &Generator{
		store:  store,
		events: events,
		log:    log,
		nowFn:  time.Now,
	}
}

type candidate struct {
	typ ReminderType
	at  time.Time
}

// Generate recomputes and persists the reminders for the requested
// resource, returning how many rows were created. Calling it twice with
// identical input leaves the same rows behind: the previous set is always
// replaced, never appended to.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (int, error) {
	if err := validateGenerate(req); err != nil {
		return 0, err
	}

	settings, err := g.store.OrgSettings(ctx, req.OrganizationID)
	if err != nil {
		return 0, err
	}
	if !settings.RemindersEnabled {
		g.log.Info("reminders disabled for organization, skipping",
			slog.String("organization_id", req.OrganizationID))
		return 0, nil
	}

	now := g.nowFn().UTC()

	var candidates []candidate
	for _, typ := range TypePriority {
		cfg := EffectiveConfig(settings.Templates, req.CustomTemplates, typ)
		if !cfg.Enabled {
			continue
		}
		ats, err := ComputeRemindAts(cfg, typ, now, req.DueDate)
		if err != nil {
			return 0, err
		}
		for _, at := range ats {
			candidates = append(candidates, candidate{typ: typ, at: at})
		}
	}

	kept := dedupeByDay(filterPastDue(candidates, req.DueDate))

	rows := make([]ScheduledReminder, 0, len(kept))
	for _, c := range kept {
		rows = append(rows, ScheduledReminder{
			ID:             uuid.New().String(),
			OrganizationID: req.OrganizationID,
			ResourceType:   req.ResourceType,
			ResourceID:     req.ResourceID,
			ResourceTitle:  req.ResourceTitle,
			ReminderType:   c.typ,
			RemindAt:       c.at,
			RecipientIDs:   req.RecipientIDs,
			CreatedAt:      now,
		})
	}

	if err := g.store.ReplaceForResource(ctx, req.ResourceType, req.ResourceID, rows); err != nil {
		return 0, err
	}

	RemindersGenerated.Add(float64(len(rows)))
	g.publishGenerated(ctx, req, len(rows))
	g.log.Info("reminders regenerated",
		slog.String("resource_type", string(req.ResourceType)),
		slog.String("resource_id", req.ResourceID),
		slog.Int("created", len(rows)))

	return len(rows), nil
}

func validateGenerate(req GenerateRequest) error {
	switch {
	case req.OrganizationID == "":
		return fmt.Errorf("%w: organization_id is required", ErrInvalidRequest)
	case req.ResourceID == "":
		return fmt.Errorf("%w: resource_id is required", ErrInvalidRequest)
	case req.ResourceTitle == "":
		return fmt.Errorf("%w: resource_title is required", ErrInvalidRequest)
	case !req.ResourceType.Valid():
		return fmt.Errorf("%w: unknown resource_type %q", ErrInvalidRequest, req.ResourceType)
	}
	return nil
}

// filterPastDue drops any candidate strictly after the due date: a
// reminder must never fire after the thing it reminds about is over.
func filterPastDue(candidates []candidate, due *time.Time) []candidate {
	if due == nil {
		return candidates
	}
	var out []candidate
	for _, c := range candidates {
		if !c.at.After(*due) {
			out = append(out, c)
		}
	}
	return out
}

// dedupeByDay keeps at most one candidate per UTC calendar day. Input is
// already ordered by TypePriority, so the first candidate seen for a day
// is the highest-priority one.
func dedupeByDay(candidates []candidate) []candidate {
	seen := make(map[string]bool, len(candidates))
	var out []candidate
	for _, c := range candidates {
		day := c.at.UTC().Format("2006-01-02")
		if seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, c)
	}
	return out
}

func (g *Generator) publishGenerated(ctx context.Context, req GenerateRequest, created int) {
	if g.events == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"event":           "reminders.generated",
		"organization_id": req.OrganizationID,
		"resource_type":   req.ResourceType,
		"resource_id":     req.ResourceID,
		"created":         created,
		"at":              g.nowFn().UTC(),
	})
	if err != nil {
		return
	}
	if err := g.events.Publish(ctx, req.ResourceID, payload); err != nil {
		g.log.Warn("failed to publish generation event", slog.String("error", err.Error()))
	}
}
