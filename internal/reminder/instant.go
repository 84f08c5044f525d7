package reminder

import (
	"context"
	"fmt"
	"log/slog"
)

// SendInstant delivers a one-shot reminder for an event to every resolved
// participant right now, bypassing the schedule table entirely.
func (p *Processor) SendInstant(ctx context.Context, req InstantRequest) (DispatchResult, error) {
	if req.EventID == "" {
		return DispatchResult{}, fmt.Errorf("%w: event_id is required", ErrInvalidRequest)
	}
	if req.OrganizationID == "" {
		return DispatchResult{}, fmt.Errorf("%w: organization_id is required", ErrInvalidRequest)
	}

	ev, err := p.dir.EventByID(ctx, req.EventID)
	if err != nil {
		return DispatchResult{}, err
	}

	settings, err := p.store.OrgSettings(ctx, req.OrganizationID)
	if err != nil {
		return DispatchResult{}, err
	}

	tpl := defaultInstantTemplate
	if req.CustomTemplate != nil {
		if req.CustomTemplate.Title != nil {
			tpl.Title = *req.CustomTemplate.Title
		}
		if req.CustomTemplate.Body != nil {
			tpl.Body = *req.CustomTemplate.Body
		}
	}

	ids, err := p.dir.EventRecipients(ctx, req.EventID)
	if err != nil {
		return DispatchResult{}, err
	}
	profiles, err := p.dir.ProfilesByIDs(ctx, ids)
	if err != nil {
		return DispatchResult{}, err
	}

	cache := newBatchCache()
	vars, err := p.resolveVars(ctx, cache, ResourceEvent, ev.ID, ev.Title, p.nowFn().UTC())
	if err != nil {
		return DispatchResult{}, err
	}

	result := DispatchResult{Recipients: len(profiles)}
	channels := settings.NotificationChannel.Channels()
	for _, prof := range profiles {
		vars["nome"] = prof.FullName
		msg := Render(tpl, vars)
		sent, failed := p.dispatch(ctx, "", prof, msg, channels)
		result.Sent += sent
		result.Failed += failed
	}

	p.log.Info("instant reminder dispatched",
		slog.String("event_id", req.EventID),
		slog.Int("recipients", result.Recipients),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed))

	return result, nil
}
