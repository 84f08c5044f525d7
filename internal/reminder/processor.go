package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// DefaultBatchSize caps how many due rows one invocation handles, bounding
// catch-up work after downtime.
const DefaultBatchSize = 100

// deliveredKeyTTL bounds how long the per-recipient delivery guard lives.
const deliveredKeyTTL = 24 * time.Hour

// QueuePublisher is satisfied by the RabbitMQ client; failed deliveries
// are pushed to a dead-letter style queue for ops inspection.
type QueuePublisher interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Alerter notifies operators when a batch finishes with errors.
type Alerter interface {
	BatchAlert(ctx context.Context, errs []string) error
}

// Processor drains due reminders in bounded batches: resolves recipients,
// renders per-recipient messages, fans delivery out across the enabled
// channels and marks each row sent.
type Processor struct {
	store       Store
	dir         Directory
	registry    *DriverRegistry
	events      EventPublisher
	redis       *redis.Client
	failed      QueuePublisher
	failedQueue string
	alerts      Alerter
	log         *slog.Logger
	nowFn       func() time.Time
	batchSize   int
}

// ProcessorDeps carries the optional collaborators; any of them may be
// nil and the corresponding step is skipped.
type ProcessorDeps struct {
	Events      EventPublisher
	Redis       *redis.Client
	Failed      QueuePublisher
	FailedQueue string
	Alerts      Alerter
}

func NewProcessor(store Store, dir Directory, registry *DriverRegistry, deps ProcessorDeps, log *slog.Logger) *Processor {
	return &Processor{
		store:       store,
		dir:         dir,
		registry:    registry,
		events:      deps.Events,
		redis:       deps.Redis,
		failed:      deps.Failed,
		failedQueue: deps.FailedQueue,
		alerts:      deps.Alerts,
		log:         log,
		nowFn:       time.Now,
		batchSize:   DefaultBatchSize,
	}
}

// batchCache memoizes per-organization settings and per-ministry lookups
// for the duration of a single batch. It is created per call, never shared
// across invocations.
type batchCache struct {
	settings   map[string]*OrgSettings
	ministries map[string]string
}

func newBatchCache() *batchCache {
	return &batchCache{
		settings:   make(map[string]*OrgSettings),
		ministries: make(map[string]string),
	}
}

func (c *batchCache) orgSettings(ctx context.Context, store Store, orgID string) (*OrgSettings, error) {
	if s, ok := c.settings[orgID]; ok {
		return s, nil
	}
	s, err := store.OrgSettings(ctx, orgID)
	if err != nil {
		return nil, err
	}
	c.settings[orgID] = s
	return s, nil
}

func (c *batchCache) ministryName(ctx context.Context, dir Directory, ministryID string) (string, error) {
	if name, ok := c.ministries[ministryID]; ok {
		return name, nil
	}
	name, err := dir.MinistryNameWithLeaders(ctx, ministryID)
	if err != nil {
		return "", err
	}
	c.ministries[ministryID] = name
	return name, nil
}

// ProcessDue handles one batch of due reminders. A failure on one row is
// recorded and never stops the rest of the batch; failed rows stay
// unmarked and are retried by the next invocation.
func (p *Processor) ProcessDue(ctx context.Context) (ProcessResult, error) {
	timer := prometheus.NewTimer(BatchDuration)
	defer timer.ObserveDuration()

	now := p.nowFn().UTC()
	batch, err := p.store.DueBatch(ctx, now, p.batchSize)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("load due batch: %w", err)
	}

	cache := newBatchCache()
	result := ProcessResult{Errors: []string{}}
	for _, r := range batch {
		if err := p.processOne(ctx, cache, r); err != nil {
			p.log.Error("reminder processing failed",
				slog.String("reminder_id", r.ID),
				slog.String("error", err.Error()))
			result.Errors = append(result.Errors, fmt.Sprintf("reminder %s: %v", r.ID, err))
			RemindersProcessed.WithLabelValues("error").Inc()
			continue
		}
		result.Processed++
		RemindersProcessed.WithLabelValues("ok").Inc()
	}

	if len(result.Errors) > 0 && p.alerts != nil {
		if err := p.alerts.BatchAlert(ctx, result.Errors); err != nil {
			p.log.Warn("failed to send batch alert", slog.String("error", err.Error()))
		}
	}

	return result, nil
}

func (p *Processor) processOne(ctx context.Context, cache *batchCache, r ScheduledReminder) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	settings, err := cache.orgSettings(ctx, p.store, r.OrganizationID)
	if err != nil {
		return err
	}

	recipients, err := p.resolveRecipients(ctx, r)
	if err != nil {
		return err
	}

	if len(recipients) > 0 {
		profiles, err := p.dir.ProfilesByIDs(ctx, recipients)
		if err != nil {
			return err
		}

		vars, err := p.resolveVars(ctx, cache, r.ResourceType, r.ResourceID, r.ResourceTitle, p.nowFn().UTC())
		if err != nil {
			return err
		}

		tpl := EffectiveConfig(settings.Templates, nil, r.ReminderType).Template
		channels := settings.NotificationChannel.Channels()

		for _, prof := range profiles {
			vars["nome"] = prof.FullName
			msg := Render(tpl, vars)
			p.dispatch(ctx, r.ID, prof, msg, channels)
		}
	}

	// Marked regardless of delivery outcome, including zero recipients:
	// a reminder fires once and is never retried after its attempts ran.
	if err := p.store.MarkSent(ctx, r.ID, p.nowFn().UTC()); err != nil {
		return err
	}

	p.publishSent(ctx, r)
	return nil
}

// resolveRecipients returns the stored recipient set, late-binding event
// recipients (responsible plus ministry leaders) when the stored set is
// empty so leadership changes since scheduling are honored.
func (p *Processor) resolveRecipients(ctx context.Context, r ScheduledReminder) ([]string, error) {
	if len(r.RecipientIDs) > 0 {
		return r.RecipientIDs, nil
	}
	if r.ResourceType != ResourceEvent {
		return nil, nil
	}
	return p.dir.EventRecipients(ctx, r.ResourceID)
}

func (p *Processor) resolveVars(ctx context.Context, cache *batchCache, rt ResourceType, resourceID, title string, now time.Time) (map[string]string, error) {
	vars := map[string]string{
		"titulo":       title,
		"tipo_recurso": resourceLabel(rt),
	}

	switch rt {
	case ResourceEvent:
		return p.eventVars(ctx, cache, resourceID, now, vars)
	case ResourceTask:
		return p.taskVars(ctx, resourceID, now, vars)
	}
	return vars, nil
}

func (p *Processor) eventVars(ctx context.Context, cache *batchCache, eventID string, now time.Time, vars map[string]string) (map[string]string, error) {
	ev, err := p.dir.EventByID(ctx, eventID)
	if errors.Is(err, ErrEventNotFound) {
		// Resource deleted after scheduling; send with what we have.
		return vars, nil
	}
	if err != nil {
		return nil, err
	}

	vars["data_criacao"] = ev.CreatedAt.Format("02/01/2006")
	vars["hora_criacao"] = ev.CreatedAt.Format("15:04")
	addDueVars(vars, ev.EventDate, now)

	if ev.MinistryID != "" {
		name, err := cache.ministryName(ctx, p.dir, ev.MinistryID)
		if err != nil {
			return nil, err
		}
		vars["ministério"] = name
	}

	collabIDs, err := p.dir.CollaboratorMinistries(ctx, eventID)
	if err != nil {
		return nil, err
	}
	var collabs []string
	for _, id := range collabIDs {
		name, err := cache.ministryName(ctx, p.dir, id)
		if err != nil {
			return nil, err
		}
		if name != "" {
			collabs = append(collabs, name)
		}
	}
	if len(collabs) > 0 {
		vars["ministérios_colaboradores"] = strings.Join(collabs, ", ")
	}

	return vars, nil
}

func (p *Processor) taskVars(ctx context.Context, taskID string, now time.Time, vars map[string]string) (map[string]string, error) {
	task, err := p.dir.TaskByID(ctx, taskID)
	if errors.Is(err, ErrTaskNotFound) {
		// Resource deleted after scheduling; send with what we have.
		return vars, nil
	}
	if err != nil {
		return nil, err
	}

	vars["data_criacao"] = task.CreatedAt.Format("02/01/2006")
	vars["hora_criacao"] = task.CreatedAt.Format("15:04")
	addDueVars(vars, task.DueDate, now)
	return vars, nil
}

// addDueVars fills the due-date tokens shared by events and tasks.
func addDueVars(vars map[string]string, due *time.Time, now time.Time) {
	if due == nil {
		return
	}
	vars["data_evento"] = due.Format("02/01/2006")
	vars["hora_evento"] = due.Format("15:04")
	if days := int(due.Sub(now).Hours() / 24); days >= 0 {
		vars["dias_para_vencimento"] = strconv.Itoa(days)
	}
}

func resourceLabel(rt ResourceType) string {
	switch rt {
	case ResourceEvent:
		return "evento"
	case ResourceTask:
		return "tarefa"
	case ResourceAnnouncement:
		return "anúncio"
	}
	return string(rt)
}

// dispatch sends msg to one recipient over every enabled channel. Channels
// fail independently: a WhatsApp failure never blocks the push attempt.
func (p *Processor) dispatch(ctx context.Context, reminderID string, prof Profile, msg Message, channels []Channel) (sent, failed int) {
	for _, ch := range channels {
		if reminderID != "" && p.alreadyDelivered(ctx, reminderID, prof.ID, ch) {
			sent++
			continue
		}

		driver, err := p.registry.Get(ch)
		if err != nil {
			failed++
			DeliveryAttempts.WithLabelValues(string(ch), "failed").Inc()
			p.log.Warn("delivery failed",
				slog.String("channel", string(ch)),
				slog.String("recipient_id", prof.ID),
				slog.String("error", err.Error()))
			p.publishFailed(ctx, reminderID, prof.ID, ch, err)
			continue
		}

		if err := driver.Send(ctx, prof, msg); err != nil {
			failed++
			DeliveryAttempts.WithLabelValues(string(ch), "failed").Inc()
			p.log.Warn("delivery failed",
				slog.String("channel", string(ch)),
				slog.String("recipient_id", prof.ID),
				slog.String("error", err.Error()))
			p.publishFailed(ctx, reminderID, prof.ID, ch, err)
			continue
		}

		sent++
		DeliveryAttempts.WithLabelValues(string(ch), "sent").Inc()
		if reminderID != "" {
			p.markDelivered(ctx, reminderID, prof.ID, ch)
		}
	}
	return sent, failed
}

// alreadyDelivered consults the redis guard that softens duplicate
// delivery when a crashed batch is retried. Delivery stays at-least-once;
// the guard is best-effort and a nil client skips it.
func (p *Processor) alreadyDelivered(ctx context.Context, reminderID, recipientID string, ch Channel) bool {
	if p.redis == nil {
		return false
	}
	exists, err := p.redis.Exists(ctx, deliveredKey(reminderID, recipientID, ch)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

func (p *Processor) markDelivered(ctx context.Context, reminderID, recipientID string, ch Channel) {
	if p.redis == nil {
		return
	}
	p.redis.Set(ctx, deliveredKey(reminderID, recipientID, ch), "1", deliveredKeyTTL)
}

func deliveredKey(reminderID, recipientID string, ch Channel) string {
	return fmt.Sprintf("reminder:sent:%s:%s:%s", reminderID, recipientID, ch)
}

func (p *Processor) publishFailed(ctx context.Context, reminderID, recipientID string, ch Channel, cause error) {
	if p.failed == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"reminder_id":  reminderID,
		"recipient_id": recipientID,
		"channel":      string(ch),
		"error":        cause.Error(),
		"at":           p.nowFn().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := p.failed.Publish(ctx, p.failedQueue, payload); err != nil {
		p.log.Warn("failed to enqueue delivery failure", slog.String("error", err.Error()))
	}
}

func (p *Processor) publishSent(ctx context.Context, r ScheduledReminder) {
	if p.events == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"event":         "reminder.sent",
		"reminder_id":   r.ID,
		"resource_type": r.ResourceType,
		"resource_id":   r.ResourceID,
		"reminder_type": r.ReminderType,
		"at":            p.nowFn().UTC(),
	})
	if err != nil {
		return
	}
	if err := p.events.Publish(ctx, r.ID, payload); err != nil {
		p.log.Warn("failed to publish sent event", slog.String("error", err.Error()))
	}
}
