package reminder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrEventNotFound        = errors.New("event not found")
	ErrTaskNotFound         = errors.New("task not found")
)

// Store is the persistence surface for scheduled reminders and the
// organization settings that drive them.
type Store interface {
	OrgSettings(ctx context.Context, orgID string) (*OrgSettings, error)
	ReplaceForResource(ctx context.Context, rt ResourceType, resourceID string, rows []ScheduledReminder) error
	DueBatch(ctx context.Context, now time.Time, limit int) ([]ScheduledReminder, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
}

// Directory reads the collaborator tables owned by the platform: events,
// profiles, ministries and their membership.
type Directory interface {
	EventByID(ctx context.Context, id string) (*Event, error)
	TaskByID(ctx context.Context, id string) (*Task, error)
	ProfilesByIDs(ctx context.Context, ids []string) ([]Profile, error)
	EventRecipients(ctx context.Context, eventID string) ([]string, error)
	MinistryNameWithLeaders(ctx context.Context, ministryID string) (string, error)
	CollaboratorMinistries(ctx context.Context, eventID string) ([]string, error)
}

// Repository implements Store and Directory on Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) OrgSettings(ctx context.Context, orgID string) (*OrgSettings, error) {
	query := `
		SELECT reminders_enabled, notification_channel, reminder_settings
		FROM organizations WHERE id = $1
	`
	var (
		s       OrgSettings
		channel sql.NullString
		raw     []byte
	)
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(&s.RemindersEnabled, &channel, &raw)
	if err == sql.ErrNoRows {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load organization %s: %w", orgID, err)
	}
	s.NotificationChannel = ChannelSetting(channel.String)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.Templates); err != nil {
			return nil, fmt.Errorf("decode reminder settings for %s: %w", orgID, err)
		}
	}
	return &s, nil
}

// ReplaceForResource swaps out the full reminder set for one resource in a
// single transaction, so a crash can never strand the resource between
// the delete and the insert.
func (r *Repository) ReplaceForResource(ctx context.Context, rt ResourceType, resourceID string, rows []ScheduledReminder) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM scheduled_reminders WHERE resource_type = $1 AND resource_id = $2`,
		rt, resourceID,
	)
	if err != nil {
		return fmt.Errorf("delete reminders for %s/%s: %w", rt, resourceID, err)
	}

	insert := `
		INSERT INTO scheduled_reminders
			(id, organization_id, resource_type, resource_id, resource_title,
			 reminder_type, remind_at, recipient_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, row := range rows {
		_, err = tx.ExecContext(ctx, insert,
			row.ID, row.OrganizationID, row.ResourceType, row.ResourceID, row.ResourceTitle,
			row.ReminderType, row.RemindAt, pq.Array(row.RecipientIDs), row.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert reminder %s: %w", row.ID, err)
		}
	}

	return tx.Commit()
}

// DueBatch selects the oldest pending reminders due at or before now,
// capped at limit.
func (r *Repository) DueBatch(ctx context.Context, now time.Time, limit int) ([]ScheduledReminder, error) {
	query := `
		SELECT id, organization_id, resource_type, resource_id, resource_title,
		       reminder_type, remind_at, recipient_ids, sent_at, created_at
		FROM scheduled_reminders
		WHERE remind_at <= $1 AND sent_at IS NULL
		ORDER BY remind_at ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("select due reminders: %w", err)
	}
	defer rows.Close()

	var out []ScheduledReminder
	for rows.Next() {
		var (
			sr         ScheduledReminder
			recipients pq.StringArray
		)
		err := rows.Scan(&sr.ID, &sr.OrganizationID, &sr.ResourceType, &sr.ResourceID,
			&sr.ResourceTitle, &sr.ReminderType, &sr.RemindAt, &recipients, &sr.SentAt, &sr.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		sr.RecipientIDs = recipients
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (r *Repository) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_reminders SET sent_at = $1 WHERE id = $2 AND sent_at IS NULL`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("mark reminder %s sent: %w", id, err)
	}
	return nil
}

func (r *Repository) EventByID(ctx context.Context, id string) (*Event, error) {
	query := `
		SELECT id, organization_id, title, responsible_id, ministry_id, event_date, created_at
		FROM events WHERE id = $1
	`
	var (
		ev          Event
		responsible sql.NullString
		ministry    sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&ev.ID, &ev.OrganizationID, &ev.Title, &responsible, &ministry, &ev.EventDate, &ev.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", id, err)
	}
	ev.ResponsibleID = responsible.String
	ev.MinistryID = ministry.String
	return &ev, nil
}

func (r *Repository) TaskByID(ctx context.Context, id string) (*Task, error) {
	query := `
		SELECT id, organization_id, title, due_date, created_at
		FROM event_tasks WHERE id = $1
	`
	var task Task
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&task.ID, &task.OrganizationID, &task.Title, &task.DueDate, &task.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load task %s: %w", id, err)
	}
	return &task, nil
}

func (r *Repository) ProfilesByIDs(ctx context.Context, ids []string) ([]Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, full_name, COALESCE(phone, '') FROM profiles WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.FullName, &p.Phone); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EventRecipients resolves the event's responsible user plus the
// leader-role members of its primary and collaborator ministries. This is
// evaluated at send time so leadership changes after scheduling are
// picked up.
func (r *Repository) EventRecipients(ctx context.Context, eventID string) ([]string, error) {
	query := `
		SELECT e.responsible_id FROM events e WHERE e.id = $1 AND e.responsible_id IS NOT NULL
		UNION
		SELECT um.user_id
		FROM events e
		JOIN user_ministries um ON um.ministry_id = e.ministry_id
		WHERE e.id = $1 AND um.role = 'leader'
		UNION
		SELECT um.user_id
		FROM event_collaborator_ministries ecm
		JOIN user_ministries um ON um.ministry_id = ecm.ministry_id
		WHERE ecm.event_id = $1 AND um.role = 'leader'
	`
	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients for event %s: %w", eventID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MinistryNameWithLeaders renders "Name (Leader, Leader)" for message
// variables.
func (r *Repository) MinistryNameWithLeaders(ctx context.Context, ministryID string) (string, error) {
	query := `
		SELECT m.name, COALESCE(string_agg(p.full_name, ', ' ORDER BY p.full_name), '')
		FROM ministries m
		LEFT JOIN user_ministries um ON um.ministry_id = m.id AND um.role = 'leader'
		LEFT JOIN profiles p ON p.id = um.user_id
		WHERE m.id = $1
		GROUP BY m.name
	`
	var name, leaders string
	err := r.db.QueryRowContext(ctx, query, ministryID).Scan(&name, &leaders)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load ministry %s: %w", ministryID, err)
	}
	if leaders == "" {
		return name, nil
	}
	return name + " (" + leaders + ")", nil
}

func (r *Repository) CollaboratorMinistries(ctx context.Context, eventID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ministry_id FROM event_collaborator_ministries WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("load collaborator ministries for %s: %w", eventID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ministry id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
