package reminder

import (
	"time"
)

// ResourceType identifies the kind of scheduled resource a reminder
// belongs to.
type ResourceType string

const (
	ResourceEvent        ResourceType = "event"
	ResourceTask         ResourceType = "task"
	ResourceAnnouncement ResourceType = "announcement"
)

func (rt ResourceType) Valid() bool {
	switch rt {
	case ResourceEvent, ResourceTask, ResourceAnnouncement:
		return true
	}
	return false
}

// ReminderType is the trigger that anchors the remind-at computation.
type ReminderType string

const (
	TypeAfterCreation ReminderType = "after_creation"
	TypeBeforeDue     ReminderType = "before_due"
	TypeOnDue         ReminderType = "on_due"
)

// TypePriority is the order types are generated in and the priority used
// when two candidates land on the same calendar day: the earlier entry
// wins and the later ones are discarded.
var TypePriority = [3]ReminderType{TypeAfterCreation, TypeBeforeDue, TypeOnDue}

// Channel is a delivery mechanism for a rendered message.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelPush     Channel = "push"
)

// ChannelSetting is the per-organization delivery preference.
type ChannelSetting string

const (
	SettingWhatsApp ChannelSetting = "whatsapp"
	SettingPush     ChannelSetting = "push"
	SettingBoth     ChannelSetting = "both"
)

// Channels expands the setting into the concrete channel list. Unknown or
// empty settings fall back to both channels.
func (s ChannelSetting) Channels() []Channel {
	switch s {
	case SettingWhatsApp:
		return []Channel{ChannelWhatsApp}
	case SettingPush:
		return []Channel{ChannelPush}
	default:
		return []Channel{ChannelWhatsApp, ChannelPush}
	}
}

type DelayUnit string

const (
	UnitMinutesDelay DelayUnit = "minutes"
	UnitHoursDelay   DelayUnit = "hours"
	UnitDaysDelay    DelayUnit = "days"
)

type RepeatUnit string

const (
	RepeatNone    RepeatUnit = "none"
	RepeatMinutes RepeatUnit = "minutes"
	RepeatHours   RepeatUnit = "hours"
	RepeatDays    RepeatUnit = "days"
	RepeatWeeks   RepeatUnit = "weeks"
	RepeatMonths  RepeatUnit = "months"
	RepeatYears   RepeatUnit = "years"
)

type RepeatDuration string

const (
	DurationForever RepeatDuration = "forever"
	DurationCount   RepeatDuration = "count"
	DurationUntil   RepeatDuration = "until"
)

// Message is a rendered (or renderable) title/body pair.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Delay is a forward offset from the reference instant, used by
// after_creation.
type Delay struct {
	Value int       `json:"value"`
	Unit  DelayUnit `json:"unit"`
}

// Repeat describes how additional occurrences are derived from the anchor.
type Repeat struct {
	Type     RepeatUnit     `json:"type"`
	Interval int            `json:"interval"`
	Duration RepeatDuration `json:"duration"`
	Count    int            `json:"count,omitempty"`
	Until    *time.Time     `json:"until,omitempty"`
}

// TemplateConfig is a fully resolved per-type reminder configuration, the
// result of merging resource overrides over organization settings over the
// hardcoded defaults.
type TemplateConfig struct {
	Enabled       bool
	Template      Message
	Delay         Delay
	Repeat        Repeat
	ReferenceDate *time.Time
}

// TemplateOverride carries the optional, partially-set form of a
// TemplateConfig as stored on the organization or passed per resource.
// Nil fields fall through to the next layer.
type TemplateOverride struct {
	Enabled       *bool      `json:"enabled,omitempty"`
	Title         *string    `json:"title,omitempty"`
	Body          *string    `json:"body,omitempty"`
	Delay         *Delay     `json:"delay,omitempty"`
	Repeat        *Repeat    `json:"repeat,omitempty"`
	ReferenceDate *time.Time `json:"reference_date,omitempty"`
}

// ScheduledReminder is a persisted, single-fire notification. Once SentAt
// is set the row is terminal and is never re-sent; rows only disappear
// when the owning resource's reminders are regenerated.
type ScheduledReminder struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	ResourceType   ResourceType `json:"resource_type"`
	ResourceID     string       `json:"resource_id"`
	ResourceTitle  string       `json:"resource_title"`
	ReminderType   ReminderType `json:"reminder_type"`
	RemindAt       time.Time    `json:"remind_at"`
	RecipientIDs   []string     `json:"recipient_ids"`
	SentAt         *time.Time   `json:"sent_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// OrgSettings is the organization-level reminder configuration read from
// the organizations table.
type OrgSettings struct {
	RemindersEnabled    bool
	NotificationChannel ChannelSetting
	Templates           map[ReminderType]TemplateOverride
}

// Event mirrors the columns of the events collaborator table the service
// reads.
type Event struct {
	ID             string
	OrganizationID string
	Title          string
	ResponsibleID  string
	MinistryID     string
	EventDate      *time.Time
	CreatedAt      time.Time
}

// Task mirrors the columns of the event_tasks collaborator table the
// service reads.
type Task struct {
	ID             string
	OrganizationID string
	Title          string
	DueDate        *time.Time
	CreatedAt      time.Time
}

// Profile is a recipient as stored in the profiles collaborator table.
type Profile struct {
	ID       string
	FullName string
	Phone    string
}

// GenerateRequest is the body of the generate-reminders entry point.
type GenerateRequest struct {
	OrganizationID  string                            `json:"organization_id"`
	ResourceType    ResourceType                      `json:"resource_type"`
	ResourceID      string                            `json:"resource_id"`
	ResourceTitle   string                            `json:"resource_title"`
	DueDate         *time.Time                        `json:"due_date,omitempty"`
	RecipientIDs    []string                          `json:"recipient_ids"`
	CustomTemplates map[ReminderType]TemplateOverride `json:"custom_reminder_templates,omitempty"`
}

// InstantRequest is the body of the send-instant-reminder entry point.
type InstantRequest struct {
	EventID        string            `json:"event_id"`
	OrganizationID string            `json:"organization_id"`
	CustomTemplate *TemplateOverride `json:"custom_template,omitempty"`
}

// ProcessResult summarizes one processor batch.
type ProcessResult struct {
	Processed int      `json:"processed"`
	Errors    []string `json:"errors"`
}

// DispatchResult summarizes an instant send.
type DispatchResult struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}
