package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(store *fakeStore, now time.Time) *Generator {
	g := NewGenerator(store, nil, testLogger())
	g.nowFn = func() time.Time { return now }
	return g
}

func enabledOrg() *OrgSettings {
	return &OrgSettings{RemindersEnabled: true, NotificationChannel: SettingBoth}
}

func TestGenerate_DefaultsEndToEnd(t *testing.T) {
	// Event created at 2026-01-01T10:00Z due 2026-01-05T00:00Z with the
	// default configs: a follow-up at +30min, one heads-up three days
	// before due and one at the due instant.
	now := mustParse("2026-01-01T10:00:00Z")
	due := mustParse("2026-01-05T00:00:00Z")

	store := newFakeStore()
	store.settings["org-1"] = enabledOrg()
	g := newTestGenerator(store, now)

	created, err := g.Generate(context.Background(), GenerateRequest{
		OrganizationID: "org-1",
		ResourceType:   ResourceEvent,
		ResourceID:     "ev-1",
		ResourceTitle:  "Culto de Jovens",
		DueDate:        timePtr(due),
		RecipientIDs:   []string{"user-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, created)

	rows := store.resourceRows(ResourceEvent, "ev-1")
	require.Len(t, rows, 3)

	byType := make(map[ReminderType]time.Time)
	for _, r := range rows {
		byType[r.ReminderType] = r.RemindAt
		assert.Equal(t, "org-1", r.OrganizationID)
		assert.Equal(t, []string{"user-1"}, r.RecipientIDs)
		assert.Nil(t, r.SentAt)
	}
	assert.Equal(t, mustParse("2026-01-01T10:30:00Z"), byType[TypeAfterCreation])
	assert.Equal(t, mustParse("2026-01-02T00:00:00Z"), byType[TypeBeforeDue])
	assert.Equal(t, mustParse("2026-01-05T00:00:00Z"), byType[TypeOnDue])
}

func TestGenerate_OrgRemindersDisabled(t *testing.T) {
	store := newFakeStore()
	store.settings["org-1"] = &OrgSettings{RemindersEnabled: false}
	g := newTestGenerator(store, mustParse("2026-01-01T10:00:00Z"))

	created, err := g.Generate(context.Background(), GenerateRequest{
		OrganizationID: "org-1",
		ResourceType:   ResourceEvent,
		ResourceID:     "ev-1",
		ResourceTitle:  "Culto",
	})

	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Equal(t, 0, store.replaceCalls, "disabled organizations must not touch stored rows")
}

func TestGenerate_UnknownOrganization(t *testing.T) {
	g := newTestGenerator(newFakeStore(), mustParse("2026-01-01T10:00:00Z"))

	_, err := g.Generate(context.Background(), GenerateRequest{
		OrganizationID: "missing",
		ResourceType:   ResourceEvent,
		ResourceID:     "ev-1",
		ResourceTitle:  "Culto",
	})

	assert.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestGenerate_ValidatesRequest(t *testing.T) {
	g := newTestGenerator(newFakeStore(), mustParse("2026-01-01T10:00:00Z"))

	tests := []struct {
		name string
		req  GenerateRequest
	}{
		{"missing org", GenerateRequest{ResourceType: ResourceEvent, ResourceID: "r", ResourceTitle: "t"}},
		{"missing resource id", GenerateRequest{OrganizationID: "o", ResourceType: ResourceEvent, ResourceTitle: "t"}},
		{"missing title", GenerateRequest{OrganizationID: "o", ResourceType: ResourceEvent, ResourceID: "r"}},
		{"bad resource type", GenerateRequest{OrganizationID: "o", ResourceType: "meeting", ResourceID: "r", ResourceTitle: "t"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Generate(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestGenerate_DropsCandidatesAfterDueDate(t *testing.T) {
	// after_creation delayed past the due date must not survive: a
	// reminder never fires after the thing it reminds about is over.
	now := mustParse("2026-01-01T10:00:00Z")
	due := mustParse("2026-01-02T10:00:00Z")

	store := newFakeStore()
	org := enabledOrg()
	org.Templates = map[ReminderType]TemplateOverride{
		TypeAfterCreation: {Delay: &Delay{Value: 3, Unit: UnitDaysDelay}},
		TypeBeforeDue:     {Enabled: boolPtr(false)},
		TypeOnDue:         {Enabled: boolPtr(false)},
	}
	store.settings["org-1"] = org
	g := newTestGenerator(store, now)

	created, err := g.Generate(context.Background(), GenerateRequest{
		OrganizationID: "org-1",
		ResourceType:   ResourceTask,
		ResourceID:     "task-1",
		ResourceTitle:  "Preparar culto",
		DueDate:        timePtr(due),
	})

	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestGenerate_SameDayDedupPrefersAfterCreation(t *testing.T) {
	// after_creation at 10:30 and before_due at 18:00 land on the same
	// UTC day; only the after_creation candidate survives.
	now := mustParse("2026-01-01T10:00:00Z")
	due := mustParse("2026-01-02T18:00:00Z")

	store := newFakeStore()
	org := enabledOrg()
	org.Templates = map[ReminderType]TemplateOverride{
		TypeBeforeDue: {Repeat: &Repeat{Type: RepeatNone}}, // due - 1 day = same day as after_creation
	}
	store.settings["org-1"] = org
	g := newTestGenerator(store, now)

	created, err := g.Generate(context.Background(), GenerateRequest{
		OrganizationID: "org-1",
		ResourceType:   ResourceEvent,
		ResourceID:     "ev-1",
		ResourceTitle:  "Ensaio",
		DueDate:        timePtr(due),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, created)

	rows := store.resourceRows(ResourceEvent, "ev-1")
	types := make(map[ReminderType]bool)
	for _, r := range rows {
		types[r.ReminderType] = true
	}
	assert.True(t, types[TypeAfterCreation])
	assert.True(t, types[TypeOnDue])
	assert.False(t, types[TypeBeforeDue], "lower-priority same-day candidate must be discarded")
}

func TestGenerate_RegenerationReplacesNotAppends(t *testing.T) {
	now := mustParse("2026-01-01T10:00:00Z")
	due := mustParse("2026-01-05T00:00:00Z")

	store := newFakeStore()
	store.settings["org-1"] = enabledOrg()
	g := newTestGenerator(store, now)

	req := GenerateRequest{
		OrganizationID: "org-1",
		ResourceType:   ResourceEvent,
		ResourceID:     "ev-1",
		ResourceTitle:  "Culto",
		DueDate:        timePtr(due),
	}

	first, err := g.Generate(context.Background(), req)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, store.resourceRows(ResourceEvent, "ev-1"), first)
}

func TestGenerate_UnsupportedRepeatIsConfigurationError(t *testing.T) {
	store := newFakeStore()
	org := enabledOrg()
	org.Templates = map[ReminderType]TemplateOverride{
		TypeAfterCreation: {Repeat: &Repeat{Type: RepeatDays, Interval: 1, Duration: DurationForever}},
	}
	store.settings["org-1"] = org
	g := newTestGenerator(store, mustParse("2026-01-01T10:00:00Z"))

	_, err := g.Generate(context.Background(), GenerateRequest{
		OrganizationID: "org-1",
		ResourceType:   ResourceEvent,
		ResourceID:     "ev-1",
		ResourceTitle:  "Culto",
	})

	assert.ErrorIs(t, err, ErrUnsupportedRepeat)
}

func TestGenerate_ResourceOverrideBeatsOrgConfig(t *testing.T) {
	now := mustParse("2026-01-01T10:00:00Z")

	store := newFakeStore()
	org := enabledOrg()
	org.Templates = map[ReminderType]TemplateOverride{
		TypeAfterCreation: {Delay: &Delay{Value: 1, Unit: UnitHoursDelay}},
		TypeBeforeDue:     {Enabled: boolPtr(false)},
		TypeOnDue:         {Enabled: boolPtr(false)},
	}
	store.settings["org-1"] = org
	g := newTestGenerator(store, now)

	created, err := g.Generate(context.Background(), GenerateRequest{
		OrganizationID: "org-1",
		ResourceType:   ResourceEvent,
		ResourceID:     "ev-1",
		ResourceTitle:  "Culto",
		CustomTemplates: map[ReminderType]TemplateOverride{
			TypeAfterCreation: {Delay: &Delay{Value: 2, Unit: UnitHoursDelay}},
		},
	})

	require.NoError(t, err)
	require.Equal(t, 1, created)
	rows := store.resourceRows(ResourceEvent, "ev-1")
	assert.Equal(t, mustParse("2026-01-01T12:00:00Z"), rows[0].RemindAt,
		"resource-level delay must win over the organization delay")
}
