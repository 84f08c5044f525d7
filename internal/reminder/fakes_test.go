package reminder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	settings     map[string]*OrgSettings
	rows         []ScheduledReminder
	orgCalls     int
	replaceCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{settings: make(map[string]*OrgSettings)}
}

func (s *fakeStore) OrgSettings(ctx context.Context, orgID string) (*OrgSettings, error) {
	s.orgCalls++
	settings, ok := s.settings[orgID]
	if !ok {
		return nil, ErrOrganizationNotFound
	}
	return settings, nil
}

func (s *fakeStore) ReplaceForResource(ctx context.Context, rt ResourceType, resourceID string, rows []ScheduledReminder) error {
	s.replaceCalls++
	var kept []ScheduledReminder
	for _, r := range s.rows {
		if r.ResourceType == rt && r.ResourceID == resourceID {
			continue
		}
		kept = append(kept, r)
	}
	s.rows = append(kept, rows...)
	return nil
}

func (s *fakeStore) DueBatch(ctx context.Context, now time.Time, limit int) ([]ScheduledReminder, error) {
	var out []ScheduledReminder
	for _, r := range s.rows {
		if r.SentAt == nil && !r.RemindAt.After(now) {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	for i := range s.rows {
		if s.rows[i].ID == id && s.rows[i].SentAt == nil {
			t := at
			s.rows[i].SentAt = &t
		}
	}
	return nil
}

func (s *fakeStore) resourceRows(rt ResourceType, resourceID string) []ScheduledReminder {
	var out []ScheduledReminder
	for _, r := range s.rows {
		if r.ResourceType == rt && r.ResourceID == resourceID {
			out = append(out, r)
		}
	}
	return out
}

type fakeDirectory struct {
	events        map[string]*Event
	tasks         map[string]*Task
	profiles      map[string]Profile
	recipients    map[string][]string
	ministries    map[string]string
	collabs       map[string][]string
	ministryCalls int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		events:     make(map[string]*Event),
		tasks:      make(map[string]*Task),
		profiles:   make(map[string]Profile),
		recipients: make(map[string][]string),
		ministries: make(map[string]string),
		collabs:    make(map[string][]string),
	}
}

func (d *fakeDirectory) EventByID(ctx context.Context, id string) (*Event, error) {
	ev, ok := d.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return ev, nil
}

func (d *fakeDirectory) TaskByID(ctx context.Context, id string) (*Task, error) {
	task, ok := d.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (d *fakeDirectory) ProfilesByIDs(ctx context.Context, ids []string) ([]Profile, error) {
	var out []Profile
	for _, id := range ids {
		if p, ok := d.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (d *fakeDirectory) EventRecipients(ctx context.Context, eventID string) ([]string, error) {
	return d.recipients[eventID], nil
}

func (d *fakeDirectory) MinistryNameWithLeaders(ctx context.Context, ministryID string) (string, error) {
	d.ministryCalls++
	return d.ministries[ministryID], nil
}

func (d *fakeDirectory) CollaboratorMinistries(ctx context.Context, eventID string) ([]string, error) {
	return d.collabs[eventID], nil
}

type sentRecord struct {
	Recipient Profile
	Message   Message
}

type fakeDriver struct {
	channel Channel
	sent    []sentRecord
	failFor map[string]error // recipient id -> error
}

func newFakeDriver(ch Channel) *fakeDriver {
	return &fakeDriver{channel: ch, failFor: make(map[string]error)}
}

func (d *fakeDriver) Channel() Channel {
	return d.channel
}

func (d *fakeDriver) Send(ctx context.Context, recipient Profile, msg Message) error {
	if err, ok := d.failFor[recipient.ID]; ok {
		return err
	}
	d.sent = append(d.sent, sentRecord{Recipient: recipient, Message: msg})
	return nil
}

type fakeQueue struct {
	published [][]byte
}

func (q *fakeQueue) Publish(ctx context.Context, queue string, body []byte) error {
	q.published = append(q.published, body)
	return nil
}

func boolPtr(b bool) *bool       { return &b }
func strPtr(s string) *string    { return &s }
func timePtr(t time.Time) *time.Time { return &t }

func mustParse(t string) time.Time {
	ts, err := time.Parse(time.RFC3339, t)
	if err != nil {
		panic(fmt.Sprintf("bad test timestamp %q: %v", t, err))
	}
	return ts
}
