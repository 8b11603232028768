package agents

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/smartdoc-labs/smartdoc/pkg/llm"
	"github.com/smartdoc-labs/smartdoc/pkg/notify"
	"github.com/smartdoc-labs/smartdoc/pkg/store"
)

// testHarness bundles the fakes behind a Deps value.
type testHarness struct {
	LLM      *llm.Mock
	Store    *store.MemoryStore
	Notifier *notify.Mock
	Clock    *clockwork.FakeClock
}

// testTime is the fixed wall clock for agent tests: 2025-03-10 09:00 UTC.
var testTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// clockAt returns a fake clock pinned to the given time of day on the
// test date.
func clockAt(hour, minute int) *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(time.Date(2025, 3, 10, hour, minute, 0, 0, time.UTC))
}

// newHarness creates fresh fakes pinned to testTime.
func newHarness() *testHarness {
	return &testHarness{
		LLM:      &llm.Mock{},
		Store:    store.NewMemoryStore(),
		Notifier: &notify.Mock{},
		Clock:    clockwork.NewFakeClockAt(testTime),
	}
}

// deps assembles a Deps value with a silent logger.
func (h *testHarness) deps() Deps {
	return Deps{
		LLM:      h.LLM,
		Store:    h.Store,
		Notifier: h.Notifier,
		Clock:    h.Clock,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// seedUser stores a profile with one emergency contact.
func (h *testHarness) seedUser(userID string) store.UserProfile {
	profile := store.UserProfile{
		UserID: userID,
		Name:   "Marie",
		Age:    78,
		Phone:  "+33600000001",
		EmergencyContacts: []store.EmergencyContact{
			{Name: "Paul", Relation: "fils", Phone: "+33600000002"},
		},
		CreatedAt: testTime,
	}
	if err := h.Store.SaveUser(context.Background(), profile); err != nil {
		panic(err)
	}
	return profile
}

// seedMedication stores one active medication with the given schedule times.
func (h *testHarness) seedMedication(userID, name string, times ...string) store.Medication {
	schedules := make([]store.Schedule, 0, len(times))
	for _, t := range times {
		schedules = append(schedules, store.Schedule{Time: t})
	}
	med := store.Medication{
		MedicationID: store.NewID("med"),
		UserID:       userID,
		Name:         name,
		Dosage:       "1 comprimé",
		Frequency:    "quotidien",
		Schedules:    schedules,
		Instructions: "Avec un repas",
		StartDate:    "2025-01-01",
		Active:       true,
	}
	if err := h.Store.SaveMedication(context.Background(), med); err != nil {
		panic(err)
	}
	return med
}

// requestFor builds a Request carrying the stored context for a user.
func (h *testHarness) requestFor(userID, message string) Request {
	ctx := context.Background()
	profile, err := h.Store.User(ctx, userID)
	if err != nil {
		profile = store.UserProfile{UserID: userID, Name: "Utilisateur"}
	}
	meds, _ := h.Store.Medications(ctx, userID, true)
	appts, _ := h.Store.Appointments(ctx, userID, 5)

	return Request{
		UserID:  userID,
		Message: message,
		Context: UserContext{
			Profile:      profile,
			Medications:  meds,
			Appointments: appts,
		},
	}
}

// failingStore wraps a Store and fails every read with err.
// Writes pass through.
type failingStore struct {
	store.Store
	err error
}

func (f *failingStore) User(context.Context, string) (store.UserProfile, error) {
	return store.UserProfile{}, f.err
}

func (f *failingStore) Medications(context.Context, string, bool) ([]store.Medication, error) {
	return nil, f.err
}

func (f *failingStore) Appointments(context.Context, string, int) ([]store.Appointment, error) {
	return nil, f.err
}
