package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for testing and examples.
// It is safe for concurrent use.
type MemoryStore struct {
	mu            sync.RWMutex
	users         map[string]UserProfile
	medications   map[string][]Medication // keyed by user_id, insertion order preserved
	appointments  map[string][]Appointment
	conversations map[string][]Conversation
	emergencies   map[string][]Emergency
	closed        bool
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]UserProfile),
		medications:   make(map[string][]Medication),
		appointments:  make(map[string][]Appointment),
		conversations: make(map[string][]Conversation),
		emergencies:   make(map[string][]Emergency),
	}
}

// User implements Store.
func (s *MemoryStore) User(_ context.Context, userID string) (UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return UserProfile{}, ErrStoreClosed
	}

	p, ok := s.users[userID]
	if !ok {
		return UserProfile{}, ErrNotFound
	}
	return p, nil
}

// SaveUser implements Store.
func (s *MemoryStore) SaveUser(_ context.Context, p UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	s.users[p.UserID] = p
	return nil
}

// Medications implements Store.
func (s *MemoryStore) Medications(_ context.Context, userID string, activeOnly bool) ([]Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var meds []Medication
	for _, m := range s.medications[userID] {
		if activeOnly && !m.Active {
			continue
		}
		meds = append(meds, m)
	}
	return meds, nil
}

// SaveMedication implements Store.
func (s *MemoryStore) SaveMedication(_ context.Context, m Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	meds := s.medications[m.UserID]
	for i, existing := range meds {
		if existing.MedicationID == m.MedicationID {
			meds[i] = m
			return nil
		}
	}
	s.medications[m.UserID] = append(meds, m)
	return nil
}

// Appointments implements Store.
func (s *MemoryStore) Appointments(_ context.Context, userID string, limit int) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	appts := make([]Appointment, len(s.appointments[userID]))
	copy(appts, s.appointments[userID])

	sort.SliceStable(appts, func(i, j int) bool {
		if appts[i].Date != appts[j].Date {
			return appts[i].Date < appts[j].Date
		}
		return appts[i].Time < appts[j].Time
	})

	if limit > 0 && len(appts) > limit {
		appts = appts[:limit]
	}
	return appts, nil
}

// SaveAppointment implements Store.
func (s *MemoryStore) SaveAppointment(_ context.Context, a Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	appts := s.appointments[a.UserID]
	for i, existing := range appts {
		if existing.AppointmentID == a.AppointmentID {
			appts[i] = a
			return nil
		}
	}
	s.appointments[a.UserID] = append(appts, a)
	return nil
}

// SaveConversation implements Store.
func (s *MemoryStore) SaveConversation(_ context.Context, c Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	s.conversations[c.UserID] = append(s.conversations[c.UserID], c)
	return nil
}

// Conversations implements Store.
func (s *MemoryStore) Conversations(_ context.Context, userID string, limit int) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	convs := make([]Conversation, len(s.conversations[userID]))
	copy(convs, s.conversations[userID])

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].Timestamp.After(convs[j].Timestamp)
	})

	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}

// SaveEmergency implements Store.
func (s *MemoryStore) SaveEmergency(_ context.Context, e Emergency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	s.emergencies[e.UserID] = append(s.emergencies[e.UserID], e)
	return nil
}

// Emergencies implements Store.
func (s *MemoryStore) Emergencies(_ context.Context, userID string) ([]Emergency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	emgs := make([]Emergency, len(s.emergencies[userID]))
	copy(emgs, s.emergencies[userID])

	sort.SliceStable(emgs, func(i, j int) bool {
		return emgs[i].Timestamp.After(emgs[j].Timestamp)
	})
	return emgs, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
