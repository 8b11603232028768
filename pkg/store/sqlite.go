package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists records to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Compile-time interface check.
var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	user_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	age INTEGER NOT NULL,
	phone TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	emergency_contacts TEXT NOT NULL DEFAULT '[]',
	medical_conditions TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS medications (
	medication_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	dosage TEXT NOT NULL,
	frequency TEXT NOT NULL DEFAULT '',
	schedules TEXT NOT NULL DEFAULT '[]',
	instructions TEXT NOT NULL DEFAULT '',
	start_date TEXT NOT NULL DEFAULT '',
	end_date TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_medications_user_id ON medications(user_id);

CREATE TABLE IF NOT EXISTS appointments (
	appointment_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	date TEXT NOT NULL,
	time TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	doctor_name TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	reminder_sent INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_appointments_user_id ON appointments(user_id, date, time);

CREATE TABLE IF NOT EXISTS conversations (
	conversation_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	user_message TEXT NOT NULL,
	assistant_response TEXT NOT NULL,
	intent TEXT NOT NULL DEFAULT '',
	pipeline_used TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_conversations_user_id ON conversations(user_id, timestamp);

CREATE TABLE IF NOT EXISTS emergencies (
	emergency_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	severity TEXT NOT NULL,
	emergency_type TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	actions_taken TEXT NOT NULL DEFAULT '[]',
	contacts_notified TEXT NOT NULL DEFAULT '[]',
	resolved INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_emergencies_user_id ON emergencies(user_id, timestamp);
`

// NewSQLiteStore creates a new SQLite store.
// The path should be a file path (e.g., "./smartdoc.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// User implements Store.
func (s *SQLiteStore) User(ctx context.Context, userID string) (UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return UserProfile{}, ErrStoreClosed
	}

	var p UserProfile
	var contacts, conditions, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, name, age, phone, email, emergency_contacts, medical_conditions, created_at
		FROM users WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.Name, &p.Age, &p.Phone, &p.Email, &contacts, &conditions, &createdAt)

	if err == sql.ErrNoRows {
		return UserProfile{}, ErrNotFound
	}
	if err != nil {
		return UserProfile{}, fmt.Errorf("load user: %w", err)
	}

	if err := json.Unmarshal([]byte(contacts), &p.EmergencyContacts); err != nil {
		return UserProfile{}, fmt.Errorf("decode emergency contacts: %w", err)
	}
	if err := json.Unmarshal([]byte(conditions), &p.MedicalConditions); err != nil {
		return UserProfile{}, fmt.Errorf("decode medical conditions: %w", err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	return p, nil
}

// SaveUser implements Store.
func (s *SQLiteStore) SaveUser(ctx context.Context, p UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	contacts, err := json.Marshal(p.EmergencyContacts)
	if err != nil {
		return fmt.Errorf("encode emergency contacts: %w", err)
	}
	conditions, err := json.Marshal(p.MedicalConditions)
	if err != nil {
		return fmt.Errorf("encode medical conditions: %w", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO users
			(user_id, name, age, phone, email, emergency_contacts, medical_conditions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.UserID, p.Name, p.Age, p.Phone, p.Email, string(contacts), string(conditions),
		p.CreatedAt.Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// Medications implements Store.
func (s *SQLiteStore) Medications(ctx context.Context, userID string, activeOnly bool) ([]Medication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT medication_id, user_id, name, dosage, frequency, schedules, instructions, start_date, end_date, active
		FROM medications WHERE user_id = ?`
	if activeOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	defer rows.Close()

	var meds []Medication
	for rows.Next() {
		var m Medication
		var schedules string
		var active int
		if err := rows.Scan(&m.MedicationID, &m.UserID, &m.Name, &m.Dosage, &m.Frequency,
			&schedules, &m.Instructions, &m.StartDate, &m.EndDate, &active); err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		if err := json.Unmarshal([]byte(schedules), &m.Schedules); err != nil {
			return nil, fmt.Errorf("decode schedules: %w", err)
		}
		m.Active = active != 0
		meds = append(meds, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate medications: %w", err)
	}

	return meds, nil
}

// SaveMedication implements Store.
func (s *SQLiteStore) SaveMedication(ctx context.Context, m Medication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	schedules, err := json.Marshal(m.Schedules)
	if err != nil {
		return fmt.Errorf("encode schedules: %w", err)
	}

	active := 0
	if m.Active {
		active = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO medications
			(medication_id, user_id, name, dosage, frequency, schedules, instructions, start_date, end_date, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.MedicationID, m.UserID, m.Name, m.Dosage, m.Frequency, string(schedules),
		m.Instructions, m.StartDate, m.EndDate, active)

	if err != nil {
		return fmt.Errorf("save medication: %w", err)
	}
	return nil
}

// Appointments implements Store.
func (s *SQLiteStore) Appointments(ctx context.Context, userID string, limit int) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT appointment_id, user_id, title, date, time, location, doctor_name, notes, reminder_sent
		FROM appointments WHERE user_id = ?
		ORDER BY date, time
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		var a Appointment
		var reminderSent int
		if err := rows.Scan(&a.AppointmentID, &a.UserID, &a.Title, &a.Date, &a.Time,
			&a.Location, &a.DoctorName, &a.Notes, &reminderSent); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		a.ReminderSent = reminderSent != 0
		appts = append(appts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate appointments: %w", err)
	}

	return appts, nil
}

// SaveAppointment implements Store.
func (s *SQLiteStore) SaveAppointment(ctx context.Context, a Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	reminderSent := 0
	if a.ReminderSent {
		reminderSent = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO appointments
			(appointment_id, user_id, title, date, time, location, doctor_name, notes, reminder_sent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.AppointmentID, a.UserID, a.Title, a.Date, a.Time, a.Location, a.DoctorName, a.Notes, reminderSent)

	if err != nil {
		return fmt.Errorf("save appointment: %w", err)
	}
	return nil
}

// SaveConversation implements Store.
func (s *SQLiteStore) SaveConversation(ctx context.Context, c Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO conversations
			(conversation_id, user_id, timestamp, user_message, assistant_response, intent, pipeline_used)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ConversationID, c.UserID, c.Timestamp.Format(time.RFC3339Nano),
		c.UserMessage, c.AssistantResponse, c.Intent, c.PipelineUsed)

	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// Conversations implements Store.
func (s *SQLiteStore) Conversations(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, user_id, timestamp, user_message, assistant_response, intent, pipeline_used
		FROM conversations WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var timestamp string
		if err := rows.Scan(&c.ConversationID, &c.UserID, &timestamp,
			&c.UserMessage, &c.AssistantResponse, &c.Intent, &c.PipelineUsed); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		convs = append(convs, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return convs, nil
}

// SaveEmergency implements Store.
func (s *SQLiteStore) SaveEmergency(ctx context.Context, e Emergency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	actions, err := json.Marshal(e.ActionsTaken)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}
	contacts, err := json.Marshal(e.ContactsNotified)
	if err != nil {
		return fmt.Errorf("encode contacts: %w", err)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	resolved := 0
	if e.Resolved {
		resolved = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO emergencies
			(emergency_id, user_id, timestamp, severity, emergency_type, message, actions_taken, contacts_notified, resolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.EmergencyID, e.UserID, e.Timestamp.Format(time.RFC3339Nano), e.Severity,
		e.EmergencyType, e.Message, string(actions), string(contacts), resolved)

	if err != nil {
		return fmt.Errorf("save emergency: %w", err)
	}
	return nil
}

// Emergencies implements Store.
func (s *SQLiteStore) Emergencies(ctx context.Context, userID string) ([]Emergency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT emergency_id, user_id, timestamp, severity, emergency_type, message, actions_taken, contacts_notified, resolved
		FROM emergencies WHERE user_id = ?
		ORDER BY timestamp DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list emergencies: %w", err)
	}
	defer rows.Close()

	var emgs []Emergency
	for rows.Next() {
		var e Emergency
		var timestamp, actions, contacts string
		var resolved int
		if err := rows.Scan(&e.EmergencyID, &e.UserID, &timestamp, &e.Severity,
			&e.EmergencyType, &e.Message, &actions, &contacts, &resolved); err != nil {
			return nil, fmt.Errorf("scan emergency: %w", err)
		}
		if err := json.Unmarshal([]byte(actions), &e.ActionsTaken); err != nil {
			return nil, fmt.Errorf("decode actions: %w", err)
		}
		if err := json.Unmarshal([]byte(contacts), &e.ContactsNotified); err != nil {
			return nil, fmt.Errorf("decode contacts: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, timestamp)
		e.Resolved = resolved != 0
		emgs = append(emgs, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emergencies: %w", err)
	}

	return emgs, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
