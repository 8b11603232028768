// Package store provides persistent storage for user profiles, medications,
// appointments, conversations, and emergencies.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the requested record doesn't exist.
	ErrNotFound = errors.New("record not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("store closed")
)

// EmergencyContact is a person to alert when a user signals an emergency.
type EmergencyContact struct {
	Name     string `json:"name"`
	Relation string `json:"relation"`
	Phone    string `json:"phone"`
}

// UserProfile is a registered user of the assistant.
type UserProfile struct {
	UserID            string             `json:"user_id"`
	Name              string             `json:"name"`
	Age               int                `json:"age"`
	Phone             string             `json:"phone"`
	Email             string             `json:"email,omitempty"`
	EmergencyContacts []EmergencyContact `json:"emergency_contacts,omitempty"`
	MedicalConditions []string           `json:"medical_conditions,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// Schedule is one daily intake time for a medication, formatted "HH:MM".
type Schedule struct {
	Time string `json:"time"`
}

// Medication is an active or past prescription.
type Medication struct {
	MedicationID string     `json:"medication_id"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	Dosage       string     `json:"dosage"`
	Frequency    string     `json:"frequency"`
	Schedules    []Schedule `json:"schedules,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
	StartDate    string     `json:"start_date"`
	EndDate      string     `json:"end_date,omitempty"`
	Active       bool       `json:"active"`
}

// Appointment is an upcoming medical appointment.
type Appointment struct {
	AppointmentID string `json:"appointment_id"`
	UserID        string `json:"user_id"`
	Title         string `json:"title"`
	Date          string `json:"date"` // "YYYY-MM-DD"
	Time          string `json:"time"` // "HH:MM"
	Location      string `json:"location,omitempty"`
	DoctorName    string `json:"doctor_name,omitempty"`
	Notes         string `json:"notes,omitempty"`
	ReminderSent  bool   `json:"reminder_sent"`
}

// Conversation is one persisted chat turn.
type Conversation struct {
	ConversationID    string    `json:"conversation_id"`
	UserID            string    `json:"user_id"`
	Timestamp         time.Time `json:"timestamp"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	Intent            string    `json:"intent"`
	PipelineUsed      string    `json:"pipeline_used"`
}

// Emergency is a logged emergency event.
type Emergency struct {
	EmergencyID      string    `json:"emergency_id"`
	UserID           string    `json:"user_id"`
	Timestamp        time.Time `json:"timestamp"`
	Severity         string    `json:"severity"` // critical, high, medium, low
	EmergencyType    string    `json:"emergency_type"`
	Message          string    `json:"message"`
	ActionsTaken     []string  `json:"actions_taken,omitempty"`
	ContactsNotified []string  `json:"contacts_notified,omitempty"`
	Resolved         bool      `json:"resolved"`
}

// Store persists assistant records.
// Implementations must be safe for concurrent use. Every method is
// fallible; callers treat failures as degradations, never as crashes.
type Store interface {
	// User retrieves a profile. Returns ErrNotFound if absent.
	User(ctx context.Context, userID string) (UserProfile, error)

	// SaveUser creates or replaces a profile.
	SaveUser(ctx context.Context, profile UserProfile) error

	// Medications returns the user's medications, optionally only active ones.
	// An empty list is valid, not an error.
	Medications(ctx context.Context, userID string, activeOnly bool) ([]Medication, error)

	// SaveMedication creates or replaces a medication.
	SaveMedication(ctx context.Context, med Medication) error

	// Appointments returns up to limit upcoming appointments, ordered by
	// date then time, ascending.
	Appointments(ctx context.Context, userID string, limit int) ([]Appointment, error)

	// SaveAppointment creates or replaces an appointment.
	SaveAppointment(ctx context.Context, appt Appointment) error

	// SaveConversation persists a chat turn.
	SaveConversation(ctx context.Context, conv Conversation) error

	// Conversations returns the most recent chat turns, newest first.
	Conversations(ctx context.Context, userID string, limit int) ([]Conversation, error)

	// SaveEmergency persists an emergency record.
	SaveEmergency(ctx context.Context, emg Emergency) error

	// Emergencies returns the user's emergency records, newest first.
	Emergencies(ctx context.Context, userID string) ([]Emergency, error)

	// Close releases any resources (connections, files).
	Close() error
}

// NewID generates a prefixed unique record identifier, e.g. "conv_<uuid>".
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
