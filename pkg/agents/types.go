// Package agents implements the assistant's routing pipelines: one
// orchestrator that classifies and dispatches each user message, and
// three specialized pipelines (emergency, medication, symptom) that
// produce the final response.
package agents

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/smartdoc-labs/smartdoc/pkg/llm"
	"github.com/smartdoc-labs/smartdoc/pkg/notify"
	"github.com/smartdoc-labs/smartdoc/pkg/pipeline"
	"github.com/smartdoc-labs/smartdoc/pkg/store"
)

// Intent is the classified purpose of a user message.
type Intent string

// The closed set of intents. Anything else resolves to IntentGeneral.
const (
	IntentMedication  Intent = "medication"
	IntentSymptom     Intent = "symptom"
	IntentAppointment Intent = "appointment"
	IntentEmergency   Intent = "emergency"
	IntentGeneral     Intent = "general"
)

// ParseIntent normalizes and validates a raw classifier label.
// Returns IntentGeneral and false for anything outside the closed set.
func ParseIntent(raw string) (Intent, bool) {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentMedication:
		return IntentMedication, true
	case IntentSymptom:
		return IntentSymptom, true
	case IntentAppointment:
		return IntentAppointment, true
	case IntentEmergency:
		return IntentEmergency, true
	case IntentGeneral:
		return IntentGeneral, true
	default:
		return IntentGeneral, false
	}
}

// Severity is the four-level emergency scale.
type Severity string

// Emergency severities, most urgent first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ParseSeverity normalizes and validates a raw severity label.
func ParseSeverity(raw string) (Severity, bool) {
	switch Severity(strings.ToLower(strings.TrimSpace(raw))) {
	case SeverityCritical:
		return SeverityCritical, true
	case SeverityHigh:
		return SeverityHigh, true
	case SeverityMedium:
		return SeverityMedium, true
	case SeverityLow:
		return SeverityLow, true
	default:
		return "", false
	}
}

// EmergencyType categorizes what kind of emergency was reported.
type EmergencyType string

// Emergency types detected by keyword.
const (
	EmergencyFall      EmergencyType = "fall"
	EmergencyPain      EmergencyType = "pain"
	EmergencyBreathing EmergencyType = "breathing"
	EmergencyOther     EmergencyType = "other"
)

// SymptomSeverity is the four-level symptom scale.
type SymptomSeverity string

// Symptom severities, mildest first.
const (
	SymptomMild     SymptomSeverity = "mild"
	SymptomModerate SymptomSeverity = "moderate"
	SymptomSevere   SymptomSeverity = "severe"
	SymptomCritical SymptomSeverity = "critical"
)

// ParseSymptomSeverity normalizes and validates a raw symptom severity label.
func ParseSymptomSeverity(raw string) (SymptomSeverity, bool) {
	switch SymptomSeverity(strings.ToLower(strings.TrimSpace(raw))) {
	case SymptomMild:
		return SymptomMild, true
	case SymptomModerate:
		return SymptomModerate, true
	case SymptomSevere:
		return SymptomSevere, true
	case SymptomCritical:
		return SymptomCritical, true
	default:
		return "", false
	}
}

// MedAction selects the terminal stage of the medication pipeline.
type MedAction string

// Medication actions. ActionInfo is the default.
const (
	ActionReminder    MedAction = "reminder"
	ActionInteraction MedAction = "interaction_check"
	ActionHistory     MedAction = "history"
	ActionInfo        MedAction = "info"
)

// Pipeline names used for routing and reporting.
const (
	PipelineMedication = "medication-pipeline"
	PipelineSymptom    = "symptom-pipeline"
	PipelineEmergency  = "emergency-pipeline"
	PipelineNone       = "none"
)

// UserContext is the enrichment data loaded for one pipeline run.
// It is populated by the orchestrator's context-loading stage and
// read-only to every downstream stage.
type UserContext struct {
	Profile      store.UserProfile   `json:"user_profile"`
	Medications  []store.Medication  `json:"medications,omitempty"`
	Appointments []store.Appointment `json:"appointments,omitempty"`
}

// Request is the invocation payload sent to a specialized pipeline.
type Request struct {
	UserID  string      `json:"user_id"`
	Message string      `json:"message"`
	Context UserContext `json:"context"`
}

// Response is what a specialized pipeline returns to the orchestrator.
// Response is always non-empty, even when every external call failed.
type Response struct {
	Response string `json:"response"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`

	// Pipeline-specific fields.
	Severity         string                  `json:"severity,omitempty"`
	EmergencyType    string                  `json:"emergency_type,omitempty"`
	ContactsNotified []notify.DeliveryResult `json:"contacts_notified,omitempty"`
	ActionsTaken     []string                `json:"actions_taken,omitempty"`
	Action           string                  `json:"action,omitempty"`
	Symptoms         []string                `json:"symptoms,omitempty"`
	Recommendations  []string                `json:"recommendations,omitempty"`
}

// Handler is a pipeline that can be invoked with a Request.
// Specialized pipelines implement it; the transport layers (local and
// HTTP) dispatch to it.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

// Deps bundles the external collaborators injected into every agent.
// Construct them once in the composition root and share across agents;
// nothing here holds per-run state.
type Deps struct {
	LLM      llm.Client
	Store    store.Store
	Notifier notify.Notifier
	Clock    clockwork.Clock
	Logger   *slog.Logger

	// RunOptions are passed to every pipeline run (metrics, tracing).
	RunOptions []pipeline.RunOption
}

// normalize fills optional dependencies with safe defaults.
func (d Deps) normalize() Deps {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// firstErr keeps the first recorded diagnostic: a previously-set value
// is never overwritten.
func firstErr(current, candidate string) string {
	if current != "" {
		return current
	}
	return candidate
}

// containsAny reports whether the lower-cased message contains any of
// the keywords.
func containsAny(message string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(message, k) {
			return true
		}
	}
	return false
}

// displayName returns the user's name or the generic fallback.
func displayName(profile store.UserProfile) string {
	if profile.Name != "" {
		return profile.Name
	}
	return "Utilisateur"
}
