package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdoc-labs/smartdoc/pkg/store"
)

// TestEmergency_TypeDetection tests the keyword type table.
func TestEmergency_TypeDetection(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    EmergencyType
	}{
		{"fall", "Je suis tombé dans la cuisine", EmergencyFall},
		{"pain", "J'ai une douleur à la poitrine", EmergencyPain},
		{"breathing", "Je n'arrive plus à respirer", EmergencyBreathing},
		{"other", "Quelque chose ne va pas du tout", EmergencyOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.seedUser("u1")
			h.LLM.Default = "medium"

			agent, err := NewEmergencyAgent(h.deps())
			require.NoError(t, err)

			resp := agent.Handle(context.Background(), h.requestFor("u1", tt.message))

			assert.Equal(t, string(tt.want), resp.EmergencyType)
		})
	}
}

// TestEmergency_SeverityRefinement tests that a valid model label
// replaces the keyword guess.
func TestEmergency_SeverityRefinement(t *testing.T) {
	h := newHarness()
	h.seedUser("u1")
	h.LLM.Enqueue("low", "Conseils générés.")

	agent, err := NewEmergencyAgent(h.deps())
	require.NoError(t, err)

	resp := agent.Handle(context.Background(), h.requestFor("u1", "J'ai un peu peur ce soir"))

	assert.Equal(t, string(SeverityLow), resp.Severity)
}

// TestEmergency_KeywordGuessWinsOnInvalidLabel tests that garbage model
// output keeps the keyword assessment.
func TestEmergency_KeywordGuessWinsOnInvalidLabel(t *testing.T) {
	h := newHarness()
	h.seedUser("u1")
	h.LLM.Enqueue("certainly not a severity", "Conseils générés.")

	agent, err := NewEmergencyAgent(h.deps())
	require.NoError(t, err)

	resp := agent.Handle(context.Background(), h.requestFor("u1", "Je suis tombé"))

	assert.Equal(t, string(SeverityCritical), resp.Severity)
}

// TestEmergency_NotificationBySeverity tests which severities trigger
// the SMS batch.
func TestEmergency_NotificationBySeverity(t *testing.T) {
	tests := []struct {
		severity   string
		wantSent   int
		wantAction string
	}{
		{"critical", 1, "✅ SMS envoyé à Paul"},
		{"high", 1, "✅ SMS envoyé à Paul"},
		{"medium", 0, "ℹ️ Gravité faible, contacts non alertés"},
		{"low", 0, "ℹ️ Gravité faible, contacts non alertés"},
	}

	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			h := newHarness()
			h.seedUser("u1")
			h.LLM.Enqueue(tt.severity, "Conseils générés.")

			agent, err := NewEmergencyAgent(h.deps())
			require.NoError(t, err)

			resp := agent.Handle(context.Background(), h.requestFor("u1", "Quelque chose ne va pas"))

			assert.Equal(t, tt.severity, resp.Severity)
			assert.Len(t, h.Notifier.Sent(), tt.wantSent)
			assert.Contains(t, resp.ActionsTaken, tt.wantAction)
			if tt.wantSent > 0 {
				require.Len(t, resp.ContactsNotified, 1)
				assert.Equal(t, "Paul", resp.ContactsNotified[0].Contact)
				assert.True(t, resp.ContactsNotified[0].Success)
			}
		})
	}
}

// TestEmergency_SMSBody tests the alert message format.
func TestEmergency_SMSBody(t *testing.T) {
	h := newHarness()
	h.seedUser("u1")
	h.LLM.Enqueue("critical", "Conseils générés.")

	agent, err := NewEmergencyAgent(h.deps())
	require.NoError(t, err)

	agent.Handle(context.Background(), h.requestFor("u1", "Je suis tombé"))

	sent := h.Notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "+33600000002", sent[0].Phone)
	assert.Contains(t, sent[0].Message, "🚨 ALERTE SMARTDOC")
	assert.Contains(t, sent[0].Message, "Marie a besoin d'aide!")
	assert.Contains(t, sent[0].Message, "Gravité: CRITICAL")
	assert.Contains(t, sent[0].Message, "Heure: 09:00")
}

// TestEmergency_FailedSMSRecorded tests that a delivery failure is
// reported per contact and the run continues.
func TestEmergency_FailedSMSRecorded(t *testing.T) {
	h := newHarness()
	h.seedUser("u1")
	h.Notifier.Err = assert.AnError
	h.LLM.Enqueue("critical", "Conseils générés.")

	agent, err := NewEmergencyAgent(h.deps())
	require.NoError(t, err)

	resp := agent.Handle(context.Background(), h.requestFor("u1", "Je suis tombé"))

	assert.True(t, resp.Success)
	assert.Contains(t, resp.ActionsTaken, "❌ Échec SMS à Paul")
	require.Len(t, resp.ContactsNotified, 1)
	assert.False(t, resp.ContactsNotified[0].Success)
}

// TestEmergency_NoContactsConfigured tests the zero-contact warning.
func TestEmergency_NoContactsConfigured(t *testing.T) {
	h := newHarness()
	profile := store.UserProfile{UserID: "u1", Name: "Marie"}
	require.NoError(t, h.Store.SaveUser(context.Background(), profile))
	h.LLM.Enqueue("critical", "Conseils générés.")

	agent, err := NewEmergencyAgent(h.deps())
	require.NoError(t, err)

	resp := agent.Handle(context.Background(), h.requestFor("u1", "Je suis tombé"))

	assert.Contains(t, resp.ActionsTaken, "⚠️ Aucun contact d'urgence configuré")
	assert.Empty(t, h.Notifier.Sent())
}

// TestEmergency_PersistsEvent tests that the emergency is logged with
// severity, type, and notified contacts.
func TestEmergency_PersistsEvent(t *testing.T) {
	h := newHarness()
	h.seedUser("u1")
	h.LLM.Enqueue("critical", "Conseils générés.")

	agent, err := NewEmergencyAgent(h.deps())
	require.NoError(t, err)

	resp := agent.Handle(context.Background(), h.requestFor("u1", "Je suis tombé"))
	assert.Contains(t, resp.ActionsTaken, "📝 Urgence enregistrée dans le système")

	events, err := h.Store.Emergencies(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "critical", events[0].Severity)
	assert.Equal(t, "fall", events[0].EmergencyType)
	assert.Equal(t, []string{"Paul"}, events[0].ContactsNotified)
	assert.False(t, events[0].Resolved)
	assert.Equal(t, testTime, events[0].Timestamp)
}

// TestEmergency_GuidanceFallback tests the fixed guidance blocks when
// generation fails after assessment.
func TestEmergency_GuidanceFallback(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityCritical, "Appelez le 15 (SAMU) IMMÉDIATEMENT"},
		{SeverityHigh, "Appelez votre médecin maintenant"},
		{SeverityMedium, "Restez calme"},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			assert.Contains(t, emergencyFallbackGuidance(tt.severity), tt.want)
		})
	}
}

// TestEmergency_ResponseShape tests the composed response: header,
// numbered guidance, actions, closing.
func TestEmergency_ResponseShape(t *testing.T) {
	h := newHarness()
	h.seedUser("u1")
	h.LLM.Enqueue("critical", "1. Appelez le 15\n2. Restez au sol")

	agent, err := NewEmergencyAgent(h.deps())
	require.NoError(t, err)

	resp := agent.Handle(context.Background(), h.requestFor("u1", "Aide! Je suis tombé"))

	assert.Contains(t, resp.Response, "🚨 MARIE, C'EST UNE URGENCE!")
	assert.Contains(t, resp.Response, "📋 CE QUE VOUS DEVEZ FAIRE:")
	assert.Contains(t, resp.Response, "1. Appelez le 15")
	assert.Contains(t, resp.Response, "✅ ACTIONS EFFECTUÉES:")
	assert.Contains(t, resp.Response, "🚑 LES SECOURS SONT EN ROUTE")
}

// TestEmergency_AllCollaboratorsDown tests that the pipeline still
// produces a full response when the model, store, and SMS gateway all
// fail.
func TestEmergency_AllCollaboratorsDown(t *testing.T) {
	h := newHarness()
	h.seedUser("u1")
	req := h.requestFor("u1", "Aide! Je suis tombé")

	deps := h.deps()
	h.LLM.Err = assert.AnError
	h.Notifier.Err = assert.AnError
	deps.Store = &failingStore{Store: h.Store, err: assert.AnError}

	agent, err := NewEmergencyAgent(deps)
	require.NoError(t, err)

	resp := agent.Handle(context.Background(), req)

	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, string(SeverityCritical), resp.Severity)
	assert.Contains(t, resp.Response, "Appelez le 15")
	assert.Contains(t, resp.ActionsTaken, "❌ Échec SMS à Paul")
}
