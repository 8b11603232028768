package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdoc-labs/smartdoc/pkg/store"
)

var testContacts = []store.EmergencyContact{
	{Name: "Paul", Relation: "fils", Phone: "+33600000002"},
	{Name: "Julie", Relation: "fille", Phone: "+33600000003"},
}

var testNow = time.Date(2025, 3, 10, 14, 32, 0, 0, time.UTC)

// TestSendEmergencyBatch_AllSucceed tests one result per contact.
func TestSendEmergencyBatch_AllSucceed(t *testing.T) {
	mock := &Mock{}

	results := SendEmergencyBatch(context.Background(), mock, testContacts,
		"Marie", "Je suis tombé", "critical", testNow)

	require.Len(t, results, 2)
	assert.Equal(t, DeliveryResult{Contact: "Paul", Phone: "+33600000002", Success: true}, results[0])
	assert.Equal(t, DeliveryResult{Contact: "Julie", Phone: "+33600000003", Success: true}, results[1])
	assert.Len(t, mock.Sent(), 2)
}

// TestSendEmergencyBatch_FailureDoesNotAbort tests that a failing
// gateway still attempts every contact.
func TestSendEmergencyBatch_FailureDoesNotAbort(t *testing.T) {
	mock := &Mock{Err: errors.New("gateway down")}

	results := SendEmergencyBatch(context.Background(), mock, testContacts,
		"Marie", "Aide", "high", testNow)

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Len(t, mock.Sent(), 2)
}

// TestSendEmergencyBatch_NoContacts tests the empty contact list.
func TestSendEmergencyBatch_NoContacts(t *testing.T) {
	mock := &Mock{}

	results := SendEmergencyBatch(context.Background(), mock, nil,
		"Marie", "Aide", "high", testNow)

	assert.Empty(t, results)
	assert.Empty(t, mock.Sent())
}

// TestEmergencyMessage_Format tests the SMS body layout.
func TestEmergencyMessage_Format(t *testing.T) {
	body := emergencyMessage("Marie", "Je suis tombé", "critical", testNow)

	assert.Contains(t, body, "🚨 ALERTE SMARTDOC")
	assert.Contains(t, body, "Marie a besoin d'aide!")
	assert.Contains(t, body, `Message: "Je suis tombé"`)
	assert.Contains(t, body, "Gravité: CRITICAL")
	assert.Contains(t, body, "Heure: 14:32")
	assert.Contains(t, body, "Veuillez contacter immédiatement.")
	assert.False(t, len(body) == 0)
}

// TestMock_Recording tests the mock's capture behavior.
func TestMock_Recording(t *testing.T) {
	mock := &Mock{}

	require.NoError(t, mock.SendSMS(context.Background(), "+336", "bonjour"))

	sent := mock.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "+336", sent[0].Phone)
	assert.Equal(t, "bonjour", sent[0].Message)
}
