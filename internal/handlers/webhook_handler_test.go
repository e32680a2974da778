package handlers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayPayloadInbound(t *testing.T) {
	raw := `{
		"event": "message",
		"payload": {
			"id": "wamid-42",
			"timestamp": 1756600000,
			"from": "628123456789",
			"fromMe": false,
			"body": "where is my order?"
		}
	}`

	var payload GatewayWebhookPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	inbound := payload.inbound()
	assert.Equal(t, "628123456789", inbound.PhoneNumber)
	assert.Equal(t, "where is my order?", inbound.Text)
	assert.Equal(t, "wamid-42", inbound.MessageUUID)
	assert.Equal(t, int64(1756600000), inbound.Timestamp)
}
