package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiporbit/shiporbit/internal/core/domain"
	"github.com/shiporbit/shiporbit/internal/core/ports"
)

const secret = "whsec_test"

func sign(payload []byte, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestParseEventFailed(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.payment_failed",
		"data": {"object": {
			"id": "pi_123",
			"object": "payment_intent",
			"status": "requires_payment_method",
			"last_payment_error": {"message": "Your card has insufficient funds."}
		}}
	}`)
	g := New("sk_test", secret, nil)

	ev, err := g.ParseEvent(payload, sign(payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, domain.EventIntentFailed, ev.Type)
	assert.Equal(t, "pi_123", ev.IntentID)
	assert.Equal(t, "Your card has insufficient funds.", ev.FailureReason)
}

func TestParseEventRejectsBadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)
	g := New("sk_test", secret, nil)

	_, err := g.ParseEvent(payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ports.ErrInvalidSignature)

	_, err = g.ParseEvent(payload, "")
	assert.ErrorIs(t, err, ports.ErrInvalidSignature)

	_, err = g.ParseEvent(payload, sign(payload, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, ports.ErrInvalidSignature)
}

func TestParseEventRejectsBadPayload(t *testing.T) {
	payload := []byte(`not json`)
	_, err := New("sk_test", secret, nil).ParseEvent(payload, sign(payload, time.Now()))
	assert.ErrorIs(t, err, ports.ErrInvalidPayload)
}
