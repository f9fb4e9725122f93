package game

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeWireFormat(t *testing.T) {
	ev := RoleClaimed("alice", RoleClueMaker)
	data, err := json.Marshal(Wrap(ev))
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, EnvelopeType, env.Type)
	assert.Equal(t, EventRoleClaimed, env.Payload.Type)

	payload, err := ParsePayload(env.Payload)
	require.NoError(t, err)
	assert.Equal(t, RoleClaimedPayload{Nickname: "alice", Role: RoleClueMaker}, payload)
}

func TestParsePayload_PayloadlessEvents(t *testing.T) {
	for _, ev := range []Event{CountdownCancel(), TargetConfirmed(), ReturnToLobby()} {
		payload, err := ParsePayload(ev)
		require.NoError(t, err, "event %s", ev.Type)
		assert.Nil(t, payload)
	}
}

func TestParsePayload_UnknownTypeRejected(t *testing.T) {
	_, err := ParsePayload(Event{Type: "teleport_player"})
	assert.Error(t, err)
}

func TestParsePayload_MalformedDataRejected(t *testing.T) {
	_, err := ParsePayload(Event{Type: EventStateSync, Data: []byte(`"not an object"`)})
	assert.Error(t, err)
}

func TestStateSyncCarriesFullState(t *testing.T) {
	seconds := 3
	state := State{
		Phase:              PhaseCountdown,
		Players:            []Player{{Nickname: "alice", Role: RoleClueMaker}, {Nickname: "bob", Role: RoleGuesser}},
		Guesses:            []Guess{},
		CurrentGuessNumber: 0,
		CountdownSeconds:   &seconds,
	}

	payload, err := ParsePayload(StateSync(state))
	require.NoError(t, err)
	assert.Equal(t, state, payload.(StateSyncPayload).State)
}

// The target cell must never ride along with target_confirmed.
func TestTargetConfirmedCarriesNoData(t *testing.T) {
	assert.Empty(t, TargetConfirmed().Data)
}
