package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientMessage(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "heartbeat", raw: `{"type":"heartbeat"}`},
		{name: "start round", raw: `{"type":"start-round"}`},
		{name: "change answer", raw: `{"type":"change-answer","category":"Animal","answer":"bear"}`},
		{name: "clearing an answer is allowed", raw: `{"type":"change-answer","category":"Animal","answer":""}`},
		{name: "vote", raw: `{"type":"change-answer-vote","answer":"bear","accepted":false}`},
		{name: "not json", raw: `{nope`, wantErr: true},
		{name: "unknown type", raw: `{"type":"draw"}`, wantErr: true},
		{name: "missing type", raw: `{}`, wantErr: true},
		{name: "answer without category", raw: `{"type":"change-answer","answer":"bear"}`, wantErr: true},
		{name: "vote without flag", raw: `{"type":"change-answer-vote","answer":"bear"}`, wantErr: true},
		{name: "vote without answer", raw: `{"type":"change-answer-vote","accepted":true}`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseClientMessage([]byte(tc.raw))
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseClientMessage_KeepsAcceptedFlag(t *testing.T) {
	cm, err := ParseClientMessage([]byte(`{"type":"change-answer-vote","answer":"bee","accepted":true}`))
	require.NoError(t, err)
	require.NotNil(t, cm.Accepted)
	assert.True(t, *cm.Accepted)
}

func TestRoundStartedEncodesMilliseconds(t *testing.T) {
	payload, err := json.Marshal(RoundStarted("B", 2*time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"round-started","letter":"B","duration":2000}`, string(payload))
}

func TestRoundStoppingOmitsRequesterWhenTimed(t *testing.T) {
	payload, err := json.Marshal(RoundStopping(""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"round-stopping"}`, string(payload))
}

func TestRequiredListsAreAlwaysEncoded(t *testing.T) {
	payload, err := json.Marshal(CategoryVoteStarted("Animal", nil, 50*time.Millisecond))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"category-vote-started","category":"Animal","answers":[],"duration":50}`, string(payload))

	payload, err = json.Marshal(VotingEnded(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"voting-ended","scores":{}}`, string(payload))

	// Other kinds still leave the lists out.
	payload, err = json.Marshal(StopAvailable())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"stop-available"}`, string(payload))
}
