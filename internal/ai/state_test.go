package ai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateText(t *testing.T) {
	for st := StateUninitialized; st <= StateFailedPermanent; st++ {
		data, err := json.Marshal(st)
		require.NoError(t, err)

		var got State
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, st, got)
	}

	var st State
	assert.Error(t, st.UnmarshalText([]byte("sleeping")))
	assert.Equal(t, "unknown", State(42).String())
}
