package uart

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uartad/pkg/logic"
)

func TestEventJSONParityFields(t *testing.T) {
	// an even parity mismatch with zero ones expects parity bit 0; the zero
	// Expected value must still appear in the serialized event
	ev := Event{
		Type:     EvParityError,
		Line:     logic.RX,
		SS:       110,
		ES:       120,
		Expected: 0,
		Actual:   1,
	}

	b, err := json.Marshal(ev)
	require.NoError(t, err)

	assert.Contains(t, string(b), `"expected":0`)
	assert.Contains(t, string(b), `"actual":1`)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "PARITY ERROR", got["type"])
	assert.Contains(t, got, "expected")
	assert.Contains(t, got, "actual")
}
