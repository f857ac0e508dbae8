package negotiate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveTakesMinimumAndANDsDynamic(t *testing.T) {
	sender := Params{WindowSize: 8, MaximumMsgSize: 10, Timeout: 2000, DynamicSize: true}
	receiver := Params{WindowSize: 4, MaximumMsgSize: 20, Timeout: 500, DynamicSize: false}

	got := Effective(sender, receiver)
	assert.Equal(t, Params{WindowSize: 4, MaximumMsgSize: 10, Timeout: 500, DynamicSize: false}, got)

	// Symmetric: computed identically from either side.
	assert.Equal(t, got, Effective(receiver, sender))
}
