package secret

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordNeverPrintsValue(t *testing.T) {
	p := NewPassword("s3cret!")

	assert.Equal(t, Redacted, p.String())
	assert.Equal(t, Redacted, fmt.Sprintf("%s", p))
	assert.NotContains(t, fmt.Sprintf("%v", p), "s3cret")
	assert.NotContains(t, fmt.Sprintf("%#v", p), "s3cret")
}

func TestPasswordJSONRedacted(t *testing.T) {
	p := NewPassword("hunter2")

	data, err := json.Marshal(struct {
		Password Password `json:"password"`
	}{Password: p})
	require.NoError(t, err)

	assert.NotContains(t, string(data), "hunter2")
	assert.Contains(t, string(data), Redacted)
}

func TestPasswordReveal(t *testing.T) {
	p := NewPassword("hunter2")
	assert.Equal(t, "hunter2", p.Reveal())
	assert.False(t, p.IsZero())
	assert.True(t, NewPassword("").IsZero())
}
