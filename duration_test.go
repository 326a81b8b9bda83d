package proxy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshal(t *testing.T) {
	var d Duration

	require.NoError(t, yaml.Unmarshal([]byte(`"2h"`), &d))
	assert.Equal(t, Duration(2*time.Hour), d)

	require.NoError(t, yaml.Unmarshal([]byte(`30`), &d))
	assert.Equal(t, Duration(30*time.Second), d)

	require.NoError(t, json.Unmarshal([]byte(`"90"`), &d))
	assert.Equal(t, Duration(90*time.Second), d)

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
}

func TestDurationMarshal(t *testing.T) {
	data, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"90s"`, string(data))

	out, err := Duration(2 * time.Hour).MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "7200s", out)
}
