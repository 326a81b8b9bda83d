package proxy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestByteSizeUnmarshal(t *testing.T) {
	var b ByteSize

	require.NoError(t, yaml.Unmarshal([]byte(`20m`), &b))
	assert.Equal(t, ByteSize(20<<20), b)

	require.NoError(t, yaml.Unmarshal([]byte(`512k`), &b))
	assert.Equal(t, ByteSize(512<<10), b)

	require.NoError(t, yaml.Unmarshal([]byte(`1g`), &b))
	assert.Equal(t, ByteSize(1<<30), b)

	require.NoError(t, json.Unmarshal([]byte(`20971520`), &b))
	assert.Equal(t, ByteSize(20<<20), b)

	require.NoError(t, json.Unmarshal([]byte(`"1024"`), &b))
	assert.Equal(t, ByteSize(1024), b)

	assert.Error(t, json.Unmarshal([]byte(`"lots"`), &b))
	assert.Error(t, json.Unmarshal([]byte(`"-1k"`), &b))
}

func TestByteSizeString(t *testing.T) {
	assert.Equal(t, "20m", ByteSize(20<<20).String())
	assert.Equal(t, "512k", ByteSize(512<<10).String())
	assert.Equal(t, "1g", ByteSize(1<<30).String())
	assert.Equal(t, "100", ByteSize(100).String())
}
