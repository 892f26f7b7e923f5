package node

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/najoast/actorcore/uuid"
)

var testHost = uuid.MustParse("cbba341a-6ceb-11ea-bc55-0242ac130003")

func TestNodeString(t *testing.T) {
	id := New(testHost, 4242)
	assert.Equal(t, "cbba341a-6ceb-11ea-bc55-0242ac130003#4242", id.String())

	parsed, err := Parse(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestNodeParseErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"cbba341a-6ceb-11ea-bc55-0242ac130003",
		"cbba341a-6ceb-81ea-bc55-0242ac130003#1",
		"cbba341a-6ceb-11ea-bc55-0242ac130003#",
		"cbba341a-6ceb-11ea-bc55-0242ac130003#-1",
		"cbba341a-6ceb-11ea-bc55-0242ac130003#99999999999",
	} {
		_, err := Parse(s)
		require.Error(t, err, s)
		assert.True(t, errors.Is(err, ErrInvalidNodeID), s)
	}
}

func TestNodeIsNil(t *testing.T) {
	var id ID
	assert.True(t, id.IsNil())
	assert.False(t, New(testHost, 0).IsNil())
	assert.False(t, New(uuid.Nil, 1).IsNil())
}

func TestNodeLocation(t *testing.T) {
	a := New(testHost, 1)
	b := New(testHost, 2)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.Equal(t, a.Hash(), New(testHost, 1).Hash())
	assert.Equal(t, -1, Compare(a, b))
	assert.Equal(t, 0, Compare(a, New(testHost, 1)))

	other := New(uuid.MustParse("cbba369a-6ceb-11ea-bc55-0242ac130003"), 1)
	assert.Equal(t, -1, Compare(a, other))
}

func TestNodeLocal(t *testing.T) {
	first, err := Local()
	require.NoError(t, err)
	second, err := Local()
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, uint32(os.Getpid()), first.Process)
	assert.Equal(t, uuid.TimeBased, first.Host.Version())
}

func TestNodeBinaryCodec(t *testing.T) {
	id := New(testHost, 0xDEADBEEF)

	data, err := id.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, BinarySize)

	var decoded ID
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, id, decoded)

	var buf bytes.Buffer
	require.NoError(t, id.WriteBinary(&buf))
	read, err := ReadBinary(&buf)
	require.NoError(t, err)
	assert.Equal(t, id, read)

	assert.Error(t, decoded.UnmarshalBinary(data[:5]))
}

func TestNodeStructuredCodecs(t *testing.T) {
	id := New(testHost, 7)

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"cbba341a-6ceb-11ea-bc55-0242ac130003#7"`, string(data))

	var fromJSON ID
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, id, fromJSON)

	type doc struct {
		Node ID `yaml:"node"`
	}
	out, err := yaml.Marshal(doc{Node: id})
	require.NoError(t, err)

	var fromYAML doc
	require.NoError(t, yaml.Unmarshal(out, &fromYAML))
	assert.Equal(t, id, fromYAML.Node)
}
