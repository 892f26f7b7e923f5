package core

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najoast/actorcore/node"
	"github.com/najoast/actorcore/uuid"
)

var remoteNode = node.New(uuid.MustParse("2ee4ded7-69c0-4dd6-876d-02e446b21784"), 7)

type stubRuntime struct {
	nid node.ID
	reg *Registry
}

func (r *stubRuntime) Node() node.ID { return r.nid }
func (r *stubRuntime) Registry() *Registry { return r.reg }
func (r *stubRuntime) Logger() *slog.Logger { return slog.Default() }

type stubHost struct {
	rt      Runtime
	proxies ProxyRegistry
}

func (h *stubHost) System() Runtime { return h.rt }
func (h *stubHost) ProxyRegistry() ProxyRegistry { return h.proxies }

type proxyKey struct {
	nid node.ID
	aid ActorID
}

type stubProxies struct {
	mu      sync.Mutex
	proxies map[proxyKey]*StrongRef
}

func newStubProxies() *stubProxies {
	return &stubProxies{proxies: make(map[proxyKey]*StrongRef)}
}

func (p *stubProxies) GetOrPut(nid node.ID, aid ActorID) *StrongRef {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := proxyKey{nid, aid}
	if ref, ok := p.proxies[key]; ok {
		return ref.Clone()
	}
	ref := Adopt(NewControlBlock(aid, nid, nil, &testActor{}, nil, nil))
	p.proxies[key] = ref
	return ref.Clone()
}

func newStubHost(proxies ProxyRegistry) *stubHost {
	return &stubHost{
		rt:      &stubRuntime{nid: testNode, reg: NewRegistry()},
		proxies: proxies,
	}
}

func TestLoadZeroIDIsEmpty(t *testing.T) {
	ref, err := Load(nil, 0, remoteNode)
	assert.NoError(t, err)
	assert.Nil(t, ref)
}

func TestLoadWithoutContext(t *testing.T) {
	_, err := Load(nil, 5, testNode)
	assert.ErrorIs(t, err, ErrNoContext)

	_, err = Load(&stubHost{}, 5, testNode)
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestLoadLocal(t *testing.T) {
	host := newStubHost(nil)
	cb, _ := newCountedBlock(5, &testActor{})
	ref := Adopt(cb)
	defer ref.Release()

	_, err := Load(host, 5, testNode)
	assert.ErrorIs(t, err, ErrNoSuchActor)

	require.NoError(t, host.rt.Registry().Put(5, ref))
	got, err := Load(host, 5, testNode)
	require.NoError(t, err)
	defer got.Release()
	assert.True(t, got.Equal(ref))

	_, err = Load(host, 5, node.ID{})
	assert.ErrorIs(t, err, ErrNoSuchActor)
}

func TestLoadRemote(t *testing.T) {
	_, err := Load(newStubHost(nil), 9, remoteNode)
	assert.ErrorIs(t, err, ErrNoProxyRegistry)

	host := newStubHost(newStubProxies())
	first, err := Load(host, 9, remoteNode)
	require.NoError(t, err)
	defer first.Release()
	assert.Equal(t, ActorID(9), first.ID())
	assert.Equal(t, remoteNode, first.Node())

	second, err := Load(host, 9, remoteNode)
	require.NoError(t, err)
	defer second.Release()
	assert.True(t, first.Equal(second), "proxies are cached per (node, id)")
}

func TestSave(t *testing.T) {
	host := newStubHost(nil)

	aid, nid, err := Save(host, nil)
	require.NoError(t, err)
	assert.Zero(t, aid)
	assert.True(t, nid.IsNil())

	cb, counts := newCountedBlock(12, &testActor{})
	ref := Adopt(cb)

	_, _, err = Save(nil, ref)
	assert.ErrorIs(t, err, ErrNoContext)

	aid, nid, err = Save(host, ref)
	require.NoError(t, err)
	assert.Equal(t, ActorID(12), aid)
	assert.Equal(t, testNode, nid)
	assert.Equal(t, []ActorID{12}, host.rt.Registry().List())

	got, err := Load(host, 12, testNode)
	require.NoError(t, err)
	assert.True(t, got.Equal(ref))
	got.Release()

	ref.Release()
	assert.Equal(t, int32(1), counts.data.Load(), "saving does not extend the lifetime")
	_, err = Load(host, 12, testNode)
	assert.ErrorIs(t, err, ErrNoSuchActor)
	host.rt.Registry().Clear()
	assert.Equal(t, int32(1), counts.block.Load())
}

func TestSaveRemoteDoesNotRegister(t *testing.T) {
	host := newStubHost(nil)
	ref := Adopt(NewControlBlock(3, remoteNode, nil, &testActor{}, nil, nil))
	defer ref.Release()

	aid, nid, err := Save(host, ref)
	require.NoError(t, err)
	assert.Equal(t, ActorID(3), aid)
	assert.Equal(t, remoteNode, nid)
	assert.Empty(t, host.rt.Registry().List())
}

func TestRefJSON(t *testing.T) {
	host := newStubHost(newStubProxies())
	cb, _ := newCountedBlock(21, &testActor{})
	ref := Adopt(cb)
	defer ref.Release()

	data, err := MarshalRef(host, ref)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":21,"node":"cbba341a-6ceb-11ea-bc55-0242ac130003#100"}`, string(data))

	got, err := UnmarshalRef(host, data)
	require.NoError(t, err)
	defer got.Release()
	assert.True(t, got.Equal(ref))

	remote, err := UnmarshalRef(host, []byte(`{"id":4,"node":"2ee4ded7-69c0-4dd6-876d-02e446b21784#7"}`))
	require.NoError(t, err)
	defer remote.Release()
	assert.Equal(t, remoteNode, remote.Node())

	empty, err := MarshalRef(host, nil)
	require.NoError(t, err)
	var w RefWire
	require.NoError(t, json.Unmarshal(empty, &w))
	assert.Zero(t, w.ID)
	none, err := UnmarshalRef(host, empty)
	assert.NoError(t, err)
	assert.Nil(t, none)

	_, err = UnmarshalRef(host, []byte(`{"id":"x"}`))
	assert.Error(t, err)
}

func TestWeakRefJSON(t *testing.T) {
	host := newStubHost(nil)
	cb, counts := newCountedBlock(8, &testActor{})
	ref := Adopt(cb)
	weak := ref.Downgrade()
	defer weak.Release()

	data, err := MarshalWeakRef(host, weak)
	require.NoError(t, err)

	got, err := UnmarshalWeakRef(host, data)
	require.NoError(t, err)
	assert.True(t, got.Equal(weak))
	got.Release()

	ref.Release()
	host.rt.Registry().Clear()
	require.Equal(t, int32(1), counts.data.Load())

	data, err = MarshalWeakRef(host, weak)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":0,"node":"00000000-0000-0000-0000-000000000000#0"}`, string(data))
}

func TestRefBinary(t *testing.T) {
	host := newStubHost(newStubProxies())
	cb, _ := newCountedBlock(0x0102030405060708, &testActor{})
	ref := Adopt(cb)
	defer ref.Release()

	var buf bytes.Buffer
	require.NoError(t, WriteRef(&buf, host, ref))
	require.Equal(t, 8+node.BinarySize, buf.Len())
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf.Bytes()[:8])

	got, err := ReadRef(&buf, host)
	require.NoError(t, err)
	defer got.Release()
	assert.True(t, got.Equal(ref))

	_, err = ReadRef(bytes.NewReader([]byte{1, 2, 3}), host)
	assert.Error(t, err)
}
