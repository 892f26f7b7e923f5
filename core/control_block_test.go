package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/najoast/actorcore/node"
	"github.com/najoast/actorcore/uuid"
)

var testNode = node.New(uuid.MustParse("cbba341a-6ceb-11ea-bc55-0242ac130003"), 100)

// testActor records what happens to it.
type testActor struct {
	mu        sync.Mutex
	received  []*MailboxElement
	reject    bool
	destroyed atomic.Int32
}

func (a *testActor) Enqueue(elem *MailboxElement, _ HostContext) bool {
	if a.reject {
		return false
	}
	a.mu.Lock()
	a.received = append(a.received, elem)
	a.mu.Unlock()
	return true
}

func (a *testActor) Destroy() {
	a.destroyed.Inc()
}

func (a *testActor) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.received)
}

type destructorCounts struct {
	data  atomic.Int32
	block atomic.Int32
}

func newCountedBlock(aid ActorID, data AbstractActor) (*ControlBlock, *destructorCounts) {
	counts := &destructorCounts{}
	cb := NewControlBlock(aid, testNode, nil, data,
		func(AbstractActor) { counts.data.Inc() },
		func(*ControlBlock) { counts.block.Inc() })
	return cb, counts
}

func TestControlBlockInitialState(t *testing.T) {
	cb, counts := newCountedBlock(42, &testActor{})

	assert.Equal(t, uint64(1), cb.StrongCount())
	assert.Equal(t, uint64(1), cb.WeakCount())
	assert.Equal(t, ActorID(42), cb.ID())
	assert.Equal(t, testNode, cb.Node())
	assert.Equal(t, "42@"+testNode.String(), cb.Address())
	assert.Zero(t, counts.data.Load())
	assert.Zero(t, counts.block.Load())
}

func TestControlBlockRejectsNilData(t *testing.T) {
	assert.Panics(t, func() {
		NewControlBlock(1, testNode, nil, nil, nil, nil)
	})
}

func TestControlBlockDestroysInTwoStages(t *testing.T) {
	for _, n := range []int{0, 1, 8, 256} {
		cb, counts := newCountedBlock(1, &testActor{})

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				cb.RetainStrong()
				cb.ReleaseStrong()
			}()
		}
		wg.Wait()

		assert.Equal(t, uint64(1), cb.StrongCount(), "n=%d", n)
		assert.Zero(t, counts.data.Load(), "n=%d", n)

		cb.RetainWeak()
		cb.ReleaseStrong()
		assert.Equal(t, int32(1), counts.data.Load(), "n=%d", n)
		assert.Zero(t, counts.block.Load(), "block must survive an outstanding weak ref, n=%d", n)
		assert.Equal(t, uint64(1), cb.WeakCount())

		cb.ReleaseWeak()
		assert.Equal(t, int32(1), counts.data.Load(), "n=%d", n)
		assert.Equal(t, int32(1), counts.block.Load(), "n=%d", n)
	}
}

func TestControlBlockDefaultDataDestructor(t *testing.T) {
	actor := &testActor{}
	cb := NewControlBlock(1, testNode, nil, actor, nil, nil)

	cb.ReleaseStrong()
	assert.Equal(t, int32(1), actor.destroyed.Load())
	assert.Zero(t, cb.WeakCount())
}

func TestUpgradeWeak(t *testing.T) {
	cb, counts := newCountedBlock(1, &testActor{})
	cb.RetainWeak()

	require.True(t, cb.UpgradeWeak())
	assert.Equal(t, uint64(2), cb.StrongCount())

	cb.ReleaseStrong()
	cb.ReleaseStrong()
	assert.Equal(t, int32(1), counts.data.Load())

	for i := 0; i < 3; i++ {
		assert.False(t, cb.UpgradeWeak())
		assert.Zero(t, cb.StrongCount())
	}
	assert.Equal(t, int32(1), counts.data.Load())

	cb.ReleaseWeak()
	assert.Equal(t, int32(1), counts.block.Load())
}

func TestUpgradeWeakRacesWithRelease(t *testing.T) {
	for round := 0; round < 50; round++ {
		cb, counts := newCountedBlock(1, &testActor{})
		weak := NewWeakRef(cb)

		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < 100; j++ {
					if ref := weak.Lock(); ref != nil {
						assert.Zero(t, counts.data.Load())
						ref.Release()
					}
				}
			}()
		}
		close(start)
		cb.ReleaseStrong()
		wg.Wait()

		assert.Equal(t, int32(1), counts.data.Load())
		assert.Nil(t, weak.Lock())
		assert.Zero(t, counts.block.Load())

		weak.Release()
		assert.Equal(t, int32(1), counts.block.Load())
	}
}

func TestOverReleasePanics(t *testing.T) {
	cb, _ := newCountedBlock(1, &testActor{})
	cb.ReleaseStrong()

	assert.Panics(t, func() { cb.ReleaseStrong() })

	cb2, _ := newCountedBlock(2, &testActor{})
	cb2.ReleaseStrong()
	assert.Panics(t, func() { cb2.ReleaseWeak() })
}

func TestRetainOnExpiredPanics(t *testing.T) {
	cb, _ := newCountedBlock(1, &testActor{})
	cb.RetainWeak()
	cb.ReleaseStrong()

	assert.Panics(t, func() { cb.RetainStrong() })
}

func TestControlBlockEnqueue(t *testing.T) {
	actor := &testActor{}
	cb, _ := newCountedBlock(1, actor)

	senderBlock, senderCounts := newCountedBlock(2, &testActor{})
	sender := Adopt(senderBlock)

	assert.True(t, cb.Enqueue(sender.Clone(), 7, NewMessage(MessageTypeText, []byte("hi")), nil))
	require.Equal(t, 1, actor.count())
	assert.Equal(t, MessageID(7), actor.received[0].MID)
	assert.Equal(t, uint64(2), senderBlock.StrongCount())

	actor.reject = true
	assert.False(t, cb.Enqueue(sender.Clone(), 8, NewMessage(MessageTypeText, nil), nil))
	assert.Equal(t, uint64(2), senderBlock.StrongCount(), "rejected element must release its sender")

	actor.received[0].Release()
	sender.Release()
	assert.Equal(t, int32(1), senderCounts.data.Load())
}
