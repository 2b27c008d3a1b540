package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cloudsync/internal/resource"
)

func netObj(id string) resource.Object {
	return resource.NewObject(resource.KindNetwork, id, resource.Attrs{"id": resource.String(id)})
}

func drain(q *Queue) []Event {
	var out []Event
	for {
		e, ok := q.TryDequeue()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func TestQueue_FIFOAndStamps(t *testing.T) {
	q := NewQueue(10, WithIDGenerator(NewSequenceGenerator("ev")))

	require.True(t, q.Enqueue(Create(resource.Local, netObj("L1"))))
	require.True(t, q.Enqueue(Delete(resource.Remote, resource.KindNetwork, "R1")))
	require.Equal(t, 2, q.Len())

	got := drain(q)
	require.Len(t, got, 2)
	assert.Equal(t, "L1", got[0].ObjectID)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, "ev-1", got[0].ID)
	assert.Equal(t, "R1", got[1].ObjectID)
	assert.Equal(t, int64(2), got[1].Seq)
}

func TestQueue_TryDequeueEmpty(t *testing.T) {
	q := NewQueue(1)
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestQueue_OverflowEvictsOldestFullSync(t *testing.T) {
	var drops []DropReason
	q := NewQueue(2, WithDropHook(func(_ Event, r DropReason) { drops = append(drops, r) }))

	require.True(t, q.Enqueue(FullSync(resource.Local)))
	require.True(t, q.Enqueue(Update(resource.Local, netObj("L1"))))
	require.True(t, q.Enqueue(Update(resource.Local, netObj("L2"))))

	got := drain(q)
	require.Len(t, got, 2)
	assert.Equal(t, "L1", got[0].ObjectID)
	assert.Equal(t, "L2", got[1].ObjectID)
	assert.Equal(t, []DropReason{DropFullSyncEvicted}, drops)
}

func TestQueue_OverflowCoalescesUpdates(t *testing.T) {
	q := NewQueue(2)

	first := netObj("L1")
	first.Attrs["name"] = resource.String("old")
	second := netObj("L1")
	second.Attrs["name"] = resource.String("new")

	require.True(t, q.Enqueue(Update(resource.Local, first)))
	require.True(t, q.Enqueue(Create(resource.Local, netObj("L2"))))
	require.True(t, q.Enqueue(Update(resource.Local, second)))

	got := drain(q)
	require.Len(t, got, 2)
	assert.Equal(t, TypeCreate, got[0].Type)
	assert.Equal(t, "new", got[1].Object.Attrs.Str("name"))
}

func TestQueue_OverflowNeverDropsCreateOrDelete(t *testing.T) {
	q := NewQueue(1)

	require.True(t, q.Enqueue(Create(resource.Local, netObj("L1"))))
	require.True(t, q.Enqueue(Create(resource.Local, netObj("L2"))))
	require.True(t, q.Enqueue(Delete(resource.Local, resource.KindNetwork, "L3")))
	assert.Equal(t, 3, q.Len())
}

func TestQueue_OverflowRejectsUnrelatedUpdateAndFullSync(t *testing.T) {
	var drops []DropReason
	q := NewQueue(1, WithDropHook(func(_ Event, r DropReason) { drops = append(drops, r) }))

	require.True(t, q.Enqueue(Create(resource.Local, netObj("L1"))))
	assert.False(t, q.Enqueue(Update(resource.Local, netObj("L9"))))
	assert.False(t, q.Enqueue(FullSync(resource.Remote)))
	assert.Equal(t, []DropReason{DropRejected, DropRejected}, drops)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_FullSyncReplacesQueuedFullSync(t *testing.T) {
	q := NewQueue(1)

	require.True(t, q.Enqueue(FullSync(resource.Local)))
	require.True(t, q.Enqueue(FullSync(resource.Remote)))

	got := drain(q)
	require.Len(t, got, 1)
	assert.Equal(t, resource.Remote, got[0].Origin)
}

func TestQueue_CloseRejectsAndWakes(t *testing.T) {
	q := NewQueue(4)
	require.True(t, q.Enqueue(FullSync(resource.Local)))
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(FullSync(resource.Local)))
	<-q.Wait()
	assert.False(t, q.Drained())

	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Drained())
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue(1000)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Enqueue(Create(resource.Local, netObj("x")))
			}
		}()
	}
	wg.Wait()

	got := drain(q)
	require.Len(t, got, 400)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Seq, got[i].Seq)
	}
}
