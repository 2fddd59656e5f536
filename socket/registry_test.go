package socket

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(connID, userID string) *Client {
	return &Client{
		ID:       connID,
		UserID:   userID,
		Username: "name-" + userID,
		Color:    "#e6194b",
		Send:     make(chan []byte, 16),
	}
}

func TestRegistrySnapshotKeepsInsertionOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Join("doc-1", newTestClient("c1", "alice"))
	reg.Join("doc-1", newTestClient("c2", "bob"))
	reg.Join("doc-1", newTestClient("c3", "carol"))

	roster := reg.Snapshot("doc-1")
	require.Len(t, roster, 3)
	assert.Equal(t, "alice", roster[0].UserID)
	assert.Equal(t, "bob", roster[1].UserID)
	assert.Equal(t, "carol", roster[2].UserID)
}

func TestRegistryLeaveExcludesLeaverAndPrunesEmptyRoom(t *testing.T) {
	reg := NewRegistry()
	a := newTestClient("c1", "alice")
	b := newTestClient("c2", "bob")
	reg.Join("doc-1", a)
	reg.Join("doc-1", b)

	removed, survivors, roster := reg.Leave("doc-1", a.ID)
	require.NotNil(t, removed)
	assert.Equal(t, "alice", removed.UserID)
	require.Len(t, survivors, 1)
	require.Len(t, roster, 1)
	assert.Equal(t, "bob", roster[0].UserID)
	assert.Equal(t, 1, reg.RoomCount())

	removed, survivors, roster = reg.Leave("doc-1", b.ID)
	require.NotNil(t, removed)
	assert.Empty(t, survivors)
	assert.Empty(t, roster)
	assert.Equal(t, 0, reg.RoomCount())
	assert.Nil(t, reg.Snapshot("doc-1"))
}

func TestRegistryLeaveUnknownConnectionIsNoop(t *testing.T) {
	reg := NewRegistry()

	removed, _, _ := reg.Leave("doc-1", "never-joined")
	assert.Nil(t, removed)
	assert.Equal(t, 0, reg.RoomCount())

	reg.Join("doc-1", newTestClient("c1", "alice"))
	removed, _, _ = reg.Leave("doc-1", "never-joined")
	assert.Nil(t, removed)
	assert.Len(t, reg.Snapshot("doc-1"), 1)
}

func TestRegistryJoinSameConnectionTwice(t *testing.T) {
	reg := NewRegistry()
	a := newTestClient("c1", "alice")
	reg.Join("doc-1", a)
	_, roster := reg.Join("doc-1", a)
	assert.Len(t, roster, 1)
}

func TestRegistryConcurrentJoinsAndLeaves(t *testing.T) {
	reg := NewRegistry()
	const n = 64
	const docs = 4

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			docID := fmt.Sprintf("doc-%d", i%docs)
			reg.Join(docID, newTestClient(fmt.Sprintf("conn-%d", i), fmt.Sprintf("user-%d", i)))
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < docs; i++ {
		total += len(reg.Snapshot(fmt.Sprintf("doc-%d", i)))
	}
	assert.Equal(t, n, total, "no join may be lost under contention")
	assert.Equal(t, docs, reg.RoomCount())

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.Leave(fmt.Sprintf("doc-%d", i%docs), fmt.Sprintf("conn-%d", i))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, reg.RoomCount(), "all rooms must be pruned after the last leave")
}
