package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAssignsUniqueIDs(t *testing.T) {
	m := NewManager(0)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		conn := m.Open()
		require.NotEmpty(t, conn.ID)
		require.False(t, seen[conn.ID], "id %s reused", conn.ID)
		seen[conn.ID] = true
	}
	assert.Equal(t, 100, m.Count())
}

func TestSendQueuesUntilFull(t *testing.T) {
	m := NewManager(2)
	conn := m.Open()

	require.NoError(t, m.Send(conn.ID, []byte("a")))
	require.NoError(t, m.Send(conn.ID, []byte("b")))
	assert.ErrorIs(t, m.Send(conn.ID, []byte("c")), ErrQueueFull)

	assert.Equal(t, []byte("a"), <-conn.Outbound())
	require.NoError(t, m.Send(conn.ID, []byte("c")))
}

func TestRemoveClosesConnection(t *testing.T) {
	m := NewManager(4)
	conn := m.Open()
	m.Remove(conn.ID)
	m.Remove(conn.ID)

	select {
	case <-conn.Done():
	default:
		t.Fatal("connection not closed")
	}
	assert.ErrorIs(t, m.Send(conn.ID, []byte("x")), ErrUnknownConnection)
	assert.ErrorIs(t, conn.Enqueue([]byte("x")), ErrConnectionClosed)
	assert.Zero(t, m.Count())
}
