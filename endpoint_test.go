package ttytee

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEndpoint_WriteReachesConsumer(t *testing.T) {
	ep, err := NewEndpoint()
	require.NoError(t, err)
	t.Cleanup(func() { ep.Close() })

	// A consumer opens the OS-assigned path, exactly like a process
	// following the symlink would.
	consumer, err := os.OpenFile(ep.Path(), os.O_RDONLY|syscall.O_NOCTTY, 0)
	require.NoError(t, err)
	t.Cleanup(func() { consumer.Close() })

	received := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		buf := make([]byte, 64)
		n, err := consumer.Read(buf)
		if err != nil {
			errs <- err
			return
		}
		received <- string(buf[:n])
	}()

	_, err = ep.Write([]byte("$GPGGA,fix"))
	require.NoError(t, err)

	select {
	case msg := <-received:
		require.Equal(t, "$GPGGA,fix", msg)
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for consumer to receive the write")
	}
}

func TestEndpoint_BacklogTracksUnreadBytes(t *testing.T) {
	ep, err := NewEndpoint()
	require.NoError(t, err)
	t.Cleanup(func() { ep.Close() })

	backlog, err := ep.Backlog()
	require.NoError(t, err)
	require.Zero(t, backlog)

	payload := make([]byte, 100)
	_, err = ep.Write(payload)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := ep.Backlog()
		return err == nil && n == len(payload)
	}, time.Second, 10*time.Millisecond, "backlog never reached the written size")
}

func TestEndpoint_FlushDiscardsBacklog(t *testing.T) {
	ep, err := NewEndpoint()
	require.NoError(t, err)
	t.Cleanup(func() { ep.Close() })

	_, err = ep.Write(make([]byte, 256))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n, err := ep.Backlog()
		return err == nil && n > 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, ep.Flush())

	require.Eventually(t, func() bool {
		n, err := ep.Backlog()
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond, "flush left unread bytes behind")
}

func TestEndpoint_PathIsRealPty(t *testing.T) {
	ep, err := NewEndpoint()
	require.NoError(t, err)
	t.Cleanup(func() { ep.Close() })

	require.NotEmpty(t, ep.Path())
	_, err = os.Stat(ep.Path())
	require.NoError(t, err)
}
