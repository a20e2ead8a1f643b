package transport_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/livedevhub/collab-relay/pkg/transport"
)

// A broadcast goroutine can hold a link reference while the connection is
// closing underneath it, so Send after Close must be a quiet no-op.
func TestSendAfterCloseDoesNotPanic(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	conn := transport.NewConnection(context.Background(), &wg, nil, transport.ConnectionConfig{}, nil, nil, newTestLogger())

	conn.Close(nil)
	for i := 0; i < 512; i++ {
		conn.Send([]byte("late broadcast"))
	}

	select {
	case <-conn.Done():
	default:
		t.Error("Expected Done to be closed after Close")
	}
	wg.Wait()
}

func TestCloseIsIdempotent(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	conn := transport.NewConnection(context.Background(), &wg, nil, transport.ConnectionConfig{}, nil, nil, newTestLogger())

	closes := 0
	conn.SetOnCloseHandler(func(_ uuid.UUID, _ error) { closes++ })

	conn.Close(nil)
	conn.Close(nil)
	if closes != 1 {
		t.Errorf("Expected the close handler to fire once, fired %d times", closes)
	}
}
