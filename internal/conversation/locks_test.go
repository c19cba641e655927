package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestKeyedLocks_SerializeAndCleanUp(t *testing.T) {
	k := newKeyedLocks()
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := k.acquire("conv:1")
			counter++
			release()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("lost updates under the keyed lock: %d", counter)
	}
	k.mu.Lock()
	remaining := len(k.locks)
	k.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected lock map to drain, %d entries left", remaining)
	}
}

func TestConcurrentAgentMessages_NoLostUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv, err := f.engine.IngestClientMessage(ctx, phone, "João", "Oi")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	baseline := len(conv.Messages)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.engine.AppendAgentMessage(ctx, conv.ID, "Ana", fmt.Sprintf("resposta %d", i)); err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	final, err := f.repo.FindByID(ctx, conv.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if len(final.Messages) != baseline+writers {
		t.Fatalf("expected %d messages, got %d", baseline+writers, len(final.Messages))
	}
}
