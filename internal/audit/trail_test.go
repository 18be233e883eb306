package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStorage копит пачки в памяти.
type memStorage struct {
	mu      sync.Mutex
	batches [][]Record
}

func (s *memStorage) WriteBatch(_ context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]Record, len(records))
	copy(batch, records)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *memStorage) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestTrail_FlushesOnBatchSize(t *testing.T) {
	storage := &memStorage{}
	trail := NewTrail(storage, 500, time.Hour, zap.NewNop()) // таймер не сработает
	trail.Start()

	for i := 0; i < 100; i++ {
		trail.Log(Record{ID: fmt.Sprintf("rec-%d", i), Kind: KindRun, Status: "completed"})
	}

	require.Eventually(t, func() bool { return storage.total() == 100 },
		2*time.Second, 10*time.Millisecond)

	trail.Stop()
}

func TestTrail_FlushesOnInterval(t *testing.T) {
	storage := &memStorage{}
	trail := NewTrail(storage, 500, 20*time.Millisecond, zap.NewNop())
	trail.Start()
	defer trail.Stop()

	trail.Log(Record{ID: "one", Kind: KindAccessRequest, Status: "approved"})

	require.Eventually(t, func() bool { return storage.total() == 1 },
		2*time.Second, 10*time.Millisecond)
}

func TestTrail_DrainsBufferOnStop(t *testing.T) {
	storage := &memStorage{}
	trail := NewTrail(storage, 500, time.Hour, zap.NewNop())
	trail.Start()

	for i := 0; i < 37; i++ {
		trail.Log(Record{ID: fmt.Sprintf("rec-%d", i), Kind: KindRun})
	}
	trail.Stop()

	// Stop дожидается финального сброса: ничего не потеряно
	assert.Equal(t, 37, storage.total())
}

func TestTrail_LogAfterStopIsDropped(t *testing.T) {
	storage := &memStorage{}
	trail := NewTrail(storage, 10, time.Hour, zap.NewNop())
	trail.Start()
	trail.Stop()

	// Не должно паниковать записью в закрытый канал
	trail.Log(Record{ID: "late", Kind: KindRun})
	assert.Zero(t, storage.total())
}

func TestTrail_FillsTimestamp(t *testing.T) {
	storage := &memStorage{}
	trail := NewTrail(storage, 10, time.Hour, zap.NewNop())
	trail.Start()

	trail.Log(Record{ID: "ts", Kind: KindRun})
	trail.Stop()

	require.Equal(t, 1, storage.total())
	assert.False(t, storage.batches[0][0].Timestamp.IsZero())
}
