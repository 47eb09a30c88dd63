package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/weixin-spider/internal/browser"
)

type stubDriver struct {
	browser.Driver
	closed   atomic.Int32
	closeErr error
}

func (d *stubDriver) Name() string { return "stub" }

func (d *stubDriver) Close() error {
	d.closed.Add(1)
	return d.closeErr
}

func countingFactory(calls *atomic.Int32, drivers *[]*stubDriver, mu *sync.Mutex) Factory {
	return func(ctx context.Context) (browser.Driver, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		d := &stubDriver{}
		mu.Lock()
		*drivers = append(*drivers, d)
		mu.Unlock()
		return d, nil
	}
}

func TestAcquire_ReusesSession(t *testing.T) {
	var calls atomic.Int32
	var drivers []*stubDriver
	var mu sync.Mutex
	m := NewManager(countingFactory(&calls, &drivers, &mu), nil)

	s1, err := m.Acquire(context.Background())
	require.NoError(t, err)
	s2, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Equal(t, int32(1), calls.Load())
	assert.NotEmpty(t, s1.ID)
	assert.Same(t, s1, m.Current())
}

func TestAcquire_ConcurrentCallersShareOneFactoryCall(t *testing.T) {
	var calls atomic.Int32
	var drivers []*stubDriver
	var mu sync.Mutex
	m := NewManager(countingFactory(&calls, &drivers, &mu), nil)

	const workers = 16
	sessions := make([]*Session, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Acquire(context.Background())
			assert.NoError(t, err)
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
}

func TestRelease_NextAcquireRebuilds(t *testing.T) {
	var calls atomic.Int32
	var drivers []*stubDriver
	var mu sync.Mutex
	m := NewManager(countingFactory(&calls, &drivers, &mu), nil)

	s1, err := m.Acquire(context.Background())
	require.NoError(t, err)
	m.Release(s1)
	assert.Nil(t, m.Current())
	assert.Equal(t, int32(1), drivers[0].closed.Load())

	s2, err := m.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)
	assert.NotEqual(t, s1.ID, s2.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRelease_StaleSessionIsIgnored(t *testing.T) {
	var calls atomic.Int32
	var drivers []*stubDriver
	var mu sync.Mutex
	m := NewManager(countingFactory(&calls, &drivers, &mu), nil)

	s1, _ := m.Acquire(context.Background())
	m.Release(s1)
	s2, _ := m.Acquire(context.Background())

	m.Release(s1)
	assert.Same(t, s2, m.Current())
	assert.Equal(t, int32(1), drivers[0].closed.Load())
	assert.Equal(t, int32(0), drivers[1].closed.Load())
}

func TestRelease_CloseErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	driver := &stubDriver{closeErr: errors.New("browser already gone")}
	m := NewManager(func(context.Context) (browser.Driver, error) { return driver, nil }, zap.New(core))

	s, err := m.Acquire(context.Background())
	require.NoError(t, err)

	assert.NotPanics(t, func() { m.Release(s) })
	assert.Nil(t, m.Current())

	entries := logs.FilterMessage("failed to close session").All()
	require.Len(t, entries, 1)
	assert.Equal(t, s.ID, entries[0].ContextMap()["session_id"])
}

func TestAcquire_FactoryError(t *testing.T) {
	boom := errors.New("cannot start")
	m := NewManager(func(context.Context) (browser.Driver, error) { return nil, boom }, nil)

	_, err := m.Acquire(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, m.Current())
}

func TestClose(t *testing.T) {
	driver := &stubDriver{}
	m := NewManager(func(context.Context) (browser.Driver, error) { return driver, nil }, nil)

	m.Close()
	assert.Equal(t, int32(0), driver.closed.Load())

	_, err := m.Acquire(context.Background())
	require.NoError(t, err)
	m.Close()
	assert.Equal(t, int32(1), driver.closed.Load())
	assert.Nil(t, m.Current())

	m.Release(nil)
}
