package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/CamStreamer/internal/csi"
	"github.com/bryanchriswhite/CamStreamer/internal/sensor"
)

// fakeController records lifecycle calls; tests drive the transfer
// callbacks directly
type fakeController struct {
	handler  csi.Handler
	cfg      csi.Config
	started  int
	stopped  int
	closed   int
	startErr error
}

func (c *fakeController) Name() string { return "fake" }

func (c *fakeController) Enable(cfg csi.Config, h csi.Handler) error {
	c.cfg = cfg
	c.handler = h
	return nil
}

func (c *fakeController) Start() error {
	if c.startErr != nil {
		return c.startErr
	}
	c.started++
	return nil
}

func (c *fakeController) Stop() error {
	c.stopped++
	return nil
}

func (c *fakeController) Close() error {
	c.closed++
	return nil
}

type wrongSensor struct {
	*sensor.TestPattern
}

func (wrongSensor) ReadID() (uint16, error) { return 0xBEEF, nil }

func testOptions(slots int) Options {
	return Options{Slots: slots, FPS: 30}
}

func newTestEngine(t *testing.T, slots, width, height int) (*Engine, *fakeController) {
	t.Helper()
	ctrl := &fakeController{}
	drv := sensor.NewTestPattern(sensor.Options{Width: width, Height: height})
	e := NewEngine(drv, ctrl, testOptions(slots))
	require.NoError(t, e.Init())
	return e, ctrl
}

func produce(e *Engine, v byte) {
	buf := e.NewTransfer()
	for i := range buf {
		buf[i] = v
	}
	e.TransferDone(len(buf))
}

func TestInitEnablesController(t *testing.T) {
	e, ctrl := newTestEngine(t, 0, 8, 4)

	assert.Same(t, e, ctrl.handler)
	assert.Equal(t, 8, ctrl.cfg.Width)
	assert.Equal(t, 4, ctrl.cfg.Height)
	assert.Equal(t, sensor.BayerRGGB, ctrl.cfg.Bayer)
	assert.Len(t, e.NewTransfer(), 8*4*2)

	stats := e.Stats()
	assert.Equal(t, DefaultSlots, stats.Slots)
	assert.False(t, stats.Streaming)
}

func TestCaptureBeforeStart(t *testing.T) {
	e := NewEngine(sensor.NewTestPattern(sensor.Options{}), &fakeController{}, testOptions(3))
	assert.ErrorIs(t, e.Start(), ErrNotInitialized)

	_, err := e.TryCapture()
	assert.ErrorIs(t, err, ErrNotStreaming)

	require.NoError(t, e.Init())
	_, err = e.TryCapture()
	assert.ErrorIs(t, err, ErrNotStreaming)
}

func TestNoFrameYetThenNoFrame(t *testing.T) {
	e, _ := newTestEngine(t, 3, 4, 2)
	require.NoError(t, e.Start())

	_, err := e.TryCapture()
	assert.ErrorIs(t, err, ErrNoFrameYet)

	produce(e, 7)
	f, err := e.TryCapture()
	require.NoError(t, err)
	assert.Equal(t, byte(7), f.Data[0])
	assert.Equal(t, uint64(1), f.Seq)
	f.Release()

	_, err = e.TryCapture()
	assert.ErrorIs(t, err, ErrNoFrame)

	stats := e.Stats()
	assert.Equal(t, uint32(1), stats.FramesReceived)
	assert.Equal(t, uint64(1), stats.Captures)
	assert.Equal(t, uint64(2), stats.Misses)
	assert.False(t, stats.LastFrameAt.IsZero())
}

func TestZeroLengthTransferPublishesNothing(t *testing.T) {
	e, _ := newTestEngine(t, 3, 4, 2)
	require.NoError(t, e.Start())

	target := e.NewTransfer()
	e.TransferDone(0)
	assert.Same(t, &target[0], &e.NewTransfer()[0], "write target is kept")

	_, err := e.TryCapture()
	assert.ErrorIs(t, err, ErrNoFrameYet)
}

func TestCaptureReturnsLatestFrame(t *testing.T) {
	e, _ := newTestEngine(t, 3, 4, 2)
	require.NoError(t, e.Start())

	produce(e, 1)
	produce(e, 2)
	produce(e, 3)

	f, err := e.TryCapture()
	require.NoError(t, err)
	defer f.Release()

	assert.Equal(t, byte(3), f.Data[0])
	assert.Equal(t, uint64(3), f.Seq)
	assert.Equal(t, uint64(0), e.Stats().FramesDropped)
}

func TestLeasedSlotIsNeverWritten(t *testing.T) {
	e, _ := newTestEngine(t, 2, 4, 2)
	require.NoError(t, e.Start())

	produce(e, 1)
	held, err := e.TryCapture()
	require.NoError(t, err)

	produce(e, 2)
	produce(e, 3)
	assert.NotEqual(t, int32(held.Index), e.writeIndex.Load())
	for _, b := range held.Data {
		require.Equal(t, byte(1), b)
	}
	assert.Equal(t, uint64(2), e.Stats().FramesDropped)

	_, err = e.TryCapture()
	assert.ErrorIs(t, err, ErrNoFrame, "dropped transfers are not published")

	held.Release()
	held.Release()
	produce(e, 4)

	f, err := e.TryCapture()
	require.NoError(t, err)
	defer f.Release()
	assert.Equal(t, byte(4), f.Data[0])
	assert.Equal(t, uint64(2), f.Seq)
}

func TestInitSensorMismatch(t *testing.T) {
	ctrl := &fakeController{}
	drv := wrongSensor{sensor.NewTestPattern(sensor.Options{})}
	e := NewEngine(drv, ctrl, testOptions(3))

	err := e.Init()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInitFailed)
	assert.ErrorIs(t, err, ErrSensorMismatch)
	assert.Nil(t, ctrl.handler)

	assert.ErrorIs(t, e.Init(), ErrInitFailed, "failure is permanent")
	assert.ErrorIs(t, e.Start(), ErrNotInitialized)
}

func TestInitRejectsSingleSlot(t *testing.T) {
	e := NewEngine(sensor.NewTestPattern(sensor.Options{}), &fakeController{}, testOptions(1))
	assert.ErrorIs(t, e.Init(), ErrInitFailed)
}

func TestStartStopLifecycle(t *testing.T) {
	e, ctrl := newTestEngine(t, 3, 4, 2)

	require.NoError(t, e.Start())
	assert.ErrorIs(t, e.Start(), ErrAlreadyStreaming)
	assert.Equal(t, 1, ctrl.started)

	produce(e, 1)
	e.Stop()
	e.Stop()
	assert.Equal(t, 1, ctrl.stopped)
	assert.False(t, e.Streaming())

	_, err := e.TryCapture()
	assert.ErrorIs(t, err, ErrNotStreaming)

	require.NoError(t, e.Start())
	assert.Equal(t, uint32(0), e.Stats().FramesReceived, "counter resets on start")
	_, err = e.TryCapture()
	assert.ErrorIs(t, err, ErrNoFrameYet)

	require.NoError(t, e.Close())
	assert.Equal(t, 1, ctrl.closed)
}

func TestStartControllerFailure(t *testing.T) {
	e, ctrl := newTestEngine(t, 3, 4, 2)
	ctrl.startErr = errors.New("dma fault")

	err := e.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ctrl.startErr)
	assert.False(t, e.Streaming())
}

func TestNoTearUnderConcurrency(t *testing.T) {
	e, _ := newTestEngine(t, 3, 64, 32)
	require.NoError(t, e.Start())

	var (
		done   atomic.Bool
		torn   atomic.Int64
		frames atomic.Int64
		wg     sync.WaitGroup
	)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !done.Load() {
				f, err := e.TryCapture()
				if err != nil {
					continue
				}
				first := f.Data[0]
				for _, b := range f.Data {
					if b != first {
						torn.Add(1)
						break
					}
				}
				frames.Add(1)
				f.Release()
			}
		}()
	}

	for k := 0; k < 5000; k++ {
		produce(e, byte(k))
	}
	done.Store(true)
	wg.Wait()

	assert.Zero(t, torn.Load())
	stats := e.Stats()
	assert.Equal(t, uint64(5000), uint64(stats.FramesReceived)+stats.FramesDropped)
	t.Logf("captured %d frames, dropped %d", frames.Load(), stats.FramesDropped)
}

func TestRunStatsStopsWithContext(t *testing.T) {
	e, _ := newTestEngine(t, 3, 4, 2)
	require.NoError(t, e.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	finished := make(chan struct{})
	go func() {
		e.RunStats(ctx, 5*time.Millisecond)
		close(finished)
	}()

	for i := 0; i < 10; i++ {
		produce(e, byte(i))
	}

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("RunStats did not return after context cancellation")
	}
}
