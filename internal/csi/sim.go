package csi

import (
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/CamStreamer/internal/logger"
)

// Sim is a controller that paces transfers with a ticker and renders each
// frame from a Source
type Sim struct {
	source Source

	mu       sync.Mutex
	cfg      Config
	handler  Handler
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSim creates a simulated controller. A nil source produces black frames.
func NewSim(source Source) *Sim {
	return &Sim{source: source}
}

func (s *Sim) Name() string {
	return "sim"
}

func (s *Sim) Enable(cfg Config, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handler != nil {
		return ErrAlreadyEnabled
	}
	if h == nil {
		return fmt.Errorf("nil transfer handler")
	}
	s.cfg = cfg
	s.handler = h
	return nil
}

func (s *Sim) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handler == nil {
		return ErrNotEnabled
	}
	if s.running {
		return nil
	}

	s.running = true
	s.stopChan = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.stopChan)

	logger.WithComponent("csi").Info().
		Str("controller", s.Name()).
		Int("fps", s.cfg.fps()).
		Msg("Controller started")
	return nil
}

func (s *Sim) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Sim) Close() error {
	if err := s.Stop(); err != nil {
		return err
	}
	s.mu.Lock()
	s.handler = nil
	s.mu.Unlock()
	return nil
}

// run is the capture goroutine. It stands in for the interrupt context of
// a hardware controller.
func (s *Sim) run(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.fps()))
	defer ticker.Stop()

	size := s.cfg.frameSize()
	var seq uint64
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			buf := s.handler.NewTransfer()
			received := size
			if s.source != nil {
				received = s.source.Fill(buf, seq)
			} else {
				clear(buf)
				if received > len(buf) {
					received = len(buf)
				}
			}
			s.handler.TransferDone(received)
			seq++
		}
	}
}
