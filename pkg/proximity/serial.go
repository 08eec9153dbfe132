package proximity

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"
)

// SerialPort is the minimal port surface the serial sensor needs.
type SerialPort interface {
	io.Reader
	io.Closer
}

// PortOpener opens a serial port. Tests replace it to avoid hardware.
type PortOpener func(path string, baudRate int) (SerialPort, error)

func openSerialPort(path string, baudRate int) (SerialPort, error) {
	return serial.Open(path, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
}

// SerialSensor reads one reading per line from a serial-attached ranging
// sensor (e.g. a microcontroller streaming VL53L0X distances).
type SerialSensor struct {
	cfg    Config
	logger *slog.Logger
	open   PortOpener

	mu         sync.Mutex
	port       SerialPort
	registered bool
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewSerialSensor creates a serial sensor. A nil opener uses go.bug.st/serial.
func NewSerialSensor(cfg Config, logger *slog.Logger, open PortOpener) *SerialSensor {
	if logger == nil {
		logger = slog.Default()
	}
	if open == nil {
		open = openSerialPort
	}
	return &SerialSensor{
		cfg:    cfg,
		logger: logger.With("sensor", "serial", "device", cfg.Device),
		open:   open,
	}
}

// Register opens the port and starts the read loop.
func (s *SerialSensor) Register(ctx context.Context, fn Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered {
		return nil
	}

	port, err := s.open(s.cfg.Device, s.cfg.BaudRate)
	if err != nil {
		return fmt.Errorf("proximity: open %s: %w", s.cfg.Device, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.port = port
	s.cancel = cancel
	s.done = make(chan struct{})
	s.registered = true

	go s.readLoop(ctx, port, fn, s.done)

	s.logger.Info("serial proximity sensor registered", "baud_rate", s.cfg.BaudRate)
	return nil
}

func (s *SerialSensor) readLoop(ctx context.Context, port SerialPort, fn Listener, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		r, err := ParseLine(scanner.Text(), s.cfg.MaxRange)
		if err != nil {
			s.logger.Debug("skipping sensor line", "error", err)
			continue
		}
		fn(r)
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, io.ErrClosedPipe) {
		s.logger.Warn("serial read failed", "error", err)
	}
}

// Unregister stops the read loop and closes the port.
func (s *SerialSensor) Unregister() error {
	s.mu.Lock()
	if !s.registered {
		s.mu.Unlock()
		return nil
	}
	s.registered = false
	port, cancel, done := s.port, s.cancel, s.done
	s.port = nil
	s.mu.Unlock()

	cancel()
	err := port.Close()
	<-done

	s.logger.Info("serial proximity sensor unregistered")
	if err != nil {
		return fmt.Errorf("proximity: close %s: %w", s.cfg.Device, err)
	}
	return nil
}

// Name returns "serial".
func (s *SerialSensor) Name() string {
	return string(BackendSerial)
}

var _ Sensor = (*SerialSensor)(nil)
