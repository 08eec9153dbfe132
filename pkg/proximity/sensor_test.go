package proximity

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Reading
		wantErr bool
	}{
		{name: "distance only", line: "3.0", want: Reading{Distance: 3, MaxRange: 5}},
		{name: "distance and range", line: "0,8", want: Reading{Distance: 0, MaxRange: 8}},
		{name: "padded", line: "  4.5 , 5.0 \r", want: Reading{Distance: 4.5, MaxRange: 5}},
		{name: "empty", line: "   ", wantErr: true},
		{name: "garbage", line: "near", wantErr: true},
		{name: "bad range", line: "3,x", wantErr: true},
		{name: "too many fields", line: "1,2,3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line, 5)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedReading)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Distance, got.Distance)
			assert.Equal(t, tt.want.MaxRange, got.MaxRange)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Backend = BackendSerial
	assert.Error(t, cfg.Validate(), "serial without device")
	cfg.Device = "/dev/ttyUSB0"
	assert.NoError(t, cfg.Validate())

	cfg.Backend = BackendWebSocket
	assert.Error(t, cfg.Validate(), "websocket without url")

	cfg.Backend = "infrared"
	assert.Error(t, cfg.Validate())
}

func TestNewSensor_Mock(t *testing.T) {
	s, err := NewSensor(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", s.Name())
}

func TestMockSensor_RegisterUnregister(t *testing.T) {
	m := NewMockSensor()
	assert.False(t, m.Emit(1, 5), "emit without listener")
	require.NoError(t, m.Unregister(), "unregister before register is safe")

	var got []Reading
	require.NoError(t, m.Register(context.Background(), func(r Reading) { got = append(got, r) }))
	require.NoError(t, m.Register(context.Background(), func(Reading) {}), "second register is a no-op")

	assert.True(t, m.Emit(2, 5))
	require.NoError(t, m.Unregister())
	require.NoError(t, m.Unregister())

	assert.Len(t, got, 1)
	assert.EqualValues(t, 1, m.Registrations())
	assert.EqualValues(t, 1, m.Unregistrations())
}

// pipePort is an in-memory serial port.
type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newPipePort() *pipePort {
	r, w := io.Pipe()
	return &pipePort{r: r, w: w}
}

func (p *pipePort) Read(b []byte) (int, error) { return p.r.Read(b) }
func (p *pipePort) Close() error              { return p.r.Close() }

func TestSerialSensor_ReadsLines(t *testing.T) {
	port := newPipePort()
	var openedPath string
	var openedBaud int
	opener := func(path string, baud int) (SerialPort, error) {
		openedPath, openedBaud = path, baud
		return port, nil
	}

	cfg := Config{Backend: BackendSerial, Device: "/dev/ttyACM0", BaudRate: 9600, MaxRange: 5}
	s := NewSerialSensor(cfg, nil, opener)

	readings := make(chan Reading, 4)
	require.NoError(t, s.Register(context.Background(), func(r Reading) { readings <- r }))
	assert.Equal(t, "/dev/ttyACM0", openedPath)
	assert.Equal(t, 9600, openedBaud)

	go func() {
		io.WriteString(port.w, "3.0\nnot-a-number\n7.5,8\n")
	}()

	first := <-readings
	second := <-readings
	assert.Equal(t, 3.0, first.Distance)
	assert.Equal(t, 5.0, first.MaxRange)
	assert.Equal(t, 7.5, second.Distance)
	assert.Equal(t, 8.0, second.MaxRange)

	require.NoError(t, s.Unregister())
	require.NoError(t, s.Unregister(), "second unregister is a no-op")
}

func TestSerialSensor_OpenFailure(t *testing.T) {
	opener := func(string, int) (SerialPort, error) { return nil, errors.New("no such device") }
	s := NewSerialSensor(Config{Backend: BackendSerial, Device: "/dev/missing", BaudRate: 9600}, nil, opener)

	err := s.Register(context.Background(), func(Reading) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/missing")
	require.NoError(t, s.Unregister())
}

func TestWebSocketSensor_ReceivesReadings(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var serverConn *websocket.Conn
	var mu sync.Mutex
	ready := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		serverConn = c
		mu.Unlock()
		close(ready)
		// Hold the connection until the client closes it.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewWebSocketSensor(Config{Backend: BackendWebSocket, URL: url, MaxRange: 5}, nil)

	readings := make(chan Reading, 4)
	require.NoError(t, s.Register(context.Background(), func(r Reading) { readings <- r }))

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the connection")
	}

	mu.Lock()
	require.NoError(t, serverConn.WriteMessage(websocket.TextMessage, []byte(`{"distance":2.5}`)))
	require.NoError(t, serverConn.WriteMessage(websocket.TextMessage, []byte(`garbage`)))
	require.NoError(t, serverConn.WriteMessage(websocket.TextMessage, []byte(`{"distance":9,"max_range":8}`)))
	mu.Unlock()

	select {
	case r := <-readings:
		assert.Equal(t, 2.5, r.Distance)
		assert.Equal(t, 5.0, r.MaxRange, "missing max_range falls back to config")
	case <-time.After(2 * time.Second):
		t.Fatal("no reading received")
	}

	select {
	case r := <-readings:
		assert.Equal(t, 9.0, r.Distance)
		assert.Equal(t, 8.0, r.MaxRange)
	case <-time.After(2 * time.Second):
		t.Fatal("second reading not received")
	}

	require.NoError(t, s.Unregister())
}

func TestWebSocketSensor_DialFailure(t *testing.T) {
	s := NewWebSocketSensor(Config{Backend: BackendWebSocket, URL: "ws://127.0.0.1:1/feed"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.Error(t, s.Register(ctx, func(Reading) {}))
	require.NoError(t, s.Unregister())
}
