package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/socflash/internal/discovery"
	"github.com/muurk/socflash/internal/logging"
	"github.com/muurk/socflash/internal/transport"
	"github.com/muurk/socflash/internal/version"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Idle limit for a client that stops sending
	readWait = 5 * time.Minute

	// How long a serial read blocks before rechecking the session state
	serialPollTimeout = 200 * time.Millisecond
)

// Config holds the bridge server configuration
type Config struct {
	Host     string
	Port     int
	Instance string // mDNS instance name (defaults to "socflash-bridge")
	BaudRate int    // Baud rate for opened serial ports (0 = protocol default)
	Announce bool   // Advertise the bridge over mDNS
}

// Server relays WebSocket sessions to local USB serial ports. One client may
// hold one physical port at a time; a second attach to a busy port is
// rejected with 409.
type Server struct {
	config     *Config
	upgrader   websocket.Upgrader
	httpServer *http.Server
	advertiser *discovery.Advertiser

	mu   sync.Mutex
	busy map[string]bool // port name -> attached
	wg   sync.WaitGroup
}

// New creates a new Server instance
func New(config *Config) *Server {
	if config.Instance == "" {
		config.Instance = "socflash-bridge"
	}
	return &Server{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The client is a CLI, not a browser; origin checks do not apply.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		busy: make(map[string]bool),
	}
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	mux := http.NewServeMux()
	mux.HandleFunc("/ports", s.handlePorts)
	mux.HandleFunc("/attach", s.handleAttach)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	logging.Info("Bridge listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("version", version.Version),
	)

	if s.config.Announce {
		port := listener.Addr().(*net.TCPAddr).Port
		txt := []string{
			"version=" + version.Version,
			"ports=" + strconv.Itoa(s.countPorts()),
		}
		advertiser, err := discovery.Advertise(s.config.Instance, port, txt)
		if err != nil {
			// The bridge is still reachable by explicit address.
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			s.advertiser = advertiser
			logging.Info("Advertising bridge over mDNS",
				zap.String("instance", s.config.Instance),
				zap.Int("port", port),
			)
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		s.shutdown()
		<-errChan
		return nil
	case err := <-errChan:
		s.shutdown()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) shutdown() {
	if s.advertiser != nil {
		s.advertiser.Shutdown()
		s.advertiser = nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(shutdownCtx)
	s.wg.Wait()
	logging.Info("Bridge stopped")
}

func (s *Server) countPorts() int {
	ports, err := transport.ListPorts()
	if err != nil {
		return 0
	}
	return len(ports)
}

// portInfo is the JSON shape of one entry in the /ports response.
type portInfo struct {
	Name string `json:"name"`
	VID  string `json:"vid"`
	PID  string `json:"pid"`
	Busy bool   `json:"busy"`
}

// handlePorts lists the USB serial ports visible on the bridge host.
func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	ports, err := transport.ListPorts()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.mu.Lock()
	infos := make([]portInfo, 0, len(ports))
	for _, p := range ports {
		infos = append(infos, portInfo{
			Name: p.Name,
			VID:  p.VID,
			PID:  p.PID,
			Busy: s.busy[p.Name],
		})
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		logging.Error("Failed to encode port list", zap.Error(err))
	}
}

// handleAttach upgrades the connection and relays it to the serial port
// matching the requested USB vendor/product IDs.
func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	vid, err := parseUSBID(r.URL.Query().Get("vid"))
	if err != nil {
		http.Error(w, "invalid vid: "+err.Error(), http.StatusBadRequest)
		return
	}
	pid, err := parseUSBID(r.URL.Query().Get("pid"))
	if err != nil {
		http.Error(w, "invalid pid: "+err.Error(), http.StatusBadRequest)
		return
	}

	portName, err := transport.FindPort(vid, pid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	if !s.acquire(portName) {
		http.Error(w, fmt.Sprintf("port %s already attached", portName), http.StatusConflict)
		return
	}

	serial := transport.NewSerial()
	serial.PortName = portName
	serial.BaudRate = s.config.BaudRate
	if err := serial.Connect(r.Context(), vid, pid); err != nil {
		s.release(portName)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		_ = serial.Disconnect()
		s.release(portName)
		logging.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	logging.Info("Client attached",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("port", portName),
		zap.String("usb", fmt.Sprintf("%04X:%04X", vid, pid)),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.relay(conn, serial, r.RemoteAddr)
		_ = serial.Disconnect()
		s.release(portName)
		logging.Info("Client detached",
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("port", portName),
		)
	}()
}

// relay pumps bytes both ways until either side fails or closes.
func (s *Server) relay(conn *websocket.Conn, serial *transport.Serial, remoteAddr string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() { _ = conn.Close() }()

	// Serial -> WebSocket
	go func() {
		defer cancel()
		for {
			data, err := serial.Read(ctx, serialPollTimeout)
			if err != nil {
				if ctx.Err() == nil {
					logging.Debug("Serial read ended", zap.Error(err))
				}
				return
			}
			if len(data) == 0 {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				logging.Debug("WebSocket write ended", zap.Error(err))
				return
			}
			logging.LogRawBytes("serial->ws", data)
		}
	}()

	// WebSocket -> Serial
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug("WebSocket read ended",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
		if msgType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}
		if err := serial.Write(ctx, data); err != nil {
			logging.Error("Serial write failed", zap.Error(err))
			return
		}
		logging.LogRawBytes("ws->serial", data)
	}
}

func (s *Server) acquire(portName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[portName] {
		return false
	}
	s.busy[portName] = true
	return true
}

func (s *Server) release(portName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, portName)
}

// parseUSBID parses a 16-bit hex USB ID as it appears in the attach query.
func parseUSBID(raw string) (uint16, error) {
	if raw == "" {
		return 0, fmt.Errorf("missing value")
	}
	v, err := strconv.ParseUint(raw, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%q is not a 16-bit hex id", raw)
	}
	return uint16(v), nil
}
