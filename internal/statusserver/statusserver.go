// Package statusserver exposes the health and counters of a running
// capture over HTTP.
package statusserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pion/avcapture"
	"github.com/pion/avcapture/internal/logging"
)

var logger = logging.NewLogger("avcapture/statusserver")

// StatsSource is implemented by *avcapture.Capture.
type StatsSource interface {
	Stats() avcapture.Stats
	Err() error
}

// Server serves GET /health and GET /status.
type Server struct {
	src        StatsSource
	engine     *gin.Engine
	httpServer *http.Server
	started    time.Time
}

type healthResponse struct {
	Status    string    `json:"status"`
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ringStatus struct {
	Capacity  int    `json:"capacity"`
	Slots     int    `json:"slots"`
	Published int    `json:"published"`
	Produced  uint64 `json:"produced"`
	Consumed  uint64 `json:"consumed"`
	Abandoned uint64 `json:"abandoned"`
}

type deviceStatus struct {
	Running         bool   `json:"running"`
	WithAudio       bool   `json:"with_audio"`
	WithAnc         bool   `json:"with_anc"`
	ProcessedFrames uint64 `json:"processed_frames"`
	DroppedFrames   uint64 `json:"dropped_frames"`
	BufferLevel     int    `json:"buffer_level"`
}

type statusResponse struct {
	ID             string       `json:"id"`
	State          string       `json:"state"`
	Uptime         string       `json:"uptime"`
	Ring           ringStatus   `json:"ring"`
	Device         deviceStatus `json:"device"`
	LockedBytes    int          `json:"locked_bytes"`
	BufferBytes    int          `json:"buffer_bytes"`
	LostFrames     uint64       `json:"lost_frames"`
	SinkErrors     uint64       `json:"sink_errors"`
	InterruptWaits uint64       `json:"interrupt_waits"`
}

// New builds a server for src listening on addr.
func New(addr string, src StatsSource) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		src:     src,
		engine:  engine,
		started: time.Now(),
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
	engine.GET("/health", s.handleHealth)
	engine.GET("/status", s.handleStatus)
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("serving status on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// handleHealth reports 200 while frames flow and 503 otherwise.
func (s *Server) handleHealth(c *gin.Context) {
	st := s.src.Stats()
	resp := healthResponse{
		Status:    "healthy",
		State:     string(st.State),
		Timestamp: time.Now(),
	}
	code := http.StatusOK
	if err := s.src.Err(); err != nil {
		resp.Error = err.Error()
	}
	if st.State != avcapture.StateRunning || resp.Error != "" {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (s *Server) handleStatus(c *gin.Context) {
	st := s.src.Stats()
	c.JSON(http.StatusOK, statusResponse{
		ID:     st.ID,
		State:  string(st.State),
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Ring: ringStatus{
			Capacity:  st.Ring.Capacity,
			Slots:     st.Ring.Slots,
			Published: st.Ring.Published,
			Produced:  st.Ring.Produced,
			Consumed:  st.Ring.Consumed,
			Abandoned: st.Ring.Abandoned,
		},
		Device: deviceStatus{
			Running:         st.Device.Running,
			WithAudio:       st.Device.WithAudio,
			WithAnc:         st.Device.WithAnc,
			ProcessedFrames: st.Device.ProcessedFrames,
			DroppedFrames:   st.Device.DroppedFrames,
			BufferLevel:     st.Device.BufferLevel,
		},
		LockedBytes:    st.Buffers.LockedBytes,
		BufferBytes:    st.Buffers.Bytes,
		LostFrames:     st.LostFrames,
		SinkErrors:     st.SinkErrors,
		InterruptWaits: st.InterruptWaits,
	})
}
