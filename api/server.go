// Package api exposes a running simulation over HTTP: JSON status and stats
// endpoints plus a websocket stream of report lines.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cryptoecon/chainsim/simulator"
)

// Server serves read-only views of one simulator.
type Server struct {
	sim      *simulator.Simulator
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a server bound to the given simulator.
func NewServer(sim *simulator.Simulator, log *zap.Logger) *Server {
	return &Server{
		sim: sim,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Router builds the route table.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/status", s.handleStatus)
	r.GET("/api/stats", s.handleStats)
	r.GET("/api/blocks", s.handleBlocks)
	r.GET("/ws", s.handleReports)
	return r
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	s.log.Info("api server listening", zap.String("addr", addr))
	return s.Router().Run(addr)
}

func (s *Server) handleStatus(c *gin.Context) {
	engine := s.sim.Engine()
	c.JSON(http.StatusOK, gin.H{
		"state":          s.sim.State().String(),
		"simulated_time": engine.SimTime(),
		"blocks":         engine.BlockCount(),
		"pending_pool":   engine.PendingCount(),
		"difficulty":     engine.Difficulty(),
		"reward":         engine.Reward(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.sim.Snapshot())
}

func (s *Server) handleBlocks(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, s.sim.Engine().RecentBlocks(limit))
}

// handleReports streams report lines over a websocket until the client
// disconnects or the subscription fails.
func (s *Server) handleReports(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	reports := make(chan string, 64)
	sub := s.sim.SubscribeReports(reports)
	defer sub.Unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case line := <-reports:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		case <-sub.Err():
			return
		case <-closed:
			return
		}
	}
}
