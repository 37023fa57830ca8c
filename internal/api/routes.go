package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamtap-project/streamtap/internal/connector"
	"github.com/streamtap-project/streamtap/internal/live"
	"github.com/streamtap-project/streamtap/internal/signer"
	"github.com/streamtap-project/streamtap/internal/util"
)

type connectRequest struct {
	RoomID string `json:"room_id"`
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.conn.State())
}

func (s *Server) handleStats(c *gin.Context) {
	resp := gin.H{"signals": s.conn.Stats()}
	if s.store != nil {
		counts, err := s.store.CountByType()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp["recorded"] = counts
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRecentEvents(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event recording is disabled"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	records, err := s.store.Recent(c.Query("type"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": records,
		"total":  len(records),
	})
}

func (s *Server) handleSystem(c *gin.Context) {
	c.JSON(http.StatusOK, util.GetSystemInfo(s.dataPath))
}

func (s *Server) handleConnect(c *gin.Context) {
	var req connectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	state, err := s.conn.Connect(c.Request.Context(), req.RoomID)
	if err != nil {
		c.JSON(connectStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) handleDisconnect(c *gin.Context) {
	s.conn.Disconnect()
	c.JSON(http.StatusOK, s.conn.State())
}

// connectStatus maps a bring-up failure to an HTTP status.
func connectStatus(err error) int {
	var offline *connector.OfflineError
	var limited *signer.RateLimitedError
	switch {
	case errors.Is(err, live.ErrAlreadyConnected), errors.Is(err, live.ErrAlreadyConnecting),
		errors.Is(err, signer.ErrConnectInProgress):
		return http.StatusConflict
	case errors.Is(err, live.ErrInvalidIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, live.ErrStreamEnded), errors.As(err, &offline):
		return http.StatusNotFound
	case errors.As(err, &limited):
		return http.StatusTooManyRequests
	case errors.Is(err, live.ErrHandshakeTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
