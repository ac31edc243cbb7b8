// Package web provides the HTTP status page and activation API.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sweeney/garage-opener/internal/door"
	"github.com/sweeney/garage-opener/internal/logger"
	"github.com/sweeney/garage-opener/internal/status"
)

// Activator is the command surface of the door controller.
type Activator interface {
	Activate(id door.ID, on bool) error
	Active(id door.ID) bool
}

// Server serves the status page and door API over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	doors      Activator
	log        *zap.SugaredLogger
}

// New creates a Server that reads state from tracker and activates doors.
func New(addr string, tracker *status.Tracker, doors Activator, log *zap.SugaredLogger) *Server {
	s := &Server{tracker: tracker, doors: doors, log: logger.OrNop(log)}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.accessLog())
	router.SetHTMLTemplate(indexTmpl)

	router.GET("/", s.handleIndex)
	router.GET("/index.html", s.handleIndex)
	router.GET("/index.json", s.handleJSON)
	router.POST("/doors/:door", s.withDoor, s.handleForm)

	api := router.Group("/api/doors/:door", s.withDoor)
	{
		api.GET("", s.handleDoorState)
		api.POST("/activate", s.handleActivate)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debugw("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

// withDoor resolves the :door parameter and stores the ID as "door".
func (s *Server) withDoor(c *gin.Context) {
	id, err := door.ParseID(c.Param("door"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"status": "ko",
			"error":  err.Error(),
		})
		return
	}
	c.Set("door", id)
	c.Next()
}

func doorID(c *gin.Context) door.ID {
	return c.MustGet("door").(door.ID)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index", newPageData(s.tracker.Snapshot()))
}

func (s *Server) handleJSON(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleDoorState(c *gin.Context) {
	id := doorID(c)
	c.JSON(http.StatusOK, gin.H{
		"door":   id.String(),
		"active": s.doors.Active(id),
	})
}

func (s *Server) handleActivate(c *gin.Context) {
	id := doorID(c)
	err := s.doors.Activate(id, true)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "ok", "door": id.String()})
	case errors.Is(err, door.ErrPulseInProgress):
		c.JSON(http.StatusConflict, gin.H{"status": "ko", "door": id.String(), "error": err.Error()})
	case errors.Is(err, door.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "ko", "door": id.String(), "error": err.Error()})
	default:
		s.log.Errorw("activate failed", "door", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "ko", "door": id.String(), "error": err.Error()})
	}
}

func (s *Server) handleForm(c *gin.Context) {
	id := doorID(c)
	if err := s.doors.Activate(id, true); err != nil && !errors.Is(err, door.ErrPulseInProgress) && !errors.Is(err, door.ErrStopped) {
		s.log.Errorw("activate failed", "door", id, "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}
