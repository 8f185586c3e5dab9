// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"greenbite/internal/apperr"
	"greenbite/internal/logging"
	"greenbite/internal/models"
	"greenbite/internal/pipeline"
)

type Config struct {
	Addr           string
	MaxUploadBytes int64
	CORSOrigins    []string
	// AccessLog enables gin's request logger.
	AccessLog bool
	Version   string
}

// Store is the read side of the demo store.
type Store interface {
	GetLeaderboard() ([]models.LeaderboardEntry, error)
	GetTrend(userID string) ([]models.TrendData, error)
	GetMeals(userID string, limit int) ([]*models.MealRecord, error)
}

type GreenBiteServer struct {
	engine     *gin.Engine
	httpServer *http.Server
	pipeline   *pipeline.Pipeline
	store      Store
	info       protocol.Implementation
	tools      map[string]toolHandler
	config     *Config
	log        *logging.Logger
}

func NewGreenBiteServer(cfg *Config, p *pipeline.Pipeline, store Store, log *logging.Logger) (*GreenBiteServer, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload size must be positive")
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &GreenBiteServer{
		pipeline: p,
		store:    store,
		info:     protocol.Implementation{Name: "greenbite", Version: version},
		config:   cfg,
		log:      log,
	}
	s.registerTools()

	engine := gin.New()
	if cfg.AccessLog {
		engine.Use(gin.Logger())
	}
	engine.Use(gin.Recovery(), s.cors())

	engine.GET("/health", s.handleHealth)
	engine.POST("/detect", s.handleDetect)
	engine.GET("/leaderboard", s.handleLeaderboard)
	engine.GET("/trend/:user_id", s.handleTrend)
	engine.GET("/meals/:user_id", s.handleMeals)
	engine.GET("/mcp", s.handleListTools)
	engine.POST("/mcp", s.handleMCP)

	s.engine = engine
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *GreenBiteServer) Handler() http.Handler { return s.engine }

func (s *GreenBiteServer) Start(ctx context.Context) error {
	s.log.Printf("starting greenbite server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *GreenBiteServer) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *GreenBiteServer) cors() gin.HandlerFunc {
	allowed := make(map[string]bool, len(s.config.CORSOrigins))
	wildcard := false
	for _, o := range s.config.CORSOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (wildcard || allowed[origin]) {
			h := c.Writer.Header()
			// Credentials are only granted to listed origins.
			if wildcard {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *GreenBiteServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *GreenBiteServer) handleDetect(c *gin.Context) {
	limit := s.config.MaxUploadBytes
	if c.Request.ContentLength > limit {
		s.uploadTooLarge(c)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.uploadTooLarge(c)
			return
		}
		s.writeError(c, apperr.Input("image field is required"))
		return
	}
	if fh.Size > limit {
		s.uploadTooLarge(c)
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.writeError(c, apperr.Inputf("invalid image file: %v", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.writeError(c, apperr.Inputf("invalid image file: %v", err))
		return
	}

	resp, err := s.pipeline.Estimate(c.Request.Context(), data, strings.TrimSpace(c.PostForm("user_id")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *GreenBiteServer) uploadTooLarge(c *gin.Context) {
	s.writeError(c, apperr.Inputf("image exceeds the %s upload limit", humanize.IBytes(uint64(s.config.MaxUploadBytes))))
}

func (s *GreenBiteServer) handleLeaderboard(c *gin.Context) {
	board, err := s.store.GetLeaderboard()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}

func (s *GreenBiteServer) handleTrend(c *gin.Context) {
	trend, err := s.store.GetTrend(c.Param("user_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trend)
}

func (s *GreenBiteServer) handleMeals(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(c, apperr.Inputf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	meals, err := s.store.GetMeals(c.Param("user_id"), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, meals)
}

func (s *GreenBiteServer) handleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"server": s.info, "tools": toolList})
}

func (s *GreenBiteServer) handleMCP(c *gin.Context) {
	var request protocol.CallToolRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": fmt.Sprintf("Invalid JSON: %v", err)})
		return
	}

	handler, ok := s.tools[request.Name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("Unknown tool: %s", request.Name)})
		return
	}

	result, err := handler(c.Request.Context(), &request)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeError maps pipeline errors to status codes: input errors are 400,
// classifier failures 502, anything else 500.
func (s *GreenBiteServer) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	detail := "internal server error"
	switch {
	case apperr.IsInput(err):
		status, detail = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperr.ErrClassification):
		status, detail = http.StatusBadGateway, "food detection is unavailable"
	}
	if status != http.StatusBadRequest {
		s.log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"detail": detail})
}

func (s *GreenBiteServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
