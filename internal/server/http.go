package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/silencesense/internal/analyzer"
	"github.com/skypro1111/silencesense/internal/audio"
	"github.com/skypro1111/silencesense/internal/config"
	"github.com/skypro1111/silencesense/internal/metrics"
	"github.com/skypro1111/silencesense/internal/store"
	"github.com/skypro1111/silencesense/internal/vad"
)

const (
	serviceName    = "silencesense"
	serviceVersion = "1.0.0"
)

// HTTPServer serves the upload API and the monitoring endpoints
type HTTPServer struct {
	server   *http.Server
	engine   *gin.Engine
	logger   *slog.Logger
	config   *config.Config
	analyzer *analyzer.Analyzer
	store    store.Store
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	startTime time.Time
}

// Dependencies are the collaborators of the HTTP server. A nil Gatherer
// serves the default Prometheus registry.
type Dependencies struct {
	Logger   *slog.Logger
	Analyzer *analyzer.Analyzer
	Store    store.Store
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg *config.Config, deps Dependencies) *HTTPServer {
	h := &HTTPServer{
		logger:    deps.Logger,
		config:    cfg,
		analyzer:  deps.Analyzer,
		store:     deps.Store,
		metrics:   deps.Metrics,
		gatherer:  deps.Gatherer,
		startTime: time.Now(),
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.gatherer == nil {
		h.gatherer = prometheus.DefaultGatherer
	}

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	h.engine = gin.New()
	h.engine.Use(gin.Recovery())
	h.engine.Use(h.accessLog())
	h.engine.Use(h.withMetrics())
	h.engine.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.HTTP.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	h.engine.MaxMultipartMemory = 8 << 20

	h.setupRoutes()

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port),
		Handler:      h.engine,
		ReadTimeout:  cfg.HTTP.GetReadTimeout(),
		WriteTimeout: cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes() {
	h.engine.POST("/upload", h.handleUpload)

	h.engine.GET("/analyses", h.handleAnalyses)
	h.engine.GET("/analyses/:id", h.handleAnalysisDetail)

	h.engine.GET("/health", h.handleHealth)
	h.engine.GET("/config", h.handleConfig)
	h.engine.GET("/stats", h.handleStats)
	h.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	h.engine.GET("/", h.handleRoot)
}

// Handler returns the HTTP handler serving all routes.
func (h *HTTPServer) Handler() http.Handler {
	return h.engine
}

// accessLog logs every request once it completes.
func (h *HTTPServer) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		h.logger.Info("HTTP request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// withMetrics records request counts, durations and errors per route
func (h *HTTPServer) withMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.metrics == nil {
			c.Next()
			return
		}

		startTime := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()

		h.metrics.RecordHTTPRequest(c.Request.Method, endpoint, strconv.Itoa(status), time.Since(startTime).Seconds())

		if status >= 400 {
			errorType := "client_error"
			if status >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(c.Request.Method, endpoint, errorType)
		}
	}
}

// Start starts the HTTP server. Bind errors are returned; serve errors after
// that are logged.
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.server.Addr, err)
	}

	h.logger.Info("Starting HTTP API server",
		slog.String("address", ln.Addr().String()),
	)

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func errorJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// handleUpload implements POST /upload
func (h *HTTPServer) handleUpload(c *gin.Context) {
	maxBytes := h.config.HTTP.GetMaxUploadBytes()
	if c.Request.ContentLength > maxBytes {
		errorJSON(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d MB", h.config.HTTP.MaxUploadMB))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			errorJSON(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d MB", h.config.HTTP.MaxUploadMB))
		case errors.Is(err, http.ErrMissingFile) && h.hasEmptyFilePart(c):
			// A part named "file" without a filename is parsed as a plain form value.
			errorJSON(c, http.StatusBadRequest, "No selected file")
		default:
			errorJSON(c, http.StatusBadRequest, "No file part")
		}
		return
	}
	if fileHeader.Filename == "" {
		errorJSON(c, http.StatusBadRequest, "No selected file")
		return
	}

	if _, err := audio.DetectFormat(fileHeader.Filename); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid file format")
		return
	}

	params, err := h.parseParams(c)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "Failed to read upload")
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.config.Analysis.GetTimeoutDuration())
	defer cancel()

	result, err := h.analyzer.AnalyzeUpload(ctx, fileHeader.Filename, file, params)
	if err != nil {
		status, message := errorStatus(err)
		errorJSON(c, status, message)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *HTTPServer) hasEmptyFilePart(c *gin.Context) bool {
	form := c.Request.MultipartForm
	if form == nil {
		return false
	}
	_, ok := form.Value["file"]
	return ok
}

// parseParams overlays optional form fields on the analyzer defaults.
func (h *HTTPServer) parseParams(c *gin.Context) (analyzer.Params, error) {
	params := h.analyzer.DefaultParams()

	fields := []struct {
		name string
		dst  *int
	}{
		{"frame_duration_ms", &params.FrameDurationMs},
		{"padding_duration_ms", &params.PaddingDurationMs},
		{"mode", &params.Mode},
	}
	for _, f := range fields {
		raw, ok := c.GetPostForm(f.name)
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return params, fmt.Errorf("invalid %s: %q is not an integer", f.name, raw)
		}
		*f.dst = v
	}

	if err := h.analyzer.ValidateParams(params); err != nil {
		return params, fmt.Errorf("invalid parameters: %w", err)
	}
	return params, nil
}

// errorStatus maps an analysis error to a response status and message.
func errorStatus(err error) (int, string) {
	var decodeErr *audio.DecodeError
	switch {
	case errors.Is(err, audio.ErrUnsupportedFormat):
		return http.StatusBadRequest, "Invalid file format"
	case errors.Is(err, vad.ErrConfiguration):
		return http.StatusBadRequest, "invalid parameters: " + err.Error()
	case errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity, "Could not decode audio: " + decodeErr.Err.Error()
	case errors.Is(err, analyzer.ErrBusy):
		return http.StatusServiceUnavailable, "Server busy, try again later"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Analysis timed out"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// handleAnalyses implements GET /analyses
func (h *HTTPServer) handleAnalyses(c *gin.Context) {
	analyses := []*analyzer.Analysis{}
	if h.store != nil {
		items, err := h.store.List(c.Request.Context())
		if err != nil {
			h.logger.Error("Failed to list analyses", slog.String("error", err.Error()))
			errorJSON(c, http.StatusInternalServerError, "Failed to list analyses")
			return
		}
		analyses = items
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     len(analyses),
		"timestamp": time.Now().UTC(),
		"analyses":  analyses,
	})
}

// handleAnalysisDetail implements GET /analyses/:id
func (h *HTTPServer) handleAnalysisDetail(c *gin.Context) {
	if h.store == nil {
		errorJSON(c, http.StatusNotFound, "Analysis not found")
		return
	}

	result, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "Analysis not found")
			return
		}
		h.logger.Error("Failed to load analysis",
			slog.String("id", c.Param("id")),
			slog.String("error", err.Error()),
		)
		errorJSON(c, http.StatusInternalServerError, "Failed to load analysis")
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleHealth implements GET /health
func (h *HTTPServer) handleHealth(c *gin.Context) {
	status := "healthy"
	storeStatus := gin.H{"status": "disabled"}
	if h.store != nil {
		stats, err := h.store.Stats(c.Request.Context())
		if err != nil {
			status = "degraded"
			storeStatus = gin.H{"status": "error", "error": err.Error()}
		} else {
			storeStatus = gin.H{"status": "running", "backend": stats.Backend, "count": stats.Count}
		}
	}

	analyzerStats := h.analyzer.GetStats()

	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": gin.H{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": gin.H{
			"analyzer": gin.H{
				"status":          "running",
				"active_analyses": analyzerStats.ActiveAnalyses,
				"max_concurrent":  analyzerStats.MaxConcurrent,
			},
			"store": storeStatus,
		},
	})
}

// handleConfig implements GET /config
func (h *HTTPServer) handleConfig(c *gin.Context) {
	cfg := h.config

	// Redis credentials are omitted.
	c.JSON(http.StatusOK, gin.H{
		"http": gin.H{
			"address":         cfg.HTTP.Address,
			"port":            cfg.HTTP.Port,
			"max_upload_mb":   cfg.HTTP.MaxUploadMB,
			"read_timeout":    cfg.HTTP.ReadTimeout,
			"write_timeout":   cfg.HTTP.WriteTimeout,
			"allowed_origins": cfg.HTTP.AllowedOrigins,
		},
		"audio": gin.H{
			"sample_rate": cfg.Audio.SampleRate,
		},
		"vad": gin.H{
			"frame_duration_ms":   cfg.VAD.FrameDurationMs,
			"padding_duration_ms": cfg.VAD.PaddingDurationMs,
			"mode":                cfg.VAD.Mode,
			"classifier":          cfg.VAD.Classifier,
		},
		"analysis": gin.H{
			"max_concurrent": cfg.Analysis.MaxConcurrent,
			"timeout":        cfg.Analysis.Timeout,
		},
		"storage": gin.H{
			"backend":    cfg.Storage.Backend,
			"ttl":        cfg.Storage.TTL,
			"redis_addr": cfg.Storage.Redis.Addr,
			"redis_db":   cfg.Storage.Redis.DB,
		},
		"logging": gin.H{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
			"output": cfg.Logging.Output,
		},
	})
}

// handleStats implements GET /stats
func (h *HTTPServer) handleStats(c *gin.Context) {
	stats := gin.H{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"analyzer":  h.analyzer.GetStats(),
	}

	if h.store != nil {
		storeStats, err := h.store.Stats(c.Request.Context())
		if err != nil {
			h.logger.Warn("Failed to read store statistics", slog.String("error", err.Error()))
		} else {
			stats["store"] = storeStats
		}
	}

	c.JSON(http.StatusOK, stats)
}

// handleRoot implements GET / with API documentation
func (h *HTTPServer) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "Silence Detection Service",
		"version": serviceVersion,
		"endpoints": gin.H{
			"GET /":              "API documentation",
			"POST /upload":       "Analyze an MP3 or WAV file (multipart field 'file')",
			"GET /analyses":      "List stored analyses",
			"GET /analyses/{id}": "Get a stored analysis",
			"GET /health":        "Service health check",
			"GET /config":        "Get service configuration",
			"GET /stats":         "Get service statistics",
			"GET /metrics":       "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}
