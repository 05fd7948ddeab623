package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/system-monitor-pro/pkg/agent"
	"github.com/system-monitor-pro/pkg/config"
	"github.com/system-monitor-pro/pkg/version"
)

// StatusProvider 状态来源（由 agent.Agent 实现）
type StatusProvider interface {
	State() agent.State
	Snapshot() *agent.Snapshot
}

// Server HTTP状态服务，封装核心依赖和配置
type Server struct {
	cfg      config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
	registry *prometheus.Registry
	status   StatusProvider
	mux      *customMux
}

// statusWriter 包装ResponseWriter，捕获状态码
type statusWriter struct {
	http.ResponseWriter
	status int
}

// customMux 自定义Mux，兼容原生用法并记录路由
type customMux struct {
	http.ServeMux
	routes []string
	mu     sync.Mutex
}

// Handle 重写Handle，注册路由时记录路径
func (m *customMux) Handle(pattern string, handler http.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, route := range m.routes {
		if route == pattern {
			m.ServeMux.Handle(pattern, handler)
			return
		}
	}
	m.routes = append(m.routes, pattern)
	m.ServeMux.Handle(pattern, handler)
}

// HandleFunc 重写HandleFunc
func (m *customMux) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	m.Handle(pattern, http.HandlerFunc(handler))
}

// Routes 已注册的路由
func (m *customMux) Routes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.routes...)
}

// NewHTTPServer 创建HTTP服务实例
func NewHTTPServer(cfg config.ServerConfig, logger *zap.Logger, registry *prometheus.Registry, status StatusProvider) *Server {
	mux := &customMux{}
	srv := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		status:   status,
		mux:      mux,
	}
	srv.registerEndpoints()

	srv.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.logMiddleware(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return srv
}

// Handler 带日志中间件的根 handler（测试用 httptest 直接挂载）
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// logMiddleware 统一日志记录
func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		s.logger.Debug(
			"HTTP request",
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type healthResponse struct {
	Status  string      `json:"status"`
	State   agent.State `json:"state"`
	Ticks   uint64      `json:"ticks"`
	Version string      `json:"version"`
}

// registerEndpoints 注册核心路由
func (s *Server) registerEndpoints() {
	// 根路径列出可用端点
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"product": version.Product,
			"version": version.Version,
			"endpoints": map[string]string{
				"/health":      "health check",
				"/api/health":  "health check",
				"/api/metrics": "latest readings and active alerts",
				"/metrics":     "prometheus self-metrics",
			},
		})
	})

	health := func(w http.ResponseWriter, r *http.Request) {
		snap := s.status.Snapshot()
		state := s.status.State()
		resp := healthResponse{Status: "ok", State: state, Ticks: snap.Ticks, Version: version.Version}
		code := http.StatusOK
		// 启动中仍视为健康，只有退出流程中返回 503
		if state == agent.StateDraining || state == agent.StateStopped {
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
	s.mux.HandleFunc("/health", health)
	s.mux.HandleFunc("/api/health", health)

	s.mux.HandleFunc("/api/metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.status.Snapshot())
	})

	s.mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog: zap.NewStdLog(s.logger),
	}))
}

// WriteHeader 捕获状态码
func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Start 监听地址并在后台提供服务（非阻塞）；端口占用等错误同步返回
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.logger.Info(
		"starting HTTP server",
		zap.String("listen_addr", ln.Addr().String()),
		zap.Strings("handle_funcs", s.mux.Routes()),
	)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown 优雅关闭HTTP服务
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded")
			return nil
		}
		s.logger.Error("HTTP server shutdown failed", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP server shutdown successfully")
	return nil
}
