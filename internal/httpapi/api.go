package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

const shutdownTimeout = 10 * time.Second

// API serves one redaction session over HTTP
type API struct {
	Echo        *echo.Echo
	session     *redaction.Session
	maxFileSize int64
	logger      *logrus.Entry
}

// New builds the echo instance and registers every route
func New(session *redaction.Session, maxFileSize int64, logger *logrus.Logger) *API {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &API{
		Echo:        e,
		session:     session,
		maxFileSize: maxFileSize,
		logger:      logger.WithField("component", "http"),
	}

	e.HTTPErrorHandler = a.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			a.logger.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			}).Debug("Request handled")
			return nil
		},
	}))

	// Document
	e.POST("/api/document", a.UploadDocument)
	e.GET("/api/pages/:n", a.GetPage)
	e.GET("/api/status", a.GetStatus)

	// Settings
	e.GET("/api/settings", a.GetSettings)
	e.PUT("/api/settings", a.PutSettings)

	// Detection
	e.POST("/api/run", a.StartRun)
	e.POST("/api/run/abort", a.AbortRun)

	// Marks
	e.GET("/api/marks", a.ListMarks)
	e.DELETE("/api/marks/:id", a.DeleteMark)
	e.DELETE("/api/marks", a.ClearMarks)

	// Export
	e.GET("/api/export", a.Export)

	e.GET("/api/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	return a
}

// Mount attaches an extra handler, e.g. the streamable MCP endpoint
func (a *API) Mount(path string, h http.Handler) {
	a.Echo.Any(path, echo.WrapHandler(h))
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully
func (a *API) Serve(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("address", addr).Info("Starting HTTP server")
		errCh <- a.Echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down HTTP server")
		return a.Echo.Shutdown(shutdownCtx)
	}
}

// ServeHTTP lets the API be used directly as an http.Handler
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Echo.ServeHTTP(w, r)
}

// errorResponse is the JSON body of every failed request
type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable"`
}

// statusFor maps redaction error kinds onto HTTP status codes
func statusFor(err error) int {
	if errors.Is(err, redaction.ErrNoDocument) {
		return http.StatusNotFound
	}
	switch redaction.KindOf(err) {
	case redaction.KindLoad:
		return http.StatusUnprocessableEntity
	case redaction.KindDetectionConfig:
		return http.StatusPreconditionFailed
	case redaction.KindRateLimit:
		return http.StatusTooManyRequests
	case redaction.KindBusy, redaction.KindAborted:
		return http.StatusConflict
	case redaction.KindMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) fail(c echo.Context, err error) error {
	code := statusFor(err)
	resp := errorResponse{Error: err.Error(), Retryable: redaction.IsRetryable(err)}
	if kind := redaction.KindOf(err); kind != redaction.KindUnknown {
		resp.Kind = kind.String()
	}
	if code >= http.StatusInternalServerError {
		a.logger.WithError(err).WithField("uri", c.Request().RequestURI).Error("Request failed")
	}
	return c.JSON(code, resp)
}

func (a *API) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	// Only the router's own miss is rewritten; handlers' 404s name what is missing
	if he == echo.ErrNotFound || (he != nil && he.Code == http.StatusNotFound && msg == http.StatusText(http.StatusNotFound)) {
		msg = "the requested API endpoint does not exist"
	}
	_ = c.JSON(code, errorResponse{Error: msg})
}
