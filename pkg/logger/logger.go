package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance writing to stdout
func New() *Logger {
	return NewWithWriter(os.Stdout, os.Getenv("LOG_LEVEL"))
}

// NewWithWriter creates a logger writing to w at the given level name
func NewWithWriter(w io.Writer, levelName string) *Logger {
	level := getLogLevel(levelName)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Text output is easier to read locally, JSON is for log shipping
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("request_id", requestID)),
	}
}

// WithDevice adds the visitor device ID to logger context
func (l *Logger) WithDevice(deviceID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("device_id", deviceID)),
	}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.String("user_agent", c.Request.UserAgent()),
		slog.Int("size", c.Writer.Size()),
	)
}

// LogHTTPError logs an HTTP error
func (l *Logger) LogHTTPError(c *gin.Context, err error, statusCode int) {
	l.Logger.ErrorContext(c.Request.Context(),
		"HTTP Error",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", statusCode),
		slog.String("error", err.Error()),
		slog.String("ip", c.ClientIP()),
	)
}

// Business logic logging methods

// LogBookingCreated logs when a paid booking enters the queue
func (l *Logger) LogBookingCreated(ctx context.Context, bookingID, templeID, slotTime string, amount int) {
	l.Logger.InfoContext(ctx,
		"Booking Created",
		slog.String("booking_id", bookingID),
		slog.String("temple_id", templeID),
		slog.String("slot_time", slotTime),
		slog.Int("amount", amount),
	)
}

// LogBookingRescheduled logs a slot change
func (l *Logger) LogBookingRescheduled(ctx context.Context, oldBookingID, newBookingID, newSlot string) {
	l.Logger.InfoContext(ctx,
		"Booking Rescheduled",
		slog.String("old_booking_id", oldBookingID),
		slog.String("booking_id", newBookingID),
		slog.String("slot_time", newSlot),
	)
}

// LogBookingLeft logs when a visitor leaves the queue
func (l *Logger) LogBookingLeft(ctx context.Context, bookingID, reason string, refund int, refundTier string) {
	l.Logger.InfoContext(ctx,
		"Booking Left",
		slog.String("booking_id", bookingID),
		slog.String("reason", reason),
		slog.Int("refund", refund),
		slog.String("refund_tier", refundTier),
	)
}

// LogPaymentDeclined logs a simulated payment failure
func (l *Logger) LogPaymentDeclined(ctx context.Context, templeID, tierID string, amount int) {
	l.Logger.WarnContext(ctx,
		"Payment Declined",
		slog.String("temple_id", templeID),
		slog.String("tier", tierID),
		slog.Int("amount", amount),
	)
}

// LogPassUsed logs when a pass is consumed
func (l *Logger) LogPassUsed(ctx context.Context, bookingID, source string) {
	l.Logger.InfoContext(ctx,
		"Pass Used",
		slog.String("booking_id", bookingID),
		slog.String("source", source),
	)
}

// LogSessionExpired logs a booking cleared because its pass was already used
func (l *Logger) LogSessionExpired(ctx context.Context, bookingID, templeID string) {
	l.Logger.WarnContext(ctx,
		"Session Expired",
		slog.String("booking_id", bookingID),
		slog.String("temple_id", templeID),
	)
}

// Security logging methods

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// Helper methods for common patterns

// InfoWithContext logs an info message with context
func (l *Logger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.InfoContext(ctx, msg, args...)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2+2)
	args = append(args, slog.String("error", err.Error()))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.ErrorContext(ctx, msg, args...)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}

// Discard returns a logger that drops everything, for tests
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
