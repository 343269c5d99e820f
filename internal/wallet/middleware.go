package wallet

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HeaderAddress carries the caller's wallet address on every mutating call.
const HeaderAddress = "X-Wallet-Address"

const contextKey = "wallet.address"

// CallerMiddleware extracts the wallet address header and stashes it in the
// gin context. Mutating endpoints under /api/ require it; reads and infra
// endpoints stay open.
func CallerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := Normalize(c.GetHeader(HeaderAddress))
		if addr != "" {
			c.Set(contextKey, addr)
		}

		path := c.Request.URL.Path
		if path == "/healthz" || path == "/readyz" || path == "/docs" || strings.HasPrefix(path, "/swagger") {
			c.Next()
			return
		}
		method := c.Request.Method
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			c.Next()
			return
		}
		if strings.HasPrefix(path, "/api/") && addr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderAddress + " header"})
			return
		}
		c.Next()
	}
}

// Caller returns the wallet address set by CallerMiddleware, or "".
func Caller(c *gin.Context) string {
	if v, ok := c.Get(contextKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Normalize lowercases and trims an address so equality checks are stable
// across handlers and storage.
func Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// WriteAuditMiddleware logs every mutating API call with its caller, status
// and duration.
func WriteAuditMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		method := strings.ToUpper(c.Request.Method)
		if !strings.HasPrefix(path, "/api/") {
			return
		}
		// Only log write-ish methods by default.
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return
		}

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("caller", Caller(c)),
		}
		switch {
		case status >= 500:
			logger.Error("api write", fields...)
		case status >= 400:
			logger.Warn("api write", fields...)
		default:
			logger.Info("api write", fields...)
		}
	}
}
