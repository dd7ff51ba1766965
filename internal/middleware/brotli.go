package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// brotliMinLength is the smallest body worth compressing. Snapshots and
// workspace payloads below this go out as-is.
const brotliMinLength = 1024

// brWriter buffers the response until it knows whether compression pays
// off. Small bodies are written through untouched; once the buffer passes
// the threshold everything is routed through the brotli encoder.
type brWriter struct {
	gin.ResponseWriter
	enc       *brotli.Writer
	pending   []byte
	encoding  bool
	threshold int
}

func (w *brWriter) Write(p []byte) (int, error) {
	if w.encoding {
		return w.enc.Write(p)
	}

	w.pending = append(w.pending, p...)
	if len(w.pending) < w.threshold {
		return len(p), nil
	}

	w.encoding = true
	w.ResponseWriter.Header().Set("Content-Encoding", "br")
	w.ResponseWriter.Header().Del("Content-Length")
	if _, err := w.enc.Write(w.pending); err != nil {
		return 0, err
	}
	w.pending = nil
	return len(p), nil
}

func (w *brWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// Flush satisfies streaming responses. Anything still buffered goes out
// uncompressed; buffering would stall the stream.
func (w *brWriter) Flush() {
	if len(w.pending) > 0 {
		_, _ = w.ResponseWriter.Write(w.pending)
		w.pending = nil
	}
	w.ResponseWriter.Flush()
}

func (w *brWriter) finish(c *gin.Context) {
	if w.encoding {
		if err := w.enc.Close(); err != nil {
			_ = c.Error(err)
		}
		return
	}
	if len(w.pending) > 0 {
		if _, err := w.ResponseWriter.Write(w.pending); err != nil {
			_ = c.Error(err)
		}
	}
}

// Brotli compresses response bodies for clients that advertise br
// support. WebSocket upgrades and event streams pass through untouched.
func Brotli() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isStreamingRequest(c) || !clientAcceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")

		w := &brWriter{
			ResponseWriter: c.Writer,
			enc:            brotli.NewWriterLevel(c.Writer, brotli.DefaultCompression),
			threshold:      brotliMinLength,
		}
		c.Writer = w
		defer w.finish(c)

		c.Next()
	}
}

// isStreamingRequest spots protocols that a buffering writer would break:
// the WebSocket handshake must see the raw connection, and SSE needs
// every write on the wire immediately.
func isStreamingRequest(c *gin.Context) bool {
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

func clientAcceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.TrimSpace(strings.ToLower(enc)) == "br" {
			return true
		}
	}
	return false
}
