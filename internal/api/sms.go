// Package api exposes the assistant as an SMS webhook.
package api

import (
	"context"
	"encoding/xml"
	"net/http"
	"strings"
	"time"

	"sms_crm_agent/internal/logger"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// maxFormSize bounds inbound webhook bodies.
const maxFormSize = 64 << 10

// MessageHandler produces the reply for one inbound text.
type MessageHandler interface {
	HandleMessage(ctx context.Context, sender, body string) string
}

// twiml is the messaging response document the SMS gateway expects.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// Handler serves the webhook.
type Handler struct {
	messages MessageHandler
	timeout  time.Duration
}

// NewHandler creates a webhook handler. timeout bounds a single turn; zero means none.
func NewHandler(messages MessageHandler, timeout time.Duration) *Handler {
	return &Handler{messages: messages, timeout: timeout}
}

// NewRouter returns the router with middleware and routes mounted.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the webhook routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sms", h.HandleSMS)
}

// HandleSMS reads the From and Body form fields and answers with TwiML.
func (h *Handler) HandleSMS(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	sender := strings.TrimSpace(r.PostFormValue("From"))
	if sender == "" {
		http.Error(w, "missing From", http.StatusBadRequest)
		return
	}
	body := r.PostFormValue("Body")

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	reply := h.messages.HandleMessage(ctx, sender, body)
	writeTwiML(w, reply)
}

func writeTwiML(w http.ResponseWriter, reply string) {
	out, err := xml.Marshal(twiml{Message: reply})
	if err != nil {
		logger.Error().Err(err).Msg("encoding twiml failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Info().
			Str("request_id", chiMiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
