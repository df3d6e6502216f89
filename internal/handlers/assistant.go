package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/jason-s-yu/promptbattle/internal/assistant"
	"github.com/sirupsen/logrus"
)

type chatRequest struct {
	Messages []assistant.Message `json:"messages"`
}

type researchRequest struct {
	Query string `json:"query"`
}

type speechRequest struct {
	Text string `json:"text"`
}

// streamText prepares w for a chunked plain-text response and returns its flush func.
func streamText(w http.ResponseWriter) func() {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	rc := http.NewResponseController(w)
	return func() { _ = rc.Flush() }
}

// lazyWriter sends the streaming headers on the first write, so a request that fails
// before any output can still answer with a JSON error.
type lazyWriter struct {
	w       http.ResponseWriter
	started bool
	flush   func()
}

func (l *lazyWriter) Write(p []byte) (int, error) {
	if !l.started {
		l.flush = streamText(l.w)
		l.w.WriteHeader(http.StatusOK)
		l.started = true
	}
	return l.w.Write(p)
}

func (l *lazyWriter) Flush() {
	if l.flush != nil {
		l.flush()
	}
}

func assistantError(logger *logrus.Logger, w http.ResponseWriter, lw *lazyWriter, err error) {
	if lw != nil && lw.started {
		// headers are gone; all we can do is cut the stream short
		logger.WithError(err).Warn("assistant stream aborted")
		return
	}
	if errors.Is(err, assistant.ErrEmptyInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.WithError(err).Error("assistant request failed")
	writeError(w, http.StatusBadGateway, "assistant unavailable")
}

// ChatHandler streams the assistant's reply to a conversation as plain text.
func ChatHandler(logger *logrus.Logger, a Assistant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad chat request payload")
			return
		}
		lw := &lazyWriter{w: w}
		if err := a.StreamChat(r.Context(), req.Messages, lw, lw.Flush); err != nil {
			assistantError(logger, w, lw, err)
		}
	}
}

// ResearchHandler streams a plain-text briefing for a query.
func ResearchHandler(logger *logrus.Logger, a Assistant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req researchRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad research request payload")
			return
		}
		lw := &lazyWriter{w: w}
		if err := a.StreamResearch(r.Context(), req.Query, lw, lw.Flush); err != nil {
			assistantError(logger, w, lw, err)
		}
	}
}

// SpeechHandler returns the text read aloud as audio/mpeg.
func SpeechHandler(logger *logrus.Logger, a Assistant) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req speechRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad tts request payload")
			return
		}
		audio, err := a.Speech(r.Context(), req.Text)
		if err != nil {
			assistantError(logger, w, nil, err)
			return
		}
		defer audio.Close()

		w.Header().Set("Content-Type", "audio/mpeg")
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, audio); err != nil {
			logger.WithError(err).Warn("tts stream aborted")
		}
	}
}
