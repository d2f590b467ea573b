package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/MegaGrindStone/meet-assistant/internal/chat"
)

// HandleSend starts a turn with the "message" form field. The turn is accepted or refused before the
// request returns; the reply itself is delivered through the feed.
func (p *Panel) HandleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		p.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := strings.TrimSpace(r.FormValue("message"))
	if msg == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	done, err := p.conv.Submit(p.ctx, msg)
	switch {
	case errors.Is(err, chat.ErrTurnInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, chat.ErrEmptyInput):
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	case err != nil:
		p.logger.Error("Failed to start turn", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	go func() {
		if err := <-done; err != nil {
			p.logger.Error("Turn failed", slog.String(errLoggerKey, err.Error()))
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

// HandleInput stores the draft of the message box.
func (p *Panel) HandleInput(w http.ResponseWriter, r *http.Request) {
	if !p.allowPost(w, r) {
		return
	}
	p.conv.SetInput(r.FormValue("message"))
	w.WriteHeader(http.StatusNoContent)
}

// HandleVision switches frame capture with the boolean "on" form field.
func (p *Panel) HandleVision(w http.ResponseWriter, r *http.Request) {
	on, ok := p.boolField(w, r)
	if !ok {
		return
	}
	p.conv.SetVision(on)
	w.WriteHeader(http.StatusNoContent)
}

// HandleAutoSpeak switches reading replies aloud with the boolean "on" form field.
func (p *Panel) HandleAutoSpeak(w http.ResponseWriter, r *http.Request) {
	on, ok := p.boolField(w, r)
	if !ok {
		return
	}
	p.conv.SetAutoSpeak(on)
	w.WriteHeader(http.StatusNoContent)
}

// HandleListen starts or ends a voice session.
func (p *Panel) HandleListen(w http.ResponseWriter, r *http.Request) {
	if !p.allowPost(w, r) {
		return
	}
	if err := p.conv.ToggleListening(p.ctx); err != nil {
		p.logger.Warn("Failed to toggle listening", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStopSpeaking interrupts the reply being read aloud.
func (p *Panel) HandleStopSpeaking(w http.ResponseWriter, r *http.Request) {
	if !p.allowPost(w, r) {
		return
	}
	p.conv.StopSpeaking()
	w.WriteHeader(http.StatusNoContent)
}

// HandleQuickAction applies the quick action named by the "action" form field.
func (p *Panel) HandleQuickAction(w http.ResponseWriter, r *http.Request) {
	if !p.allowPost(w, r) {
		return
	}
	if err := p.conv.Apply(chat.QuickAction(r.FormValue("action"))); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSSE streams the panel feed.
func (p *Panel) HandleSSE(w http.ResponseWriter, r *http.Request) {
	p.sseSrv.ServeHTTP(w, r)
}

func (p *Panel) allowPost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		p.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (p *Panel) boolField(w http.ResponseWriter, r *http.Request) (bool, bool) {
	if !p.allowPost(w, r) {
		return false, false
	}
	on, err := strconv.ParseBool(r.FormValue("on"))
	if err != nil {
		http.Error(w, "Field on must be a boolean", http.StatusBadRequest)
		return false, false
	}
	return on, true
}
