package handlers

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/wellingtonag/newsletter-node/internal/render"
)

// Values for the KIND placeholder of message.html; they select the
// page styling.
const (
	kindSuccess = "success"
	kindInfo    = "info"
	kindError   = "error"
)

func (h *Handler) brand() render.Vars {
	return render.Vars{
		render.CompanyName: h.cfg.CompanyName,
		render.LogoURL:     h.cfg.LogoURL,
	}
}

func (h *Handler) message(w http.ResponseWriter, status int, kind, title, msg, email string) {
	vars := h.brand()
	vars["KIND"] = kind
	vars["TITLE"] = title
	vars["MESSAGE"] = msg
	vars["EMAIL"] = email

	h.page(w, status, "message.html", vars)
}

func (h *Handler) page(w http.ResponseWriter, status int, name string, vars render.Vars) {
	body, err := h.renderer.Render(name, vars)
	if err != nil {
		h.logger.Error("failed to render page", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
