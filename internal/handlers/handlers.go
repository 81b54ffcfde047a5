package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wellingtonag/newsletter-node/internal/database"
	"github.com/wellingtonag/newsletter-node/internal/metrics"
	"github.com/wellingtonag/newsletter-node/internal/models"
	"github.com/wellingtonag/newsletter-node/internal/ratelimit"
	"github.com/wellingtonag/newsletter-node/internal/render"
)

type Store interface {
	Exists(ctx context.Context, email string) (bool, error)
	Insert(ctx context.Context, email string) (string, error)
	FindByToken(ctx context.Context, token string) (models.Subscriber, error)
	DeleteByToken(ctx context.Context, token string) (bool, error)
	Ping(ctx context.Context) error
}

type Mailer interface {
	SendWelcome(ctx context.Context, to, unsubscribeURL string) error
	SendFarewell(ctx context.Context, to string) error
}

type Config struct {
	// BaseURL is the public origin used in unsubscribe links. When
	// empty the request's scheme and host are used.
	BaseURL     string
	StaticDir   string
	CompanyName string
	LogoURL     string
	TrustProxy  bool
}

type Deps struct {
	Store    Store
	Mailer   Mailer
	Renderer render.Renderer
	Limiter  ratelimit.Limiter
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type Handler struct {
	store    Store
	mailer   Mailer
	renderer render.Renderer
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	cfg      Config
	logger   *zap.Logger
}

func New(deps Deps, cfg Config) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "static"
	}

	return &Handler{
		store:    deps.Store,
		mailer:   deps.Mailer,
		renderer: deps.Renderer,
		limiter:  deps.Limiter,
		metrics:  deps.Metrics,
		cfg:      cfg,
		logger:   deps.Logger,
	}
}

// Routes returns the application handler with request logging applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(h.cfg.StaticDir))))

	subscribe := ratelimit.Middleware(ratelimit.Options{
		Limiter:    h.limiter,
		TrustProxy: h.cfg.TrustProxy,
		Logger:     h.logger,
		OnLimited:  h.rateLimited,
	})(http.HandlerFunc(h.subscribeHandler))

	mux.HandleFunc("GET /{$}", h.indexHandler)
	mux.Handle("POST /subscribe", subscribe)
	mux.HandleFunc("GET /unsubscribe", h.unsubscribeHandler)
	mux.HandleFunc("GET /healthz", h.healthHandler)
	mux.Handle("GET /metrics", h.metrics.Handler())

	return h.loggingMiddleware(mux)
}

func (h *Handler) indexHandler(w http.ResponseWriter, r *http.Request) {
	h.page(w, http.StatusOK, "index.html", h.brand())
}

func (h *Handler) subscribeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.metrics.Subscriptions.WithLabelValues(metrics.ResultInvalid).Inc()
		h.message(w, http.StatusBadRequest, kindError, "Requisição inválida", "Não foi possível ler o formulário.", "")
		return
	}

	email, err := normalizeEmail(r.PostFormValue("email"))
	if err != nil {
		h.metrics.Subscriptions.WithLabelValues(metrics.ResultInvalid).Inc()
		h.message(w, http.StatusBadRequest, kindError, "E-mail inválido",
			"Informe um endereço de e-mail válido, como nome@exemplo.com.", "")
		return
	}

	exists, err := h.store.Exists(ctx, email)
	if err != nil {
		h.subscribeFailed(w, "failed to check subscriber", email, err)
		return
	}
	if exists {
		h.alreadySubscribed(w, email)
		return
	}

	token, err := h.store.Insert(ctx, email)
	if errors.Is(err, database.ErrEmailExists) {
		h.alreadySubscribed(w, email)
		return
	}
	if err != nil {
		h.subscribeFailed(w, "failed to add subscriber", email, err)
		return
	}

	if err := h.mailer.SendWelcome(ctx, email, h.unsubscribeURL(r, token)); err != nil {
		h.metrics.EmailsSent.WithLabelValues("welcome", metrics.ResultFailed).Inc()
		h.removeUnwelcomed(ctx, email, token)
		h.subscribeFailed(w, "failed to send welcome email", email, err)
		return
	}
	h.metrics.EmailsSent.WithLabelValues("welcome", metrics.ResultSent).Inc()
	h.metrics.Subscriptions.WithLabelValues(metrics.ResultCreated).Inc()

	h.logger.Info("subscriber added", zap.String("email", email))

	h.message(w, http.StatusOK, kindSuccess, "Inscrição realizada com sucesso!",
		"Verifique seu e-mail. Enviamos uma mensagem de boas-vindas para:", email)
}

// removeUnwelcomed drops a row whose welcome mail could not be sent so
// the address can subscribe again. The request may already be cancelled,
// so this runs on a detached context.
func (h *Handler) removeUnwelcomed(ctx context.Context, email, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if _, err := h.store.DeleteByToken(ctx, token); err != nil {
		h.logger.Error("failed to remove subscriber after mail failure",
			zap.String("email", email),
			zap.Error(err),
		)
	}
}

func (h *Handler) alreadySubscribed(w http.ResponseWriter, email string) {
	h.metrics.Subscriptions.WithLabelValues(metrics.ResultDuplicate).Inc()
	h.message(w, http.StatusOK, kindInfo, "Você já está inscrito", "Este e-mail já está inscrito.", email)
}

func (h *Handler) subscribeFailed(w http.ResponseWriter, msg, email string, err error) {
	h.metrics.Subscriptions.WithLabelValues(metrics.ResultError).Inc()
	h.logger.Error(msg, zap.String("email", email), zap.Error(err))
	h.message(w, http.StatusInternalServerError, kindError, "Erro ao processar inscrição",
		"Não foi possível concluir a sua inscrição agora. Tente novamente mais tarde.", "")
}

func (h *Handler) rateLimited(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
	h.metrics.RateLimited.Inc()

	minutes := int((d.RetryAfter + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	msg := fmt.Sprintf("Você fez muitas tentativas de inscrição. Tente novamente em %d minuto(s).", minutes)

	h.message(w, http.StatusTooManyRequests, kindError, "Muitas tentativas", msg, "")
}

func (h *Handler) unsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		h.metrics.Unsubscriptions.WithLabelValues(metrics.ResultMissingToken).Inc()
		h.message(w, http.StatusBadRequest, kindError, "Link inválido",
			"O link de cancelamento está incompleto. Use o link enviado no seu e-mail.", "")
		return
	}

	sub, err := h.store.FindByToken(ctx, token)
	if errors.Is(err, database.ErrTokenNotFound) {
		h.notSubscribed(w)
		return
	}
	if err != nil {
		h.unsubscribeFailed(w, "failed to find subscriber", err)
		return
	}

	removed, err := h.store.DeleteByToken(ctx, token)
	if err != nil {
		h.unsubscribeFailed(w, "failed to remove subscriber", err)
		return
	}
	if !removed {
		// Another request removed it between lookup and delete.
		h.notSubscribed(w)
		return
	}

	h.logger.Info("unsubscribed", zap.String("email", sub.Email))

	if err := h.mailer.SendFarewell(ctx, sub.Email); err != nil {
		h.metrics.EmailsSent.WithLabelValues("farewell", metrics.ResultFailed).Inc()
		h.unsubscribeFailed(w, "failed to send farewell email", err)
		return
	}
	h.metrics.EmailsSent.WithLabelValues("farewell", metrics.ResultSent).Inc()
	h.metrics.Unsubscriptions.WithLabelValues(metrics.ResultRemoved).Inc()

	h.message(w, http.StatusOK, kindSuccess, "Inscrição cancelada",
		"Você não receberá mais a nossa newsletter. Enviamos uma confirmação para:", sub.Email)
}

func (h *Handler) notSubscribed(w http.ResponseWriter) {
	h.metrics.Unsubscriptions.WithLabelValues(metrics.ResultNotFound).Inc()
	h.message(w, http.StatusOK, kindInfo, "Inscrição não encontrada",
		"Este link já foi usado ou a inscrição já foi cancelada.", "")
}

func (h *Handler) unsubscribeFailed(w http.ResponseWriter, msg string, err error) {
	h.metrics.Unsubscriptions.WithLabelValues(metrics.ResultError).Inc()
	h.logger.Error(msg, zap.Error(err))
	h.message(w, http.StatusInternalServerError, kindError, "Erro ao cancelar inscrição",
		"Não foi possível cancelar a sua inscrição agora. Tente novamente mais tarde.", "")
}

func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "unavailable")
		return
	}
	_, _ = io.WriteString(w, "ok")
}

func (h *Handler) unsubscribeURL(r *http.Request, token string) string {
	base := h.cfg.BaseURL
	if base == "" {
		base = getBaseURL(r)
	}
	return strings.TrimRight(base, "/") + "/unsubscribe?token=" + url.QueryEscape(token)
}

func getBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}
