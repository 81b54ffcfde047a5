package email

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/wellingtonag/newsletter-node/internal/render"
)

const (
	welcomeSubject  = "Bem-vindo à nossa Newsletter!"
	farewellSubject = "Sua inscrição foi cancelada"

	welcomeTemplate  = "newsletter.html"
	farewellTemplate = "farewell.html"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Timeout  time.Duration

	CompanyName    string
	LogoURL        string
	CompanyWebsite string
}

// Sender delivers transactional mail through an SMTP relay. Each send
// dials its own connection and is bounded by Config.Timeout.
type Sender struct {
	cfg      Config
	renderer render.Renderer
	deliver  func(ctx context.Context, msg *mail.Msg) error
}

func New(cfg Config, renderer render.Renderer) *Sender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}

	s := &Sender{cfg: cfg, renderer: renderer}
	s.deliver = s.dialAndSend
	return s
}

func (s *Sender) SendWelcome(ctx context.Context, to, unsubscribeURL string) error {
	vars := s.brand()
	vars[render.UnsubscribeURL] = unsubscribeURL

	return s.send(ctx, to, welcomeSubject, welcomeTemplate, vars)
}

func (s *Sender) SendFarewell(ctx context.Context, to string) error {
	vars := s.brand()
	vars["EMAIL"] = to

	return s.send(ctx, to, farewellSubject, farewellTemplate, vars)
}

func (s *Sender) brand() render.Vars {
	return render.Vars{
		render.CompanyName:    s.cfg.CompanyName,
		render.LogoURL:        s.cfg.LogoURL,
		render.CompanyWebsite: s.cfg.CompanyWebsite,
	}
}

func (s *Sender) send(ctx context.Context, to, subject, tmpl string, vars render.Vars) error {
	body, err := s.renderer.Render(tmpl, vars)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", tmpl, err)
	}

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("failed to set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("failed to set to: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.deliver(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func (s *Sender) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.User),
		mail.WithPassword(s.cfg.Password),
		mail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	return client.DialAndSendWithContext(ctx, msg)
}
