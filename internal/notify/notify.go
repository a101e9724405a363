package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/nyxus-portfolio/apiserver/config"
	"github.com/nyxus-portfolio/apiserver/internal/logutil"
	"github.com/nyxus-portfolio/apiserver/internal/mq"
	"github.com/nyxus-portfolio/apiserver/types"
)

// Mailer delivers a contact message to the site owner.
type Mailer interface {
	Send(ctx context.Context, event types.ContactEvent) error
}

// NewMailer returns an SMTP mailer when cfg.Host is set and a LogMailer otherwise.
func NewMailer(cfg config.SMTPConfig) (Mailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return LogMailer{}, nil
	}
	m, err := NewSMTPMailer(cfg)
	if err != nil {
		return nil, err
	}
	return m, nil
}

const smtpTimeout = 30 * time.Second

// sender delivers built messages. *mail.Client implements it.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPMailer sends plain-text mail through an SMTP relay.
type SMTPMailer struct {
	client sender
	addr   string
	from   string
	to     string
}

// NewSMTPMailer builds a client for cfg.Host. STARTTLS is used when the relay
// offers it; PLAIN auth is enabled when cfg.User is set.
func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(smtpTimeout),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.User),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client for %s: %w", cfg.Host, err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	to := cfg.Recipient
	if to == "" {
		to = from
	}
	return &SMTPMailer{
		client: client,
		addr:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		from:   from,
		to:     to,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, event types.ContactEvent) error {
	msg, err := buildMessage(m.from, m.to, event)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", m.addr, err)
	}
	return nil
}

// LogMailer writes contact messages to the context logger.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, event types.ContactEvent) error {
	log := logutil.GetOrDefault(ctx)
	log.Info().
		Int("contact.id", event.MessageID).
		Str("contact.name", event.Name).
		Str("contact.email", event.Email).
		Str("contact.subject", event.Subject).
		Str("contact.message", event.Message).
		Msg("new contact message")
	return nil
}

// Handler decodes ContactEvents and passes them to m. Undecodable payloads
// are logged and acknowledged; mailer failures are returned for redelivery.
func Handler(m Mailer) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		log := logutil.GetOrDefault(ctx).With().Str("mq.message_id", msg.ID).Logger()

		var event types.ContactEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Error().Err(err).Msg("dropping malformed contact event")
			return nil
		}

		if err := m.Send(logutil.WithLogger(ctx, log), event); err != nil {
			log.Error().Err(err).Int("contact.id", event.MessageID).Msg("contact notification failed")
			return err
		}
		log.Info().Int("contact.id", event.MessageID).Msg("contact notification sent")
		return nil
	}
}

// buildMessage renders event as a plain-text mail. Header values are
// RFC 2047 encoded by go-mail, so names and subjects may be non-ASCII.
func buildMessage(from, to string, event types.ContactEvent) (*mail.Msg, error) {
	subject := event.Subject
	if subject == "" {
		subject = "Message from " + event.Name
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	if err := msg.ReplyTo(event.Email); err != nil {
		return nil, fmt.Errorf("invalid reply-to %q: %w", event.Email, err)
	}
	msg.Subject(singleLine("[Portfolio] " + subject))

	sent := event.CreatedAt
	if sent.IsZero() {
		sent = time.Now()
	}
	msg.SetDateWithValue(sent)
	msg.SetBodyString(mail.TypeTextPlain, fmt.Sprintf("Name: %s\nEmail: %s\n\n%s\n", event.Name, event.Email, event.Message))
	return msg, nil
}

// singleLine replaces line breaks so submitted values cannot add headers.
func singleLine(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}
