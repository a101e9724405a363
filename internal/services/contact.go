package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/nyxus-portfolio/apiserver/internal/logutil"
	"github.com/nyxus-portfolio/apiserver/types"
)

const (
	maxContactFieldLength   = 255
	maxContactMessageLength = 5000
)

// ContactRepository defines persistence operations for contact messages.
type ContactRepository interface {
	Create(ctx context.Context, msg types.ContactMessage) (types.ContactMessage, error)
	List(ctx context.Context, offset, limit int) ([]types.ContactMessage, int, error)
}

// EventPublisher sends JSON events to a message queue channel.
type EventPublisher interface {
	PublishJSON(ctx context.Context, channel string, v any) (string, error)
}

// ContactInput is a contact form submission.
type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// ContactService stores contact messages and announces them on the queue.
type ContactService struct {
	repo      ContactRepository
	publisher EventPublisher
	channel   string
}

// NewContactService builds the service. publisher may be nil to skip notifications.
func NewContactService(repo ContactRepository, publisher EventPublisher, channel string) *ContactService {
	return &ContactService{repo: repo, publisher: publisher, channel: channel}
}

// Submit validates and stores the message, then publishes a ContactEvent.
// A publish failure is logged; the stored message is still returned.
func (s *ContactService) Submit(ctx context.Context, in ContactInput) (types.ContactMessage, error) {
	msg := types.ContactMessage{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Subject: strings.TrimSpace(in.Subject),
		Message: strings.TrimSpace(in.Message),
	}
	switch {
	case msg.Name == "":
		return types.ContactMessage{}, invalid("name", "must not be empty")
	case utf8.RuneCountInString(msg.Name) > maxContactFieldLength:
		return types.ContactMessage{}, invalid("name", "is too long")
	case !validEmail(msg.Email):
		return types.ContactMessage{}, invalid("email", "must be a valid email address")
	case utf8.RuneCountInString(msg.Subject) > maxContactFieldLength:
		return types.ContactMessage{}, invalid("subject", "is too long")
	case msg.Message == "":
		return types.ContactMessage{}, invalid("message", "must not be empty")
	case utf8.RuneCountInString(msg.Message) > maxContactMessageLength:
		return types.ContactMessage{}, invalid("message", "is too long")
	}

	stored, err := s.repo.Create(ctx, msg)
	if err != nil {
		return types.ContactMessage{}, err
	}

	log := logutil.GetOrDefault(ctx).With().Int("contact.id", stored.ID).Logger()
	if s.publisher == nil {
		log.Info().Msg("contact message stored")
		return stored, nil
	}
	event := types.ContactEvent{
		MessageID: stored.ID,
		Name:      stored.Name,
		Email:     stored.Email,
		Subject:   stored.Subject,
		Message:   stored.Message,
		CreatedAt: stored.CreatedAt,
	}
	if _, err := s.publisher.PublishJSON(ctx, s.channel, event); err != nil {
		log.Error().Err(err).Str("mq.channel", s.channel).Msg("unable to publish contact event")
	}
	return stored, nil
}

// List returns stored messages newest first.
func (s *ContactService) List(ctx context.Context, offset, limit int) ([]types.ContactMessage, int, error) {
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, offset, clampLimit(limit))
}
