package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cetzal/authcore/internal/domain"
	pkgkafka "github.com/cetzal/authcore/pkg/kafka"
	"github.com/cetzal/authcore/pkg/logger"
)

// Kafka topic constants for auth domain events.
const (
	TopicLoggedIn       = "authcore.auth.logged_in"
	TopicLoggedOut      = "authcore.auth.logged_out"
	TopicTokenRefreshed = "authcore.auth.token_refreshed"
)

// SourceAuthService identifies events originating from this service.
const SourceAuthService = "authcore"

// LoggedInData is the payload for an auth.logged_in event.
type LoggedInData struct {
	UserID         int64     `json:"user_id"`
	Email          string    `json:"email"`
	AccessTokenID  string    `json:"access_jti"`
	RefreshTokenID string    `json:"refresh_jti"`
	At             time.Time `json:"at"`
}

// LoggedOutData is the payload for an auth.logged_out event.
type LoggedOutData struct {
	UserID         int64     `json:"user_id"`
	RefreshTokenID string    `json:"refresh_jti"`
	At             time.Time `json:"at"`
}

// TokenRefreshedData is the payload for an auth.token_refreshed event.
type TokenRefreshedData struct {
	UserID   int64     `json:"user_id"`
	OldToken string    `json:"old_refresh_jti"`
	Rotated  bool      `json:"rotated"`
	At       time.Time `json:"at"`
}

// Publisher is the transport the producer writes to. *pkgkafka.Producer
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes auth domain events. A Producer without a Publisher
// drops events, which is how the service runs with Kafka disabled.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer. pub may be nil.
func NewProducer(pub Publisher, logger *slog.Logger) *Producer {
	return &Producer{kafka: pub, logger: logger}
}

// PublishLoggedIn publishes an auth.logged_in event.
func (p *Producer) PublishLoggedIn(ctx context.Context, user *domain.User, pair domain.TokenPair) error {
	return p.publish(ctx, TopicLoggedIn, user.ID, LoggedInData{
		UserID:         user.ID,
		Email:          user.Email,
		AccessTokenID:  pair.AccessClaims.TokenID,
		RefreshTokenID: pair.RefreshClaims.TokenID,
		At:             pair.AccessClaims.IssuedAt,
	})
}

// PublishLoggedOut publishes an auth.logged_out event.
func (p *Producer) PublishLoggedOut(ctx context.Context, rev domain.Revocation) error {
	return p.publish(ctx, TopicLoggedOut, rev.UserID, LoggedOutData{
		UserID:         rev.UserID,
		RefreshTokenID: rev.TokenID,
		At:             rev.RevokedAt,
	})
}

// PublishTokenRefreshed publishes an auth.token_refreshed event.
func (p *Producer) PublishTokenRefreshed(ctx context.Context, userID int64, oldTokenID string, rotated bool) error {
	return p.publish(ctx, TopicTokenRefreshed, userID, TokenRefreshedData{
		UserID:   userID,
		OldToken: oldTokenID,
		Rotated:  rotated,
		At:       time.Now().UTC(),
	})
}

func (p *Producer) publish(ctx context.Context, topic string, userID int64, data any) error {
	if p == nil || p.kafka == nil {
		return nil
	}

	subject := strconv.FormatInt(userID, 10)
	evt, err := pkgkafka.NewEvent(topic, subject, SourceAuthService, data)
	if err != nil {
		return err
	}
	evt.CorrelationID = logger.CorrelationIDFromContext(ctx)

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("user_id", subject),
	)
	return nil
}
