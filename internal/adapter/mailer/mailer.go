package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/niksmo/keyshop/internal/core/domain"
	"github.com/niksmo/keyshop/internal/core/port"
	"github.com/sony/gobreaker/v2"
	"github.com/wneessen/go-mail"
)

var (
	_ port.Notifier = (*Mailer)(nil)
	_ port.Notifier = (*LogNotifier)(nil)
)

type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	TLSPolicy string
	Timeout   time.Duration

	// BreakerFailures consecutive failures open the breaker for
	// BreakerCooldown.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, msgs ...*mail.Msg) error
}

// A Mailer sends notifications over SMTP. While the server keeps failing
// the breaker rejects sends without dialing.
type Mailer struct {
	client sender
	from   string
	cb     *gobreaker.CircuitBreaker[struct{}]
}

func New(cfg Config) (Mailer, error) {
	const op = "mailer.New"

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return Mailer{}, fmt.Errorf("%s: %w", op, err)
	}

	return newMailer(client, cfg), nil
}

func newMailer(client sender, cfg Config) Mailer {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String(),
			)
		},
	})

	return Mailer{client: client, from: cfg.From, cb: cb}
}

func (m Mailer) Notify(ctx context.Context, n domain.Notification) error {
	const op = "Mailer.Notify"

	msg, err := m.message(n)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = m.cb.Execute(func() (struct{}, error) {
		return struct{}{}, m.client.DialAndSendWithContext(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	slog.Info("notification sent", "op", op, "recipient", n.Recipient)
	return nil
}

func (m Mailer) message(n domain.Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}
	if err := msg.To(n.Recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(n.Subject)
	msg.SetBodyString(mail.TypeTextPlain, n.Body)
	return msg, nil
}

func tlsPolicy(s string) mail.TLSPolicy {
	switch strings.ToLower(s) {
	case "none", "notls":
		return mail.NoTLS
	case "opportunistic":
		return mail.TLSOpportunistic
	default:
		return mail.TLSMandatory
	}
}

// A LogNotifier writes notifications to the log instead of sending them.
// Used when no SMTP host is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n domain.Notification) error {
	const op = "LogNotifier.Notify"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	slog.Info("notification",
		"op", op,
		"recipient", n.Recipient,
		"subject", n.Subject,
		"lines", strings.Count(n.Body, "\n")+1,
	)
	slog.Debug("notification body", "op", op, "body", n.Body)
	return nil
}
