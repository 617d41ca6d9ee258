package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-mailsync/pkg/types"
	"github.com/nats-io/nats.go"
)

// JetStreamConfig configures the JetStream publisher.
type JetStreamConfig struct {
	URL           string
	Stream        string
	SubjectPrefix string
	Duplicates    time.Duration
	MaxAge        time.Duration
	Logger        types.Logger
}

func (c JetStreamConfig) withDefaults() JetStreamConfig {
	if c.Stream == "" {
		c.Stream = "MAILSYNC"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "mailsync"
	}
	if c.Duplicates <= 0 {
		c.Duplicates = 10 * time.Minute
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 7 * 24 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = types.NopLogger{}
	}
	return c
}

type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// JetStreamPublisher publishes notifications to
// <prefix>.<namespace_id>.<kind> with message id deduplication.
type JetStreamPublisher struct {
	nc  *nats.Conn
	js  jetStream
	cfg JetStreamConfig
}

var _ Publisher = (*JetStreamPublisher)(nil)

// NewJetStreamPublisher connects to NATS and ensures the stream exists.
func NewJetStreamPublisher(ctx context.Context, cfg JetStreamConfig) (*JetStreamPublisher, error) {
	cfg = cfg.withDefaults()
	nc, err := nats.Connect(cfg.URL, nats.Name("go-mailsync"))
	if err != nil {
		return nil, fmt.Errorf("notify: connect to nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("notify: jetstream context: %w", err)
	}
	p := &JetStreamPublisher{nc: nc, js: js, cfg: cfg}
	if err := p.EnsureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func newJetStreamPublisher(js jetStream, cfg JetStreamConfig) *JetStreamPublisher {
	return &JetStreamPublisher{js: js, cfg: cfg.withDefaults()}
}

// EnsureStream creates the stream when it does not exist yet.
func (p *JetStreamPublisher) EnsureStream(ctx context.Context) error {
	if info, err := p.js.StreamInfo(p.cfg.Stream, nats.Context(ctx)); err == nil && info != nil {
		return nil
	}
	_, err := p.js.AddStream(&nats.StreamConfig{
		Name:       p.cfg.Stream,
		Subjects:   []string{p.cfg.SubjectPrefix + ".>"},
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		Duplicates: p.cfg.Duplicates,
		MaxAge:     p.cfg.MaxAge,
	}, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("notify: create stream: %w", err)
	}
	return nil
}

// Publish marshals the body and publishes it.
func (p *JetStreamPublisher) Publish(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Body)
	if err != nil {
		return fmt.Errorf("notify: marshal %s notification: %w", n.Kind, err)
	}
	opts := []nats.PubOpt{nats.Context(ctx)}
	if n.MsgID != "" {
		opts = append(opts, nats.MsgId(n.MsgID))
	}
	subject := p.Subject(n)
	if _, err := p.js.Publish(subject, payload, opts...); err != nil {
		return types.NewTransientError(err, "notify: publish "+subject)
	}
	p.cfg.Logger.Debug("notification published", "subject", subject, "msg_id", n.MsgID)
	return nil
}

// Subject returns the subject a notification is published on.
func (p *JetStreamPublisher) Subject(n Notification) string {
	return strings.Join([]string{
		strings.TrimSuffix(p.cfg.SubjectPrefix, "."),
		n.NamespaceID.String(),
		string(n.Kind),
	}, ".")
}

// Close drains the connection.
func (p *JetStreamPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}
