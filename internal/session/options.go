package session

import (
	"context"
	"time"

	"github.com/vovakirdan/relaychat/internal/config"
	"github.com/vovakirdan/relaychat/internal/relay"
)

// Relay is the subset of the relay channel the controller needs.
type Relay interface {
	Subscribe(topic string, onEvent relay.Handler)
	Unsubscribe(topic string)
	Publish(ctx context.Context, topic string, payload any) error
	Close()
}

// Options tunes controller timing and startup behaviour.
type Options struct {
	DefaultTopic     string
	DefaultRoomName  string
	PublishTimeout   time.Duration
	TypingTTL        time.Duration
	TypingThrottle   time.Duration
	ReadReceiptDelay time.Duration
}

// OptionsFromConfig copies the session settings out of cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		DefaultTopic:     cfg.DefaultTopic,
		DefaultRoomName:  cfg.DefaultRoomName,
		PublishTimeout:   cfg.PublishTimeout,
		TypingTTL:        cfg.TypingTTL,
		TypingThrottle:   cfg.TypingThrottle,
		ReadReceiptDelay: cfg.ReadReceiptDelay,
	}
}

func (o Options) withDefaults() Options {
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 10 * time.Second
	}
	if o.TypingTTL <= 0 {
		o.TypingTTL = 3 * time.Second
	}
	if o.TypingThrottle <= 0 {
		o.TypingThrottle = 3 * time.Second
	}
	if o.ReadReceiptDelay <= 0 {
		o.ReadReceiptDelay = time.Second
	}
	return o
}
