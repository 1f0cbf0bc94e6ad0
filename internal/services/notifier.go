package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

//go:generate mockgen -destination=mocks/mock_notifier.go -package=mocks github.com/vikranta/safety/backend/internal/services SMSSender,PushSender,Publisher

// SMSSender delivers a text message. Errors wrapping ErrRecipientRejected are soft.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

type PushSender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// Publisher fans an event out to a named real-time room.
type Publisher interface {
	Publish(room, event string, data interface{}) (int, error)
}

var (
	// ErrRecipientRejected marks provider refusals for a specific number,
	// such as unverified numbers on a trial account.
	ErrRecipientRejected = errors.New("recipient rejected by provider")
	ErrNoRecipient       = errors.New("no recipient address")
	ErrChannelDisabled   = errors.New("channel not configured")
)

type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelPush     Channel = "push"
	ChannelRealtime Channel = "realtime"
)

// Outcome is the result of one notification attempt.
// Soft outcomes did not deliver but are not treated as failures.
type Outcome struct {
	Channel   Channel
	Target    string
	Delivered bool
	Soft      bool
	Err       error
}

func (o Outcome) Failed() bool {
	return o.Err != nil && !o.Soft
}

type Notifier struct {
	sms         SMSSender
	push        PushSender
	pub         Publisher
	smsTimeout  time.Duration
	pushTimeout time.Duration
	log         logrus.FieldLogger
}

// NewNotifier wires the delivery channels. push may be nil when Firebase is not configured.
func NewNotifier(sms SMSSender, push PushSender, pub Publisher, smsTimeout, pushTimeout time.Duration, log logrus.FieldLogger) *Notifier {
	return &Notifier{
		sms:         sms,
		push:        push,
		pub:         pub,
		smsTimeout:  smsTimeout,
		pushTimeout: pushTimeout,
		log:         log,
	}
}

func (n *Notifier) SMS(ctx context.Context, to, body string) Outcome {
	o := Outcome{Channel: ChannelSMS, Target: maskPhone(to)}
	if to == "" {
		o.Soft, o.Err = true, ErrNoRecipient
		return n.record(o)
	}

	ctx, cancel := context.WithTimeout(ctx, n.smsTimeout)
	defer cancel()

	err := n.sms.Send(ctx, to, body)
	switch {
	case err == nil:
		o.Delivered = true
	case errors.Is(err, ErrRecipientRejected):
		o.Soft, o.Err = true, err
	default:
		o.Err = err
	}
	return n.record(o)
}

func (n *Notifier) Push(ctx context.Context, token, title, body string, data map[string]string) Outcome {
	o := Outcome{Channel: ChannelPush}
	if n.push == nil {
		o.Soft, o.Err = true, ErrChannelDisabled
		return o
	}
	if token == "" {
		o.Soft, o.Err = true, ErrNoRecipient
		return o
	}

	ctx, cancel := context.WithTimeout(ctx, n.pushTimeout)
	defer cancel()

	if err := n.push.Send(ctx, token, title, body, data); err != nil {
		o.Err = err
	} else {
		o.Delivered = true
	}
	return n.record(o)
}

// Publish never blocks on subscribers; an empty room is delivered to nobody but is not a failure.
func (n *Notifier) Publish(room, event string, data interface{}) Outcome {
	o := Outcome{Channel: ChannelRealtime, Target: room}
	count, err := n.pub.Publish(room, event, data)
	if err != nil {
		o.Err = err
	} else {
		o.Delivered = count > 0
	}
	return n.record(o)
}

func (n *Notifier) record(o Outcome) Outcome {
	entry := n.log.WithFields(logrus.Fields{
		"channel":   o.Channel,
		"target":    o.Target,
		"delivered": o.Delivered,
	})
	switch {
	case o.Failed():
		entry.WithError(o.Err).Error("notification failed")
	case o.Err != nil:
		entry.WithError(o.Err).Warn("notification skipped")
	default:
		entry.Debug("notification sent")
	}
	return o
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i < len(phone)-4 {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
