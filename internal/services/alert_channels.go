package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Twilio error codes that mean the destination number cannot receive from us.
// 21608 unverified (trial), 21211 invalid number, 21614 not a mobile, 21610 unsubscribed.
var softTwilioCodes = map[int]bool{
	21608: true,
	21211: true,
	21614: true,
	21610: true,
}

type TwilioSMS struct {
	client      *twilio.RestClient
	from        string
	countryCode string
}

func NewTwilioSMS(accountSID, authToken, from, countryCode string) *TwilioSMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSMS{
		client:      client,
		from:        from,
		countryCode: countryCode,
	}
}

// Send delivers body to the number, giving up when ctx ends.
// The Twilio client has no context support so the call runs in its own goroutine.
func (t *TwilioSMS) Send(ctx context.Context, to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(FormatPhone(to, t.countryCode))
	params.SetFrom(t.from)
	params.SetBody(body)

	done := make(chan error, 1)
	go func() {
		resp, err := t.client.Api.CreateMessage(params)
		if err == nil && resp.ErrorCode != nil {
			msg := ""
			if resp.ErrorMessage != nil {
				msg = *resp.ErrorMessage
			}
			err = &twilioclient.TwilioRestError{Code: *resp.ErrorCode, Message: msg}
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("twilio SMS: %w", ctx.Err())
	case err := <-done:
		return classifyTwilioError(err)
	}
}

func classifyTwilioError(err error) error {
	if err == nil {
		return nil
	}

	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) && softTwilioCodes[restErr.Code] {
		return fmt.Errorf("%w: twilio code %d: %s", ErrRecipientRejected, restErr.Code, restErr.Message)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unverified") || strings.Contains(msg, "trial") {
		return fmt.Errorf("%w: %v", ErrRecipientRejected, err)
	}
	return fmt.Errorf("twilio SMS error: %w", err)
}

// FormatPhone returns an E.164-style number. Numbers without a leading +
// lose one leading 0 and get countryCode prepended.
func FormatPhone(phone, countryCode string) string {
	phone = strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	phone = strings.TrimPrefix(phone, "0")
	return countryCode + phone
}

// LogSMS is used when SMS_ENABLED is false. Every send succeeds.
type LogSMS struct {
	log logrus.FieldLogger
}

func NewLogSMS(log logrus.FieldLogger) *LogSMS {
	return &LogSMS{log: log}
}

func (l *LogSMS) Send(_ context.Context, to, body string) error {
	l.log.WithFields(logrus.Fields{
		"to":     maskPhone(to),
		"length": len(body),
	}).Info("sms disabled, message not sent")
	return nil
}

type FCMPush struct {
	client *messaging.Client
}

func NewFCMPush(client *messaging.Client) *FCMPush {
	return &FCMPush{client: client}
}

// Send sends a high priority notification to one device
func (f *FCMPush) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	message := &messaging.Message{
		Token: token,
		Data:  data,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Priority: messaging.PriorityHigh,
				Sound:    "default",
			},
		},
	}

	if _, err := f.client.Send(ctx, message); err != nil {
		return fmt.Errorf("FCM error: %w", err)
	}
	return nil
}
