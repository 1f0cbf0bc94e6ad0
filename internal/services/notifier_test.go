package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/vikranta/safety/backend/internal/logger"
	"github.com/vikranta/safety/backend/internal/services/mocks"
)

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+14155550100", "+14155550100"},
		{"9876543210", "+919876543210"},
		{"09876543210", "+919876543210"},
		{" 98765 43210 ", "+919876543210"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormatPhone(tt.in, "+91"); got != tt.want {
			t.Errorf("FormatPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassifyTwilioError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		soft bool
	}{
		{"unverified number code", &twilioclient.TwilioRestError{Code: 21608, Message: "number is unverified"}, true},
		{"invalid number code", &twilioclient.TwilioRestError{Code: 21211}, true},
		{"auth failure", &twilioclient.TwilioRestError{Code: 20003, Message: "Authenticate"}, false},
		{"trial text", errors.New("Trial accounts cannot send to this number"), true},
		{"network", errors.New("dial tcp: timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyTwilioError(tt.err)
			if err == nil {
				t.Fatal("classifyTwilioError() = nil")
			}
			if got := errors.Is(err, ErrRecipientRejected); got != tt.soft {
				t.Errorf("soft = %v, want %v (%v)", got, tt.soft, err)
			}
		})
	}
	if classifyTwilioError(nil) != nil {
		t.Error("nil error should stay nil")
	}
}

func TestNotifier_Outcomes(t *testing.T) {
	ctrl := gomock.NewController(t)
	sms := mocks.NewMockSMSSender(ctrl)
	pub := mocks.NewMockPublisher(ctrl)
	n := NewNotifier(sms, nil, pub, time.Second, time.Second, logger.Discard())
	ctx := context.Background()

	if o := n.SMS(ctx, "", "hi"); !o.Soft || o.Failed() || !errors.Is(o.Err, ErrNoRecipient) {
		t.Errorf("empty recipient outcome = %+v", o)
	}

	sms.EXPECT().Send(gomock.Any(), "+911234", "hi").Return(nil)
	if o := n.SMS(ctx, "+911234", "hi"); !o.Delivered || o.Failed() {
		t.Errorf("delivered outcome = %+v", o)
	}

	sms.EXPECT().Send(gomock.Any(), "+911234", "hi").Return(errors.New("boom"))
	if o := n.SMS(ctx, "+911234", "hi"); !o.Failed() {
		t.Errorf("hard failure outcome = %+v", o)
	}

	if o := n.Push(ctx, "token", "t", "b", nil); !o.Soft || !errors.Is(o.Err, ErrChannelDisabled) {
		t.Errorf("push without client outcome = %+v", o)
	}

	pub.EXPECT().Publish("authorities", "new_incident", gomock.Any()).Return(0, nil)
	if o := n.Publish("authorities", "new_incident", nil); o.Failed() || o.Delivered {
		t.Errorf("empty room outcome = %+v", o)
	}
}

func TestNotifier_SMSTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	sms := mocks.NewMockSMSSender(ctrl)
	n := NewNotifier(sms, nil, nil, 10*time.Millisecond, time.Second, logger.Discard())

	sms.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		})

	o := n.SMS(context.Background(), "+911234", "hi")
	if !o.Failed() || !errors.Is(o.Err, context.DeadlineExceeded) {
		t.Errorf("timeout outcome = %+v", o)
	}
}

func TestMaskPhone(t *testing.T) {
	if got := maskPhone("+919876543210"); got != "*********3210" {
		t.Errorf("maskPhone() = %q", got)
	}
	if got := maskPhone("123"); got != "123" {
		t.Errorf("maskPhone(short) = %q", got)
	}
}
