// Package mailer builds coupon notification payloads and hands them to a
// transport off the request path. Delivery failure is logged, never
// surfaced: no loyalty operation may fail because an email did.
package mailer

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/threadline/loyalty-engine/internal/model"
)

// CouponNotification is the data payload handed to the transport. This
// package only constructs it; templating and delivery live elsewhere.
type CouponNotification struct {
	Recipient   string    `json:"recipient"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Rarity      string    `json:"rarity"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Sender delivers a notification. Implementations own transport and
// templates.
type Sender interface {
	Send(n CouponNotification) error
}

// Mailer dispatches notifications fire-and-forget.
type Mailer struct {
	sender Sender
}

// New creates a Mailer over the given sender.
func New(sender Sender) *Mailer {
	return &Mailer{sender: sender}
}

// CouponGranted sends a coupon notification asynchronously. Errors are
// logged and dropped.
func (m *Mailer) CouponGranted(email, name string, coupon model.ClaimedCoupon) {
	n := CouponNotification{
		Recipient:   email,
		Name:        name,
		Code:        coupon.Code,
		Description: coupon.Description,
		Rarity:      string(coupon.Rarity),
		ExpiresAt:   coupon.ExpiresAt,
	}
	go func() {
		if err := m.sender.Send(n); err != nil {
			log.Error().
				Err(err).
				Str("recipient", n.Recipient).
				Str("code", n.Code).
				Msg("coupon notification failed")
		}
	}()
}

// LogSender is the default Sender: it writes the payload to the log.
// Useful in development and as a stand-in until a real transport is wired.
type LogSender struct{}

// Send logs the notification payload.
func (LogSender) Send(n CouponNotification) error {
	log.Info().
		Str("recipient", n.Recipient).
		Str("code", n.Code).
		Str("rarity", n.Rarity).
		Time("expires_at", n.ExpiresAt).
		Msg("coupon notification")
	return nil
}
