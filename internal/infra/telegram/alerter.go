// internal/infra/telegram/alerter.go
package telegram

import (
	"context"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Sender is the part of *telebot.Bot used to push messages.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// AdminAlerter sends operational alerts to the admin's private chat.
type AdminAlerter struct {
	sender  Sender
	adminID int64
	logger  *logrus.Entry
}

func NewAdminAlerter(sender Sender, adminID int64, logger *logrus.Entry) *AdminAlerter {
	return &AdminAlerter{sender: sender, adminID: adminID, logger: logger}
}

// Alert delivers text to the admin. Without an admin id it only logs.
func (a *AdminAlerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.adminID == 0 {
		a.logger.WithField("alert", text).Warn("No admin configured, alert not delivered")
		return nil
	}

	recipient := &telebot.User{ID: a.adminID} // admin's private chat
	_, err := a.sender.Send(recipient, "⚠️ "+text, &telebot.SendOptions{DisableWebPagePreview: true})
	return err
}
