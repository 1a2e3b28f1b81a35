// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterBotCommands binds /start and /help. Only the admin gets the
// command list; everyone else is pointed at the web settings page.
func RegisterBotCommands(b *telebot.Bot, adminTelegramID int64, baseLogger *logrus.Entry) {
	b.Handle("/start", startHandler(adminTelegramID, baseLogger))
	b.Handle("/help", helpHandler(adminTelegramID, baseLogger))
}

func startHandler(adminTelegramID int64, baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := baseLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if adminTelegramID != 0 && senderID == adminTelegramID {
			logCtx.Info("User identified as Admin")
			return c.Send(fmt.Sprintf("Hello, %s! The delivery scheduler ops bot is ready. Use /help for the command list.", c.Sender().FirstName))
		}

		logCtx.Info("User is unknown")
		return c.Send("Hello! This bot is for operators of the digest delivery service. Manage your own subscription from the settings page.")
	}
}

func helpHandler(adminTelegramID int64, baseLogger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := baseLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if adminTelegramID == 0 || senderID != adminTelegramID {
			logCtx.Info("User is not admin, sending restricted help.")
			return c.Send("No commands are available to you.")
		}

		return c.Send(adminHelpText(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}
}

func adminHelpText() string {
	var helpText strings.Builder
	helpText.WriteString("Admin commands:\n\n")
	helpText.WriteString("`/status <correlation_id>`\n - Show the status of a scheduled delivery.\n\n")
	helpText.WriteString("`/subscriber <subscriber_id>`\n - Show a subscriber's stored preferences.\n\n")
	helpText.WriteString("`/pause <subscriber_id>`\n - Deactivate a subscriber; pending deliveries are skipped.\n\n")
	helpText.WriteString("`/resume <subscriber_id>`\n - Reactivate a subscriber and schedule the next delivery.\n\n")
	helpText.WriteString("`/renew`\n - Run the renewal sweep now.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}
