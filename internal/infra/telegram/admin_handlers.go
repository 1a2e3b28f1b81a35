package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"snapletter/internal/app"
	idb "snapletter/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	msgUnauthorized = "Error: you are not allowed to run this command."
	msgNotFound     = "No preferences stored for subscriber %s."
	commandTimeout  = 30 * time.Second
)

// AdminHandlers serves the operator commands of the ops bot.
type AdminHandlers struct {
	adminService *app.AdminService
	logger       *logrus.Entry
}

func NewAdminHandlers(adminService *app.AdminService, baseLogger *logrus.Entry) *AdminHandlers {
	return &AdminHandlers{adminService: adminService, logger: baseLogger}
}

// Register binds the admin commands on b.
func (h *AdminHandlers) Register(b *telebot.Bot) {
	b.Handle("/status", h.handleStatus)
	b.Handle("/subscriber", h.handleSubscriber)
	b.Handle("/pause", h.handlePause)
	b.Handle("/resume", h.handleResume)
	b.Handle("/renew", h.handleRenew)
}

func (h *AdminHandlers) commandLogger(c telebot.Context, command string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"handler":   command,
		"sender_id": c.Sender().ID,
	})
}

// singleArg checks authorization and extracts the one expected argument.
func (h *AdminHandlers) singleArg(c telebot.Context, log *logrus.Entry, usage string) (string, bool, error) {
	if !h.adminService.IsAdmin(c.Sender().ID) {
		log.Warn("Unauthorized access attempt")
		return "", false, c.Send(msgUnauthorized)
	}
	args := c.Args()
	if len(args) != 1 {
		log.WithField("args_count", len(args)).Warn("Invalid command format")
		return "", false, c.Send("Invalid command format. Use: " + usage)
	}
	return args[0], true, nil
}

func (h *AdminHandlers) handleStatus(c telebot.Context) error {
	log := h.commandLogger(c, "/status")
	correlationID, ok, err := h.singleArg(c, log, "/status <correlation_id>")
	if !ok {
		return err
	}
	log = log.WithField("correlation_id", correlationID)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	report, err := h.adminService.RunStatus(ctx, c.Sender().ID, correlationID)
	if err != nil {
		var trackErr *app.TrackError
		if errors.As(err, &trackErr) {
			log.WithError(err).Warn("Could not fetch run status")
			return c.Send("Could not reach the execution engine right now. The delivery itself is not marked failed; try again later.")
		}
		log.WithError(err).Error("Failed to get run status")
		return c.Send("An error occurred while fetching the delivery status.")
	}
	log.WithField("status", report.Status).Info("Run status reported")
	return c.Send(formatRunReport(report))
}

func (h *AdminHandlers) handleSubscriber(c telebot.Context) error {
	log := h.commandLogger(c, "/subscriber")
	subscriberID, ok, err := h.singleArg(c, log, "/subscriber <subscriber_id>")
	if !ok {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	rec, err := h.adminService.Inspect(ctx, c.Sender().ID, subscriberID)
	if err != nil {
		if errors.Is(err, idb.ErrPreferencesNotFound) {
			return c.Send(fmt.Sprintf(msgNotFound, subscriberID))
		}
		log.WithError(err).Error("Failed to load subscriber")
		return c.Send("An error occurred while loading the subscriber.")
	}
	return c.Send(formatRecord(rec))
}

func (h *AdminHandlers) handlePause(c telebot.Context) error {
	log := h.commandLogger(c, "/pause")
	subscriberID, ok, err := h.singleArg(c, log, "/pause <subscriber_id>")
	if !ok {
		return err
	}
	log = log.WithField("subscriber_id", subscriberID)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	_, err = h.adminService.Pause(ctx, c.Sender().ID, subscriberID)
	switch {
	case err == nil:
		log.Info("Subscriber paused")
		return c.Send(fmt.Sprintf("Subscriber %s paused. Pending deliveries will be skipped.", subscriberID))
	case errors.Is(err, app.ErrAlreadyInactive):
		return c.Send(fmt.Sprintf("Subscriber %s is already paused.", subscriberID))
	case errors.Is(err, idb.ErrPreferencesNotFound):
		return c.Send(fmt.Sprintf(msgNotFound, subscriberID))
	default:
		log.WithError(err).Error("Failed to pause subscriber")
		return c.Send("An error occurred while pausing the subscriber.")
	}
}

func (h *AdminHandlers) handleResume(c telebot.Context) error {
	log := h.commandLogger(c, "/resume")
	subscriberID, ok, err := h.singleArg(c, log, "/resume <subscriber_id>")
	if !ok {
		return err
	}
	log = log.WithField("subscriber_id", subscriberID)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	res, err := h.adminService.Resume(ctx, c.Sender().ID, subscriberID)
	switch {
	case err == nil:
		log.WithField("outcome", res.Scheduling.Outcome).Info("Subscriber resumed")
		return c.Send(fmt.Sprintf("Subscriber %s resumed. %s", subscriberID, formatScheduling(res.Scheduling)))
	case errors.Is(err, app.ErrAlreadyActive):
		return c.Send(fmt.Sprintf("Subscriber %s is already active.", subscriberID))
	case errors.Is(err, idb.ErrPreferencesNotFound):
		return c.Send(fmt.Sprintf(msgNotFound, subscriberID))
	case errors.Is(err, app.ErrValidation):
		return c.Send(fmt.Sprintf("Subscriber %s cannot be resumed: no topics selected.", subscriberID))
	default:
		log.WithError(err).Error("Failed to resume subscriber")
		return c.Send("An error occurred while resuming the subscriber.")
	}
}

func (h *AdminHandlers) handleRenew(c telebot.Context) error {
	log := h.commandLogger(c, "/renew")
	if !h.adminService.IsAdmin(c.Sender().ID) {
		log.Warn("Unauthorized access attempt")
		return c.Send(msgUnauthorized)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	start := time.Now()
	summary, err := h.adminService.RenewNow(ctx, c.Sender().ID)
	if err != nil {
		log.WithError(err).Error("Manual renewal sweep failed")
		return c.Send("Renewal sweep failed: " + err.Error())
	}
	return c.Send(formatRenewal(summary, time.Since(start)))
}
