package reconcile

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"ms-leadflow/internal/config"
	"ms-leadflow/internal/logger"
	"ms-leadflow/internal/metrics"
	"ms-leadflow/internal/models"
	"ms-leadflow/internal/utils"
)

type NotificationStore interface {
	ExistsForOrder(ctx context.Context, orderID string, typ models.NotificationType) (bool, error)
	CreateNotification(ctx context.Context, n models.Notification) error
}

type Publisher interface {
	Publish(topic string, key string, value []byte) error
}

type ProgressStore interface {
	AllModulesComplete(ctx context.Context, leadID string, plan models.Plan) (bool, error)
}

type Mailer interface {
	SendPaymentConfirmation(lead *models.Lead, order *models.Order) error
}

type PassGenerator interface {
	GenerateAdmissionPass(lead *models.Lead, order *models.Order) ([]byte, error)
}

// SideEffects fans out the downstream consequences of a won success
// transition. Every action guards on its own prior effect, so a replay
// (crash recovery, admin re-dispatch) creates nothing twice.
type SideEffects struct {
	Notifications NotificationStore
	Leads         LeadStore
	Progress      ProgressStore
	Producer      Publisher
	Mailer        Mailer
	Passes        PassGenerator
	Topics        config.TopicConfig
	Logger        *logger.Logger
}

func NewSideEffects(
	notifications NotificationStore,
	leads LeadStore,
	progress ProgressStore,
	producer Publisher,
	mailer Mailer,
	passes PassGenerator,
	topics config.TopicConfig,
	log *logger.Logger,
) *SideEffects {
	return &SideEffects{
		Notifications: notifications,
		Leads:         leads,
		Progress:      progress,
		Producer:      producer,
		Mailer:        mailer,
		Passes:        passes,
		Topics:        topics,
		Logger:        log,
	}
}

// DispatchSuccess runs the success fan-out: notification, event stream,
// confirmation email, certificate eligibility. Returns the first hard
// failure so an admin re-dispatch can surface it; the notification guard
// makes re-running safe.
func (d *SideEffects) DispatchSuccess(ctx context.Context, order *models.Order, capacityExceeded bool) error {
	lead, err := d.Leads.GetLeadByID(ctx, order.LeadID)
	if err != nil {
		return fmt.Errorf("load lead %s: %w", order.LeadID, err)
	}

	alreadyNotified, err := d.Notifications.ExistsForOrder(ctx, order.ID, models.NotificationSuccess)
	if err != nil {
		return fmt.Errorf("notification existence check: %w", err)
	}

	if !alreadyNotified {
		n := models.Notification{
			ID:        utils.GenerateNotificationID(),
			UserID:    lead.ID,
			OrderID:   order.ID,
			Type:      models.NotificationSuccess,
			Title:     "Payment confirmed",
			Message:   fmt.Sprintf("Your payment for the %s plan has been confirmed. Your course access is now active.", order.Plan),
			CreatedAt: time.Now(),
		}

		if order.Plan == models.PlanWorkshop && d.Passes != nil {
			png, err := d.Passes.GenerateAdmissionPass(lead, order)
			if err != nil {
				d.Logger.Error("DISPATCH", fmt.Sprintf("Admission pass for order %s: %v", order.ID, err))
			} else {
				n.Payload = base64.StdEncoding.EncodeToString(png)
			}
		}

		if err := d.Notifications.CreateNotification(ctx, n); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		d.Logger.Info("DISPATCH", fmt.Sprintf("Notification %s created for order %s", n.ID, order.ID))
	} else {
		d.Logger.Info("DISPATCH", fmt.Sprintf("Notification for order %s already exists, skipping", order.ID))
	}

	d.publishPaymentEvent(d.Topics.PaymentSucceeded, "payment.succeeded", order)

	if capacityExceeded {
		metrics.RecordSeatsExceeded()
		event := models.SeatsExceededEvent{
			WorkshopID: order.WorkshopID,
			OrderID:    order.ID,
			LeadID:     order.LeadID,
			Timestamp:  time.Now(),
		}
		value, _ := json.Marshal(event)
		if err := d.Producer.Publish(d.Topics.SeatsExceeded, order.WorkshopID, value); err != nil {
			d.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish seats exceeded event: %v", err))
		}
	}

	if d.Mailer != nil && !alreadyNotified {
		if err := d.Mailer.SendPaymentConfirmation(lead, order); err != nil {
			// Best effort; the notification record is the durable receipt.
			d.Logger.Error("MAIL", fmt.Sprintf("Confirmation email for order %s: %v", order.ID, err))
		}
	}

	if order.Plan != models.PlanWorkshop && d.Progress != nil {
		complete, err := d.Progress.AllModulesComplete(ctx, lead.ID, order.Plan)
		if err != nil {
			d.Logger.Error("DISPATCH", fmt.Sprintf("Progress check for lead %s: %v", lead.ID, err))
		} else if complete {
			event := models.CertificateEvent{
				LeadID:    lead.ID,
				Plan:      order.Plan,
				OrderID:   order.ID,
				Timestamp: time.Now(),
			}
			value, _ := json.Marshal(event)
			if err := d.Producer.Publish(d.Topics.CertificateEligible, lead.ID, value); err != nil {
				d.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish certificate event: %v", err))
			} else {
				d.Logger.Info("DISPATCH", fmt.Sprintf("Certificate eligibility published for lead %s", lead.ID))
			}
		}
	}

	return nil
}

// DispatchFailure publishes the failure event for support tooling. No
// notification is created; the user sees the failure in the funnel UI.
func (d *SideEffects) DispatchFailure(ctx context.Context, order *models.Order) error {
	d.publishPaymentEvent(d.Topics.PaymentFailed, "payment.failed", order)
	return nil
}

func (d *SideEffects) publishPaymentEvent(topic, eventType string, order *models.Order) {
	event := models.PaymentEvent{
		Type:             eventType,
		OrderID:          order.ID,
		LeadID:           order.LeadID,
		Plan:             order.Plan,
		AmountCents:      order.AmountCents,
		Currency:         order.Currency,
		GatewayPaymentID: order.GatewayPaymentID,
		Timestamp:        time.Now(),
	}
	value, _ := json.Marshal(event)
	if err := d.Producer.Publish(topic, order.ID, value); err != nil {
		d.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s event for order %s: %v", eventType, order.ID, err))
	} else {
		d.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("%s event for order %s", eventType, order.ID))
	}
}
