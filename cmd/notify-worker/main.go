package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/careflow/referral-scheduling/internal/auth"
	"github.com/careflow/referral-scheduling/internal/notification"
)

// notify-worker drains the notification queue and simulates delivery to the
// patient. A real deployment would hand the message to an SMS or e-mail
// gateway here.
func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "notify-worker").Logger()

	amqpURL := os.Getenv("AMQP_URL")
	if amqpURL == "" {
		logger.Fatal().Msg("AMQP_URL is required")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("rabbitmq dial error")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal().Err(err).Msg("rabbitmq channel error")
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(notification.ExchangeName, notification.ExchangeKind, true, false, false, false, nil); err != nil {
		logger.Fatal().Err(err).Msg("exchange declare error")
	}

	queue, err := ch.QueueDeclare(notification.QueueName, true, false, false, false, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("queue declare error")
	}

	if err := ch.QueueBind(queue.Name, notification.RoutingKey, notification.ExchangeName, false, nil); err != nil {
		logger.Fatal().Err(err).Msg("queue bind error")
	}

	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("consume error")
	}

	logger.Info().Str("queue", queue.Name).Msg("notify-worker consuming")

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping notify-worker")
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.Error().Msg("delivery channel closed")
				return
			}
			handleDelivery(logger, jwtSecret, d)
		}
	}
}

func handleDelivery(logger zerolog.Logger, jwtSecret string, d amqp.Delivery) {
	var msg notification.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		logger.Error().Err(err).Msg("unparseable notification, dropping")
		_ = d.Nack(false, false)
		return
	}

	username, err := auth.VerifyToken(jwtSecret, msg.Credential)
	if err != nil {
		logger.Warn().Str("patient_id", msg.PatientID).Msg("notification with invalid credential, dropping")
		_ = d.Nack(false, false)
		return
	}

	logger.Info().
		Str("requested_by", username).
		Str("patient_id", msg.PatientID).
		Str("message", msg.Body).
		Msg("simulated notification delivery")

	_ = d.Ack(false)
}
