package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/livestock/internal/services"
)

// Command names carried in the eventType envelope field
const (
	RegisterBirth      = "RegisterBirth"
	RegisterBirthBulk  = "RegisterBirthBulk"
	RecordInsemination = "RecordInsemination"
	CancelInsemination = "CancelInsemination"
)

// BusMessage is the common message envelope
type BusMessage struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// CancelInseminationCommand cancels a previously recorded insemination
type CancelInseminationCommand struct {
	RecordID  uint   `json:"record_id"`
	CompanyID int64  `json:"company_id"`
	UserID    int64  `json:"user_id"`
	Reason    string `json:"reason"`
}

type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error
}

// Processor routes queue messages to the write-path services
type Processor struct {
	registrations *services.RegistrationService
	inseminations *services.InseminationService
}

// NewProcessor creates a message processor
func NewProcessor(registrations *services.RegistrationService, inseminations *services.InseminationService) *Processor {
	return &Processor{
		registrations: registrations,
		inseminations: inseminations,
	}
}

func (p *Processor) ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	var msg BusMessage
	if err := json.Unmarshal(message.Body, &msg); err != nil {
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	log.Info().Str("eventType", msg.EventType).Msg("Processing message")

	switch msg.EventType {
	case RegisterBirth:
		var cmd services.RegistrationSubmission
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return err
		}
		_, err := p.registrations.Submit(ctx, &cmd)
		return err

	case RegisterBirthBulk:
		var cmds []services.RegistrationSubmission
		if err := json.Unmarshal(msg.Data, &cmds); err != nil {
			return err
		}
		results := p.registrations.SubmitBulk(ctx, cmds)
		for _, row := range results {
			if row.Outcome == "error" {
				log.Error().
					Str("animalNumber", row.AnimalNumber).
					Str("error", row.Error).
					Msg("Bulk registration row failed")
			}
		}
		return nil

	case RecordInsemination:
		var cmd services.InseminationSubmission
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return err
		}
		_, err := p.inseminations.Create(ctx, &cmd)
		return err

	case CancelInsemination:
		var cmd CancelInseminationCommand
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return err
		}
		return p.inseminations.Cancel(ctx, cmd.CompanyID, cmd.RecordID, cmd.UserID, cmd.Reason)

	default:
		return p.handleLegacyEnvelope(ctx, message)
	}
}

// handleLegacyEnvelope accepts the flat message shape used by the mobile app
// before the envelope format, keyed on an "ev" discriminator field.
func (p *Processor) handleLegacyEnvelope(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	var parsedContent map[string]interface{}
	if err := json.Unmarshal(message.Body, &parsedContent); err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}

	evValue, ok := parsedContent["ev"].(string)
	if !ok {
		return fmt.Errorf("ev field not found or not a string")
	}

	switch evValue {
	case "birth":
		var cmd services.RegistrationSubmission
		if err := json.Unmarshal(message.Body, &cmd); err != nil {
			return err
		}
		_, err := p.registrations.Submit(ctx, &cmd)
		return err

	case "insemination":
		var cmd services.InseminationSubmission
		if err := json.Unmarshal(message.Body, &cmd); err != nil {
			return err
		}
		_, err := p.inseminations.Create(ctx, &cmd)
		return err

	default:
		return fmt.Errorf("unsupported event type: %s", evValue)
	}
}

// Publisher sends command messages to the ingest queue. The API uses it to
// defer bulk uploads to the worker.
type Publisher struct {
	sender    *azservicebus.Sender
	queueName string
}

// NewPublisher creates a queue publisher
func (a *AzureClient) NewPublisher(queueName string) (*Publisher, error) {
	sender, err := a.client.NewSender(queueName, nil)
	if err != nil {
		return nil, err
	}
	return &Publisher{sender: sender, queueName: queueName}, nil
}

// Publish sends one enveloped command to the queue. The session id keeps
// messages for the same company in order.
func (p *Publisher) Publish(ctx context.Context, sessionID, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal command data: %w", err)
	}

	body, err := json.Marshal(BusMessage{EventType: eventType, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal message envelope: %w", err)
	}

	msg := &azservicebus.Message{
		Body:      body,
		SessionID: &sessionID,
		ApplicationProperties: map[string]interface{}{
			"source": "livestock-api",
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}
	return p.sender.SendMessage(ctx, msg, nil)
}

// Close releases the underlying sender
func (p *Publisher) Close(ctx context.Context) error {
	return p.sender.Close(ctx)
}
