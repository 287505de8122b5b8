package upsell

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const EventSimulationRecorded = "upsell.simulation.recorded"

// SimulationRecordedEvent is published after a simulation lands in history.
type SimulationRecordedEvent struct {
	Type            string    `json:"type"`
	ID              int64     `json:"id"`
	Reference       string    `json:"reference"`
	CreatedAt       time.Time `json:"created_at"`
	CreatedBy       *string   `json:"created_by,omitempty"`
	Categories      []string  `json:"categories"`
	Recommendations []string  `json:"recommendations"`
}

type EventPublisher interface {
	PublishSimulationRecorded(ctx context.Context, event SimulationRecordedEvent) error
}

// SNSAPI is the subset of the SNS client used here.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSEventPublisher struct {
	client   SNSAPI
	topicARN string
}

func NewSNSEventPublisher(client SNSAPI, topicARN string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicARN: topicARN}
}

func (p *SNSEventPublisher) PublishSimulationRecorded(ctx context.Context, event SimulationRecordedEvent) error {
	event.Type = EventSimulationRecorded
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String("Upsell simulation recorded"),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(EventSimulationRecorded),
			},
			"simulation_id": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatInt(event.ID, 10)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", EventSimulationRecorded, err)
	}
	return nil
}
