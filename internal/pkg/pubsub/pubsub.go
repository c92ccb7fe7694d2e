package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelJobProgress = "docgen:job_progress"
)

// ProgressMessage reports a job's advance through the pipeline.
type ProgressMessage struct {
	Type     string `json:"type"`
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Step     string `json:"step"`
	Progress int    `json:"progress"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Pipeline steps in execution order.
const (
	StepFetching   = "fetching"
	StepIndexing   = "indexing"
	StepGenerating = "generating"
	StepPackaging  = "packaging"
	StepDone       = "done"
)

var StepProgress = map[string]int{
	StepFetching:   20,
	StepIndexing:   40,
	StepGenerating: 60,
	StepPackaging:  80,
	StepDone:       100,
}

var StepMessages = map[string]string{
	StepFetching:   "fetching repository",
	StepIndexing:   "indexing content",
	StepGenerating: "generating documentation",
	StepPackaging:  "packaging bundle",
	StepDone:       "analysis complete",
}

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress publishes a progress message, filling in the default
// percentage and message for the step when not set.
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.Type = "job_progress"

	if msg.Progress == 0 && msg.Step != "" {
		if progress, ok := StepProgress[msg.Step]; ok {
			msg.Progress = progress
		}
	}
	if msg.Message == "" && msg.Step != "" {
		if message, ok := StepMessages[msg.Step]; ok {
			msg.Message = message
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelJobProgress, data).Err()
}

type Subscriber struct {
	client *redis.Client
}

func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe invokes handler for each progress message until ctx is done.
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelJobProgress)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue
			}

			handler(&progressMsg)
		}
	}
}
