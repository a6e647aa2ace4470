//go:build integration

package webhook_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	id "idv/pkg/domain"
	"idv/pkg/testutil/containers"

	"idv/internal/platform/config"
	"idv/internal/platform/kafka"
	"idv/internal/webhook"
)

type KafkaEnqueuerSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
}

func TestKafkaEnqueuerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaEnqueuerSuite))
}

func (s *KafkaEnqueuerSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())
}

func (s *KafkaEnqueuerSuite) TestEventReachesTopic() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "webhooks-" + id.NewWorkflowID().String()

	producer, err := kafka.NewClient(config.KafkaConfig{Brokers: s.redpanda.Brokers, WebhookTopic: topic})
	s.Require().NoError(err)
	defer producer.Close()
	s.Require().NoError(kafka.EnsureTopic(ctx, producer, topic, 1))

	e := webhook.NewKafkaEnqueuer([]webhook.Cluster{{Name: "redpanda", Producer: producer, Topic: topic}})
	ev := webhook.NewEvent(webhook.KindOnboardingCompleted, id.NewTenantID(), id.NewWorkflowID(), id.NewScopedVaultID(), time.Now().UTC().Truncate(time.Second))
	e.Enqueue(ctx, ev)
	e.Close()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	s.Require().NoError(fetches.Err())
	records := fetches.Records()
	s.Require().Len(records, 1)

	var got webhook.Event
	s.Require().NoError(json.Unmarshal(records[0].Value, &got))
	s.Equal(ev.ID, got.ID)
	s.Equal(ev.WorkflowID, got.WorkflowID)
}
