//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap/zaptest"

	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/events"
	"example.com/ipmt/internal/fixture"
	"example.com/ipmt/internal/personnel"
)

func framedJSON(t *testing.T, schemaID int, payload any) []byte {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return framed(schemaID, body)
}

func TestKafkaAccomplishmentEventIsStored(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.RunContainer(ctx, testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	broker := brokers[0]
	topic := "source_records"

	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	env := fixture.New(t)
	handler := NewIngestHandler(env.Store, personnel.NewResolver(env.Store), zaptest.NewLogger(t))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{broker},
		GroupID:     "ipmt-integration",
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()
	proc := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t)))
	go func() {
		_ = proc.Run(consumerCtx)
	}()

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	defer writer.Close()

	evt := events.AccomplishmentRecorded{
		RecordID:     "war-kafka",
		Unit:         "Engineering",
		Personnel:    []string{"jane", "Mark Santos"},
		DateStarted:  "2025-03-12",
		ActivityName: "Electrical",
		Description:  "Replaced hallway outlet",
		LaborCost:    75,
	}
	require.NoError(t, writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(evt.RecordID),
		Value: framedJSON(t, 7, evt),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(events.TypeAccomplishmentRecorded)},
			{Key: "schema_subject", Value: []byte(topic + "-value")},
		},
	}))

	require.Eventually(t, func() bool {
		rec, err := env.Store.GetRecord(ctx, evt.RecordID)
		return err == nil && rec != nil
	}, 30*time.Second, 500*time.Millisecond)

	rec, err := env.Store.GetRecord(ctx, evt.RecordID)
	require.NoError(t, err)
	war, ok := rec.(*domain.AccomplishmentRecord)
	require.True(t, ok)
	require.Equal(t, "Replaced hallway outlet", war.Description)
	require.Len(t, war.Personnel, 2)
	require.InDelta(t, 75, war.TotalCost, 0.001)
}
