package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func framed(schemaID int, payload []byte) []byte {
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], uint32(schemaID))
	copy(value[5:], payload)
	return value
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	payload := []byte(`{"request_id":"abc"}`)
	msg := kafka.Message{
		Topic:  "gso_requests",
		Offset: 10,
		Key:    []byte("abc"),
		Time:   time.Now().UTC(),
		Value:  framed(42, payload),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("request.completed")},
			{Key: "schema_subject", Value: []byte("gso_requests-value")},
		},
	}

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{}
	processor := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t)))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "request.completed", handler.last.EventType)
	require.Equal(t, "gso_requests-value", handler.last.SchemaSubject)
	require.Equal(t, "abc", handler.last.Key)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
}

func TestProcessorSkipsCommitOnHandlerError(t *testing.T) {
	msg := kafka.Message{
		Topic:   "gso_requests",
		Offset:  20,
		Value:   framed(99, []byte(`{}`)),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte("request.completed")}},
	}

	reader := &stubReader{messages: []kafka.Message{msg}, after: contextCanceled}
	handler := &stubHandler{err: errors.New("boom")}
	processor := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t)))

	require.ErrorIs(t, processor.Run(context.Background()), context.Canceled)
	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	messages := []kafka.Message{
		{Topic: "gso_requests", Value: []byte{0, 1}},
		{Topic: "gso_requests", Value: framed(1, []byte(`{}`))},
		{Topic: "gso_requests", Value: append([]byte{7}, framed(1, []byte(`{}`))[1:]...),
			Headers: []kafka.Header{{Key: "event_type", Value: []byte("request.completed")}}},
	}
	reader := &stubReader{messages: messages, after: contextCanceled}
	handler := &stubHandler{}

	require.ErrorIs(t, NewProcessor(reader, handler).Run(context.Background()), context.Canceled)
	require.Zero(t, handler.calls)
	require.Equal(t, 3, reader.commitCalls)
}

func TestProcessorStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reader := &stubReader{}
	require.ErrorIs(t, NewProcessor(reader, &stubHandler{}).Run(ctx), context.Canceled)
	require.Zero(t, reader.index)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

type stubHandler struct {
	calls int
	err   error
	last  Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	return h.err
}
