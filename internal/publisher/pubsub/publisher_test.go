package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/tgc-rag/internal/publisher"
)

type fakeResult struct {
	id  string
	err error
}

func (r fakeResult) Get(context.Context) (string, error) { return r.id, r.err }

type fakeTopic struct {
	sent    []*pubsub.Message
	err     error
	stopped bool
}

func (f *fakeTopic) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	return fakeResult{id: "msg-1", err: f.err}
}

func (f *fakeTopic) Stop() { f.stopped = true }

func TestPublishEncodesPayload(t *testing.T) {
	t.Parallel()

	topic := &fakeTopic{}
	pub := &Publisher{topic: topic, attrs: map[string]string{"event": "index_rebuilt"}}

	id, err := pub.Publish(context.Background(), publisher.IndexRebuilt{
		RunID: "run-1", Status: "completed", Articles: 2, Chunks: 9, Collection: "tgc-articles",
	})
	require.NoError(t, err)
	require.Equal(t, "msg-1", id)
	require.Len(t, topic.sent, 1)
	require.Equal(t, "index_rebuilt", topic.sent[0].Attributes["event"])

	var got map[string]any
	require.NoError(t, json.Unmarshal(topic.sent[0].Data, &got))
	require.Equal(t, "run-1", got["run_id"])
	require.EqualValues(t, 9, got["chunks"])

	require.NoError(t, pub.Close())
	require.True(t, topic.stopped)
}

func TestPublishSurfacesBrokerError(t *testing.T) {
	t.Parallel()

	pub := &Publisher{topic: &fakeTopic{err: errors.New("deadline exceeded")}}
	_, err := pub.Publish(context.Background(), map[string]string{"a": "b"})
	require.ErrorContains(t, err, "publish message")
}

func TestUnconfiguredPublisher(t *testing.T) {
	t.Parallel()

	var pub *Publisher
	_, err := pub.Publish(context.Background(), nil)
	require.Error(t, err)
	require.NoError(t, pub.Close())

	_, err = Open(context.Background(), "", "topic")
	require.Error(t, err)
}
