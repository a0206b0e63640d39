package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	channel string
	payload []byte
	err     error
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channel = channel
	p.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if p.err != nil {
		cmd.SetErr(p.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestPublish(t *testing.T) {
	pub := &recordingPublisher{}
	msg := Message{
		Kind:        KindDocument,
		Status:      StatusCompleted,
		DocumentID:  9,
		MissingKeys: []string{"manager_name"},
	}
	require.NoError(t, Publish(context.Background(), pub, 3, msg))
	assert.Equal(t, "user_notify:3", pub.channel)

	var got Message
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, msg, got)
}

func TestPublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("down")}
	err := Publish(context.Background(), pub, 1, Message{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_notify:1")
}
