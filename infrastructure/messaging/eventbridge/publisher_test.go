package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"killrvideo/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*eventbridge.PutEventsOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func someEvents(n int) []events.DomainEvent {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out := make([]events.DomainEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, events.NewVideoAdded(uuid.New(), uuid.New(), []string{"go"}, at))
	}
	return out
}

func TestPublishBatchChunks(t *testing.T) {
	client := new(MockClient)
	var sizes []int
	client.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sizes = append(sizes, len(args.Get(1).(*eventbridge.PutEventsInput).Entries))
		}).
		Return(&eventbridge.PutEventsOutput{}, nil)

	p := NewPublisher(client, "bus", nil)
	require.NoError(t, p.PublishBatch(context.Background(), someEvents(23)))
	assert.Equal(t, []int{10, 10, 3}, sizes)
}

func TestPublishEntryShape(t *testing.T) {
	client := new(MockClient)
	videoID := uuid.New()
	event := events.NewVideoAdded(videoID, uuid.New(), []string{"cats"}, time.Now().UTC())

	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		if len(in.Entries) != 1 {
			return false
		}
		e := in.Entries[0]
		var detail map[string]interface{}
		if err := json.Unmarshal([]byte(aws.ToString(e.Detail)), &detail); err != nil {
			return false
		}
		return aws.ToString(e.EventBusName) == "videos" &&
			aws.ToString(e.Source) == Source &&
			aws.ToString(e.DetailType) == "video.added" &&
			detail["video_id"] == videoID.String()
	})).Return(&eventbridge.PutEventsOutput{}, nil)

	p := NewPublisher(client, "videos", nil)
	require.NoError(t, p.Publish(context.Background(), event))
	client.AssertExpectations(t)
}

func TestPublishFailures(t *testing.T) {
	t.Run("call error", func(t *testing.T) {
		client := new(MockClient)
		client.On("PutEvents", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		err := NewPublisher(client, "bus", nil).PublishBatch(context.Background(), someEvents(2))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "throttled")
	})

	t.Run("failed entries", func(t *testing.T) {
		client := new(MockClient)
		client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{
				{EventId: aws.String("a")},
				{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("boom")},
			},
		}, nil)

		err := NewPublisher(client, "bus", nil).PublishBatch(context.Background(), someEvents(2))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2")
	})

	t.Run("empty batch makes no call", func(t *testing.T) {
		client := new(MockClient)
		require.NoError(t, NewPublisher(client, "bus", nil).PublishBatch(context.Background(), nil))
		client.AssertNotCalled(t, "PutEvents", mock.Anything, mock.Anything)
	})
}
