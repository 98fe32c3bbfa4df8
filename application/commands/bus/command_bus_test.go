package bus

import (
	"context"
	"testing"

	pkgerrors "killrvideo/pkg/errors"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type renameVideo struct {
	Name string
}

func (c renameVideo) Validate() error {
	if c.Name == "" {
		return pkgerrors.NewValidationError("name is required")
	}
	return nil
}

func TestSendDispatchesThroughMiddleware(t *testing.T) {
	var order []string
	trace := func(name string) Middleware {
		return func(next CommandHandler) CommandHandler {
			return CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
				order = append(order, name)
				return next.Handle(ctx, cmd)
			})
		}
	}

	b := NewCommandBus(trace("outer"), trace("inner"))
	require.NoError(t, b.Register(renameVideo{}, CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
		return cmd.(renameVideo).Name, nil
	})))
	assert.Error(t, b.Register(renameVideo{}, CommandHandlerFunc(nil)))

	got, err := b.Send(context.Background(), renameVideo{Name: "cats"})
	require.NoError(t, err)
	assert.Equal(t, "cats", got)
	assert.Equal(t, []string{"outer", "inner"}, order)

	_, err = b.Send(context.Background(), renameVideo{})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestSendUnknownCommand(t *testing.T) {
	_, err := NewCommandBus().Send(context.Background(), renameVideo{Name: "x"})
	assert.ErrorIs(t, err, ErrHandlerNotFound)
}

func TestLoggingMiddlewareTagsRequest(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	b := NewCommandBus(LoggingMiddleware(zap.New(core)))
	require.NoError(t, b.Register(renameVideo{}, CommandHandlerFunc(func(ctx context.Context, cmd Command) (interface{}, error) {
		return nil, pkgerrors.NewTimeoutError("upsert videos")
	})))

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	_, err := b.Send(ctx, renameVideo{Name: "x"})
	require.Error(t, err)

	entries := logs.FilterMessage("Command failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "renameVideo", fields["type"])
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, true, fields["retryable"])
}
