package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"flatter-chat/internal/mocks"
	"flatter-chat/internal/telemetry"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := telemetry.NewAuditEmitter(publisher, "audit.chat", "flatter-chat", "test")

	var captured telemetry.AuditEnvelope
	publisher.On("Publish", mock.Anything, "audit.chat", mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(telemetry.AuditEnvelope)
		}).
		Return(nil).Once()

	userID := "alice"
	emitter.Emit(context.Background(), "INFO", "status changed", "req-1", &userID)

	publisher.AssertExpectations(t)
	assert.Equal(t, 1, captured.SchemaVersion)
	assert.Equal(t, "audit_log", captured.EventType)
	assert.Equal(t, "flatter-chat", captured.Service)
	assert.Equal(t, "req-1", captured.RequestID)
	require.NotNil(t, captured.UserID)
	assert.Equal(t, "alice", *captured.UserID)
	assert.Equal(t, "status changed", captured.Payload.Text)
}

func TestEmitWithoutPublisherIsNoop(t *testing.T) {
	emitter := telemetry.NewAuditEmitter(nil, "audit.chat", "flatter-chat", "test")
	emitter.Emit(context.Background(), "INFO", "dropped", "req-2", nil)

	var nilEmitter *telemetry.AuditEmitter
	nilEmitter.Emit(context.Background(), "INFO", "dropped", "req-3", nil)
}
