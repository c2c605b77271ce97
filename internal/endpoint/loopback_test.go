package endpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"mintgate/internal/bridge/mocks"
	"mintgate/pkg/domain"
	dErrors "mintgate/pkg/domain-errors"
)

func TestLoopback_RoutesToAttachedChain(t *testing.T) {
	ctrl := gomock.NewController(t)
	receiver := mocks.NewMockReceiver(ctrl)
	net := NewNetwork()
	net.Attach(2, receiver)

	receiver.EXPECT().Receive(gomock.Any(), domain.ChainID(1), []byte("env")).Return(nil)
	require.NoError(t, net.Endpoint(1).Send(context.Background(), 2, []byte("env")))
}

func TestLoopback_PropagatesReceiverError(t *testing.T) {
	ctrl := gomock.NewController(t)
	receiver := mocks.NewMockReceiver(ctrl)
	net := NewNetwork()
	net.Attach(2, receiver)

	receiver.EXPECT().Receive(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(dErrors.New(dErrors.CodeEnforcedPause, "paused"))
	err := net.Endpoint(1).Send(context.Background(), 2, []byte("env"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeEnforcedPause))
}

func TestLoopback_UnknownChain(t *testing.T) {
	net := NewNetwork()
	err := net.Endpoint(1).Send(context.Background(), 9, []byte("env"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))

	ctrl := gomock.NewController(t)
	net.Attach(9, mocks.NewMockReceiver(ctrl))
	net.Detach(9)
	err = net.Endpoint(1).Send(context.Background(), 9, []byte("env"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestLoopback_DelegatesAreShared(t *testing.T) {
	ctx := context.Background()
	net := NewNetwork()
	delegate := domain.MustParseAccount("0xd000000000000000000000000000000000000d0d")

	require.NoError(t, net.Endpoint(1).SetDelegate(ctx, 1, delegate))
	got, err := net.Endpoint(2).Delegate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, delegate, got)

	none, err := net.Endpoint(2).Delegate(ctx, 2)
	require.NoError(t, err)
	assert.True(t, domain.IsNull(none))
}

func TestTransient(t *testing.T) {
	assert.True(t, transient(dErrors.New(dErrors.CodeEnforcedPause, "")))
	assert.True(t, transient(dErrors.New(dErrors.CodeNoPeer, "")))
	assert.False(t, transient(dErrors.New(dErrors.CodeAlreadyBanned, "")))
	assert.False(t, transient(dErrors.New(dErrors.CodeUnauthorized, "")))
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "mintgate.bridge.30101", Topic(30101))
	assert.Equal(t, "mintgate.bridge.30101.dlq", DeadLetterTopic(30101))
}
