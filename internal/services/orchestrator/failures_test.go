package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unifiedui/multiagent-service/internal/services/dispatch"
	"github.com/unifiedui/multiagent-service/internal/services/gateway"
)

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{gateway.ErrMissingCredential, MsgMissingAPIKey},
		{&gateway.StatusError{StatusCode: 401}, MsgInvalidCredential},
		{&gateway.StatusError{StatusCode: 403}, MsgInvalidCredential},
		{fmt.Errorf("wrapped: %w", &gateway.StatusError{StatusCode: 429}), MsgRateLimited},
		{&gateway.StatusError{StatusCode: 500}, MsgServerError},
		{&gateway.StatusError{StatusCode: 502}, MsgRetry},
		{&gateway.StatusError{StatusCode: 404}, MsgRetry},
		{errors.New("boom"), MsgRetry},
		{fmt.Errorf("read: %w", gateway.ErrStreamIdle), MsgRetry},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FailureMessage(tt.err), "%v", tt.err)
	}
}

func TestDispatchFailureMessage(t *testing.T) {
	assert.Equal(t, MsgDispatchNotConfigured, dispatchFailureMessage(dispatch.ErrDispatchNotConfigured))
	assert.Equal(t, MsgRateLimited, dispatchFailureMessage(&gateway.StatusError{StatusCode: 429}))
	assert.Equal(t, MsgDispatchFailed, dispatchFailureMessage(&gateway.StatusError{StatusCode: 503}))
}

func TestUnknownMentionMessage(t *testing.T) {
	got := UnknownMentionMessage("律师", []string{"旅行管家", "医生"})

	assert.Equal(t, "未找到智能体「律师」，可用的智能体：旅行管家、医生", got)
}

func TestIsCancellation(t *testing.T) {
	assert.True(t, isCancellation(context.Canceled))
	assert.False(t, isCancellation(errors.New("boom")))
}
