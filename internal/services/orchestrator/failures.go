package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/unifiedui/multiagent-service/internal/services/dispatch"
	"github.com/unifiedui/multiagent-service/internal/services/gateway"
)

// User-facing replacement texts for failed agent replies.
const (
	MsgMissingAPIKey         = "该智能体未配置 API Key，无法回复"
	MsgInvalidCredential     = "API Key 无效或已过期，请检查配置"
	MsgRateLimited           = "请求过于频繁，请稍后再试"
	MsgServerError           = "服务器内部错误，请稍后再试"
	MsgRetry                 = "请求失败，请重试"
	MsgDispatchNotConfigured = "调度中心未配置，请联系管理员"
	MsgDispatchFailed        = "调度中心暂时不可用，请重试"

	msgUnknownMention = "未找到智能体「%s」，可用的智能体：%s"
	mentionSeparator  = "、"
)

// FailureMessage maps an agent call error to its user-facing text.
func FailureMessage(err error) string {
	switch gateway.Classify(err) {
	case gateway.KindConfiguration:
		return MsgMissingAPIKey
	case gateway.KindAuthentication:
		return MsgInvalidCredential
	case gateway.KindRateLimit:
		return MsgRateLimited
	case gateway.KindServer:
		return MsgServerError
	default:
		return MsgRetry
	}
}

func dispatchFailureMessage(err error) string {
	if errors.Is(err, dispatch.ErrDispatchNotConfigured) {
		return MsgDispatchNotConfigured
	}
	switch gateway.Classify(err) {
	case gateway.KindAuthentication:
		return MsgInvalidCredential
	case gateway.KindRateLimit:
		return MsgRateLimited
	default:
		return MsgDispatchFailed
	}
}

// UnknownMentionMessage lists the agents that can be mentioned.
func UnknownMentionMessage(name string, available []string) string {
	return fmt.Sprintf(msgUnknownMention, name, strings.Join(available, mentionSeparator))
}

func isCancellation(err error) bool {
	return gateway.Classify(err) == gateway.KindCancelled
}
