package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/multiagent-service/internal/domain/models"
)

func TestFindMention(t *testing.T) {
	travelPlus := &models.Agent{ID: "a-travel-plus", Name: "旅行管家Pro"}
	agents := []*models.Agent{travelAgent, doctorAgent, travelPlus}

	tests := []struct {
		name      string
		text      string
		wantName  string
		wantAgent *models.Agent
		wantNil   bool
	}{
		{name: "leading mention", text: "@旅行管家 东京三天行程", wantName: "旅行管家", wantAgent: travelAgent},
		{name: "mention after text", text: "请 @医生 看看", wantName: "医生", wantAgent: doctorAgent},
		{name: "mention at end of text", text: "请帮忙 @医生", wantName: "医生", wantAgent: doctorAgent},
		{name: "name must match exactly", text: "@医生你好", wantName: "医生你好"},
		{name: "prefix of a longer name is not a match", text: "@旅行管家P 规划", wantName: "旅行管家P"},
		{name: "longest name wins", text: "@旅行管家Pro 规划", wantName: "旅行管家Pro", wantAgent: travelPlus},
		{name: "unknown name", text: "@律师 合同问题", wantName: "律师"},
		{name: "email is not a mention", text: "mail me at a@医生.com", wantNil: true},
		{name: "bare marker", text: "@ hello", wantNil: true},
		{name: "no mention", text: "东京三天行程", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := FindMention(tt.text, agents)
			if tt.wantNil {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tt.wantName, m.Name)
			assert.Equal(t, tt.wantAgent, m.Agent)
		})
	}
}
