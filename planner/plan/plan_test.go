//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-agent-graph/model"
	"trpc.group/trpc-go/trpc-agent-graph/planner"
	"trpc.group/trpc-go/trpc-agent-graph/state"
)

func TestPlanningMessages(t *testing.T) {
	msgs := New().PlanningMessages(context.Background(), nil)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, PlanTag)
	assert.Equal(t, true, msgs[0].Metadata[planner.MetadataPlanning])

	assert.Nil(t, New(WithPlanningPrompt("")).PlanningMessages(context.Background(), nil))
	assert.Equal(t, "be brief", New(WithInstruction("be brief")).
		BuildPlanningInstruction(context.Background(), nil, nil))
}

func TestProcessPlanningResponse(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		content  string
		wantText string
		wantPlan string
	}{
		{
			name:     "plan and final answer",
			content:  PlanTag + "\n1. add\n" + ExecuteTag + " calling add " + FinalAnswerTag + " 3",
			wantText: "3",
			wantPlan: "1. add",
		},
		{
			name:     "plan then execution text",
			content:  PlanTag + " 1. look " + ExecuteTag + " looked it up",
			wantText: "looked it up",
			wantPlan: "1. look",
		},
		{
			name:     "no tags",
			content:  "hello",
			wantText: "hello",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := state.New("t", "th")
			rsp := &model.Response{Choices: []model.Choice{{Message: model.NewAssistantMessage(tt.content)}}}
			out := New().ProcessPlanningResponse(ctx, st, rsp)
			require.NotNil(t, out)
			assert.Equal(t, tt.wantText, out.Text())
			got, _ := st.GetString(StateKeyPlan)
			assert.Equal(t, tt.wantPlan, got)
		})
	}
}

func TestJoinInstruction(t *testing.T) {
	assert.Equal(t, "sys", planner.JoinInstruction("sys", ""))
	assert.Equal(t, "ins", planner.JoinInstruction("", "ins"))
	assert.Equal(t, "sys\n\nins", planner.JoinInstruction("sys\n", "ins"))
}
