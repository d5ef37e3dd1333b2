package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageUnmarshal_StringContent(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(`{"role":"user","content":"hi","turnId":"t1"}`), &m))

	assert.Equal(t, RoleUser, m.Role)
	assert.Equal(t, "t1", m.TurnID)
	require.Len(t, m.Content, 1)
	assert.Equal(t, TextBlock("hi"), m.Content[0])
}

func TestMessageUnmarshal_BlocksSkipUnknown(t *testing.T) {
	raw := `{"role":"assistant","content":[
		{"type":"text","text":"a"},
		{"type":"thinking","thinking":"hmm"},
		{"type":"tool_use","id":"t1","name":"search","input":{"q":"x"},"extra":1}
	]}`
	var m Message
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	require.Len(t, m.Content, 2)
	assert.Equal(t, BlockText, m.Content[0].Type)
	assert.Equal(t, "search", m.Content[1].Name)
	assert.JSONEq(t, `{"q":"x"}`, string(m.Content[1].Input))
}

func TestContentBlockMarshal_Allowlist(t *testing.T) {
	tests := []struct {
		name  string
		block ContentBlock
		want  string
	}{
		{
			name:  "text drops unrelated fields",
			block: ContentBlock{Type: BlockText, Text: "hi", Name: "leak", ToolUseID: "leak"},
			want:  `{"type":"text","text":"hi"}`,
		},
		{
			name:  "tool_use with missing input",
			block: ContentBlock{Type: BlockToolUse, ID: "a", Name: "ping"},
			want:  `{"type":"tool_use","id":"a","name":"ping","input":{}}`,
		},
		{
			name:  "tool_result",
			block: ToolResultBlock("a", "ok"),
			want:  `{"type":"tool_result","tool_use_id":"a","content":"ok"}`,
		},
		{
			name:  "image",
			block: ImageBlock("image/png", "AAAA"),
			want:  `{"type":"image","source":{"type":"base64","media_type":"image/png","data":"AAAA"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.block)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestToolResultUnmarshal_ArrayContent(t *testing.T) {
	var b ContentBlock
	require.NoError(t, json.Unmarshal([]byte(`{"type":"tool_result","tool_use_id":"x","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}`), &b))
	assert.Equal(t, "ab", b.Content)
}

func TestClone_DoesNotShareMemory(t *testing.T) {
	orig := Message{Role: RoleAssistant, Content: []ContentBlock{
		ToolUseBlock("id1", "search", json.RawMessage(`{"q":"cats"}`)),
		ImageBlock("image/png", "AAAA"),
	}}
	c := orig.Clone()
	c.Content[0].Input[2] = 'Z'
	c.Content[1].Source.Data = "BBBB"
	c.Content[0] = TextBlock("replaced")

	assert.Equal(t, "search", orig.Content[0].Name)
	assert.JSONEq(t, `{"q":"cats"}`, string(orig.Content[0].Input))
	assert.Equal(t, "AAAA", orig.Content[1].Source.Data)
}

func TestObjectOrEmpty(t *testing.T) {
	assert.Equal(t, `{}`, string(ObjectOrEmpty(nil)))
	assert.Equal(t, `{}`, string(ObjectOrEmpty(json.RawMessage(`[1]`))))
	assert.Equal(t, `{}`, string(ObjectOrEmpty(json.RawMessage(`{"a":`))))
	assert.Equal(t, `{"a":1}`, string(ObjectOrEmpty(json.RawMessage(` {"a":1} `))))
}

func TestIDGenerator_PerInstance(t *testing.T) {
	a := NewIDGenerator("gemini_call")
	b := NewIDGenerator("gemini_call")
	assert.Equal(t, "gemini_call_1", a.Next())
	assert.Equal(t, "gemini_call_2", a.Next())
	assert.Equal(t, "gemini_call_1", b.Next())
	assert.NotEqual(t, NewToolUseID(), NewToolUseID())
}

func TestParseVendor(t *testing.T) {
	v, err := ParseVendor(" Gemini ")
	require.NoError(t, err)
	assert.Equal(t, VendorGemini, v)

	v, err = ParseVendor("claude")
	require.NoError(t, err)
	assert.Equal(t, VendorAnthropic, v)

	_, err = ParseVendor("bard")
	assert.Error(t, err)
	assert.True(t, VendorOllama.OpenAICompatible())
	assert.False(t, VendorGemini.OpenAICompatible())
}
