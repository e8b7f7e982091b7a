package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatModel records what the chain sends and answers with reply.
type fakeChatModel struct {
	reply    string
	err      error
	block    bool
	messages []*schema.Message
	options  *einomodel.Options
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.messages = input
	f.options = einomodel.GetCommonOptions(&einomodel.Options{}, opts...)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestChatOracle_Complete(t *testing.T) {
	fake := &fakeChatModel{reply: "  interaction \n"}
	oracle, err := NewChatOracle(context.Background(), fake, ChatOracleConfig{Timeout: time.Second, MaxTokens: 99})
	require.NoError(t, err)

	got, err := oracle.Complete(context.Background(), Request{
		Task:      "classify",
		System:    `Reply with {"label": ...}`,
		User:      "Met with {Sarah}",
		MaxTokens: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "interaction", got)

	require.Len(t, fake.messages, 2)
	assert.Equal(t, schema.System, fake.messages[0].Role)
	assert.Equal(t, `Reply with {"label": ...}`, fake.messages[0].Content)
	assert.Equal(t, "Met with {Sarah}", fake.messages[1].Content)

	require.NotNil(t, fake.options.MaxTokens)
	assert.Equal(t, 10, *fake.options.MaxTokens)
	require.NotNil(t, fake.options.Temperature)
	assert.Equal(t, float32(0), *fake.options.Temperature)
}

func TestChatOracle_DefaultsAndJSONMode(t *testing.T) {
	fake := &fakeChatModel{reply: `{"a":1}`}
	oracle, err := NewChatOracle(context.Background(), fake, ChatOracleConfig{MaxTokens: 42})
	require.NoError(t, err)

	_, err = oracle.Complete(context.Background(), Request{Task: "x", System: "sys", User: "u", JSON: true})
	require.NoError(t, err)

	assert.Equal(t, "sys"+jsonInstruction, fake.messages[0].Content)
	assert.Equal(t, 42, *fake.options.MaxTokens)
}

func TestChatOracle_Failures(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		oracle, err := NewChatOracle(context.Background(), &fakeChatModel{err: errors.New("boom")}, ChatOracleConfig{})
		require.NoError(t, err)
		_, err = oracle.Complete(context.Background(), Request{Task: "t"})
		assert.ErrorIs(t, err, ErrOracle)
	})

	t.Run("empty reply", func(t *testing.T) {
		oracle, err := NewChatOracle(context.Background(), &fakeChatModel{reply: "   "}, ChatOracleConfig{})
		require.NoError(t, err)
		_, err = oracle.Complete(context.Background(), Request{Task: "t"})
		assert.ErrorIs(t, err, ErrOracle)
	})

	t.Run("timeout", func(t *testing.T) {
		oracle, err := NewChatOracle(context.Background(), &fakeChatModel{block: true}, ChatOracleConfig{Timeout: 20 * time.Millisecond})
		require.NoError(t, err)

		start := time.Now()
		_, err = oracle.Complete(context.Background(), Request{Task: "t"})
		assert.ErrorIs(t, err, ErrOracle)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("nil model", func(t *testing.T) {
		_, err := NewChatOracle(context.Background(), nil, ChatOracleConfig{})
		assert.Error(t, err)
	})
}

func TestDecodeObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]any
		wantErr bool
	}{
		{name: "plain", raw: `{"name":"Sarah"}`, want: map[string]any{"name": "Sarah"}},
		{name: "fenced", raw: "```json\n{\"name\": \"Sarah\"}\n```", want: map[string]any{"name": "Sarah"}},
		{name: "prose", raw: `Sure! {"name": null} hope that helps`, want: map[string]any{"name": nil}},
		{name: "no object", raw: "interaction", wantErr: true},
		{name: "broken", raw: `{"name": }`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			err := DecodeObject(tt.raw, &got)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "Sarah", String("  Sarah "))
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "", String("null"))
	assert.Equal(t, "", String("N/A"))
	assert.Equal(t, "None", String("None"))
	assert.Equal(t, "", String(3.0))
}

func TestInt(t *testing.T) {
	n, ok := Int(3.0)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	n, ok = Int("5")
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	_, ok = Int(0.0)
	assert.False(t, ok)
	_, ok = Int(2.5)
	assert.False(t, ok)
	_, ok = Int(nil)
	assert.False(t, ok)
}
