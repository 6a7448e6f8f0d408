package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/campaigner/provider/providertest"
)

func TestModerateTextVerdicts(t *testing.T) {
	cases := []struct {
		name       string
		answer     string
		wantPassed bool
		wantIssues []any
	}{
		{"safe", `{"safe": true, "issues": []}`, true, []any{}},
		{"unsafe fenced", "```json\n{\"safe\": false, \"issues\": [\"misleading claim\"]}\n```", false, []any{"misleading claim"}},
		{"unparsable", "looks fine to me", true, []any{}},
		{"missing verdict", `{"issues": ["x"]}`, true, []any{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tool := New(providertest.New(tc.answer), Config{}, nil)
			res, err := tool.Execute(context.Background(), map[string]any{"type": "text", "text": "Buy now, cures everything"})
			require.NoError(t, err)
			require.True(t, res.OK())
			require.Equal(t, tc.wantPassed, res["moderation_passed"])
			require.Equal(t, tc.wantIssues, res["issues"])
		})
	}
}

func TestModerateTextProviderErrorFailOpen(t *testing.T) {
	fake := providertest.New().Queue(providertest.Reply{Err: errors.New("503")})
	res, err := New(fake, Config{}, nil).Execute(context.Background(), map[string]any{"text": "hello"})
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, true, res["moderation_passed"])
	require.Equal(t, "503", res.ErrorMessage())
}

func TestModerateTextProviderErrorFailClosed(t *testing.T) {
	fake := providertest.New().Queue(providertest.Reply{Err: errors.New("503")})
	res, err := New(fake, Config{FailClosed: true}, nil).Execute(context.Background(), map[string]any{"content": "hello"})
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, false, res["moderation_passed"])
	require.Equal(t, []any{"moderation unavailable: 503"}, res["issues"])
}

func TestModerateImageIsPassThrough(t *testing.T) {
	fake := providertest.New()
	res, err := New(fake, Config{FailClosed: true}, nil).Execute(context.Background(), map[string]any{"type": "image", "url": "/a.png"})
	require.NoError(t, err)
	require.Equal(t, true, res["moderation_passed"])
	require.Zero(t, fake.Calls())
}

func TestModerateEmptyTextSkipsProvider(t *testing.T) {
	fake := providertest.New()
	res, err := New(fake, Config{}, nil).Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.Equal(t, true, res["moderation_passed"])
	require.Zero(t, fake.Calls())
}
