package fallback_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/MegaGrindStone/meet-assistant/internal/fallback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestFirst(t *testing.T) {
	errBoom := errors.New("boom")
	var calls []string

	step := func(name string, v int, err error) fallback.Step[int] {
		return fallback.Step[int]{
			Name: name,
			Try: func(context.Context) (int, error) {
				calls = append(calls, name)
				return v, err
			},
		}
	}

	tests := []struct {
		name      string
		steps     []fallback.Step[int]
		want      int
		wantStep  string
		wantCalls []string
		wantErr   bool
	}{
		{
			name:      "first wins",
			steps:     []fallback.Step[int]{step("a", 1, nil), step("b", 2, nil)},
			want:      1,
			wantStep:  "a",
			wantCalls: []string{"a"},
		},
		{
			name:      "falls through failures in order",
			steps:     []fallback.Step[int]{step("a", 0, errBoom), step("b", 0, errBoom), step("c", 3, nil)},
			want:      3,
			wantStep:  "c",
			wantCalls: []string{"a", "b", "c"},
		},
		{
			name:      "nil steps are skipped",
			steps:     []fallback.Step[int]{{Name: "disabled"}, step("b", 2, nil)},
			want:      2,
			wantStep:  "b",
			wantCalls: []string{"b"},
		},
		{
			name:      "all fail",
			steps:     []fallback.Step[int]{step("a", 9, errBoom), step("b", 9, errBoom)},
			wantCalls: []string{"a", "b"},
			wantErr:   true,
		},
		{
			name:    "no steps",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = nil

			got, name, err := fallback.First(context.Background(), discard, tt.steps...)

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.ErrorIs(t, err, fallback.ErrExhausted)
				assert.Zero(t, got)
				assert.Empty(t, name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantStep, name)
		})
	}
}

func TestFirstStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, _, err := fallback.First(ctx, discard, fallback.Step[string]{
		Name: "never",
		Try: func(context.Context) (string, error) {
			called = true
			return "x", nil
		},
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
