package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBreaker_PassesThrough(t *testing.T) {
	b := New[int](DefaultSettings("test"), zap.NewNop())

	v, err := b.Execute(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := New[string](Settings{Name: "test", ConsecutiveFailures: 2, OpenTimeout: time.Minute}, zap.NewNop())
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		_, err := b.Execute(func() (string, error) { return "", boom })
		assert.ErrorIs(t, err, boom)
	}

	called := false
	_, err := b.Execute(func() (string, error) {
		called = true
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, "open", b.State())
}

func TestBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	notFound := errors.New("not found")
	s := Settings{Name: "test", ConsecutiveFailures: 1, OpenTimeout: time.Minute, Ignore: []error{notFound}}
	b := New[int](s, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := b.Execute(func() (int, error) { return 0, notFound })
		assert.ErrorIs(t, err, notFound)
	}
	assert.Equal(t, "closed", b.State())
}
