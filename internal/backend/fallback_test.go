package backend_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"examsolver/internal/backend"
	"examsolver/internal/port"
	"examsolver/mocks"
)

var testRequest = port.ReasoningRequest{ProblemID: 1, Stem: "2+2?", Choices: nil}

func TestFallbackBackend_PrimarySucceeds(t *testing.T) {
	primary := new(mocks.MockReasoningBackend)
	secondary := new(mocks.MockReasoningBackend)
	primary.On("Answer", mock.Anything, testRequest).Return(&port.ReasoningResponse{Text: "4", ModelUsed: "a"}, nil)

	fb := backend.NewFallbackBackend([]port.ReasoningBackend{primary, secondary}, []string{"a", "b"})
	out, err := fb.Answer(context.Background(), testRequest)

	require.NoError(t, err)
	assert.Equal(t, "4", out.Text)
	secondary.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
}

func TestFallbackBackend_FallsThroughOnTransient(t *testing.T) {
	primary := new(mocks.MockReasoningBackend)
	secondary := new(mocks.MockReasoningBackend)
	primary.On("Answer", mock.Anything, testRequest).Return(nil, &backend.TransientError{Provider: "a", Err: errors.New("503")})
	secondary.On("Answer", mock.Anything, testRequest).Return(&port.ReasoningResponse{Text: "4", ModelUsed: "b"}, nil)

	fb := backend.NewFallbackBackend([]port.ReasoningBackend{primary, secondary}, []string{"a", "b"})
	out, err := fb.Answer(context.Background(), testRequest)

	require.NoError(t, err)
	assert.Equal(t, "b", out.ModelUsed)
}

func TestFallbackBackend_RateLimitOpensCircuit(t *testing.T) {
	primary := new(mocks.MockReasoningBackend)
	secondary := new(mocks.MockReasoningBackend)
	primary.On("Answer", mock.Anything, testRequest).
		Return(nil, backend.NewRateLimitError("a", errors.New("429"), 30)).Once()
	secondary.On("Answer", mock.Anything, testRequest).Return(&port.ReasoningResponse{Text: "4", ModelUsed: "b"}, nil)

	fb := backend.NewFallbackBackend([]port.ReasoningBackend{primary, secondary}, []string{"a", "b"})
	_, err := fb.Answer(context.Background(), testRequest)
	require.NoError(t, err)

	// second call skips the rate limited primary entirely
	_, err = fb.Answer(context.Background(), testRequest)
	require.NoError(t, err)
	primary.AssertNumberOfCalls(t, "Answer", 1)
	secondary.AssertNumberOfCalls(t, "Answer", 2)
}

func TestFallbackBackend_AllRateLimited(t *testing.T) {
	primary := new(mocks.MockReasoningBackend)
	secondary := new(mocks.MockReasoningBackend)
	primary.On("Answer", mock.Anything, testRequest).Return(nil, backend.NewRateLimitError("a", errors.New("429"), 5))
	secondary.On("Answer", mock.Anything, testRequest).Return(nil, backend.NewRateLimitError("b", errors.New("429"), 10))

	fb := backend.NewFallbackBackend([]port.ReasoningBackend{primary, secondary}, []string{"a", "b"})
	_, err := fb.Answer(context.Background(), testRequest)

	var rl *backend.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, "all", rl.Provider)
	assert.True(t, backend.IsTransient(err))
}

func TestFallbackBackend_AllPermanent(t *testing.T) {
	primary := new(mocks.MockReasoningBackend)
	secondary := new(mocks.MockReasoningBackend)
	primary.On("Answer", mock.Anything, testRequest).Return(nil, &backend.PermanentError{Provider: "a", Err: errors.New("401")})
	secondary.On("Answer", mock.Anything, testRequest).Return(nil, &backend.PermanentError{Provider: "b", Err: errors.New("400")})

	fb := backend.NewFallbackBackend([]port.ReasoningBackend{primary, secondary}, []string{"a", "b"})
	_, err := fb.Answer(context.Background(), testRequest)

	require.Error(t, err)
	assert.False(t, backend.IsTransient(err))
}

func TestFallbackBackend_MixedFailuresAreTransient(t *testing.T) {
	primary := new(mocks.MockReasoningBackend)
	secondary := new(mocks.MockReasoningBackend)
	primary.On("Answer", mock.Anything, testRequest).Return(nil, &backend.PermanentError{Provider: "a", Err: errors.New("401")})
	secondary.On("Answer", mock.Anything, testRequest).Return(nil, &backend.TransientError{Provider: "b", Err: errors.New("502")})

	fb := backend.NewFallbackBackend([]port.ReasoningBackend{primary, secondary}, []string{"a", "b"})
	_, err := fb.Answer(context.Background(), testRequest)

	var tr *backend.TransientError
	require.True(t, errors.As(err, &tr))
	assert.Equal(t, "all", tr.Provider)
}

func TestFallbackBackend_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := new(mocks.MockReasoningBackend)
	secondary := new(mocks.MockReasoningBackend)
	primary.On("Answer", mock.Anything, testRequest).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	fb := backend.NewFallbackBackend([]port.ReasoningBackend{primary, secondary}, []string{"a", "b"})
	_, err := fb.Answer(ctx, testRequest)

	assert.ErrorIs(t, err, context.Canceled)
	secondary.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything)
}
