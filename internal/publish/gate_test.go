package publish

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devblocker/devblocker/internal/event"
	"github.com/devblocker/devblocker/internal/testutil"
	"github.com/google/uuid"
)

func newAcceptedEnvelope() event.Envelope {
	return event.NewSolutionAccepted(event.SolutionAcceptedPayload{
		SolutionID: uuid.NewString(),
		BlockerID:  uuid.NewString(),
		UserID:     uuid.NewString(),
		AcceptedBy: uuid.NewString(),
	})
}

type stubChannel struct {
	published []event.Envelope
	err       error
}

func (s *stubChannel) Publish(_ context.Context, env event.Envelope) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, env)
	return nil
}

func (s *stubChannel) Consume(context.Context, string) (<-chan event.Envelope, error) {
	return nil, errors.New("not implemented")
}

func TestGate_PublishesImmediatelyOutsideTransaction(t *testing.T) {
	ch := &stubChannel{}
	gate := NewGate(ch, testutil.TestLogger())

	gate.Stage(context.Background(), newAcceptedEnvelope())

	require.Len(t, ch.published, 1)
	assert.Equal(t, event.SolutionAccepted, ch.published[0].Kind)
}

func TestGate_SwallowsPublishFailure(t *testing.T) {
	ch := &stubChannel{err: errors.New("broker unavailable")}
	gate := NewGate(ch, testutil.TestLogger())

	// Must not panic or surface the error: the commit already happened.
	gate.Stage(context.Background(), newAcceptedEnvelope())
	assert.Empty(t, ch.published)
}
