package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devblocker/devblocker/internal/event"
)

// The exchange and routing key strings are a wire contract shared with
// external subscribers; this test pins them exactly.
func TestDefaultTopology_WireContract(t *testing.T) {
	topo := event.DefaultTopology()

	want := map[event.Kind]struct {
		exchange string
		key      string
		queues   []string
	}{
		event.UserRegistered:   {"user.events", "user.registered", []string{"user.registered.queue"}},
		event.UserUpdated:      {"user.events", "user.updated", nil},
		event.BlockerCreated:   {"blocker.events", "blocker.created", []string{"notification.blocker.created.queue"}},
		event.BlockerUpdated:   {"blocker.events", "blocker.updated", nil},
		event.BlockerResolved:  {"blocker.events", "blocker.resolved", nil},
		event.CommentAdded:     {"comment.events", "comment.added", []string{"notification.comment.added.queue"}},
		event.SolutionAdded:    {"solution.events", "solution.added", []string{"solution.added.queue", "notification.solution.added.queue"}},
		event.SolutionUpvoted:  {"solution.events", "solution.upvoted", nil},
		event.SolutionAccepted: {"solution.events", "solution.accepted", []string{"solution.accepted.queue", "notification.solution.accepted.queue"}},
	}

	require.Len(t, topo, len(want))
	for kind, w := range want {
		route, err := topo.Route(kind)
		require.NoError(t, err, kind)
		assert.Equal(t, w.exchange, route.Exchange, kind)
		assert.Equal(t, w.key, route.Key, kind)
		assert.Equal(t, w.queues, route.Queues, kind)
	}
}

func TestTopology_QueuesListsEveryBoundQueueOnce(t *testing.T) {
	topo := event.DefaultTopology()

	assert.Equal(t, []string{
		"notification.blocker.created.queue",
		"notification.comment.added.queue",
		"notification.solution.accepted.queue",
		"notification.solution.added.queue",
		"solution.accepted.queue",
		"solution.added.queue",
		"user.registered.queue",
	}, topo.Queues())
}

func TestTopology_UnroutedKind(t *testing.T) {
	topo := event.DefaultTopology()
	_, err := topo.Route(event.Kind("attachment.uploaded"))
	require.Error(t, err)
}
