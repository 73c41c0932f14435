package event

import (
	"fmt"
	"sort"
)

// Exchange names. One exchange per owning service.
const (
	UserExchange     = "user.events"
	BlockerExchange  = "blocker.events"
	CommentExchange  = "comment.events"
	SolutionExchange = "solution.events"
)

// Queue names. One queue per (consumer service, event kind) pair; the
// notification service prefixes its queues to keep them distinct from the
// blocker service's queues bound to the same routing keys.
const (
	UserRegisteredQueue = "user.registered.queue"

	SolutionAddedQueue    = "solution.added.queue"
	SolutionAcceptedQueue = "solution.accepted.queue"

	NotifyBlockerCreatedQueue   = "notification.blocker.created.queue"
	NotifyCommentAddedQueue     = "notification.comment.added.queue"
	NotifySolutionAddedQueue    = "notification.solution.added.queue"
	NotifySolutionAcceptedQueue = "notification.solution.accepted.queue"
)

// Route binds one event kind to its exchange and the queues that consume
// it. Routing key equals the kind string; it is never derived from payload
// content at runtime.
type Route struct {
	Exchange string
	Key      string
	Queues   []string
}

// Topology is the static routing table, constructed once at process start
// and passed by reference to publisher and consumer constructors.
type Topology map[Kind]Route

// DefaultTopology returns the full routing table. Kinds with no queues are
// published for external subscribers but consumed by nothing in-repo.
func DefaultTopology() Topology {
	return Topology{
		UserRegistered: {UserExchange, string(UserRegistered), []string{UserRegisteredQueue}},
		UserUpdated:    {UserExchange, string(UserUpdated), nil},

		BlockerCreated:  {BlockerExchange, string(BlockerCreated), []string{NotifyBlockerCreatedQueue}},
		BlockerUpdated:  {BlockerExchange, string(BlockerUpdated), nil},
		BlockerResolved: {BlockerExchange, string(BlockerResolved), nil},

		CommentAdded: {CommentExchange, string(CommentAdded), []string{NotifyCommentAddedQueue}},

		SolutionAdded:    {SolutionExchange, string(SolutionAdded), []string{SolutionAddedQueue, NotifySolutionAddedQueue}},
		SolutionUpvoted:  {SolutionExchange, string(SolutionUpvoted), nil},
		SolutionAccepted: {SolutionExchange, string(SolutionAccepted), []string{SolutionAcceptedQueue, NotifySolutionAcceptedQueue}},
	}
}

// Queues returns every queue bound in the table, deduplicated and in a
// stable order.
func (t Topology) Queues() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t {
		for _, q := range r.Queues {
			if _, ok := seen[q]; ok {
				continue
			}
			seen[q] = struct{}{}
			out = append(out, q)
		}
	}
	sort.Strings(out)
	return out
}

// Route returns the route for kind, or an error for kinds outside the
// table. Publishing an unrouted kind is a programming error.
func (t Topology) Route(kind Kind) (Route, error) {
	r, ok := t[kind]
	if !ok {
		return Route{}, fmt.Errorf("event: no route for kind %q", kind)
	}
	return r, nil
}
