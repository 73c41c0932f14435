// Package event defines the cross-service message schema and the static
// routing topology.
//
// Every state change that other services react to travels as an Envelope.
// The envelope's payload is decoded exactly once, at the channel boundary,
// into one of the typed payload structs below; consumers receive a typed
// body and never re-parse payload maps.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies an event type. Kind strings double as routing keys.
type Kind string

const (
	UserRegistered   Kind = "user.registered"
	UserUpdated      Kind = "user.updated"
	BlockerCreated   Kind = "blocker.created"
	BlockerUpdated   Kind = "blocker.updated"
	BlockerResolved  Kind = "blocker.resolved"
	CommentAdded     Kind = "comment.added"
	SolutionAdded    Kind = "solution.added"
	SolutionUpvoted  Kind = "solution.upvoted"
	SolutionAccepted Kind = "solution.accepted"
)

// Envelope is an immutable cross-service message. Body holds the typed
// payload for Kind; EntityIDs carries every referenced ID serialized as
// text so consumers can log and route without decoding the body.
type Envelope struct {
	Kind       Kind
	EntityIDs  map[string]string
	OccurredAt time.Time
	Body       any
}

// wireEnvelope is the JSON layout on the channel.
type wireEnvelope struct {
	EventType  Kind              `json:"event_type"`
	EntityIDs  map[string]string `json:"entity_ids"`
	Payload    json.RawMessage   `json:"payload"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Marshal encodes an envelope for transport.
func Marshal(env Envelope) ([]byte, error) {
	payload, err := json.Marshal(env.Body)
	if err != nil {
		return nil, fmt.Errorf("event: marshal %s payload: %w", env.Kind, err)
	}
	return json.Marshal(wireEnvelope{
		EventType:  env.Kind,
		EntityIDs:  env.EntityIDs,
		Payload:    payload,
		OccurredAt: env.OccurredAt,
	})
}

// Unmarshal decodes a wire message and its payload into the typed body
// for the envelope's kind. Unknown kinds are an error: the topology is
// static and a consumer must never receive a kind it has no route for.
func Unmarshal(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, fmt.Errorf("event: unmarshal envelope: %w", err)
	}

	body, err := newBody(w.EventType)
	if err != nil {
		return Envelope{}, err
	}
	if err := json.Unmarshal(w.Payload, body); err != nil {
		return Envelope{}, fmt.Errorf("event: unmarshal %s payload: %w", w.EventType, err)
	}

	return Envelope{
		Kind:       w.EventType,
		EntityIDs:  w.EntityIDs,
		OccurredAt: w.OccurredAt,
		Body:       deref(w.EventType, body),
	}, nil
}

func newBody(kind Kind) (any, error) {
	switch kind {
	case UserRegistered:
		return &UserRegisteredPayload{}, nil
	case UserUpdated:
		return &UserUpdatedPayload{}, nil
	case BlockerCreated:
		return &BlockerCreatedPayload{}, nil
	case BlockerUpdated:
		return &BlockerUpdatedPayload{}, nil
	case BlockerResolved:
		return &BlockerResolvedPayload{}, nil
	case CommentAdded:
		return &CommentAddedPayload{}, nil
	case SolutionAdded:
		return &SolutionAddedPayload{}, nil
	case SolutionUpvoted:
		return &SolutionUpvotedPayload{}, nil
	case SolutionAccepted:
		return &SolutionAcceptedPayload{}, nil
	default:
		return nil, fmt.Errorf("event: unknown kind %q", kind)
	}
}

// deref unwraps the pointer allocated in newBody so Envelope.Body holds a
// value and type switches in consumers match on the struct type.
func deref(kind Kind, body any) any {
	switch b := body.(type) {
	case *UserRegisteredPayload:
		return *b
	case *UserUpdatedPayload:
		return *b
	case *BlockerCreatedPayload:
		return *b
	case *BlockerUpdatedPayload:
		return *b
	case *BlockerResolvedPayload:
		return *b
	case *CommentAddedPayload:
		return *b
	case *SolutionAddedPayload:
		return *b
	case *SolutionUpvotedPayload:
		return *b
	case *SolutionAcceptedPayload:
		return *b
	default:
		panic(fmt.Sprintf("event: deref missing case for %s", kind))
	}
}
