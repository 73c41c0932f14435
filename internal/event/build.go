package event

import "time"

// Constructors stamp OccurredAt and populate EntityIDs from the payload so
// every publisher produces the same envelope shape for a given kind.

func NewUserRegistered(p UserRegisteredPayload) Envelope {
	return build(UserRegistered, p, map[string]string{"user_id": p.UserID})
}

func NewUserUpdated(p UserUpdatedPayload) Envelope {
	return build(UserUpdated, p, map[string]string{"user_id": p.UserID})
}

func NewBlockerCreated(p BlockerCreatedPayload) Envelope {
	ids := map[string]string{"blocker_id": p.BlockerID, "user_id": p.CreatedBy}
	return build(BlockerCreated, p, ids)
}

func NewBlockerUpdated(p BlockerUpdatedPayload) Envelope {
	return build(BlockerUpdated, p, map[string]string{"blocker_id": p.BlockerID})
}

func NewBlockerResolved(p BlockerResolvedPayload) Envelope {
	return build(BlockerResolved, p, map[string]string{"blocker_id": p.BlockerID})
}

func NewCommentAdded(p CommentAddedPayload) Envelope {
	ids := map[string]string{
		"comment_id": p.CommentID,
		"blocker_id": p.BlockerID,
		"user_id":    p.UserID,
	}
	return build(CommentAdded, p, ids)
}

func NewSolutionAdded(p SolutionAddedPayload) Envelope {
	return build(SolutionAdded, p, solutionIDs(p.SolutionID, p.BlockerID, p.UserID))
}

func NewSolutionUpvoted(p SolutionUpvotedPayload) Envelope {
	return build(SolutionUpvoted, p, solutionIDs(p.SolutionID, p.BlockerID, p.UserID))
}

func NewSolutionAccepted(p SolutionAcceptedPayload) Envelope {
	return build(SolutionAccepted, p, solutionIDs(p.SolutionID, p.BlockerID, p.UserID))
}

func solutionIDs(solutionID, blockerID, userID string) map[string]string {
	return map[string]string{
		"solution_id": solutionID,
		"blocker_id":  blockerID,
		"user_id":     userID,
	}
}

func build(kind Kind, body any, ids map[string]string) Envelope {
	return Envelope{
		Kind:       kind,
		EntityIDs:  ids,
		OccurredAt: time.Now().UTC(),
		Body:       body,
	}
}
