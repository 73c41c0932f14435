package notification

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/devblocker/devblocker/internal/event"
	"github.com/devblocker/devblocker/internal/model"
)

// The decide functions are pure: event payload plus pre-fetched context
// in, notification set out. All fan-out rules live here so they can be
// tested without a database or a peer service.
//
// The per-event asymmetries are deliberate and preserved from the
// product's behavior rather than normalized:
//
//   - blocker.created notifies the creator about their own action (a
//     confirmation), on top of notifying the assignee and team.
//   - comment.added and solution.added never notify the actor, and a
//     user who is both creator and assignee gets one notification.
//   - solution.accepted notifies the solution author unless they
//     accepted their own solution.

// BlockerContext is the supplementary context for comment.added and
// solution.added fan-out, fetched from the blocker service.
type BlockerContext struct {
	Title      string
	CreatedBy  *uuid.UUID
	AssignedTo *uuid.UUID
}

// DecideBlockerCreated computes the fan-out for blocker.created. roster
// is the team member list, or nil when the blocker has no team or the
// roster lookup failed (fail-open).
func DecideBlockerCreated(p event.BlockerCreatedPayload, roster []uuid.UUID) []model.Notification {
	createdBy, err := uuid.Parse(p.CreatedBy)
	if err != nil {
		return nil
	}
	var assignedTo *uuid.UUID
	if p.AssignedTo != "" {
		if id, err := uuid.Parse(p.AssignedTo); err == nil {
			assignedTo = &id
		}
	}

	var out []model.Notification

	// Assignee first, unless they created the blocker themselves.
	if assignedTo != nil && *assignedTo != createdBy {
		out = append(out, newNotification(*assignedTo, model.NotifyBlockerCreated,
			"New Blocker Assigned",
			fmt.Sprintf("A new blocker '%s' has been assigned to you", p.Title),
			p.BlockerID))
	}

	// The creator always gets a confirmation of their own action.
	out = append(out, newNotification(createdBy, model.NotifyBlockerCreated,
		"Blocker Created",
		fmt.Sprintf("You created a new blocker '%s'", p.Title),
		p.BlockerID))

	// Team members, skipping anyone already notified above.
	for _, memberID := range roster {
		if memberID == createdBy {
			continue
		}
		if assignedTo != nil && memberID == *assignedTo {
			continue
		}
		out = append(out, newNotification(memberID, model.NotifyTeamBlockerCreated,
			"New Team Blocker",
			fmt.Sprintf("A new blocker '%s' was created in your team (%s)", p.Title, p.TeamCode),
			p.BlockerID))
	}
	return out
}

// DecideCommentAdded computes the fan-out for comment.added. The comment
// author is never notified, and a user who is both creator and assignee
// gets a single notification.
func DecideCommentAdded(p event.CommentAddedPayload, blocker BlockerContext) []model.Notification {
	actor, err := uuid.Parse(p.UserID)
	if err != nil {
		return nil
	}
	return decideParticipants(actor, blocker, model.NotifyCommentAdded,
		"New Comment on Blocker",
		fmt.Sprintf("A new comment was added to blocker '%s'", blocker.Title),
		p.BlockerID)
}

// DecideSolutionAdded computes the fan-out for solution.added with the
// same participant rules as comment.added.
func DecideSolutionAdded(p event.SolutionAddedPayload, blocker BlockerContext) []model.Notification {
	actor, err := uuid.Parse(p.UserID)
	if err != nil {
		return nil
	}
	return decideParticipants(actor, blocker, model.NotifySolutionAdded,
		"New Solution for Blocker",
		fmt.Sprintf("A new solution was added for blocker '%s'", blocker.Title),
		p.BlockerID)
}

// DecideSolutionAccepted notifies the solution author, unless they
// accepted their own solution.
func DecideSolutionAccepted(p event.SolutionAcceptedPayload) []model.Notification {
	author, err := uuid.Parse(p.UserID)
	if err != nil {
		return nil
	}
	acceptedBy, err := uuid.Parse(p.AcceptedBy)
	if err != nil {
		return nil
	}
	if author == acceptedBy {
		return nil
	}
	return []model.Notification{newNotification(author, model.NotifySolutionAccepted,
		"Solution Accepted!",
		"Your solution for blocker has been accepted as the best solution",
		p.BlockerID)}
}

// decideParticipants notifies the blocker creator and assignee about an
// action on the blocker, excluding the actor and de-duplicating the
// creator/assignee roles.
func decideParticipants(actor uuid.UUID, blocker BlockerContext, typ model.NotificationType, title, message, blockerID string) []model.Notification {
	var out []model.Notification
	if blocker.CreatedBy != nil && *blocker.CreatedBy != actor {
		out = append(out, newNotification(*blocker.CreatedBy, typ, title, message, blockerID))
	}
	if blocker.AssignedTo != nil && *blocker.AssignedTo != actor &&
		(blocker.CreatedBy == nil || *blocker.AssignedTo != *blocker.CreatedBy) {
		out = append(out, newNotification(*blocker.AssignedTo, typ, title, message, blockerID))
	}
	return out
}

func newNotification(userID uuid.UUID, typ model.NotificationType, title, message, blockerID string) model.Notification {
	return model.Notification{
		ID:                uuid.New(),
		UserID:            userID,
		Type:              typ,
		Title:             title,
		Message:           message,
		RelatedEntityID:   blockerID,
		RelatedEntityType: "blocker",
		CreatedAt:         time.Now().UTC(),
	}
}
