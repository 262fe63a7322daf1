package board

import (
	"errors"
	"fmt"
	"strings"

	"sprintdesk/internal/model"
)

// userMessager is implemented by backend errors that carry server-supplied text.
type userMessager interface {
	UserMessage() string
}

// UserMessage returns the backend-supplied message carried by err, or fallback.
func UserMessage(err error, fallback string) string {
	var um userMessager
	if errors.As(err, &um) {
		if msg := strings.TrimSpace(um.UserMessage()); msg != "" {
			return msg
		}
	}
	return fallback
}

// FetchError reports a failed board load. The board keeps whatever state it had.
type FetchError struct {
	ProjectID model.ID
	SprintID  model.ID
	Err       error
}

func (e FetchError) Error() string {
	return fmt.Sprintf("load tasks (project %s, sprint %s): %s", e.ProjectID, e.SprintID,
		UserMessage(e.Err, "Impossible de charger les tâches pour ce sprint."))
}

func (e FetchError) Unwrap() error { return e.Err }

// MutationError reports a backend confirmation that failed. Optimistic changes have
// already been rolled back when it is returned.
type MutationError struct {
	Op     string
	TaskID model.ID
	Err    error
}

func (e MutationError) Error() string {
	msg := UserMessage(e.Err, fallbackForOp(e.Op))
	if e.TaskID.IsZero() {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.TaskID, msg)
}

func (e MutationError) Unwrap() error { return e.Err }

func fallbackForOp(op string) string {
	switch op {
	case OpStatus:
		return "Erreur lors de la mise à jour du statut."
	case OpSubtask:
		return "Erreur lors de la mise à jour du statut de la sous-tâche."
	case OpDelete:
		return "Impossible de supprimer la tâche."
	case OpMarkRead:
		return "Impossible de marquer les messages comme lus."
	case OpSendMessage:
		return "Impossible d'envoyer le message."
	default:
		return "Impossible d'enregistrer la tâche."
	}
}

// ValidationError is returned before any network call when a local precondition fails.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "invalid: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Operation names used in MutationError.Op.
const (
	OpStatus        = "status"
	OpSubtask       = "subtask"
	OpCreate        = "create"
	OpUpdate        = "update"
	OpDelete        = "delete"
	OpAddSubtask    = "add-subtask"
	OpRemoveSubtask = "remove-subtask"
	OpMarkRead      = "mark-read"
	OpSendMessage   = "send-message"
)
