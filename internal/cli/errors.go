package cli

import "fmt"

type notFoundError struct {
	kind string
	id   string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.kind, e.id)
}

func errNotFound(kind, id string) error {
	return notFoundError{kind: kind, id: id}
}

type notLoggedInError struct{}

func (notLoggedInError) Error() string {
	return "not logged in; run `sprintdesk login --token <jwt>` (or pass --token)"
}

func errNotLoggedIn() error { return notLoggedInError{} }

type confirmRequiredError struct {
	action string
	id     string
}

func (e confirmRequiredError) Error() string {
	return fmt.Sprintf("refusing to %s %s without --yes", e.action, e.id)
}

func errConfirmRequired(action, id string) error {
	return confirmRequiredError{action: action, id: id}
}

type noBoardError struct{}

func (noBoardError) Error() string {
	return "no board selected; pass --project and --sprint"
}
