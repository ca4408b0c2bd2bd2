package bot

import "errors"

var (
	// ErrValidation marks a malformed submission.
	ErrValidation = errors.New("invalid request")

	// ErrPermission marks a command the submitter may not use.
	ErrPermission = errors.New("permission denied")

	// ErrAddonMissing is returned when the addon archive is not installed.
	ErrAddonMissing = errors.New("addon not available")
)

// Error pairs a classification with the reply shown to the user.
type Error struct {
	Kind  error
	Reply string
}

func (e *Error) Error() string {
	return e.Reply
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func replyError(kind error, reply string) error {
	return &Error{Kind: kind, Reply: reply}
}
