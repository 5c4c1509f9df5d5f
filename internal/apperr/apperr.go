// Package apperr defines the error kinds surfaced by the advisory core.
// Every dependency failure is translated into one of these kinds before it
// leaves the core, so callers branch on [Kind] and show [Message] to users
// instead of leaking raw provider errors.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindInternal is an unexpected failure (storage, programming error).
	KindInternal Kind = iota
	// KindInvalidInput is rejected input: empty question, bad file type.
	KindInvalidInput
	// KindRetrievalUnavailable means the embedder or vector index failed.
	KindRetrievalUnavailable
	// KindContextBudgetExceeded means the question alone does not fit.
	KindContextBudgetExceeded
	// KindGenerationFailed means the language model failed after retry.
	KindGenerationFailed
	// KindConversationBusy means another request holds the conversation.
	KindConversationBusy
	// KindCanceled means the caller went away.
	KindCanceled
	// KindNotFound means the conversation has no turns or the scheme is unknown.
	KindNotFound
)

// Sentinels for errors.Is matching. An *Error matches the sentinel of its kind.
var (
	ErrInternal              = &Error{Kind: KindInternal}
	ErrInvalidInput          = &Error{Kind: KindInvalidInput}
	ErrRetrievalUnavailable  = &Error{Kind: KindRetrievalUnavailable}
	ErrContextBudgetExceeded = &Error{Kind: KindContextBudgetExceeded}
	ErrGenerationFailed      = &Error{Kind: KindGenerationFailed}
	ErrConversationBusy      = &Error{Kind: KindConversationBusy}
	ErrCanceled              = &Error{Kind: KindCanceled}
	ErrNotFound              = &Error{Kind: KindNotFound}
)

var kindInfo = map[Kind]struct {
	name    string
	code    string
	message string
}{
	KindInternal:              {"Internal", "INTERNAL_ERROR", "Something went wrong. Please try again later."},
	KindInvalidInput:          {"InvalidInput", "INVALID_INPUT", "The request is invalid. Please check your question or file and try again."},
	KindRetrievalUnavailable:  {"RetrievalUnavailable", "RAG_ERROR", "The knowledge base is temporarily unavailable."},
	KindContextBudgetExceeded: {"ContextBudgetExceeded", "CONTEXT_TOO_LONG", "Your question or document is too long. Please shorten it and try again."},
	KindGenerationFailed:      {"GenerationFailed", "EXTERNAL_SERVICE_ERROR", "We could not generate an answer right now. Please try again."},
	KindConversationBusy:      {"ConversationBusy", "CONVERSATION_BUSY", "This conversation is still answering a previous question. Please wait."},
	KindCanceled:              {"Canceled", "REQUEST_CANCELED", "The request was canceled."},
	KindNotFound:              {"NotFound", "NOT_FOUND", "The requested conversation or scheme was not found."},
}

// String returns the kind name.
func (k Kind) String() string {
	if i, ok := kindInfo[k]; ok {
		return i.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is a classified failure. Op names the operation that failed and Err
// carries the underlying cause for logs; neither is shown to end users.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New returns an *Error of kind k for operation op wrapping err.
func New(k Kind, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err}
}

// Newf returns an *Error of kind k with a formatted cause.
func Newf(k Kind, op, format string, args ...any) *Error {
	return &Error{Kind: k, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the stable user-facing message for err.
func Message(err error) string {
	return kindInfo[KindOf(err)].message
}

// Code returns the stable machine-readable code for err.
func Code(err error) string {
	return kindInfo[KindOf(err)].code
}
