package tools

import (
	"time"
)

// ApprovalFunc decides whether a governance-document write may proceed. It
// is invoked synchronously from the executor's goroutine with the document
// name, its full path, and the old and proposed content, and must return
// promptly or the rendezvous below times out.
type ApprovalFunc func(fileName, filePath, oldContent, newContent string) bool

// DefaultApprovalTimeout bounds how long a governance write blocks waiting
// for a human decision. A timeout is treated as rejection.
const DefaultApprovalTimeout = 5 * time.Minute

// ApprovalRequest is one pending governance-write decision.
type ApprovalRequest struct {
	FileName   string
	FilePath   string
	OldContent string
	NewContent string

	decision chan bool
	cancel   chan struct{}
}

// Respond deposits the decision. Calling Respond more than once is a
// programming error; the channel is buffered so the first call never
// blocks, even when the asker has already timed out.
func (r ApprovalRequest) Respond(approved bool) {
	r.decision <- approved
}

// Cancelled is closed when the asker stops waiting for this request (the
// timeout elapsed). An interactive approver must abandon its prompt then,
// or it keeps holding the input the caller needs next.
func (r ApprovalRequest) Cancelled() <-chan struct{} {
	return r.cancel
}

// ApprovalBroker is a single-slot rendezvous between the executor goroutine
// and an interactive approver on another goroutine. The executor deposits
// exactly one request and blocks with a bounded timeout until the decision
// arrives; at most one request is pending at a time.
type ApprovalBroker struct {
	requests chan ApprovalRequest
	timeout  time.Duration
}

// NewApprovalBroker creates a broker with the given decision timeout.
// A non-positive timeout uses DefaultApprovalTimeout.
func NewApprovalBroker(timeout time.Duration) *ApprovalBroker {
	if timeout <= 0 {
		timeout = DefaultApprovalTimeout
	}
	return &ApprovalBroker{
		requests: make(chan ApprovalRequest, 1),
		timeout:  timeout,
	}
}

// Requests is the approver side: receive a request, inspect it, and call
// Respond.
func (b *ApprovalBroker) Requests() <-chan ApprovalRequest {
	return b.requests
}

// Ask blocks until the approver responds or the timeout elapses. It returns
// false when the slot is already occupied, on rejection, and on timeout.
func (b *ApprovalBroker) Ask(fileName, filePath, oldContent, newContent string) bool {
	req := ApprovalRequest{
		FileName:   fileName,
		FilePath:   filePath,
		OldContent: oldContent,
		NewContent: newContent,
		decision:   make(chan bool, 1),
		cancel:     make(chan struct{}),
	}

	select {
	case b.requests <- req:
	default:
		// A request is already pending. The executor processes files
		// sequentially so this only happens on misuse; refuse rather
		// than block behind the other request.
		return false
	}

	select {
	case approved := <-req.decision:
		return approved
	case <-time.After(b.timeout):
		close(req.cancel)
		// Drain the slot if the approver never picked the request up.
		select {
		case <-b.requests:
		default:
		}
		return false
	}
}

// Func adapts the broker to the executor's callback shape.
func (b *ApprovalBroker) Func() ApprovalFunc {
	return b.Ask
}
