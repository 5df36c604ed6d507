package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/madorolabs/madoro/tools"
)

// A timed-out approval prompt must let go of the line channel so the next
// command still reaches the chat loop.
func TestApprovalTimeoutReleasesLineChannel(t *testing.T) {
	broker := tools.NewApprovalBroker(50 * time.Millisecond)
	lines := make(chan string)
	go promptApprovals(broker.Requests(), lines)

	// Nothing is typed, so the ask times out and cancels the prompt.
	assert.False(t, broker.Ask("HANDOVER.md", "/p/HANDOVER.md", "", "new"))

	// Let the abandoned prompt observe the cancellation before any line
	// appears on the channel.
	time.Sleep(100 * time.Millisecond)

	received := make(chan string, 1)
	go func() {
		received <- <-lines
	}()

	select {
	case lines <- "doctor\n":
	case <-time.After(time.Second):
		t.Fatal("line was never consumed")
	}

	select {
	case line := <-received:
		assert.Equal(t, "doctor\n", line)
	case <-time.After(time.Second):
		t.Fatal("chat loop never received the command after the timeout")
	}
}

func TestPromptApprovalsAnswers(t *testing.T) {
	broker := tools.NewApprovalBroker(time.Second)
	lines := make(chan string)
	go promptApprovals(broker.Requests(), lines)

	go func() { lines <- "y\n" }()
	assert.True(t, broker.Ask("HANDOVER.md", "/p/HANDOVER.md", "", "a"))

	go func() { lines <- "n\n" }()
	assert.False(t, broker.Ask("CHECKLIST.md", "/p/CHECKLIST.md", "", "b"))
}
