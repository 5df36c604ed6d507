package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/madorolabs/madoro/agent"
	"github.com/madorolabs/madoro/tools"
)

func runChat() error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	rule := strings.Repeat("─", 60)
	fmt.Println(rule)
	if s.hasProj {
		fmt.Printf("📁 Project: %s (%s)\n", s.proj.Name, s.proj.Path)
	} else {
		fmt.Println("📁 No active project; using the current directory")
	}
	fmt.Println("💬 Commands: doctor, clear, model <name>, exit")
	fmt.Println(rule)

	// Exactly one goroutine reads stdin; the prompt loop and the approval
	// prompt both take lines from this channel, never from the reader.
	lines := make(chan string)
	go func() {
		defer close(lines)
		reader := bufio.NewReader(os.Stdin)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			lines <- line
		}
	}()

	go printEvents(s.agent.Events())
	go promptApprovals(s.broker.Requests(), lines)

	for {
		fmt.Print("\nmadoro> ")
		line, ok := <-lines
		if !ok {
			fmt.Println()
			return nil
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch {
		case input == "exit" || input == "quit" || input == "q":
			fmt.Println("👋 Bye.")
			return nil

		case input == "doctor":
			fmt.Println(s.agent.Doctor(context.Background()))

		case input == "clear":
			if err := s.store.ClearConversation(); err != nil {
				fmt.Printf("❌ %v\n", err)
			} else {
				fmt.Println("🧹 Conversation cleared.")
			}

		case strings.HasPrefix(input, "model "):
			key := strings.TrimSpace(strings.TrimPrefix(input, "model "))
			if err := s.SwitchModel(key); err != nil {
				fmt.Printf("❌ %v\n", err)
			} else {
				fmt.Printf("🤖 Switched to %s\n", key)
			}

		default:
			resp, err := s.agent.Process(context.Background(), input)
			if err != nil {
				fmt.Printf("❌ %v\n", err)
				continue
			}
			fmt.Println()
			fmt.Println(resp.Message)
		}
	}
}

func printEvents(events <-chan agent.Event) {
	for ev := range events {
		switch ev.Kind {
		case agent.EventModelCall:
			fmt.Println("🤖 Thinking...")
		case agent.EventToolStart:
			detail, _ := ev.Data["detail"].(string)
			if detail != "" {
				detail = " " + detail
			}
			fmt.Printf("🔧 %v%s\n", ev.Data["tool"], detail)
		case agent.EventToolEnd:
			if ok, _ := ev.Data["success"].(bool); !ok {
				fmt.Printf("   ❌ %v failed\n", ev.Data["tool"])
			}
		case agent.EventAutoTest:
			fmt.Printf("🧪 Running tests: %v\n", ev.Data["cmd"])
		case agent.EventRepeatWarning:
			fmt.Println("⚠️  Repeated tool calls detected; wrapping up")
		case agent.EventSummarize:
			fmt.Println("📝 Summarizing...")
		}
	}
}

// promptApprovals asks the user to confirm each governance document change.
// A request whose asker timed out is abandoned so the next line on the
// channel still reaches the prompt loop.
func promptApprovals(requests <-chan tools.ApprovalRequest, lines <-chan string) {
	for req := range requests {
		fmt.Printf("\n🔒 Change to %s requires approval\n", req.FileName)
		preview := req.NewContent
		if len(preview) > 500 {
			preview = preview[:500] + "\n[...]"
		}
		fmt.Println(preview)
		fmt.Print("Approve? [y/N] ")

		select {
		case line, ok := <-lines:
			if !ok {
				req.Respond(false)
				return
			}
			answer := strings.ToLower(strings.TrimSpace(line))
			req.Respond(answer == "y" || answer == "yes")
		case <-req.Cancelled():
			fmt.Println("\n⏱️  Approval timed out; change rejected")
		}
	}
}
