// Simulation client: drives a full conversation against the turn engine with
// a canned generation backend, no server or network involved. Useful for
// eyeballing the turn lifecycle and the prompt templates.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"coeus-ai-be/pkg/chat/engine"
	"coeus-ai-be/pkg/chat/registry"
	"coeus-ai-be/pkg/genai"
)

// cannedInvoker streams a fixed reply as chunk lines, one word at a time.
type cannedInvoker struct {
	reply string
	delay time.Duration
}

func (c *cannedInvoker) Invoke(ctx context.Context, instruction string, documents []genai.DocumentPayload) (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	go func() {
		enc := json.NewEncoder(pw)
		for _, word := range strings.Fields(c.reply) {
			chunk := word + " "
			if err := enc.Encode(genai.ChunkLine{Chunk: &chunk}); err != nil {
				pw.CloseWithError(err)
				return
			}
			time.Sleep(c.delay)
		}
		pw.Close()
	}()
	return pr, nil
}

// samplePDF is the smallest body the sniffer accepts as application/pdf.
var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

func main() {
	cyan := color.New(color.FgCyan).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Println("=== Study Assistant Simulation ===")

	invoker := &cannedInvoker{
		reply: "Here is a walkthrough of the key ideas in your document, section by section.",
		delay: 50 * time.Millisecond,
	}
	turnEngine := engine.New(invoker, log.New(os.Stdout, "[TURN] ", log.LstdFlags))

	conv := engine.NewConversation(uuid.New(), registry.New(registry.DefaultMaxDocuments, registry.DefaultMaxBytes))
	fmt.Printf("Session: %s\n", cyan(conv.ID))

	sink := func(update engine.Update) {
		switch update.Kind {
		case engine.UpdateStreamStarted:
			fmt.Printf("\n%s ", green("AI:"))
		case engine.UpdateFragment:
			fmt.Print(update.Fragment)
		case engine.UpdateTurnCompleted:
			fmt.Println()
		case engine.UpdateTurnFailed:
			fmt.Printf("\n%s %s\n", red("FAILED:"), update.Message.Content)
		case engine.UpdateNotice:
			fmt.Printf("\n%s %s\n", yellow("NOTICE:"), update.Message.Content)
		}
	}

	// 1. Tool invocation before any upload: notice, no generation call
	fmt.Printf("\n%s quickSummary (no documents)\n", cyan("TOOL:"))
	if _, err := turnEngine.InvokeTool(context.Background(), conv, genai.ToolQuickSummary, sink); err != nil {
		log.Fatalf("InvokeTool: %v", err)
	}

	// 2. Upload a document
	doc, err := conv.Documents.Add(samplePDF, "linear-algebra-notes.pdf")
	if err != nil {
		log.Fatalf("Upload: %v", err)
	}
	fmt.Printf("\n%s %s (%s)\n", cyan("UPLOADED:"), doc.DisplayName, doc.ID)

	// 3. Free-text question
	fmt.Printf("\n%s What is an eigenvalue?\n", cyan("USER:"))
	msg, err := turnEngine.SubmitUserMessage(context.Background(), conv, "What is an eigenvalue?", sink)
	if err != nil {
		log.Fatalf("SubmitUserMessage: %v", err)
	}

	// 4. Tool invocation with a single document: implicit selection
	fmt.Printf("\n%s studyPlan\n", cyan("TOOL:"))
	if _, err := turnEngine.InvokeTool(context.Background(), conv, genai.ToolStudyPlan, sink); err != nil {
		log.Fatalf("InvokeTool: %v", err)
	}

	// 5. Regenerate the free-text answer. The replacement gets a new id.
	fmt.Printf("\n%s message %s\n", cyan("REGENERATE:"), msg.ID)
	regenerated, err := turnEngine.Regenerate(context.Background(), conv, msg.ID, sink)
	if err != nil {
		log.Fatalf("Regenerate: %v", err)
	}

	// 6. Copy the regenerated content
	content, err := turnEngine.CopyMessageContent(conv, regenerated.ID)
	if err != nil {
		log.Fatalf("CopyMessageContent: %v", err)
	}
	fmt.Printf("\n%s %d chars\n", cyan("COPIED:"), len(content))

	fmt.Printf("\n%s\n", green("Simulation complete."))
	for _, m := range conv.Messages() {
		fmt.Printf("  [%s] %-9s %s\n", m.Status, m.Role, truncate(m.Content, 60))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
