package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/xela07ax/agent-watchdog/internal/domain"
	"github.com/xela07ax/agent-watchdog/internal/stream"
)

// runctl — консольный клиент watchdog: отправляет цель в /api/run и
// печатает NDJSON-события по мере прихода. Декодер не полагается на
// границы чанков, так что usable и через прокси, которые режут поток.
func main() {
	addr := flag.String("addr", "http://localhost:4021", "watchdog base URL")
	goal := flag.String("goal", "", "goal for the agent (empty = default)")
	agentID := flag.String("agent", "", "X-Agent-ID header value")
	token := flag.String("token", "", "bearer token for /api/run")
	flag.Parse()

	body, _ := json.Marshal(map[string]string{"goal": *goal})
	req, err := http.NewRequest(http.MethodPost, *addr+"/api/run", bytes.NewReader(body))
	if err != nil {
		fatal("bad request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if *agentID != "" {
		req.Header.Set("X-Agent-ID", *agentID)
	}
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	// Без общего таймаута: поток живет столько, сколько длится запуск
	client := &http.Client{Timeout: 0}
	resp, err := client.Do(req)
	if err != nil {
		fatal("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		fatal("server returned %s: %s", resp.Status, string(msg))
	}

	start := time.Now()
	dec := stream.NewDecoder()
	buf := make([]byte, 4096)
	sawDone := false

	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range dec.Push(buf[:n]) {
				printEvent(ev, &sawDone)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			fatal("stream read failed: %v", err)
		}
	}
	for _, ev := range dec.Flush() {
		printEvent(ev, &sawDone)
	}

	if !sawDone {
		fatal("stream ended without a done event")
	}
	fmt.Fprintf(os.Stderr, "\n[%.1fs]\n", time.Since(start).Seconds())
}

func printEvent(ev domain.ToolEvent, sawDone *bool) {
	switch ev.Type {
	case domain.EventText:
		fmt.Print(ev.Delta)
	case domain.EventToolCall:
		fmt.Printf("\n⚙ %s %s\n", ev.Name, string(ev.Args))
	case domain.EventToolResult:
		fmt.Printf("→ %s\n", ev.Result)
	case domain.EventError:
		fmt.Fprintf(os.Stderr, "\n✗ %s\n", ev.Message)
	case domain.EventDone:
		*sawDone = true
		fmt.Println()
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
