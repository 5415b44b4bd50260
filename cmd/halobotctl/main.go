package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/halobot-io/halobot/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "health":
		cmdHealth()
	case "chat":
		cmdChat(os.Args[2:])
	case "journal":
		if len(os.Args) < 3 || os.Args[2] != "list" {
			fmt.Fprintln(os.Stderr, "usage: halobotctl journal list [--limit n]")
			os.Exit(1)
		}
		cmdJournalList(os.Args[3:])
	case "logs":
		cmdLogs(os.Args[2:])
	case "reset":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: halobotctl reset <conversation_id>")
			os.Exit(1)
		}
		cmdReset(os.Args[2])
	case "config":
		if len(os.Args) < 4 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "usage: halobotctl config validate <path>")
			os.Exit(1)
		}
		cmdConfigValidate(os.Args[3])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func cmdHealth() {
	body, err := apiGet("/api/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}

// cmdChat runs an interactive conversation against the daemon's REST
// API, the same path a platform connector uses.
func cmdChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	convID := fs.String("conversation", "", "Conversation ID (default: random)")
	fs.Parse(args)

	id := *convID
	if id == "" {
		id = "ctl-" + uuid.NewString()[:8]
	}

	fmt.Printf("halobotctl chat (conversation %s, type 'quit' to exit)\n\n", id)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		payload, _ := json.Marshal(map[string]string{
			"conversation_id": id,
			"text":            line,
		})
		body, err := apiPost("/api/messages", payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		var resp map[string]string
		json.Unmarshal(body, &resp)
		fmt.Println(resp["reply"])
		fmt.Println()
	}
}

func cmdJournalList(args []string) {
	fs := flag.NewFlagSet("journal list", flag.ExitOnError)
	limit := fs.Int("limit", 50, "Max results")
	fs.Parse(args)

	body, err := apiGet(fmt.Sprintf("/api/journal?limit=%d", *limit))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var records []map[string]any
	json.Unmarshal(body, &records)
	for _, r := range records {
		fmt.Printf("%-12v %-10v %-24v %s\n", r["ticket_id"], r["channel"], r["created_at"], r["summary"])
	}
}

func cmdLogs(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	level := fs.String("level", "", "Minimum level (debug|info|warn|error)")
	limit := fs.Int("limit", 100, "Max entries")
	fs.Parse(args)

	query := fmt.Sprintf("?limit=%d", *limit)
	if *level != "" {
		query += "&level=" + *level
	}

	body, err := apiGet("/api/logs" + query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	var entries []map[string]any
	json.Unmarshal(body, &entries)
	for _, e := range entries {
		fmt.Printf("%-26v %-6v %s\n", e["time"], e["level"], e["message"])
	}
}

func cmdReset(convID string) {
	body, err := apiPost("/api/conversations/"+convID+"/reset", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(body))
}

func cmdConfigValidate(path string) {
	_, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("config is valid")
}

// --- Helpers ---

func apiGet(path string) ([]byte, error) {
	return apiDo("GET", path, nil)
}

func apiPost(path string, payload []byte) ([]byte, error) {
	return apiDo("POST", path, payload)
}

func apiDo(method, path string, payload []byte) ([]byte, error) {
	base := envOr("HALOBOT_API_URL", "http://localhost:8080")

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, base+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := os.Getenv("HALOBOT_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printUsage() {
	fmt.Println("halobotctl - support bot management CLI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  health               Check daemon health")
	fmt.Println("  chat                 Interactive conversation (--conversation)")
	fmt.Println("  journal list         List filed tickets (--limit)")
	fmt.Println("  logs                 Show recent daemon logs (--level, --limit)")
	fmt.Println("  reset <id>           Reset an API conversation")
	fmt.Println("  config validate <p>  Validate config file")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  HALOBOT_API_URL  Daemon URL (default: http://localhost:8080)")
	fmt.Println("  HALOBOT_API_KEY  API key for authentication")
}
