// Command mcpprobe is a smoke-test client for a running strunz-mcp HTTP
// server: it completes initialize, lists tools, and calls search_knowledge
// once, printing what it sees.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	mcpsrv "github.com/longevitycoach/strunz-mcp"
	"github.com/longevitycoach/strunz-mcp/pool"
)

func main() {
	serverURL := flag.String("server", getEnv("MCP_SERVER_URL", "http://127.0.0.1:8080"), "base URL of the MCP HTTP endpoint (messages route)")
	query := flag.String("query", "magnesium", "query to pass to search_knowledge")
	clientID := flag.String("client-id", os.Getenv("MCP_CLIENT_ID"), "OAuth client_id, if the server requires auth")
	clientSecret := flag.String("client-secret", os.Getenv("MCP_CLIENT_SECRET"), "OAuth client_secret, for confidential clients")
	tokenURL := flag.String("token-url", os.Getenv("MCP_TOKEN_URL"), "OAuth token endpoint, required when client-id is set")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var auth mcpsrv.AuthProvider
	if *clientID != "" {
		if *tokenURL == "" {
			log.Fatal("mcpprobe: -token-url is required when -client-id is set")
		}
		auth = mcpsrv.NewOAuth2Auth(*clientID, *clientSecret, *tokenURL, nil)
	}

	client := mcpsrv.NewClientWithPool(*serverURL, auth, pool.GetPool())

	if err := client.Initialize(ctx); err != nil {
		log.Fatalf("mcpprobe: initialize failed: %v", err)
	}
	fmt.Println("initialize: ok")

	tools, err := client.ListTools(ctx)
	if err != nil {
		log.Fatalf("mcpprobe: list tools failed: %v", err)
	}
	fmt.Printf("tools/list: %d tools\n", len(tools))
	for _, tool := range tools {
		fmt.Printf("  - %s: %s\n", tool.Name, tool.Description)
	}

	resp, err := client.CallTool(ctx, "search_knowledge", map[string]interface{}{"query": *query})
	if err != nil {
		log.Fatalf("mcpprobe: search_knowledge failed: %v", err)
	}

	encoded, err := json.MarshalIndent(resp.StructuredContent, "", "  ")
	if err != nil {
		log.Fatalf("mcpprobe: failed to encode result: %v", err)
	}
	fmt.Printf("search_knowledge(%q):\n%s\n", *query, encoded)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
