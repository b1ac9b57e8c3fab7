package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/af-corp/prediction-orchestrator/internal/auth"
)

func main() {
	name := flag.String("name", "", "human-friendly key name (required)")
	scopes := flag.String("scopes", auth.ScopePredict, "comma-separated scopes: predict, admin")
	env := flag.String("env", "prod", "environment prefix")
	expires := flag.String("expires", "365d", "expiry duration (e.g., 365d, 720h)")
	dbURL := flag.String("db-url", "", "database URL (overrides env)")
	flag.Parse()

	if *name == "" {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nerror: -name is required")
		os.Exit(1)
	}

	scopeList, err := parseScopes(*scopes)
	if err != nil {
		log.Fatalf("invalid scopes: %v", err)
	}

	// Generate key
	rawKey, err := auth.GenerateKey(*env)
	if err != nil {
		log.Fatalf("failed to generate key: %v", err)
	}

	// Parse expiry
	dur, err := auth.ParseDuration(*expires)
	if err != nil {
		log.Fatalf("invalid expires: %v", err)
	}
	expiresAt := time.Now().Add(dur)

	// Connect to database
	dsn := *dbURL
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		host := envOrDefault("DB_HOST", "localhost")
		port := envOrDefault("DB_PORT", "5432")
		u := envOrDefault("DB_USER", "predictor")
		pass := envOrDefault("DB_PASSWORD", "predictor-dev")
		dbname := envOrDefault("DB_NAME", "predictions")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", u, pass, host, port, dbname)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer conn.Close(ctx)

	var keyID string
	err = conn.QueryRow(ctx, `
		INSERT INTO api_keys (key_hash, key_prefix, name, scopes, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, auth.HashKey(rawKey), auth.KeyPrefix(rawKey), *name, scopeList, expiresAt).Scan(&keyID)
	if err != nil {
		log.Fatalf("failed to insert key: %v", err)
	}

	fmt.Println("=== Predictor API Key Generated ===")
	fmt.Println()
	fmt.Printf("  Key ID:     %s\n", keyID)
	fmt.Printf("  Key Prefix: %s\n", auth.KeyPrefix(rawKey))
	fmt.Printf("  Name:       %s\n", *name)
	fmt.Printf("  Scopes:     %s\n", strings.Join(scopeList, ", "))
	fmt.Printf("  Expires:    %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  API Key (save this, it will NOT be shown again):")
	fmt.Printf("  %s\n", rawKey)
	fmt.Println()
	fmt.Println("===================================")
}

func parseScopes(s string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		scope := strings.TrimSpace(part)
		switch scope {
		case "":
			continue
		case auth.ScopePredict, auth.ScopeAdmin:
			out = append(out, scope)
		default:
			return nil, fmt.Errorf("unknown scope %q", scope)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one scope is required")
	}
	return out, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
