// Command stafftoken issues a signed operator token for one project.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"storefront-orders/internal/config"
	"storefront-orders/internal/domain"
	"storefront-orders/internal/staffauth"
)

func main() {
	var (
		subject    string
		role       string
		projectKey string
		ttl        time.Duration
	)
	flag.StringVar(&subject, "subject", "", "Operator id carried in the token")
	flag.StringVar(&role, "role", string(domain.RoleModerator), "moderator, admin or delivery")
	flag.StringVar(&projectKey, "project", "", "Project key the token is valid for")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to STAFF_TOKEN_TTL_HOURS)")
	flag.Parse()

	if subject == "" || projectKey == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	if ttl == 0 {
		ttl = cfg.StaffTokenTTL
	}
	auth, err := staffauth.New(cfg.StaffJWTSecret, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stafftoken: %v\n", err)
		os.Exit(1)
	}
	token, expires, err := auth.Issue(subject, domain.Role(role), projectKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "stafftoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "expires %s\n", expires.UTC().Format(time.RFC3339))
	fmt.Println(token)
}
