package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"
)

// Operator CLI against a running businesshub API.
//
//	BUSINESSHUB_API    base URL, default http://localhost:8080
//	BUSINESSHUB_TOKEN  bearer token from `register` or `login`

const usage = `usage: businesshub-cli <command> [args]

commands:
  register <email> <password>         create an account and print a token
  login <email> <password>            print a fresh token
  create <name>                       create a business
  get <business-id>                   show one business
  list                                list businesses you belong to
  search <query>                      search businesses by name (public)
  join <business-id> [role]           request to join (default role: user)
  requests <business-id>              list pending join requests
  approve <business-id> <user-id>     approve a join request
`

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	c := &client{
		baseURL: envOr("BUSINESSHUB_API", "http://localhost:8080"),
		token:   os.Getenv("BUSINESSHUB_TOKEN"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}

	if err := c.run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (c *client) run(command string, args []string) error {
	switch command {
	case "register":
		return c.credentials("/api/auth/register", args)
	case "login":
		return c.credentials("/api/auth/login", args)
	case "create":
		if len(args) != 1 {
			return fmt.Errorf("usage: create <name>")
		}
		return c.printJSON(c.do(http.MethodPost, "/api/business", map[string]string{"name": args[0]}))
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <business-id>")
		}
		return c.printJSON(c.do(http.MethodGet, "/api/business/"+args[0], nil))
	case "list":
		return c.printBusinesses(c.do(http.MethodGet, "/api/business", nil))
	case "search":
		if len(args) != 1 {
			return fmt.Errorf("usage: search <query>")
		}
		return c.printBusinesses(c.do(http.MethodGet, "/api/business/search?q="+args[0], nil))
	case "join":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("usage: join <business-id> [role]")
		}
		role := "user"
		if len(args) == 2 {
			role = args[1]
		}
		return c.printJSON(c.do(http.MethodPost, "/api/business/"+args[0]+"/join", map[string]string{"role": role}))
	case "requests":
		if len(args) != 1 {
			return fmt.Errorf("usage: requests <business-id>")
		}
		return c.printRequests(c.do(http.MethodGet, "/api/business/"+args[0]+"/requests", nil))
	case "approve":
		if len(args) != 2 {
			return fmt.Errorf("usage: approve <business-id> <user-id>")
		}
		return c.printJSON(c.do(http.MethodPost, "/api/business/"+args[0]+"/approve/"+args[1], nil))
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (c *client) credentials(path string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s <email> <password>", path[len("/api/auth/"):])
	}
	body, err := c.do(http.MethodPost, path, map[string]string{"email": args[0], "password": args[1]})
	if err != nil {
		return err
	}

	var result struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return err
	}
	fmt.Printf("user_id: %s\nemail:   %s\n\nexport BUSINESSHUB_TOKEN=%s\n", result.User.ID, result.User.Email, result.Token)
	return nil
}

func (c *client) do(method, path string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error      string `json:"error"`
			BusinessID string `json:"business_id"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.BusinessID != "" {
				return nil, fmt.Errorf("%s (HTTP %d, business_id=%s)", apiErr.Error, resp.StatusCode, apiErr.BusinessID)
			}
			return nil, fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, data)
	}
	return data, nil
}

func (c *client) printJSON(data []byte, err error) error {
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func (c *client) printBusinesses(data []byte, err error) error {
	if err != nil {
		return err
	}
	var businesses []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &businesses); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, b := range businesses {
		fmt.Fprintf(w, "%s\t%s\n", b.ID, b.Name)
	}
	return w.Flush()
}

func (c *client) printRequests(data []byte, err error) error {
	if err != nil {
		return err
	}
	var requests []struct {
		UserID   string    `json:"user_id"`
		Role     string    `json:"role"`
		JoinedAt time.Time `json:"joined_at"`
	}
	if err := json.Unmarshal(data, &requests); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tROLE\tREQUESTED")
	for _, r := range requests {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.UserID, r.Role, r.JoinedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
