// Command dloperctl is an interactive operator shell for a dloperOS panel.
package main

import (
	"bufio"
	"cmp"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/DanielTwine/dloperOS/internal/client"
)

var (
	version   string
	buildDate string
)

const helpText = `Available commands:
  login                          authenticate and save the session
  me                             show the logged-in identity
  upload <path> [password]       share a local file
  files                          list shared files
  meta <id> [password]           show public metadata of a shared file
  fetch <id> <dest> [password]   download a shared file
  logout                         forget the saved session
  exit`

type shell struct {
	api         *client.Client
	session     *client.Session
	sessionPath string
	in          *bufio.Reader
}

// repl runs the interactive shell loop until exit or end of input.
func (s *shell) repl(ctx context.Context) {
	for {
		fmt.Print("dloperctl> ")
		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			fmt.Println()
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Println("Bye")
			return
		}
		if err := s.run(ctx, args); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func (s *shell) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "help":
		fmt.Println(helpText)
	case "login":
		return s.login(ctx)
	case "me":
		u, err := s.api.Me(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s> role=%s\n", u.Username, u.Email, u.Role)
	case "upload":
		if len(args) < 2 {
			return fmt.Errorf("usage: upload <path> [password]")
		}
		link, err := s.api.Upload(ctx, args[1], client.UploadOptions{Password: optional(args, 2)})
		if err != nil {
			return err
		}
		fmt.Printf("Shared %s as %s\n%s\n", link.Filename, link.ID, link.ShareURL)
	case "files":
		links, err := s.api.Files(ctx)
		if err != nil {
			return err
		}
		for _, l := range links {
			limit := "∞"
			if l.MaxDownloads != nil {
				limit = fmt.Sprint(*l.MaxDownloads)
			}
			fmt.Printf("%s  %-30s  %d/%s  active=%t  protected=%t\n",
				l.ID, l.Filename, l.DownloadCount, limit, l.Active, l.PasswordProtected)
		}
	case "meta":
		if len(args) < 2 {
			return fmt.Errorf("usage: meta <id> [password]")
		}
		m, err := s.api.Meta(ctx, args[1], optional(args, 2))
		if err != nil {
			return err
		}
		b, _ := json.MarshalIndent(m, "", "  ")
		fmt.Println(string(b))
	case "fetch":
		if len(args) < 3 {
			return fmt.Errorf("usage: fetch <id> <dest> [password]")
		}
		n, err := s.api.Fetch(ctx, args[1], optional(args, 3), args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Saved %d bytes to %s\n", n, args[2])
	case "logout":
		s.api.Token = ""
		*s.session = client.Session{}
		if err := client.ClearSession(s.sessionPath); err != nil {
			return err
		}
		fmt.Println("Logged out")
	default:
		fmt.Println("Unknown command. Type 'help' for a list of commands.")
	}
	return nil
}

func (s *shell) login(ctx context.Context) error {
	fmt.Print("Username: ")
	username, err := s.in.ReadString('\n')
	if err != nil && username == "" {
		return err
	}
	username = strings.TrimSpace(username)
	password, err := client.ReadPassword(os.Stdout, "Password: ", int(os.Stdin.Fd()), s.in)
	if err != nil {
		return err
	}
	token, err := s.api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	*s.session = client.Session{BaseURL: s.api.BaseURL, Username: username, Token: token}
	if err := s.session.Save(s.sessionPath); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Println("Logged in as", username)
	return nil
}

func optional(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func main() {
	var (
		baseURL     string
		caFile      string
		sessionPath string
		showVer     bool
	)
	defaultSession, err := client.DefaultSessionPath()
	if err != nil {
		defaultSession = ".dloperctl-session.json"
	}

	flag.StringVar(&baseURL, "url", "", "panel base URL (default from session or http://localhost:8000)")
	flag.StringVar(&caFile, "ca", "", "CA certificate for self-signed panels")
	flag.StringVar(&sessionPath, "session", defaultSession, "session file")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("dloperctl\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	session, err := client.LoadSession(sessionPath)
	if err != nil {
		log.Fatal(err)
	}
	api, err := client.New(cmp.Or(baseURL, session.BaseURL, "http://localhost:8000"), caFile)
	if err != nil {
		log.Fatal(err)
	}
	if session.BaseURL == "" || session.BaseURL == api.BaseURL {
		api.Token = session.Token
	}

	sh := &shell{api: api, session: session, sessionPath: sessionPath, in: bufio.NewReader(os.Stdin)}
	sh.repl(context.Background())
}
