package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/client/client"
	"github.com/dmitrijs2005/keyauth/internal/client/config"
	"github.com/dmitrijs2005/keyauth/internal/hwid"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// App is the interactive client session. It remembers who is logged in so
// the prompt and help text can reflect it; the access token itself lives in
// the API client.
type App struct {
	config   *config.Config
	client   client.Client
	probe    func(ctx context.Context) hwid.Fingerprint
	reader   *bufio.Reader
	out      io.Writer
	userName string
	admin    bool
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewKeyAuthClient(c.ServerURL, c.RequestTimeout, c.RetryMax)
	if err != nil {
		return nil, err
	}

	return &App{
		config: c,
		client: apiClient,
		probe:  hwid.Probe,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

// Run checks that the server answers, then blocks in the REPL until the user
// exits or stdin is closed.
func (a *App) Run(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := a.client.Ping(pingCtx); err != nil {
		log.Printf("Server %s is not reachable: %v", a.config.ServerURL, err)
	}
	cancel()

	fmt.Fprintln(a.out, "Welcome to KeyAuth CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.client.IsLoggedIn()
}

func (a *App) isAdmin() bool {
	return a.isLoggedIn() && a.admin
}

func (a *App) getStatus() string {
	if !a.isLoggedIn() {
		return ""
	}
	if a.admin {
		return fmt.Sprintf("(%s admin)", a.userName)
	}
	return fmt.Sprintf("(%s)", a.userName)
}
