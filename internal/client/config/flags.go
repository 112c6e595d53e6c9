package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
// Only -a, -t and -r are considered; anything else in os.Args is ignored.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the KeyAuth API")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.IntVar(&cfg.RetryMax, "r", cfg.RetryMax, "retries on transport errors")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
