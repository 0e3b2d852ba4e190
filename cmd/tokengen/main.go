// Command tokengen issues, verifies and inspects signed tokens.
//
// Usage:
//
//	tokengen [-config file] issue  [flags]
//	tokengen [-config file] verify [flags] <token>
//	tokengen [-config file] decode <token>
//
// Defaults come from a .env file, the optional config file and TOKENGEN_*
// environment variables, in increasing order of precedence; flags win over all.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("tokengen", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", os.Getenv("TOKENGEN_CONFIG"), "Config file (yaml, json or toml)")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: tokengen [-config file] <issue|verify|decode> [flags]")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	s, err := loadSettings(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "tokengen: %v\n", err)
		return 1
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "issue":
		err = runIssue(s, rest, stdout, stderr)
	case "verify":
		err = runVerify(s, rest, stdin, stdout, stderr)
	case "decode":
		err = runDecode(rest, stdin, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "tokengen: unknown command %q\n", cmd)
		global.Usage()
		return 2
	}

	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(stderr, "tokengen %s: %v\n", cmd, err)
		return 1
	}
	return 0
}
