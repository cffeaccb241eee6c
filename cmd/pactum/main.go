package main

import (
	"fmt"
	"io"
	"os"
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServe(nil, stdout, stderr)
	}

	switch args[1] {
	case "serve", "server":
		return runServe(args[2:], stdout, stderr)
	case "submit":
		return runSubmit(args[2:], stdout, stderr)
	case "status":
		return runStatus(args[2:], stdout, stderr)
	case "list":
		return runList(args[2:], stdout, stderr)
	case "approve":
		return runApprove(args[2:], stdout, stderr)
	case "reject":
		return runReject(args[2:], stdout, stderr)
	case "renegotiate":
		return runRenegotiate(args[2:], stdout, stderr)
	case "reroute":
		return runReroute(args[2:], stdout, stderr)
	case "accept":
		return runAccept(args[2:], stdout, stderr)
	case "execute":
		return runExecute(args[2:], stdout, stderr)
	case "retry":
		return runRetry(args[2:], stdout, stderr)
	case "report":
		return runReport(args[2:], stdout, stderr)
	case "watch":
		return runWatch(args[2:], stdout, stderr)
	case "events":
		return runEvents(args[2:], stdout, stderr)
	case "token":
		return runToken(args[2:], stdout, stderr)
	case "demo":
		return runDemo(args[2:], stdout, stderr)
	case "health":
		return runHealth(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		if args[1][0] == '-' {
			return runServe(args[1:], stdout, stderr)
		}
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sPactum %s%s\n", ColorBold+ColorBlue, "v1.0.0", ColorReset)
	fmt.Fprintf(w, "%sContracts propose. The chain disposes.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  pactum <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "SERVER")
	printCommand(w, "serve", "Run the lifecycle server (default)")
	printCommand(w, "health", "Check server health (HTTP)")
	printCommand(w, "token", "Mint an API token (--sub, --role, --ttl)")

	printSection(w, "CONTRACTS")
	printCommand(w, "submit", "Submit a contract (--file, --title, --type)")
	printCommand(w, "status", "Show a session (pactum status <id>)")
	printCommand(w, "list", "List all sessions")
	printCommand(w, "report", "Show the session report")

	printSection(w, "DECISIONS")
	printCommand(w, "approve", "Record an approval (--role, --as, --comment)")
	printCommand(w, "reject", "Reject a contract (--reason)")
	printCommand(w, "renegotiate", "Submit counter-terms (--terms or --file)")
	printCommand(w, "reroute", "Rebuild the chain from the proposed assessment")
	printCommand(w, "accept", "Accept terms as-is and move to approval")
	printCommand(w, "execute", "Execute a fully approved contract")
	printCommand(w, "retry", "Retry a failed analysis")

	printSection(w, "STREAMS")
	printCommand(w, "events", "Print the event log (--after N)")
	printCommand(w, "watch", "Follow live events over SSE")

	printSection(w, "UTILITIES")
	printCommand(w, "demo", "Run an end-to-end walkthrough in-process")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-12s%s %s\n", ColorGreen, name, ColorReset, desc)
}
