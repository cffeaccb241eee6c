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

	"github.com/Covenant-Systems/pactum/pkg/api"
	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/lifecycle"
)

// client talks to a running pactum server.
type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(fs *flag.FlagSet) *client {
	base := envOr("PACTUM_URL", "http://localhost:8080")
	c := &client{token: os.Getenv("PACTUM_TOKEN"), http: &http.Client{Timeout: 30 * time.Second}}
	fs.StringVar(&c.base, "url", base, "Server base URL")
	return c
}

func (c *client) do(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

// call runs a request and decodes the result into out, printing any
// problem response to stderr.
func (c *client) call(method, path string, body, out any, stderr io.Writer) bool {
	resp, err := c.do(method, path, body)
	if err != nil {
		fmt.Fprintf(stderr, "%srequest failed:%s %v\n", ColorRed, ColorReset, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var problem api.ProblemDetail
		if err := json.NewDecoder(resp.Body).Decode(&problem); err == nil && problem.Title != "" {
			fmt.Fprintf(stderr, "%s%s (%d):%s %s\n", ColorRed, problem.Title, problem.Status, ColorReset, problem.Detail)
		} else {
			fmt.Fprintf(stderr, "%sserver returned %d%s\n", ColorRed, resp.StatusCode, ColorReset)
		}
		return false
	}
	if out == nil {
		return true
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		fmt.Fprintf(stderr, "%sresponse decode failed:%s %v\n", ColorRed, ColorReset, err)
		return false
	}
	return true
}

func stageColor(stage contracts.Stage) string {
	switch stage {
	case contracts.StageExecuted:
		return ColorGreen
	case contracts.StageRejected:
		return ColorRed
	case contracts.StageNegotiation:
		return ColorYellow
	default:
		return ColorCyan
	}
}

func printSession(w io.Writer, s *contracts.LifecycleSession) {
	fmt.Fprintf(w, "%s%s%s  %s%s%s\n", ColorBold, s.ID, ColorReset, stageColor(s.Stage)+ColorBold, s.Stage, ColorReset)
	if s.Contract.Title != "" {
		fmt.Fprintf(w, "  title:      %s\n", s.Contract.Title)
	}
	fmt.Fprintf(w, "  type:       %s\n", s.Contract.Type)
	if s.Contract.ValueCents > 0 {
		fmt.Fprintf(w, "  value:      $%.2f\n", float64(s.Contract.ValueCents)/100)
	}
	if s.RiskLevel != "" {
		fmt.Fprintf(w, "  risk:       %s\n", s.RiskLevel)
	}
	if s.AnalysisError != "" {
		fmt.Fprintf(w, "  %sanalysis:   stalled: %s%s\n", ColorRed, s.AnalysisError, ColorReset)
	}
	if len(s.ApprovalChain) > 0 {
		fmt.Fprintf(w, "  approvals:")
		for _, step := range s.ApprovalChain {
			mark := " "
			color := ColorGray
			switch step.Status {
			case contracts.StepApproved:
				mark, color = "+", ColorGreen
			case contracts.StepRejected:
				mark, color = "x", ColorRed
			}
			fmt.Fprintf(w, " %s[%s]%s%s", color, step.Role, mark, ColorReset)
		}
		fmt.Fprintln(w)
	}
	if n := len(s.NegotiationRounds); n > 0 {
		fmt.Fprintf(w, "  rounds:     %d\n", n)
	}
}

func sessionIDArg(fs *flag.FlagSet, stderr io.Writer) (string, bool) {
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Error: session id required")
		return "", false
	}
	return fs.Arg(0), true
}

func runSubmit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := newClient(fs)
	var (
		file       string
		title      string
		ctype      string
		valueCents int64
	)
	fs.StringVar(&file, "file", "", "Contract text file (default: stdin)")
	fs.StringVar(&title, "title", "", "Contract title")
	fs.StringVar(&ctype, "type", "", "Contract type (SERVICE, NDA, ...)")
	fs.Int64Var(&valueCents, "value-cents", 0, "Contract value in cents")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var text []byte
	var err error
	if file != "" {
		text, err = os.ReadFile(file)
	} else {
		text, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error reading contract text: %v\n", err)
		return 2
	}

	req := lifecycle.SubmitRequest{
		Text:       string(text),
		Title:      title,
		Type:       contracts.ContractType(ctype),
		ValueCents: valueCents,
	}
	var s contracts.LifecycleSession
	if !c.call(http.MethodPost, "/api/v1/contracts", req, &s, stderr) {
		return 1
	}
	printSession(stdout, &s)
	return 0
}

func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := newClient(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, ok := sessionIDArg(fs, stderr)
	if !ok {
		return 2
	}

	var s contracts.LifecycleSession
	if !c.call(http.MethodGet, "/api/v1/contracts/"+id, nil, &s, stderr) {
		return 1
	}
	printSession(stdout, &s)
	return 0
}

func runList(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := newClient(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var out struct {
		Sessions []*contracts.LifecycleSession `json:"sessions"`
		Count    int                           `json:"count"`
	}
	if !c.call(http.MethodGet, "/api/v1/contracts", nil, &out, stderr) {
		return 1
	}
	if out.Count == 0 {
		fmt.Fprintln(stdout, "No sessions.")
		return 0
	}
	for _, s := range out.Sessions {
		printSession(stdout, s)
	}
	return 0
}

// decision covers the command pattern shared by the single-POST
// lifecycle commands.
func decision(args []string, stdout, stderr io.Writer, name, action string, body func(*flag.FlagSet) func() any) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := newClient(fs)
	buildBody := body(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, ok := sessionIDArg(fs, stderr)
	if !ok {
		return 2
	}

	var s contracts.LifecycleSession
	if !c.call(http.MethodPost, "/api/v1/contracts/"+id+"/"+action, buildBody(), &s, stderr) {
		return 1
	}
	printSession(stdout, &s)
	return 0
}

func runApprove(args []string, stdout, stderr io.Writer) int {
	return decision(args, stdout, stderr, "approve", "approve", func(fs *flag.FlagSet) func() any {
		var role, as, comment string
		fs.StringVar(&role, "role", "", "Approval role (MANAGER, VP, LEGAL, CFO)")
		fs.StringVar(&as, "as", "", "Approver id")
		fs.StringVar(&comment, "comment", "", "Approval comments")
		return func() any {
			return lifecycle.ApproveRequest{ApproverID: as, Role: contracts.ApprovalRole(role), Comments: comment}
		}
	})
}

func runReject(args []string, stdout, stderr io.Writer) int {
	return decision(args, stdout, stderr, "reject", "reject", func(fs *flag.FlagSet) func() any {
		var as, reason string
		fs.StringVar(&as, "as", "", "Approver id")
		fs.StringVar(&reason, "reason", "", "Rejection reason (REQUIRED)")
		return func() any {
			return map[string]string{"approver_id": as, "reason": reason}
		}
	})
}

func runRenegotiate(args []string, stdout, stderr io.Writer) int {
	return decision(args, stdout, stderr, "renegotiate", "renegotiate", func(fs *flag.FlagSet) func() any {
		var terms, file string
		fs.StringVar(&terms, "terms", "", "Counter-terms text")
		fs.StringVar(&file, "file", "", "Counter-terms file")
		return func() any {
			if terms == "" && file != "" {
				if raw, err := os.ReadFile(file); err == nil {
					terms = string(raw)
				}
			}
			return lifecycle.RenegotiateRequest{CounterTerms: terms}
		}
	})
}

func runReroute(args []string, stdout, stderr io.Writer) int {
	return decision(args, stdout, stderr, "reroute", "reroute", emptyBody)
}

func runAccept(args []string, stdout, stderr io.Writer) int {
	return decision(args, stdout, stderr, "accept", "accept-proposal", emptyBody)
}

func runExecute(args []string, stdout, stderr io.Writer) int {
	return decision(args, stdout, stderr, "execute", "execute", emptyBody)
}

func runRetry(args []string, stdout, stderr io.Writer) int {
	return decision(args, stdout, stderr, "retry", "retry-analysis", emptyBody)
}

func emptyBody(fs *flag.FlagSet) func() any {
	return func() any { return map[string]string{} }
}

func runReport(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := newClient(fs)
	var asJSON bool
	fs.BoolVar(&asJSON, "json", false, "Output raw JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, ok := sessionIDArg(fs, stderr)
	if !ok {
		return 2
	}

	var report lifecycle.Report
	if !c.call(http.MethodGet, "/api/v1/contracts/"+id+"/report", nil, &report, stderr) {
		return 1
	}
	if asJSON {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Fprintln(stdout, string(data))
		return 0
	}

	fmt.Fprintf(stdout, "%sReport for %s%s\n", ColorBold, report.SessionID, ColorReset)
	fmt.Fprintf(stdout, "  stage:    %s%s%s\n", stageColor(report.Stage)+ColorBold, report.Stage, ColorReset)
	fmt.Fprintf(stdout, "  risk:     %s\n", report.RiskLevel)
	fmt.Fprintf(stdout, "  clauses:  %d\n", report.ClauseCount)
	for severity, count := range report.FindingCounts {
		fmt.Fprintf(stdout, "  findings: %d %s\n", count, severity)
	}
	fmt.Fprintf(stdout, "  approvals: %d/%d", report.Approvals.Approved, report.Approvals.Total)
	if report.Approvals.NextRole != "" {
		fmt.Fprintf(stdout, " (next: %s)", report.Approvals.NextRole)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "%sTimeline:%s\n", ColorBold, ColorReset)
	for _, entry := range report.Timeline {
		fmt.Fprintf(stdout, "  %3d  %-28s %s\n", entry.Sequence, entry.Type, entry.At.Format(time.RFC3339))
	}
	return 0
}

func runEvents(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := newClient(fs)
	var after int64
	fs.Int64Var(&after, "after", 0, "Replay events after this sequence")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, ok := sessionIDArg(fs, stderr)
	if !ok {
		return 2
	}

	var out struct {
		Events []contracts.Event `json:"events"`
	}
	path := fmt.Sprintf("/api/v1/contracts/%s/events?after=%d", id, after)
	if !c.call(http.MethodGet, path, nil, &out, stderr) {
		return 1
	}
	for _, ev := range out.Events {
		printEvent(stdout, ev)
	}
	return 0
}

func runWatch(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := newClient(fs)
	var after int64
	fs.Int64Var(&after, "after", 0, "Resume after this sequence")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	id, ok := sessionIDArg(fs, stderr)
	if !ok {
		return 2
	}

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/api/v1/contracts/%s/stream", c.base, id), nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if after > 0 {
		req.Header.Set("Last-Event-ID", fmt.Sprintf("%d", after))
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		fmt.Fprintf(stderr, "%sstream failed:%s %v\n", ColorRed, ColorReset, err)
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "%sserver returned %d%s\n", ColorRed, resp.StatusCode, ColorReset)
		return 1
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok || data == "{}" {
			continue
		}
		var ev contracts.Event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			continue
		}
		printEvent(stdout, ev)
	}
	fmt.Fprintf(stdout, "%sstream closed%s\n", ColorGray, ColorReset)
	return 0
}

func printEvent(w io.Writer, ev contracts.Event) {
	color := ColorCyan
	switch ev.Type {
	case contracts.EventContractExecuted:
		color = ColorGreen
	case contracts.EventContractRejected, contracts.EventAnalysisFailed:
		color = ColorRed
	case contracts.EventNegotiationSubmitted:
		color = ColorYellow
	}
	fmt.Fprintf(w, "%3d  %s%-28s%s %s", ev.Sequence, color, ev.Type, ColorReset, ev.Stage)
	if ev.ActorID != "" {
		fmt.Fprintf(w, "  by %s", ev.ActorID)
	}
	fmt.Fprintln(w)
}

func runHealth(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := newClient(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var out map[string]any
	if !c.call(http.MethodGet, "/health", nil, &out, stderr) {
		return 1
	}
	fmt.Fprintln(stdout, "OK")
	return 0
}
