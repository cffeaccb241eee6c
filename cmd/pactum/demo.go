package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Covenant-Systems/pactum/pkg/analysis"
	"github.com/Covenant-Systems/pactum/pkg/archive"
	"github.com/Covenant-Systems/pactum/pkg/auth"
	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/eventbus"
	"github.com/Covenant-Systems/pactum/pkg/identity"
	"github.com/Covenant-Systems/pactum/pkg/lifecycle"
	"github.com/Covenant-Systems/pactum/pkg/routing"
	"github.com/Covenant-Systems/pactum/pkg/session"
	"github.com/Covenant-Systems/pactum/pkg/templates"
)

// runToken mints a bearer token for the server's AUTH_SECRET.
func runToken(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		sub  string
		role string
		dept string
		ttl  time.Duration
	)
	fs.StringVar(&sub, "sub", "", "Token subject, the actor id (REQUIRED)")
	fs.StringVar(&role, "role", "", "Approval role (MANAGER, VP, LEGAL, CFO)")
	fs.StringVar(&dept, "department", "", "Department claim")
	fs.DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if sub == "" {
		fmt.Fprintln(stderr, "Error: --sub is required")
		return 2
	}
	secret := os.Getenv("AUTH_SECRET")
	if secret == "" {
		fmt.Fprintln(stderr, "Error: AUTH_SECRET is not set")
		return 2
	}

	ks, err := identity.NewDerivedKeySet(secret)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	now := time.Now()
	token, err := ks.Sign(context.Background(), auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:       role,
		Department: dept,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error signing token: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}

// Demo contracts, one per routing outcome.
const demoRoutineService = `This services agreement covers routine landscaping work at the
company office park. The provider will maintain the grounds weekly for a total
annual fee of $18,000. Either party may terminate this agreement with thirty
days written notice. Payment is due within thirty days of each invoice.`

const demoAutoRenewal = `This subscription agreement covers managed monitoring services.
The fee is $2,400 per year payable quarterly. This agreement shall automatically
renew for successive one year terms unless either party gives notice of
non-renewal at least sixty days before the end of the current term.`

const demoHostileMSA = `MASTER SERVICES AGREEMENT

1. SERVICES
The Vendor shall provide data processing services as described in each
statement of work. Fees total $40,000 per year across all service lines.

2. LIMITATION OF LIABILITY
The Client's liability under this agreement is unlimited and extends to all
consequential damages, including lost profits, arising from any breach.

3. TERMINATION
The Vendor may terminate this agreement at any time without cause and
without notice. The Client may terminate only for material breach.`

const demoCounterTerms = `1. LIMITATION OF LIABILITY
Each party's total liability under this agreement is capped at the fees paid
in the twelve months preceding the claim. Neither party is liable for
consequential damages.

2. TERMINATION
Either party may terminate this agreement with sixty days written notice.`

// runDemo walks the three canonical paths end to end in-process:
// auto-approval, a single-approver chain, and a hostile contract that
// negotiates its way down before executing.
func runDemo(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	keep := fs.Bool("keep", false, "Keep the archive directory on exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()

	archiveDir, err := os.MkdirTemp("", "pactum-demo-")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if !*keep {
		defer os.RemoveAll(archiveDir)
	}

	store := session.NewMemoryStore()
	bus := eventbus.NewBus().WithBackfill(store)
	library := templates.NewLibrary()
	pipeline := analysis.NewPipeline(library)
	router, err := routing.NewRouter(nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	blobs, err := archive.NewFileStore(archiveDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	orc := lifecycle.New(store, bus, pipeline, router).
		WithArchiver(archive.NewExporter(blobs)).
		WithSyncAnalysis()
	defer orc.Close()

	banner(stdout, "1. Low risk: clean service agreement, auto-approved")
	lowID, err := orc.Submit(ctx, lifecycle.SubmitRequest{Text: demoRoutineService, SubmittedBy: "demo"})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	show(ctx, stdout, orc, lowID)
	if err := orc.Execute(ctx, lowID, "demo"); err != nil {
		fmt.Fprintf(stderr, "Error executing: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "  %sexecuted without human sign-off%s\n", ColorGreen, ColorReset)

	banner(stdout, "2. Medium risk: auto-renewal flagged, one manager approval")
	medID, err := orc.Submit(ctx, lifecycle.SubmitRequest{Text: demoAutoRenewal, SubmittedBy: "demo"})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	show(ctx, stdout, orc, medID)
	if err := orc.Approve(ctx, medID, lifecycle.ApproveRequest{ApproverID: "mgr-ruiz", Role: contracts.RoleManager, Comments: "renewal terms acceptable"}); err != nil {
		fmt.Fprintf(stderr, "Error approving: %v\n", err)
		return 1
	}
	if err := orc.Execute(ctx, medID, "mgr-ruiz"); err != nil {
		fmt.Fprintf(stderr, "Error executing: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "  %sexecuted after MANAGER approval%s\n", ColorGreen, ColorReset)

	banner(stdout, "3. Critical risk: hostile MSA, negotiated down, then executed")
	hotID, err := orc.Submit(ctx, lifecycle.SubmitRequest{Text: demoHostileMSA, SubmittedBy: "demo"})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	show(ctx, stdout, orc, hotID)

	fmt.Fprintf(stdout, "  %ssubmitting counter-terms...%s\n", ColorYellow, ColorReset)
	if err := orc.Renegotiate(ctx, hotID, lifecycle.RenegotiateRequest{CounterTerms: demoCounterTerms, SubmittedBy: "counsel-park"}); err != nil {
		fmt.Fprintf(stderr, "Error renegotiating: %v\n", err)
		return 1
	}
	s, err := orc.GetStatus(ctx, hotID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if s.ProposedAssessment != nil {
		fmt.Fprintf(stdout, "  proposed risk after counter-terms: %s%s%s (recorded level stays %s)\n",
			ColorBold, s.ProposedAssessment.Level, ColorReset, s.RiskLevel)
	}

	if err := orc.Reroute(ctx, hotID, "counsel-park"); err != nil {
		fmt.Fprintf(stderr, "Error rerouting: %v\n", err)
		return 1
	}
	show(ctx, stdout, orc, hotID)
	if err := orc.Execute(ctx, hotID, "counsel-park"); err != nil {
		fmt.Fprintf(stderr, "Error executing: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "  %sexecuted on the rerouted chain%s\n", ColorGreen, ColorReset)

	banner(stdout, "Event streams")
	for _, id := range []string{lowID, medID, hotID} {
		events, err := orc.Events(ctx, id, 0)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "%s%s%s\n", ColorBold, id, ColorReset)
		for _, ev := range events {
			printEvent(stdout, ev)
		}
	}

	if *keep {
		fmt.Fprintf(stdout, "\nEvidence bundles kept in %s\n", archiveDir)
	}
	return 0
}

func banner(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s== %s ==%s\n", ColorBold+ColorBlue, title, ColorReset)
}

func show(ctx context.Context, w io.Writer, orc *lifecycle.Orchestrator, id string) {
	s, err := orc.GetStatus(ctx, id)
	if err != nil {
		fmt.Fprintf(w, "  (status unavailable: %v)\n", err)
		return
	}
	printSession(w, s)
}
