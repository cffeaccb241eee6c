package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"pactum", "help"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("help exited %d", code)
	}
	out := stdout.String()
	for _, want := range []string{"submit", "approve", "renegotiate", "execute", "watch"} {
		if !strings.Contains(out, want) {
			t.Fatalf("usage missing %q:\n%s", want, out)
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"pactum", "frobnicate"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("unknown command exited %d, want 2", code)
	}
	if !strings.Contains(stderr.String(), "Unknown command") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunStatusRequiresID(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"pactum", "status"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("status without id exited %d, want 2", code)
	}
}

func TestRunTokenRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	var stdout, stderr bytes.Buffer
	code := Run([]string{"pactum", "token", "--sub", "vp-1"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("token without secret exited %d, want 2", code)
	}
}

func TestRunTokenMints(t *testing.T) {
	t.Setenv("AUTH_SECRET", "demo-root-secret-0123456789")
	var stdout, stderr bytes.Buffer
	code := Run([]string{"pactum", "token", "--sub", "vp-1", "--role", "VP"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("token exited %d: %s", code, stderr.String())
	}
	token := strings.TrimSpace(stdout.String())
	if strings.Count(token, ".") != 2 {
		t.Fatalf("output does not look like a JWT: %q", token)
	}
}

func TestRunDemoEndToEnd(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"pactum", "demo"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("demo exited %d: %s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{
		"auto-approved",
		"MANAGER approval",
		"rerouted chain",
		"contract_executed",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("demo output missing %q", want)
		}
	}
}
