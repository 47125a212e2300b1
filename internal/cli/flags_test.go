package cli

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestParseFlags_JSONLogsAndVerbose(t *testing.T) {
	cmd := &cobra.Command{Use: "hot"}
	registerFlags(cmd)
	if err := cmd.Flags().Parse([]string{"--verbose", "--json-logs"}); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	f, err := parseFlags(cmd)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if !f.Verbose {
		t.Fatalf("expected Verbose to be true")
	}
	if !f.JSONLogs {
		t.Fatalf("expected JSONLogs to be true")
	}
}

func TestParseFlags_JSONLogsDefaultsFalse(t *testing.T) {
	cmd := &cobra.Command{Use: "hot"}
	registerFlags(cmd)
	if err := cmd.Flags().Parse(nil); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	f, err := parseFlags(cmd)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if f.JSONLogs {
		t.Fatalf("expected JSONLogs to default to false")
	}
}
