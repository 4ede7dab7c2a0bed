package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

// resetFlags restores package-level flag state between invocations; cobra
// keeps flag values across Execute calls within one process.
func resetFlags() {
	flagDB = ""
	flagOutput = "text"
	flagJSON = false
	flagConfig = ""

	flagProposeUser = ""
	flagProposePayload = "{}"
	flagProposeConfidence = 0

	flagConfirmActor = ""
	flagConfirmAdmin = false
	flagCancelReason = ""

	flagListUser = ""
	flagListLimit = 50
	flagHistoryUser = ""
	flagHistoryType = ""
	flagHistoryState = ""
	flagHistoryLimit = 50

	flagSettingsUser = ""
	flagSettingsTeam = ""

	flagPolicyUser = ""
	flagPolicyConfidence = 0

	flagFeedbackThumbs = ""
	flagFeedbackRating = 0
	flagFeedbackComment = ""
	flagExportFormat = "json"
	flagExportOut = ""
	flagExportRecent = 20

	flagContactsUser = ""
	flagContactEmail = ""
	flagContactPhone = ""
}

// setupCLI isolates HOME so the database and config land in a temp directory.
func setupCLI(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

// executeCommand runs the root command with the given args, capturing
// everything written to stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	oldStdout, oldStderr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = w, w

	rootCmd.SetArgs(args)
	execErr := rootCmd.Execute()

	w.Close()
	os.Stdout, os.Stderr = oldStdout, oldStderr

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("failed to read command output: %v", err)
	}
	return buf.String(), execErr
}

func parseJSON(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	return m
}

// startDispatchServer points dispatch at a local server that approves
// everything, so auto-approved and confirmed actions can execute.
func startDispatchServer(t *testing.T) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"id": "r-1"},
		})
	}))
	t.Cleanup(server.Close)
	t.Setenv("AGENTGATE_FUNCTION_URL", server.URL)
}

func TestProposeCommand_RequiresUser(t *testing.T) {
	setupCLI(t)

	_, err := executeCommand(t, "propose", "create_task")
	if err == nil || !strings.Contains(err.Error(), "--user is required") {
		t.Fatalf("expected missing-user error, got %v", err)
	}
}

func TestProposeCommand_AutoApproveExecutes(t *testing.T) {
	setupCLI(t)
	startDispatchServer(t)

	out, err := executeCommand(t, "propose", "create_task",
		"-u", "user-1", "--confidence", "0.9", "-p", `{"title":"Water plants"}`, "-j")
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	resp := parseJSON(t, out)
	if resp["outcome"] != "auto_approve" {
		t.Errorf("expected auto_approve, got %v", resp["outcome"])
	}
	if resp["status"] != "executed" {
		t.Errorf("expected executed, got %v", resp["status"])
	}
	if resp["executed"] != true {
		t.Errorf("expected executed=true, got %v", resp["executed"])
	}
}

func TestProposeCommand_ParksHighRisk(t *testing.T) {
	setupCLI(t)

	out, err := executeCommand(t, "propose", "send_email",
		"-u", "user-1", "--confidence", "0.95", "-j")
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	resp := parseJSON(t, out)
	if resp["outcome"] != "require_confirmation" {
		t.Errorf("expected require_confirmation, got %v", resp["outcome"])
	}
	if resp["status"] != "pending" {
		t.Errorf("expected pending, got %v", resp["status"])
	}
	if resp["risk_level"] != "high" {
		t.Errorf("expected high risk, got %v", resp["risk_level"])
	}
	if resp["action_id"] == nil || resp["action_id"] == "" {
		t.Error("expected an action id")
	}
}

func TestProposeCommand_BlockedWhenDisabled(t *testing.T) {
	setupCLI(t)

	if _, err := executeCommand(t, "settings", "user", "set", "enabled", "false", "-u", "user-1"); err != nil {
		t.Fatalf("settings set failed: %v", err)
	}

	out, err := executeCommand(t, "propose", "create_task",
		"-u", "user-1", "--confidence", "0.9", "-j")
	if err != nil {
		t.Fatalf("blocked propose in JSON mode should print a payload, got %v", err)
	}
	resp := parseJSON(t, out)
	if resp["error"] == nil {
		t.Fatalf("expected error payload, got %v", resp)
	}
	details, _ := resp["details"].(map[string]any)
	if details["kind"] != "PERMISSION_DENIED" {
		t.Errorf("expected PERMISSION_DENIED, got %v", details)
	}
}

func TestConfirmCommand_ExecutesPending(t *testing.T) {
	setupCLI(t)
	startDispatchServer(t)

	out, err := executeCommand(t, "propose", "send_email",
		"-u", "user-1", "--confidence", "0.95", "-j")
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	actionID, _ := parseJSON(t, out)["action_id"].(string)
	if actionID == "" {
		t.Fatal("propose returned no action id")
	}

	out, err = executeCommand(t, "confirm", actionID, "-a", "user-1", "-j")
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	resp := parseJSON(t, out)
	if resp["status"] != "executed" {
		t.Errorf("expected executed, got %v", resp["status"])
	}
	if resp["changed"] != true {
		t.Errorf("expected changed=true, got %v", resp["changed"])
	}
	if resp["confirmed_by"] != "user-1" {
		t.Errorf("expected confirmed_by user-1, got %v", resp["confirmed_by"])
	}

	out, err = executeCommand(t, "status", actionID, "-j")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if got := parseJSON(t, out)["status"]; got != "executed" {
		t.Errorf("status should report executed, got %v", got)
	}
}

func TestConfirmCommand_RequiresActor(t *testing.T) {
	setupCLI(t)

	_, err := executeCommand(t, "confirm", "some-id")
	if err == nil || !strings.Contains(err.Error(), "--actor is required") {
		t.Fatalf("expected missing-actor error, got %v", err)
	}
}

func TestCancelCommand_Idempotent(t *testing.T) {
	setupCLI(t)

	out, err := executeCommand(t, "propose", "send_email",
		"-u", "user-1", "--confidence", "0.95", "-j")
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	actionID, _ := parseJSON(t, out)["action_id"].(string)

	out, err = executeCommand(t, "cancel", actionID, "-r", "changed my mind", "-j")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	resp := parseJSON(t, out)
	if resp["status"] != "cancelled" || resp["changed"] != true {
		t.Errorf("unexpected cancel response: %v", resp)
	}
	if resp["cancel_reason"] != "changed my mind" {
		t.Errorf("expected cancel reason, got %v", resp["cancel_reason"])
	}

	out, err = executeCommand(t, "cancel", actionID, "-j")
	if err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}
	if resp := parseJSON(t, out); resp["changed"] != false {
		t.Errorf("second cancel should be a no-op, got %v", resp)
	}
}

func TestPendingCommand_FiltersByUser(t *testing.T) {
	setupCLI(t)

	for _, user := range []string{"user-1", "user-1", "user-2"} {
		if _, err := executeCommand(t, "propose", "send_email",
			"-u", user, "--confidence", "0.95"); err != nil {
			t.Fatalf("propose failed: %v", err)
		}
	}

	out, err := executeCommand(t, "pending", "-j")
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if got := parseJSON(t, out)["count"]; got != float64(3) {
		t.Errorf("expected 3 pending, got %v", got)
	}

	out, err = executeCommand(t, "pending", "-u", "user-2", "-j")
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if got := parseJSON(t, out)["count"]; got != float64(1) {
		t.Errorf("expected 1 pending for user-2, got %v", got)
	}
}

func TestSettingsCommands_RoundTrip(t *testing.T) {
	setupCLI(t)

	if _, err := executeCommand(t, "settings", "user", "set", "confidence_threshold", "0.9", "-u", "user-1"); err != nil {
		t.Fatalf("settings set failed: %v", err)
	}

	out, err := executeCommand(t, "settings", "user", "show", "-u", "user-1", "-j")
	if err != nil {
		t.Fatalf("settings show failed: %v", err)
	}
	if got := parseJSON(t, out)["confidence_threshold"]; got != float64(0.9) {
		t.Errorf("expected threshold 0.9, got %v", got)
	}

	_, err = executeCommand(t, "settings", "user", "set", "confidence_threshold", "1.5", "-u", "user-1")
	if err == nil {
		t.Fatal("expected error for threshold out of range")
	}

	_, err = executeCommand(t, "settings", "user", "set", "channels.fax", "true", "-u", "user-1")
	if err == nil || !strings.Contains(err.Error(), "unknown channel") {
		t.Fatalf("expected unknown-channel error, got %v", err)
	}
}

func TestSettingsTeamCeiling_BlocksMember(t *testing.T) {
	setupCLI(t)

	// Team disables SMS; the member's own enablement cannot override it.
	steps := [][]string{
		{"settings", "team", "set", "channels.sms", "false", "-t", "team-1"},
		{"settings", "member", "user-1", "team-1"},
		{"settings", "user", "set", "channels.sms", "true", "-u", "user-1"},
	}
	for _, args := range steps {
		if _, err := executeCommand(t, args...); err != nil {
			t.Fatalf("%v failed: %v", args, err)
		}
	}

	out, err := executeCommand(t, "propose", "send_sms", "-u", "user-1", "--confidence", "0.95", "-j")
	if err != nil {
		t.Fatalf("blocked propose in JSON mode should print a payload, got %v", err)
	}
	details, _ := parseJSON(t, out)["details"].(map[string]any)
	if details["kind"] != "PERMISSION_DENIED" {
		t.Errorf("expected PERMISSION_DENIED, got %v", details)
	}
}

func TestPolicyCheckCommand_DryRun(t *testing.T) {
	setupCLI(t)

	out, err := executeCommand(t, "policy", "check", "send_email",
		"-u", "user-1", "--confidence", "0.95", "-j")
	if err != nil {
		t.Fatalf("policy check failed: %v", err)
	}
	resp := parseJSON(t, out)
	if resp["outcome"] != "require_confirmation" {
		t.Errorf("expected require_confirmation, got %v", resp["outcome"])
	}

	// A dry run creates no pending record.
	out, err = executeCommand(t, "pending", "-j")
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if got := parseJSON(t, out)["count"]; got != float64(0) {
		t.Errorf("policy check must not create records, got %v pending", got)
	}
}

func TestContactsCommands_GateOutreach(t *testing.T) {
	setupCLI(t)

	if _, err := executeCommand(t, "contacts", "add", "Dana Reyes",
		"--email", "dana@example.com", "-u", "user-1"); err != nil {
		t.Fatalf("contacts add failed: %v", err)
	}

	out, err := executeCommand(t, "contacts", "list", "-u", "user-1", "-j")
	if err != nil {
		t.Fatalf("contacts list failed: %v", err)
	}
	if got := parseJSON(t, out)["count"]; got != float64(1) {
		t.Errorf("expected 1 contact, got %v", got)
	}

	_, err = executeCommand(t, "propose", "send_email_to_contact",
		"-u", "user-1", "--confidence", "0.99", "-p", `{"recipient":"stranger@example.com"}`)
	if err == nil || !strings.Contains(err.Error(), "not a known contact") {
		t.Fatalf("expected unknown-recipient error, got %v", err)
	}

	out, err = executeCommand(t, "propose", "send_email_to_contact",
		"-u", "user-1", "--confidence", "0.99", "-p", `{"recipient":"dana@example.com"}`, "-j")
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	resp := parseJSON(t, out)
	if resp["status"] != "pending" {
		t.Errorf("expected pending, got %v", resp["status"])
	}
	if resp["risk_level"] != "critical" {
		t.Errorf("expected critical risk, got %v", resp["risk_level"])
	}
}

func TestConfigCommands(t *testing.T) {
	setupCLI(t)

	if _, err := executeCommand(t, "config", "set", "general.pending_ttl_minutes", "30"); err != nil {
		t.Fatalf("config set failed: %v", err)
	}

	out, err := executeCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "general.pending_ttl_minutes: 30") {
		t.Errorf("config show missing updated value:\n%s", out)
	}

	_, err = executeCommand(t, "config", "set", "daemon.sweep_schedule", "whenever")
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestFeedbackCommands(t *testing.T) {
	setupCLI(t)
	startDispatchServer(t)

	out, err := executeCommand(t, "propose", "create_task",
		"-u", "user-1", "--confidence", "0.9", "-j")
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	actionID, _ := parseJSON(t, out)["action_id"].(string)

	if _, err := executeCommand(t, "feedback", "record", actionID, "--thumbs", "up"); err != nil {
		t.Fatalf("feedback record failed: %v", err)
	}
	if _, err := executeCommand(t, "feedback", "record", actionID, "--rating", "4", "--comment", "good call"); err != nil {
		t.Fatalf("detailed feedback failed: %v", err)
	}

	out, err = executeCommand(t, "feedback", "stats", "-j")
	if err != nil {
		t.Fatalf("feedback stats failed: %v", err)
	}
	if got := parseJSON(t, out)["total_entries"]; got != float64(2) {
		t.Errorf("expected 2 entries, got %v", got)
	}

	_, err = executeCommand(t, "feedback", "record", actionID)
	if err == nil {
		t.Fatal("expected error when neither thumbs nor rating given")
	}
}

func TestHistoryCommand(t *testing.T) {
	setupCLI(t)
	startDispatchServer(t)

	if _, err := executeCommand(t, "propose", "create_task",
		"-u", "user-1", "--confidence", "0.9"); err != nil {
		t.Fatalf("propose failed: %v", err)
	}

	out, err := executeCommand(t, "history", "-u", "user-1", "-j")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if got := parseJSON(t, out)["count"]; got != float64(1) {
		t.Errorf("expected 1 history record, got %v", got)
	}

	out, err = executeCommand(t, "history", "--status", "cancelled", "-j")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if got := parseJSON(t, out)["count"]; got != float64(0) {
		t.Errorf("expected no cancelled records, got %v", got)
	}
}

func TestSweepCommand(t *testing.T) {
	setupCLI(t)

	out, err := executeCommand(t, "sweep", "-j")
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	resp := parseJSON(t, out)
	if _, ok := resp["expired"]; !ok {
		t.Errorf("sweep response missing expired count: %v", resp)
	}
}
