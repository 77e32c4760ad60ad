package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/getodk/briefcase-sub006/internal/domain"
	"github.com/getodk/briefcase-sub006/internal/infra/credstore"
	"github.com/getodk/briefcase-sub006/internal/ports"
)

const formXML = `<h:html xmlns:h="http://www.w3.org/1999/xhtml"><h:head><h:title>Household</h:title><model><instance><data id="household" version="1"><name/><meta><instanceID/></meta></data></instance></model></h:head><h:body/></h:html>`

const instanceXML = `<data id="household" version="1"><name>Ana</name><meta><instanceID>uuid:42</instanceID></meta></data>`

// --- command structure ---

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[strings.Fields(sub.Use)[0]] = true
	}
	for _, expected := range []string{"init", "source", "forms", "pull", "push"} {
		if !names[expected] {
			t.Errorf("expected subcommand %q to be registered", expected)
		}
	}
	if cmd.Version == "" {
		t.Error("expected a version string on the root command")
	}
}

func TestPullCmd_Flags(t *testing.T) {
	cmd := pullCmd(&rootFlags{})
	for _, flag := range []string{"form", "all", "tui", "format", "parallel", "batch-size", "include-incomplete"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected --%s flag on pull command", flag)
		}
	}
	if cmd.Flags().Lookup("force") != nil {
		t.Error("--force belongs to push only")
	}
}

func TestPushCmd_Flags(t *testing.T) {
	cmd := pushCmd(&rootFlags{})
	for _, flag := range []string{"form", "all", "tui", "format", "parallel", "force"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected --%s flag on push command", flag)
		}
	}
}

func TestSourceCmd_HasSubcommands(t *testing.T) {
	cmd := sourceCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[strings.Fields(sub.Use)[0]] = true
	}
	for _, expected := range []string{"set", "show", "clear"} {
		if !names[expected] {
			t.Errorf("expected %q subcommand under source", expected)
		}
	}
}

func TestInitCmd_Flags(t *testing.T) {
	cmd := initCmd()
	for _, flag := range []string{"path", "force", "storage-dir"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected --%s flag on init command", flag)
		}
	}
}

// --- resolveWorkspaceRoot ---

func TestResolveWorkspaceRoot_ExplicitPath(t *testing.T) {
	tmp := t.TempDir()
	got, err := resolveWorkspaceRoot(tmp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != tmp {
		t.Errorf("expected %q, got %q", tmp, got)
	}
}

func TestResolveWorkspaceRoot_RelativePath(t *testing.T) {
	got, err := resolveWorkspaceRoot(".")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("expected absolute path, got %q", got)
	}
}

// --- form selection ---

func TestSelectForms(t *testing.T) {
	forms := []domain.FormMetadata{
		{Key: domain.NewFormKey("household", "1"), Name: "Household"},
		{Key: domain.NewFormKey("household", "2"), Name: "Household v2"},
		{Key: domain.NewFormKey("clinic", ""), Name: "Clinic visit"},
	}

	cases := []struct {
		name string
		all  bool
		refs []string
		want []string
	}{
		{"all", true, nil, []string{"household[1]", "household[2]", "clinic"}},
		{"by id matches every version", false, []string{"household"}, []string{"household[1]", "household[2]"}},
		{"by key", false, []string{"household[2]"}, []string{"household[2]"}},
		{"by title", false, []string{"clinic visit"}, []string{"clinic"}},
	}
	for _, c := range cases {
		got, err := selectForms(domain.NewTransferForms(forms...), c.all, c.refs)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", c.name, err)
		}
		var keys []string
		for _, f := range got {
			keys = append(keys, f.Key.String())
		}
		if strings.Join(keys, ",") != strings.Join(c.want, ",") {
			t.Errorf("%s: got %v, want %v", c.name, keys, c.want)
		}
	}
}

func TestSelectForms_Errors(t *testing.T) {
	forms := []domain.FormMetadata{{Key: domain.NewFormKey("household", "1")}}

	if _, err := selectForms(domain.NewTransferForms(forms...), false, nil); err == nil {
		t.Error("expected an error when nothing is selected")
	}
	_, err := selectForms(domain.NewTransferForms(forms...), false, []string{"missing"})
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Errorf("expected unknown form error, got %v", err)
	}
}

// --- endpoints ---

func TestBuildEndpoint(t *testing.T) {
	t.Setenv(envUsername, "")

	e, err := buildEndpoint(domain.EndpointCentral, endpointFlags{url: "https://c.example.org/", projectID: 3, username: "me@example.org"}, "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.CentralServer{URL: "https://c.example.org", ProjectID: 3, Credentials: domain.Credentials{Username: "me@example.org", Password: "pw"}}
	if e != want {
		t.Errorf("got %#v, want %#v", e, want)
	}

	e, err = buildEndpoint(domain.EndpointAggregate, endpointFlags{url: "https://agg"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a := e.(domain.AggregateServer); a.Credentials != nil {
		t.Error("anonymous Aggregate server should carry no credentials")
	}

	for _, c := range []struct {
		t domain.EndpointType
		f endpointFlags
	}{
		{domain.EndpointCentral, endpointFlags{url: "https://c"}},
		{domain.EndpointCollectDir, endpointFlags{}},
		{domain.EndpointType("ftp"), endpointFlags{}},
	} {
		if _, err := buildEndpoint(c.t, c.f, ""); err == nil {
			t.Errorf("expected error for %s %+v", c.t, c.f)
		}
	}

	_, err = buildEndpoint("ftp", endpointFlags{}, "")
	if !errors.Is(err, domain.ErrUnknownEndpointType) {
		t.Errorf("expected ErrUnknownEndpointType, got %v", err)
	}
}

func TestWithEnvCredentials(t *testing.T) {
	t.Setenv(envUsername, "env-user")
	t.Setenv(envPassword, "env-pass")

	a := withEnvCredentials(domain.AggregateServer{URL: "https://agg"}).(domain.AggregateServer)
	if a.Credentials == nil || a.Credentials.Username != "env-user" || a.Credentials.Password != "env-pass" {
		t.Errorf("unexpected aggregate credentials: %+v", a.Credentials)
	}

	c := withEnvCredentials(domain.CentralServer{URL: "https://c", Credentials: domain.Credentials{Username: "stored"}}).(domain.CentralServer)
	if c.Credentials.Username != "env-user" || c.Credentials.Password != "env-pass" {
		t.Errorf("unexpected central credentials: %+v", c.Credentials)
	}

	d := domain.CollectDirectory{Path: "/odk"}
	if withEnvCredentials(d) != d {
		t.Error("local endpoints are returned unchanged")
	}
}

func TestShowEndpoints_HidesSecrets(t *testing.T) {
	store := credstore.New(filepath.Join(t.TempDir(), "endpoints.yaml"))
	err := store.Save(ports.RolePullSource, domain.CentralServer{
		URL: "https://c", ProjectID: 2,
		Credentials: domain.Credentials{Username: "me@example.org", Password: "s3cret"},
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := showEndpoints(&buf, store); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "s3cret") {
		t.Errorf("password leaked:\n%s", out)
	}
	if !strings.Contains(out, "me@example.org") || !strings.Contains(out, "(not set)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

// --- output ---

func TestReport_JSON(t *testing.T) {
	rep := &report[domain.PullResult]{}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rep.success(domain.PullResult{Form: domain.NewFormKey("household", "1"), Downloaded: 3, StartedAt: now, EndedAt: now.Add(time.Second)})
	rep.failure(&domain.FormError{Form: domain.NewFormKey("clinic", ""), Err: domain.AuthError("central.login", "", nil)})
	rep.event(domain.FormStatusEvent{Form: domain.NewFormKey("household", "1"), Kind: domain.EventInfo, Message: "Downloading form", At: now})

	var buf bytes.Buffer
	if err := rep.writeJSON(&buf, pullJSON); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var payload struct {
		Results []map[string]any `json:"results"`
		Errors  []errorJSON      `json:"errors"`
		Events  []eventJSON      `json:"events"`
	}
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(payload.Results) != 1 || payload.Results[0]["downloaded"] != float64(3) {
		t.Errorf("unexpected results: %v", payload.Results)
	}
	if payload.Results[0]["duration_ms"] != float64(1000) {
		t.Errorf("unexpected duration: %v", payload.Results[0]["duration_ms"])
	}
	if len(payload.Errors) != 1 || payload.Errors[0].Form != "clinic" || payload.Errors[0].Kind != "authentication" {
		t.Errorf("unexpected errors: %+v", payload.Errors)
	}
	if len(payload.Events) != 1 || payload.Events[0].Message != "Downloading form" {
		t.Errorf("unexpected events: %+v", payload.Events)
	}
}

func TestReport_Pretty(t *testing.T) {
	rep := &report[domain.PushResult]{}
	rep.success(domain.PushResult{
		Form: domain.NewFormKey("household", "1"), Attempted: 3, Succeeded: 2, FormSkipped: true,
		Failures: []domain.SubmissionFailure{{InstanceID: "uuid3"}},
	})
	rep.failure(&domain.FormError{Form: domain.NewFormKey("clinic", ""), Err: domain.NetworkError("http.send", "", errors.New("refused"))})

	var buf bytes.Buffer
	rep.writePretty(&buf, "Push to X", pushSummary)
	out := buf.String()

	for _, want := range []string{"Push to X", "household[1]: 2 of 3 submissions pushed, 1 failed, form already on server", "[FAIL] clinic: Cannot reach the server"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestCheckFormat(t *testing.T) {
	for _, ok := range []string{"pretty", "json", ""} {
		if err := checkFormat(ok); err != nil {
			t.Errorf("format %q: unexpected error %v", ok, err)
		}
	}
	if err := checkFormat("xml"); err == nil || !strings.Contains(err.Error(), "xml") {
		t.Errorf("expected error mentioning xml, got %v", err)
	}
}

// --- end to end over a Collect directory ---

func TestPullFromCollectDirectory(t *testing.T) {
	ws := t.TempDir()
	odk := t.TempDir()
	t.Setenv(envEndpoints, filepath.Join(t.TempDir(), "endpoints.yaml"))

	mustWrite(t, filepath.Join(odk, "forms", "household.xml"), formXML)
	mustWrite(t, filepath.Join(odk, "forms", "household-media", "logo.png"), "png")
	mustWrite(t, filepath.Join(odk, "instances", "household_2024", "household_2024.xml"), instanceXML)

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(append([]string{"--workspace", ws}, args...))
		if err := cmd.Execute(); err != nil {
			t.Fatalf("briefcase %v: %v\n%s", args, err, out.String())
		}
		return out.String()
	}

	run("init", "--path", ws)
	run("source", "set", "pull", "collect_dir", "--path", odk)
	out := run("pull", "--all", "--format", "json")

	var payload struct {
		Results []struct {
			Form       string `json:"form"`
			Downloaded int    `json:"downloaded"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if len(payload.Results) != 1 || payload.Results[0].Form != "household[1]" || payload.Results[0].Downloaded != 1 {
		t.Errorf("unexpected results: %+v", payload.Results)
	}

	stored := filepath.Join(ws, "ODK Briefcase Storage", "forms", "Household", "instances", "uuid42", "submission.xml")
	if _, err := os.Stat(stored); err != nil {
		t.Errorf("expected stored submission: %v", err)
	}

	if out := run("forms"); !strings.Contains(out, "Household  (household[1])") {
		t.Errorf("expected pulled form in listing, got:\n%s", out)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
