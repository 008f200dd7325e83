package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const ordersDescriptor = `
persistence_unit "orders" {
  managed_classes = ["com.acme.Order"]
  properties = {
    "javax.persistence.jdbc.user" = "app"
    "hibernate.cfg_xml_file"      = "hibernate.hcl"
  }
}
`

const ordersConfig = `
session_factory {
  properties = {
    "hibernate.show_sql" = true
  }
  class_cache "com.acme.Order" {
    usage = "read-write"
  }
}
`

func writeUnitFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		"persistence.hcl": ordersDescriptor,
		"hibernate.hcl":   ordersConfig,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMergeCommandJSON(t *testing.T) {
	dir := writeUnitFiles(t)
	out, err := execute(t, "merge", "--format", "json",
		"--config-dir", dir,
		"--descriptor", "persistence.hcl",
		"--set", "hibernate.default_schema=sales",
	)
	if err != nil {
		t.Fatalf("merge: %v\n%s", err, out)
	}

	var result MergeResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if result.Unit != "orders" {
		t.Fatalf("unexpected unit %q", result.Unit)
	}
	if result.Settings["hibernate.default_schema"] != "sales" {
		t.Fatalf("override missing from %v", result.Settings)
	}
	if result.Settings["hibernate.show_sql"] != "true" {
		t.Fatalf("config file properties missing from %v", result.Settings)
	}
	if len(result.CacheRegions) != 1 || result.CacheRegions[0].Role != "com.acme.Order" {
		t.Fatalf("unexpected cache regions %+v", result.CacheRegions)
	}
	found := false
	for _, notice := range result.Notices {
		if notice.Kind == "deprecated" && notice.Key == "javax.persistence.jdbc.user" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a deprecation notice, got %+v", result.Notices)
	}
}

func TestMergeCommandFiltersByLevel(t *testing.T) {
	dir := writeUnitFiles(t)
	out, err := execute(t, "merge", "--format", "json",
		"--config-dir", dir,
		"--descriptor", "persistence.hcl",
		"--set", "hibernate.default_schema=sales",
		"--level", "config-file",
	)
	if err != nil {
		t.Fatalf("merge: %v\n%s", err, out)
	}
	var result MergeResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if result.Settings["hibernate.show_sql"] != "true" {
		t.Fatalf("expected config file settings, got %v", result.Settings)
	}
	if _, ok := result.Settings["hibernate.default_schema"]; ok {
		t.Fatalf("integration overrides must be filtered out, got %v", result.Settings)
	}
	for key, source := range result.Sources {
		if !strings.HasPrefix(source, "config-file") {
			t.Fatalf("%s came from %s", key, source)
		}
	}

	out, err = execute(t, "merge", "--config-dir", dir, "--descriptor", "persistence.hcl",
		"--set", "hibernate.default_schema=sales", "--level", "INTEGRATION")
	if err != nil {
		t.Fatalf("merge: %v\n%s", err, out)
	}
	if !strings.Contains(out, "hibernate.default_schema = sales") || strings.Contains(out, "hibernate.show_sql") {
		t.Fatalf("unexpected text output:\n%s", out)
	}

	if _, err := execute(t, "merge", "--config-dir", dir, "--descriptor", "persistence.hcl", "--level", "bogus"); err == nil {
		t.Fatalf("expected unknown level error")
	}
}

func TestMergeCommandRejectsBadOverride(t *testing.T) {
	dir := writeUnitFiles(t)
	if _, err := execute(t, "merge", "--config-dir", dir, "--descriptor", "persistence.hcl", "--set", "novalue"); err == nil {
		t.Fatalf("expected override parse error")
	}
}

func TestCheckCommand(t *testing.T) {
	dir := writeUnitFiles(t)
	out, err := execute(t, "check", "--config-dir", dir, "--descriptor", "persistence.hcl",
		"--guard", `has("hibernate.show_sql")`,
	)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "unit orders") || !strings.Contains(out, "built") {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = execute(t, "check", "--config-dir", dir, "--descriptor", "persistence.hcl",
		"--guard", `cel:call("has", "hibernate.connection.url")`,
	)
	if err == nil {
		t.Fatalf("expected guard failure, got %q", out)
	}
}

func TestKeysCommand(t *testing.T) {
	out, err := execute(t, "keys", "jakarta.persistence.jdbc.url")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if !strings.Contains(out, "URL") || !strings.Contains(out, "javax.persistence.jdbc.url") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := execute(t, "keys", "no.such.key"); err == nil {
		t.Fatalf("expected unknown key error")
	}
	if _, err := execute(t, "keys", "--format", "yaml"); err == nil {
		t.Fatalf("expected invalid format error")
	}
}
