package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/tablegate/domain/entity"
)

func TestParseFieldArgs(t *testing.T) {
	got, err := parseFieldArgs([]string{"title:TEXT", "price:NUMERIC(10,2)", "at:TIMESTAMP WITH TIME ZONE"})
	if err != nil {
		t.Fatalf("parseFieldArgs: %v", err)
	}
	want := entity.Fields{
		{Name: "title", Type: "TEXT"},
		{Name: "price", Type: "NUMERIC(10,2)"},
		{Name: "at", Type: "TIMESTAMP WITH TIME ZONE"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d fields, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	for _, bad := range []string{"title", ":TEXT", "title:", "title: "} {
		if _, err := parseFieldArgs([]string{bad}); err == nil {
			t.Errorf("parseFieldArgs(%q) should fail", bad)
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	entitiesJSON = false
	err := rootCmd.Execute()
	return out.String(), err
}

func TestEntities_DefineThenList(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TABLEGATE_DATABASE_DRIVER", "sqlite")
	t.Setenv("TABLEGATE_DATABASE_DSN", filepath.Join(dir, "cli.db"))
	missing := filepath.Join(dir, "missing.yaml")

	out, err := execute(t, "--config", missing, "entities", "define", "Post", "title:TEXT", "body:TEXT")
	if err != nil {
		t.Fatalf("define: %v\n%s", err, out)
	}
	if want := "CREATE TABLE post (\ntitle\tTEXT,\nbody\tTEXT\n)"; strings.TrimSpace(out) != want {
		t.Errorf("define output = %q, want %q", out, want)
	}

	out, err = execute(t, "--config", missing, "entities", "list", "--json")
	if err != nil {
		t.Fatalf("list: %v\n%s", err, out)
	}
	var resp struct {
		Bindings []struct {
			Method string `json:"method"`
			Path   string `json:"path"`
		} `json:"bindings"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	paths := map[string]bool{}
	for _, b := range resp.Bindings {
		paths[b.Path] = true
	}
	for _, p := range []string{"/types", "/post", "/users"} {
		if !paths[p] {
			t.Errorf("list missing %s: %s", p, out)
		}
	}
}

func TestEntities_DefineInvalid(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TABLEGATE_DATABASE_DSN", filepath.Join(dir, "cli.db"))

	if _, err := execute(t, "--config", filepath.Join(dir, "missing.yaml"), "entities", "define", "types", "a:TEXT"); err == nil {
		t.Error("defining the reserved name should fail")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "tablegate dev") {
		t.Errorf("version output = %q", out)
	}
}
