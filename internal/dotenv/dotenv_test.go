package dotenv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeEnvFile(t, `
# comment
MYPITCH_TEST_A=plain
export MYPITCH_TEST_B="quoted value"
MYPITCH_TEST_C='single'
MYPITCH_TEST_A=duplicate-ignored

not-a-pair
=no-key
`)
	for _, key := range []string{"MYPITCH_TEST_A", "MYPITCH_TEST_B", "MYPITCH_TEST_C"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if err := Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("MYPITCH_TEST_A"); got != "plain" {
		t.Errorf("first value must win, got %q", got)
	}
	if got := os.Getenv("MYPITCH_TEST_B"); got != "quoted value" {
		t.Errorf("double quotes must strip, got %q", got)
	}
	if got := os.Getenv("MYPITCH_TEST_C"); got != "single" {
		t.Errorf("single quotes must strip, got %q", got)
	}
}

func TestLoad_DoesNotOverrideProcessEnv(t *testing.T) {
	path := writeEnvFile(t, "MYPITCH_TEST_KEEP=from-file\n")
	t.Setenv("MYPITCH_TEST_KEEP", "from-process")

	if err := Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("MYPITCH_TEST_KEEP"); got != "from-process" {
		t.Errorf("process env must win, got %q", got)
	}
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	if err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
}

func TestParse(t *testing.T) {
	pairs, err := parse(strings.NewReader("A=1\n#B=2\nA=3\nC= spaced \n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pairs["A"] != "1" || pairs["C"] != "spaced" {
		t.Errorf("unexpected pairs %v", pairs)
	}
	if _, ok := pairs["B"]; ok {
		t.Error("commented line must be skipped")
	}
}
