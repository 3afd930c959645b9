package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

var errNoName = errors.New("name is required")

func (s *sample) Validate() error {
	if s.Name == "" {
		return errNoName
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_KeepsUnsetFields(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "folio")
	path := writeFile(t, "name: ${SAMPLE_NAME}\n")

	s := sample{Limit: 7}
	if err := Load(path, &s); err != nil {
		t.Fatal(err)
	}
	if s.Name != "folio" || s.Limit != 7 {
		t.Errorf("got %+v", s)
	}
}

func TestLoad_Validates(t *testing.T) {
	path := writeFile(t, "limit: 3\n")
	var s sample
	if err := Load(path, &s); !errors.Is(err, errNoName) {
		t.Errorf("err = %v, want errNoName", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeFile(t, "name: [unclosed\n")
	var s sample
	err := Load(path, &s)
	if err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	s := sample{Name: "default"}
	if err := LoadOptional(missing, &s); err != nil {
		t.Fatalf("missing file should keep defaults: %v", err)
	}

	var empty sample
	if err := LoadOptional(missing, &empty); !errors.Is(err, errNoName) {
		t.Errorf("defaults are still validated, err = %v", err)
	}
}
