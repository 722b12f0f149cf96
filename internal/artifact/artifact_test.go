package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocate(t *testing.T) {
	d := Locate("/tmp/build1/foo.run")
	if d.Expected != "/tmp/build1/foo.rom" {
		t.Errorf("Expected = %q, want /tmp/build1/foo.rom", d.Expected)
	}
	if d.Canonical != "/tmp/build1/output.rom" {
		t.Errorf("Canonical = %q, want /tmp/build1/output.rom", d.Canonical)
	}
}

func TestLocate_OnlyLastExtensionStripped(t *testing.T) {
	d := Locate("/w/prog.v2.run")
	if d.Expected != "/w/prog.v2.rom" {
		t.Errorf("Expected = %q, want /w/prog.v2.rom", d.Expected)
	}
}

func TestProbe_Missing(t *testing.T) {
	dir := t.TempDir()
	d := Locate(filepath.Join(dir, "foo.run"))
	if err := d.Probe(); !errors.Is(err, ErrMissing) {
		t.Errorf("Probe() = %v, want ErrMissing", err)
	}
}

func TestProbe_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "foo.rom"), 0o755); err != nil {
		t.Fatal(err)
	}
	d := Locate(filepath.Join(dir, "foo.run"))
	if err := d.Probe(); !errors.Is(err, ErrMissing) {
		t.Errorf("Probe() = %v, want ErrMissing", err)
	}
}

func TestStage_CopiesContents(t *testing.T) {
	dir := t.TempDir()
	want := []byte("00000000:8000000f\n")
	if err := os.WriteFile(filepath.Join(dir, "foo.rom"), want, 0o644); err != nil {
		t.Fatal(err)
	}

	d := Locate(filepath.Join(dir, "foo.run"))
	if err := d.Probe(); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if err := d.Stage(); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, OutputName))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestStage_ReplacesPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, OutputName), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "foo.rom"), []byte("fresh"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Locate(filepath.Join(dir, "foo.run")).Stage(); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	got, _ := os.ReadFile(filepath.Join(dir, OutputName))
	if string(got) != "fresh" {
		t.Errorf("output = %q, want fresh", got)
	}
}

func TestStage_SourceVanished(t *testing.T) {
	dir := t.TempDir()
	err := Locate(filepath.Join(dir, "foo.run")).Stage()

	var copyErr *CopyError
	if !errors.As(err, &copyErr) {
		t.Fatalf("Stage() = %v, want *CopyError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stage() = %v, want to wrap os.ErrNotExist", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, OutputName)); !os.IsNotExist(statErr) {
		t.Error("output.rom created by a failed copy")
	}
}

func TestStage_SameFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, OutputName), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	d := Locate(filepath.Join(dir, "output.run"))
	if err := d.Stage(); err != nil {
		t.Fatalf("Stage: %v", err)
	}
}
