package store

import (
	"os"
	"path/filepath"
	"testing"
)

type doc struct {
	Name  string    `json:"name"`
	Steps []float64 `json:"steps"`
}

func TestWriteReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	in := doc{Name: "run", Steps: []float64{0.1, 0.25}}
	if err := WriteJSON(path, in); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if !Exists(path) {
		t.Fatal("expected document to exist")
	}

	var out doc
	if err := ReadJSON(path, &out); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if out.Name != in.Name || len(out.Steps) != 2 || out.Steps[1] != 0.25 {
		t.Errorf("unexpected document %+v", out)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, found %d entries", len(entries))
	}
}

func TestWriteJSONOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := WriteJSON(path, doc{Name: "first"}); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSON(path, doc{Name: "second"}); err != nil {
		t.Fatal(err)
	}

	var out doc
	if err := ReadJSON(path, &out); err != nil {
		t.Fatal(err)
	}
	if out.Name != "second" {
		t.Errorf("expected overwritten document, got %q", out.Name)
	}
}

func TestReadJSONMissing(t *testing.T) {
	var out doc
	err := ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &out)
	if !IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	if Exists(filepath.Join(t.TempDir(), "absent.json")) {
		t.Error("absent document reported as existing")
	}
}
