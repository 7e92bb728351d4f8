package workflow

import (
	"os"
	"path/filepath"
	"testing"
)

func writeWorkflowFile(t *testing.T, dir, name, id, version string) string {
	t.Helper()
	doc := `{
  "id": "` + id + `",
  "version": "` + version + `",
  "trigger": {"type": "event", "event": "order.created"},
  "actions": [{"id": "notify", "type": "notification", "template": "order {{event.order_id}}"}]
}`
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoaderLoadOnce(t *testing.T) {
	dir := t.TempDir()
	writeWorkflowFile(t, dir, "a.json", "wf-a", "1.0.0")
	writeWorkflowFile(t, dir, "b.json", "wf-b", "1.0.0")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	reg := NewRegistry()
	loader := NewLoader(dir, reg)
	n, err := loader.LoadOnce()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 2 || reg.Len() != 2 {
		t.Fatalf("loaded %d, registry %d", n, reg.Len())
	}
	if _, ok := reg.Get("wf-a"); !ok {
		t.Fatal("wf-a missing")
	}
}

func TestLoaderSkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	writeWorkflowFile(t, dir, "a.json", "wf-a", "1.0.0")

	reg := NewRegistry()
	loader := NewLoader(dir, reg)
	if n, _ := loader.LoadOnce(); n != 1 {
		t.Fatalf("first sweep loaded %d", n)
	}
	if n, _ := loader.LoadOnce(); n != 0 {
		t.Fatalf("second sweep reloaded %d unchanged files", n)
	}
}

func TestLoaderReloadsChangedFile(t *testing.T) {
	dir := t.TempDir()
	writeWorkflowFile(t, dir, "a.json", "wf-a", "1.0.0")

	reg := NewRegistry()
	loader := NewLoader(dir, reg)
	loader.LoadOnce()

	writeWorkflowFile(t, dir, "a.json", "wf-a", "2.0.0")
	if n, _ := loader.LoadOnce(); n != 1 {
		t.Fatalf("changed file not reloaded (%d)", n)
	}
	def, _ := reg.Get("wf-a")
	if def.Version != "2.0.0" {
		t.Fatalf("version: %+v", def)
	}
}

func TestLoaderRemovesVanishedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkflowFile(t, dir, "a.json", "wf-a", "1.0.0")
	writeWorkflowFile(t, dir, "b.json", "wf-b", "1.0.0")

	reg := NewRegistry()
	loader := NewLoader(dir, reg)
	loader.LoadOnce()

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := loader.LoadOnce(); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, ok := reg.Get("wf-a"); ok {
		t.Fatal("wf-a should be gone")
	}
	if _, ok := reg.Get("wf-b"); !ok {
		t.Fatal("wf-b should survive")
	}
}

func TestLoaderKeepsOldDefinitionOnBadUpdate(t *testing.T) {
	dir := t.TempDir()
	path := writeWorkflowFile(t, dir, "a.json", "wf-a", "1.0.0")

	reg := NewRegistry()
	loader := NewLoader(dir, reg)
	loader.LoadOnce()

	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	n, err := loader.LoadOnce()
	if err != nil {
		t.Fatalf("sweep should not fail on one bad file: %v", err)
	}
	if n != 0 {
		t.Fatalf("bad file counted as loaded (%d)", n)
	}
	def, ok := reg.Get("wf-a")
	if !ok || def.Version != "1.0.0" {
		t.Fatalf("old definition lost: %+v", def)
	}
}

func TestLoaderHandlesRenamedWorkflowID(t *testing.T) {
	dir := t.TempDir()
	writeWorkflowFile(t, dir, "a.json", "wf-old", "1.0.0")

	reg := NewRegistry()
	loader := NewLoader(dir, reg)
	loader.LoadOnce()

	writeWorkflowFile(t, dir, "a.json", "wf-new", "1.0.0")
	loader.LoadOnce()

	if _, ok := reg.Get("wf-old"); ok {
		t.Fatal("old id should be removed when the file renames its workflow")
	}
	if _, ok := reg.Get("wf-new"); !ok {
		t.Fatal("new id missing")
	}
}
