package files

import (
	"io"
	"strings"
	"testing"
)

func TestSaveOpenRemove(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}

	locator, err := d.Save("books", "abai.pdf", strings.NewReader("%PDF-1.4 demo"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(locator, "books/") || !strings.HasSuffix(locator, "_abai.pdf") {
		t.Fatalf("unexpected locator: %s", locator)
	}

	rc, err := d.Open(locator)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil || string(data) != "%PDF-1.4 demo" {
		t.Fatalf("unexpected contents: %q, err=%v", data, err)
	}

	if err := d.Remove(locator); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := d.Open(locator); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	// Removing twice is fine.
	if err := d.Remove(locator); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}

func TestSaveGeneratesDistinctLocators(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	l1, err := d.Save("covers", "cover.png", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	l2, err := d.Save("covers", "cover.png", strings.NewReader("b"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if l1 == l2 {
		t.Fatalf("expected distinct locators, got %s twice", l1)
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	d, err := NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	for _, locator := range []string{"", "   ", "../etc/passwd", "books/../../x"} {
		if _, err := d.Open(locator); err != ErrBadLocator {
			t.Fatalf("Open(%q): expected ErrBadLocator, got %v", locator, err)
		}
	}
}
