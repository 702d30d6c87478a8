package filetree

import "testing"

func TestBasic(t *testing.T) {
	fs := New()
	fs.Put("/usr/bin/emacs", []byte("vi"))
	fs.Put("/usr/lib64/libc.so", nil)

	dir, ok := fs.Get("/usr/../usr/./././/")
	if !ok || !dir.Dir {
		t.Fatalf("/usr missing or not a directory")
	}
	kids := fs.Children("/usr")
	for _, entry := range kids {
		t.Log(entry.FullName)
	}
	if len(kids) != 2 || kids[0].Name() != "bin" || kids[1].Name() != "lib64" {
		t.Errorf("unexpected children of /usr: %v", kids)
	}
	if e, _ := fs.Get("usr/bin/emacs"); string(e.Data) != "vi" {
		t.Errorf("unexpected content %q", e.Data)
	}
}

func TestCreateRemove(t *testing.T) {
	fs := New()
	fs.Put("/irc/feed", nil)

	if _, err := fs.Create("/irc", "feed", false); err != ErrExist {
		t.Errorf("Create over existing file: %v", err)
	}
	if _, err := fs.Create("/irc/feed", "x", false); err != ErrNotDir {
		t.Errorf("Create in file: %v", err)
	}
	if _, err := fs.Create("/irc", "notes", false); err != nil {
		t.Fatal(err)
	}
	if err := fs.Remove("/irc"); err != ErrNotEmpty {
		t.Errorf("Remove non-empty dir: %v", err)
	}
	if _, err := fs.Rename("/irc/notes", "todo"); err != nil {
		t.Fatal(err)
	}
	if _, ok := fs.Get("/irc/todo"); !ok {
		t.Error("rename target missing")
	}
	for _, name := range []string{"/irc/todo", "/irc/feed", "/irc"} {
		if err := fs.Remove(name); err != nil {
			t.Errorf("Remove(%s): %v", name, err)
		}
	}
	if err := fs.Remove("/"); err != ErrNotExist {
		t.Errorf("Remove(/) = %v", err)
	}
}
