package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/gobeaver/fgen/storage"
)

func TestNew(t *testing.T) {
	t.Run("creates adapter with default config", func(t *testing.T) {
		a := New()
		if a.maxSize != 0 {
			t.Errorf("expected maxSize=0, got %d", a.maxSize)
		}
		if exists, _ := a.DirExists(context.Background(), ""); !exists {
			t.Error("root directory should exist")
		}
	})

	t.Run("creates adapter with max size", func(t *testing.T) {
		a := New(Config{MaxSize: 1024})
		if a.maxSize != 1024 {
			t.Errorf("expected maxSize=1024, got %d", a.maxSize)
		}
	})
}

func TestWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("writes file and parents", func(t *testing.T) {
		a := New()
		if err := a.Write(ctx, "out/thumbs/a.txt", strings.NewReader("hello")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, dir := range []string{"out", "out/thumbs"} {
			if ok, _ := a.DirExists(ctx, dir); !ok {
				t.Errorf("expected %s to exist", dir)
			}
		}
		if a.Size() != 5 || a.FileCount() != 1 {
			t.Errorf("size=%d count=%d", a.Size(), a.FileCount())
		}
	})

	t.Run("refuses overwrite unless asked", func(t *testing.T) {
		a := New()
		_ = a.Write(ctx, "a.txt", strings.NewReader("one"))
		if err := a.Write(ctx, "a.txt", strings.NewReader("two")); !storage.IsExist(err) {
			t.Fatalf("expected ErrExist, got %v", err)
		}
		if err := a.Write(ctx, "a.txt", strings.NewReader("three"), storage.WithOverwrite(true)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, _ := a.ReadAll(ctx, "a.txt")
		if string(data) != "three" || a.Size() != 5 {
			t.Errorf("content=%q size=%d", data, a.Size())
		}
	})

	t.Run("fails on path traversal", func(t *testing.T) {
		a := New()
		err := a.Write(ctx, "../escape.txt", strings.NewReader("x"))
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("enforces max size", func(t *testing.T) {
		a := New(Config{MaxSize: 4})
		if err := a.Write(ctx, "big.txt", strings.NewReader("12345")); err == nil {
			t.Fatal("expected size error")
		}
	})

	t.Run("detects content type", func(t *testing.T) {
		a := New()
		_ = a.Write(ctx, "page.html", strings.NewReader("<html></html>"))
		info, err := a.Stat(ctx, "page.html")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(info.ContentType, "text/html") {
			t.Errorf("unexpected content type %q", info.ContentType)
		}
	})
}

func TestReadAndDelete(t *testing.T) {
	ctx := context.Background()
	a := New()
	_ = a.Write(ctx, "/lead/slash.txt", strings.NewReader("data"))

	data, err := a.ReadAll(ctx, "lead/slash.txt")
	if err != nil || string(data) != "data" {
		t.Fatalf("ReadAll = %q, %v", data, err)
	}

	if _, err := a.ReadAll(ctx, "lead"); err == nil {
		t.Error("reading a directory should fail")
	}

	if err := a.Delete(ctx, "lead/slash.txt"); err != nil {
		t.Fatal(err)
	}
	if err := a.Delete(ctx, "lead/slash.txt"); !storage.IsNotExist(err) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if a.Size() != 0 {
		t.Errorf("expected size 0, got %d", a.Size())
	}
}

func TestListContents(t *testing.T) {
	ctx := context.Background()
	a := New()
	for _, p := range []string{"a.txt", "dir/b.txt", "dir/sub/c.txt"} {
		_ = a.Write(ctx, p, strings.NewReader(p))
	}

	flat, err := a.ListContents(ctx, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(flat) != 2 || flat[0].Path != "a.txt" || flat[1].Path != "dir" || !flat[1].IsDir {
		t.Errorf("unexpected flat listing %+v", flat)
	}

	deep, err := a.ListContents(ctx, "dir", true)
	if err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, f := range deep {
		paths = append(paths, f.Path)
	}
	if strings.Join(paths, ",") != "dir/b.txt,dir/sub,dir/sub/c.txt" {
		t.Errorf("unexpected recursive listing %v", paths)
	}

	if _, err := a.ListContents(ctx, "missing", false); !storage.IsNotExist(err) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	a := New()
	_ = a.Write(ctx, "x/y.txt", strings.NewReader("z"))
	a.Clear()
	if a.FileCount() != 0 || a.Size() != 0 {
		t.Error("expected empty adapter")
	}
	if ok, _ := a.DirExists(ctx, "x"); ok {
		t.Error("directories should be cleared")
	}
}
