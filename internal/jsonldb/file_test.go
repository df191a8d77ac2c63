package jsonldb

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// testRow is a simple row type for testing.
type testRow struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// setupFile creates a File in the test's temp directory.
func setupFile(t *testing.T) (*File[testRow], string) {
	path := filepath.Join(t.TempDir(), "sub", "test.jsonl")
	f, err := NewFile[testRow](path)
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	return f, path
}

func writeRaw(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestFile(t *testing.T) {
	t.Run("Load", func(t *testing.T) {
		t.Run("missing file", func(t *testing.T) {
			f, _ := setupFile(t)
			rows, err := f.Load()
			if !errors.Is(err, os.ErrNotExist) {
				t.Fatalf("Load() error = %v, want os.ErrNotExist", err)
			}
			if rows != nil {
				t.Errorf("Load() rows = %v, want nil", rows)
			}
		})

		t.Run("round trip", func(t *testing.T) {
			f, path := setupFile(t)
			want := []testRow{{1, "One"}, {2, "Two"}, {1, "One"}}
			if err := f.Save(want); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			f2, err := NewFile[testRow](path)
			if err != nil {
				t.Fatal(err)
			}
			got, err := f2.Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !slices.Equal(got, want) {
				t.Errorf("Load() = %v, want %v", got, want)
			}
		})

		t.Run("header only", func(t *testing.T) {
			f, _ := setupFile(t)
			if err := f.Save(nil); err != nil {
				t.Fatal(err)
			}
			got, err := f.Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("Load() = %v, want empty", got)
			}
		})

		t.Run("skips blank lines", func(t *testing.T) {
			f, path := setupFile(t)
			writeRaw(t, path, "{\"version\":\"1.0\",\"columns\":[]}\n\n{\"id\":7,\"name\":\"x\"}\n  \n")
			got, err := f.Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if want := []testRow{{7, "x"}}; !slices.Equal(got, want) {
				t.Errorf("Load() = %v, want %v", got, want)
			}
		})

		t.Run("errors", func(t *testing.T) {
			tests := []struct {
				name        string
				content     string
				wantVersion bool
			}{
				{"empty file", "", false},
				{"garbage header", "not json\n", false},
				{"header without version", "{\"columns\":[]}\n", false},
				{"legacy version", "{\"version\":\"0.3\",\"columns\":[]}\n{\"id\":1}\n", true},
				{"future version", "{\"version\":\"2.0\",\"columns\":[]}\n", true},
				{"malformed row", "{\"version\":\"1.0\",\"columns\":[]}\n{\"id\":1,\n", false},
				{"wrong row type", "{\"version\":\"1.0\",\"columns\":[]}\n{\"id\":\"one\"}\n", false},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					f, path := setupFile(t)
					writeRaw(t, path, tt.content)
					rows, err := f.Load()
					if !errors.Is(err, ErrCorrupt) {
						t.Fatalf("Load() error = %v, want ErrCorrupt", err)
					}
					if got := errors.Is(err, ErrVersion); got != tt.wantVersion {
						t.Errorf("errors.Is(err, ErrVersion) = %v, want %v", got, tt.wantVersion)
					}
					if rows != nil {
						t.Errorf("Load() rows = %v, want nil", rows)
					}
				})
			}
		})

		t.Run("row longer than maxLineSize", func(t *testing.T) {
			f, path := setupFile(t)
			writeRaw(t, path, "{\"version\":\"1.0\",\"columns\":[]}\n{\"id\":1,\"name\":\""+strings.Repeat("x", maxLineSize)+"\"}\n")
			_, err := f.Load()
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("Load() error = %v, want ErrCorrupt", err)
			}
			if !errors.Is(err, bufio.ErrTooLong) {
				t.Errorf("Load() error = %v, want bufio.ErrTooLong", err)
			}
		})

		t.Run("directory in place of the file", func(t *testing.T) {
			f, path := setupFile(t)
			if err := os.Mkdir(path, 0o755); err != nil {
				t.Fatal(err)
			}
			if _, err := f.Load(); !errors.Is(err, ErrCorrupt) {
				t.Fatalf("Load() error = %v, want ErrCorrupt", err)
			}
		})
	})

	t.Run("Save", func(t *testing.T) {
		t.Run("replaces content", func(t *testing.T) {
			f, _ := setupFile(t)
			if err := f.Save([]testRow{{1, "One"}, {2, "Two"}}); err != nil {
				t.Fatal(err)
			}
			if err := f.Save([]testRow{{3, "Three"}}); err != nil {
				t.Fatal(err)
			}
			got, err := f.Load()
			if err != nil {
				t.Fatal(err)
			}
			if want := []testRow{{3, "Three"}}; !slices.Equal(got, want) {
				t.Errorf("Load() = %v, want %v", got, want)
			}
		})

		t.Run("writes schema header first", func(t *testing.T) {
			f, path := setupFile(t)
			if err := f.Save([]testRow{{1, "One"}}); err != nil {
				t.Fatal(err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) != 2 {
				t.Fatalf("got %d lines, want 2: %q", len(lines), data)
			}
			if !strings.HasPrefix(lines[0], `{"version":"1.0"`) {
				t.Errorf("header = %q", lines[0])
			}
			if lines[1] != `{"id":1,"name":"One"}` {
				t.Errorf("row = %q", lines[1])
			}
		})

		t.Run("leaves no temp files", func(t *testing.T) {
			f, path := setupFile(t)
			for i := range 3 {
				if err := f.Save([]testRow{{i, "x"}}); err != nil {
					t.Fatal(err)
				}
			}
			entries, err := os.ReadDir(filepath.Dir(path))
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 1 || entries[0].Name() != "test.jsonl" {
				var names []string
				for _, e := range entries {
					names = append(names, e.Name())
				}
				t.Errorf("directory content = %v, want [test.jsonl]", names)
			}
		})

		t.Run("rejects non-struct rows", func(t *testing.T) {
			f, err := NewFile[int](filepath.Join(t.TempDir(), "ints.jsonl"))
			if err != nil {
				t.Fatal(err)
			}
			if err := f.Save([]int{1}); err == nil {
				t.Error("Save() expected error, got nil")
			}
		})
	})

	t.Run("Quarantine", func(t *testing.T) {
		f, path := setupFile(t)
		writeRaw(t, path, "garbage\n")
		dst, err := f.Quarantine()
		if err != nil {
			t.Fatalf("Quarantine failed: %v", err)
		}
		if !strings.HasPrefix(dst, path+".corrupt-") {
			t.Errorf("Quarantine() = %q, want prefix %q", dst, path+".corrupt-")
		}
		if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("original file still present: %v", err)
		}
		data, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "garbage\n" {
			t.Errorf("quarantined content = %q", data)
		}
		if _, err := f.Load(); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Load() after Quarantine error = %v, want os.ErrNotExist", err)
		}
	})

	t.Run("Path", func(t *testing.T) {
		f, path := setupFile(t)
		if got := f.Path(); got != path {
			t.Errorf("Path() = %q, want %q", got, path)
		}
	})
}
