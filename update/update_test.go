package update

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1.2.3", "v1.2.3"},
		{"v0.1.5", "v0.1.5"},
		{"v1.0.0-dirty", "v1.0.0"},
		{"v2.3.4-rc1+build", "v2.3.4"},
		{"dev", ""},
		{"", ""},
		{"not a version", ""},
	}

	for _, tt := range tests {
		if got := canonical(tt.in); got != tt.want {
			t.Errorf("canonical(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReleaseNewerThan(t *testing.T) {
	tests := []struct {
		release string
		current string
		want    bool
	}{
		{"v0.2.0", "v0.1.5", true},
		{"v0.1.5", "v0.1.5", false},
		{"v0.1.4", "v0.1.5", false},
		{"v1.0.0", "v0.9.9", true},
		{"v0.1.6", "v0.1.5-dirty", true},
		{"v0.1.5", "v0.1.5-dirty", false},
		{"v0.1.5", "dev", false},
		{"invalid", "v0.1.5", false},
	}

	for _, tt := range tests {
		r := Release{Version: tt.release}
		if got := r.NewerThan(tt.current); got != tt.want {
			t.Errorf("Release{%q}.NewerThan(%q) = %v, want %v", tt.release, tt.current, got, tt.want)
		}
	}
}

func TestCacheWriteRead(t *testing.T) {
	dir := t.TempDir()

	rel := &Release{
		Version:     "v0.2.0",
		AssetURL:    "https://example.com/sotto",
		ChecksumURL: "https://example.com/checksums.txt",
	}
	writeCache(dir, rel)

	got, ok := readCache(dir)
	if !ok {
		t.Fatal("readCache returned not ok")
	}
	if got == nil {
		t.Fatal("readCache returned nil release")
	}
	if *got != *rel {
		t.Errorf("readCache = %+v, want %+v", got, rel)
	}

	// A cached "no update available" answer is distinct from a miss.
	writeCache(dir, nil)
	got, ok = readCache(dir)
	if !ok {
		t.Fatal("readCache returned not ok for empty result")
	}
	if got != nil {
		t.Errorf("readCache = %+v, want nil", got)
	}

	_ = os.WriteFile(filepath.Join(dir, cacheFile), []byte("not json"), 0o644)
	if _, ok := readCache(dir); ok {
		t.Error("readCache should miss on a corrupt cache file")
	}
}
