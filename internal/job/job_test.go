package job

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOutputForMirrorsRelativeLayout(t *testing.T) {
	spec := Spec{OutputDir: "/out"}
	cases := []struct {
		name string
		file SourceFile
		want string
	}{
		{"top level", SourceFile{Path: "/in/Settings.odex", RelPath: "Settings.odex"}, "/out/Settings"},
		{"nested", SourceFile{Path: "/in/app/arm/Phone.odex", RelPath: filepath.Join("app", "arm", "Phone.odex")}, "/out/app/arm/Phone"},
		{"missing rel", SourceFile{Path: "/elsewhere/core.odex"}, "/out/core"},
		{"escaping rel", SourceFile{Path: "/x/evil.odex", RelPath: "../evil.odex"}, "/out/evil"},
		{"no extension", SourceFile{Path: "/in/blob", RelPath: "blob"}, "/out/blob"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := OutputFor(spec, tc.file); got != filepath.FromSlash(tc.want) {
				t.Fatalf("OutputFor = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalizePathComposesUnicode(t *testing.T) {
	decomposed := "/tmp/cafe\u0301.odex"
	composed := "/tmp/caf\u00e9.odex"
	got, err := NormalizePath(decomposed)
	if err != nil {
		t.Fatalf("NormalizePath: %v", err)
	}
	if got != composed {
		t.Fatalf("expected NFC form %q, got %q", composed, got)
	}
	if _, err := NormalizePath("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	nf := &NotFoundError{Path: "/missing", Err: fs.ErrNotExist}
	if !errors.Is(nf, ErrNotFound) || !errors.Is(nf, fs.ErrNotExist) {
		t.Fatalf("NotFoundError should match ErrNotFound and its cause: %v", nf)
	}
	ae := &AccessError{Path: "/locked", Err: fs.ErrPermission}
	if !errors.Is(ae, ErrAccess) || !errors.Is(ae, fs.ErrPermission) {
		t.Fatalf("AccessError should match ErrAccess and its cause: %v", ae)
	}
	var target *AccessError
	if !errors.As(error(ae), &target) || target.Path != "/locked" {
		t.Fatalf("errors.As failed for AccessError")
	}
	if errors.Is(&NotFoundError{Path: "/x"}, ErrAccess) {
		t.Fatal("NotFoundError must not match ErrAccess")
	}
}

func TestStatusValidity(t *testing.T) {
	for _, s := range Statuses {
		if !s.Valid() {
			t.Fatalf("status %q should be valid", s)
		}
	}
	if Status("cancelled").Valid() {
		t.Fatal("cancelled is not a result status")
	}
	if !StatusSuccess.Succeeded() || StatusTimeout.Succeeded() {
		t.Fatal("only success counts as succeeded")
	}
}

func TestSpecCloneDetachesExtraArgs(t *testing.T) {
	spec := Spec{ExtraArgs: []string{"--a"}}
	clone := spec.Clone()
	clone.ExtraArgs[0] = "--b"
	if spec.ExtraArgs[0] != "--a" {
		t.Fatal("Clone shared the ExtraArgs backing array")
	}
}
