package migrations

import (
	"context"
	"io/fs"
	"testing"
)

func TestFilesystems_ResolvesBothDialects(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("resolve filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected postgres and sqlite filesystems, got %d", len(filesystems))
	}

	byDialect := make(map[string]FilesystemSpec, len(filesystems))
	for _, spec := range filesystems {
		byDialect[spec.Dialect] = spec
	}
	for _, dialect := range []string{DialectPostgres, DialectSQLite} {
		spec, ok := byDialect[dialect]
		if !ok {
			t.Fatalf("missing %s filesystem", dialect)
		}
		matches, err := fs.Glob(spec.FS, "*.up.sql")
		if err != nil {
			t.Fatalf("glob %s: %v", dialect, err)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migrations, found none", dialect)
		}
	}
}

func TestRegister_InvokesCallbackPerTargetDialect(t *testing.T) {
	seen := map[string]string{}
	reg, err := Register(context.Background(), func(_ context.Context, dialect string, sourceLabel string, fsys fs.FS) error {
		if fsys == nil {
			t.Fatalf("expected filesystem for %s", dialect)
		}
		seen[dialect] = sourceLabel
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.SourceLabel != "go-connect" {
		t.Fatalf("expected default source label, got %q", reg.SourceLabel)
	}
	if len(seen) != 2 {
		t.Fatalf("expected both dialects registered, got %v", seen)
	}
	if seen[DialectPostgres] != "go-connect" || seen[DialectSQLite] != "go-connect" {
		t.Fatalf("unexpected source labels: %v", seen)
	}
}

func TestRegister_ValidationTargetsFilterDialects(t *testing.T) {
	seen := map[string]bool{}
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		seen[dialect] = true
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(seen) != 1 || !seen[DialectSQLite] {
		t.Fatalf("expected only sqlite registration, got %v", seen)
	}
}

func TestRegister_SourceLabelOverride(t *testing.T) {
	reg, err := Register(context.Background(), func(_ context.Context, _ string, sourceLabel string, _ fs.FS) error {
		if sourceLabel != "tenant-connect" {
			t.Fatalf("expected overridden label, got %q", sourceLabel)
		}
		return nil
	}, WithSourceLabel("tenant-connect"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.SourceLabel != "tenant-connect" {
		t.Fatalf("expected overridden label in registration, got %q", reg.SourceLabel)
	}
}

func TestRegister_RequiresCallback(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected missing callback to be rejected")
	}
}
