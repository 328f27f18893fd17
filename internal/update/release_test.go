package update

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"prdeck/internal/types"
)

func TestAssetName(t *testing.T) {
	cases := []struct {
		goos, goarch, want string
	}{
		{"linux", "amd64", "prdeck-linux-amd64"},
		{"darwin", "arm64", "prdeck-darwin-arm64"},
		{"windows", "amd64", ""},
		{"linux", "386", ""},
	}
	for _, tc := range cases {
		if got := AssetName(tc.goos, tc.goarch); got != tc.want {
			t.Fatalf("AssetName(%s, %s) = %q, want %q", tc.goos, tc.goarch, got, tc.want)
		}
	}
}

func TestSelectAssetPrefersPlainBinary(t *testing.T) {
	release := types.Release{Assets: []types.ReleaseAsset{
		{Name: "prdeck-linux-amd64.tar.gz"},
		{Name: "prdeck-linux-amd64"},
	}}
	asset, ok := selectAsset(release, "prdeck-linux-amd64")
	if !ok || asset.Name != "prdeck-linux-amd64" {
		t.Fatalf("expected plain binary, got %#v %v", asset, ok)
	}
	if _, ok := selectAsset(release, ""); ok {
		t.Fatalf("unsupported platform must not select an asset")
	}
}

func TestParseIdentity(t *testing.T) {
	if version, err := parseIdentity("prdeck 1.2.3\n"); err != nil || version != "1.2.3" {
		t.Fatalf("unexpected %q %v", version, err)
	}
	for _, bad := range []string{"", "other 1.0.0", "prdeck ", "Segmentation fault"} {
		if _, err := parseIdentity(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prdeck")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestExecSelfTest(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	good := writeScript(t, `[ "$1" = "--version" ] && echo "prdeck 2.0.0"`)
	if version, err := ExecSelfTest(context.Background(), good); err != nil || version != "2.0.0" {
		t.Fatalf("expected self-test pass, got %q %v", version, err)
	}
	wrong := writeScript(t, `echo "something else"`)
	if _, err := ExecSelfTest(context.Background(), wrong); err == nil {
		t.Fatalf("expected wrong identity to fail")
	}
	crash := writeScript(t, `exit 3`)
	if _, err := ExecSelfTest(context.Background(), crash); err == nil {
		t.Fatalf("expected non-zero exit to fail")
	}
}
