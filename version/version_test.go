package version

import (
	"runtime/debug"
	"testing"
)

func TestGet_Defaults(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()
	Version = "dev"

	info := Get()
	if info.Version != "dev" {
		t.Errorf("expected dev, got %q", info.Version)
	}
	if info.Release {
		t.Error("dev build is not a release")
	}
}

func TestApplyBuildSettings(t *testing.T) {
	info := Info{Version: "1.2.0"}
	applyBuildSettings(&info, []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
	})
	if info.GitCommit != "0123456" {
		t.Errorf("expected short commit, got %q", info.GitCommit)
	}
	if !info.Dirty {
		t.Error("expected dirty")
	}
	if info.BuildTime != "2026-01-02T03:04:05Z" {
		t.Errorf("unexpected build time %q", info.BuildTime)
	}
	if got := info.String(); got != "1.2.0-0123456-dirty" {
		t.Errorf("String() = %q", got)
	}
}

func TestApplyBuildSettings_LdflagsWin(t *testing.T) {
	info := Info{Version: "1.2.0", GitCommit: "abc", BuildTime: "t0"}
	applyBuildSettings(&info, []debug.BuildSetting{
		{Key: "vcs.revision", Value: "ffffffffff"},
		{Key: "vcs.time", Value: "t1"},
	})
	if info.GitCommit != "abc" || info.BuildTime != "t0" {
		t.Errorf("ldflags values should not be overwritten: %+v", info)
	}
	if got := info.String(); got != "1.2.0-abc" {
		t.Errorf("String() = %q", got)
	}
}
