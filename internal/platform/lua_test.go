package platform

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestInjectPlatformTable(t *testing.T) {
	info := &Info{
		OS:      "linux",
		Arch:    "arm64",
		ArchRaw: "arm64",
		Distro:  "ubuntu",
		Version: "24.04",
	}

	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatalf("InjectPlatformTable failed: %v", err)
	}

	checks := []struct {
		expr string
		want string
	}{
		{expr: "return platform.os", want: "linux"},
		{expr: "return platform.arch", want: "arm64"},
		{expr: "return platform.key", want: "linux-arm64"},
		{expr: "return tostring(platform.is_linux)", want: "true"},
		{expr: "return tostring(platform.is_macos)", want: "false"},
		{expr: "return platform.distro.id", want: "ubuntu"},
		{expr: "return platform.distro.version", want: "24.04"},
	}

	for _, c := range checks {
		if err := L.DoString(c.expr); err != nil {
			t.Fatalf("eval %q: %v", c.expr, err)
		}
		got := L.Get(-1).String()
		L.Pop(1)
		if got != c.want {
			t.Errorf("%q = %q, want %q", c.expr, got, c.want)
		}
	}
}

func TestInjectPlatformTableNonLinux(t *testing.T) {
	info := &Info{OS: "darwin", Arch: "arm64", ArchRaw: "arm64"}

	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatalf("InjectPlatformTable failed: %v", err)
	}

	if err := L.DoString("return platform.distro == nil"); err != nil {
		t.Fatalf("eval distro: %v", err)
	}
	if L.Get(-1) != lua.LTrue {
		t.Error("distro should be nil on non-Linux platforms")
	}
}

func TestPlatformWhenHelper(t *testing.T) {
	info := &Info{OS: "linux", Arch: "amd64", ArchRaw: "amd64"}

	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatalf("InjectPlatformTable failed: %v", err)
	}

	if err := L.DoString(`return platform.when(platform.is_linux, "yes")`); err != nil {
		t.Fatalf("eval when: %v", err)
	}
	if got := L.Get(-1).String(); got != "yes" {
		t.Errorf("when(true, ...) = %q, want %q", got, "yes")
	}
	L.Pop(1)

	if err := L.DoString(`return platform.when(platform.is_macos, "yes") == nil`); err != nil {
		t.Fatalf("eval when false: %v", err)
	}
	if L.Get(-1) != lua.LTrue {
		t.Error("when(false, ...) should return nil")
	}
}
