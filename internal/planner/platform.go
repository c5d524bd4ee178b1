package planner

import (
	"runtime"

	"github.com/InfyniteHeap/gridcore/internal/manifest"
)

// Platform identifies the machine libraries are planned for, using the
// names release documents use.
type Platform struct {
	OS   string // "linux", "windows" or "osx"
	Arch string // "x86", "x86_64", "arm64", ...
}

// Current returns the running platform.
func Current() Platform {
	return Platform{
		OS:   NormalizeOS(runtime.GOOS),
		Arch: NormalizeArch(runtime.GOARCH),
	}
}

// NormalizeOS maps Go and common OS names onto release document names.
func NormalizeOS(name string) string {
	switch name {
	case "darwin", "macos":
		return "osx"
	}
	return name
}

// NormalizeArch maps Go architecture names onto release document names.
func NormalizeArch(arch string) string {
	switch arch {
	case "386":
		return "x86"
	case "amd64":
		return "x86_64"
	}
	return arch
}

// Bits returns "64" or "32", the value substituted for ${arch} in legacy
// native classifier names.
func (p Platform) Bits() string {
	switch p.Arch {
	case "x86", "arm", "386":
		return "32"
	}
	return "64"
}

// Allows evaluates a library's rule list.
//
// No rules allows the library. Otherwise the verdict starts disallowed and
// every rule whose os constraint matches the platform sets it to its own
// action; the last matching rule wins. The os.version pattern is ignored.
func (p Platform) Allows(rules []manifest.Rule) bool {
	if len(rules) == 0 {
		return true
	}

	allowed := false
	for _, r := range rules {
		if r.OS != nil && !p.matches(*r.OS) {
			continue
		}
		allowed = r.Action != "disallow"
	}
	return allowed
}

func (p Platform) matches(os manifest.OSRule) bool {
	if os.Name != "" && NormalizeOS(os.Name) != p.OS {
		return false
	}
	if os.Arch != "" && NormalizeArch(os.Arch) != p.Arch {
		return false
	}
	return true
}
