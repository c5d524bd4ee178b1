package mirror

import (
	"errors"
	"fmt"
	"strings"
)

// Source selects where files are downloaded from.
type Source int

const (
	// Official downloads from the origin hosts.
	Official Source = iota
	// Mirror downloads from the alternate distribution endpoint.
	Mirror
)

// DefaultBase is the mirror endpoint used when none is configured.
const DefaultBase = "https://bmclapi2.bangbang93.com"

// Origin hosts recognised by the resolver.
const (
	MetaHost      = "https://piston-meta.mojang.com/"
	DataHost      = "https://piston-data.mojang.com/"
	LibrariesHost = "https://libraries.minecraft.net/"
	AssetsHost    = "https://resources.download.minecraft.net/"
)

// ErrUnknownSource is returned by ParseSource for unrecognised names.
var ErrUnknownSource = errors.New("mirror: unknown download source")

func (s Source) String() string {
	switch s {
	case Official:
		return "official"
	case Mirror:
		return "mirror"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// ParseSource parses a source name. "bmclapi" is accepted as an alias for
// the mirror.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "official":
		return Official, nil
	case "mirror", "bmclapi":
		return Mirror, nil
	default:
		return Official, fmt.Errorf("%w: %q", ErrUnknownSource, s)
	}
}

// prefix maps one origin prefix onto its mirror counterpart.
type prefix struct {
	origin string
	mirror string
}

// Resolver rewrites origin URLs onto the mirror.
type Resolver struct {
	prefixes []prefix
}

// New returns a resolver for the mirror rooted at base.
func New(base string) *Resolver {
	if base == "" {
		base = DefaultBase
	}
	base = strings.TrimRight(base, "/")

	return &Resolver{
		prefixes: []prefix{
			{origin: MetaHost, mirror: base + "/"},
			{origin: DataHost, mirror: base + "/"},
			{origin: LibrariesHost, mirror: base + "/maven/"},
			{origin: AssetsHost, mirror: base + "/assets/"},
		},
	}
}

// Default returns a resolver for DefaultBase.
func Default() *Resolver {
	return New(DefaultBase)
}

// Rewrite maps url onto source. Official is the identity. URLs on hosts the
// resolver does not know are returned unchanged, since metadata may point
// at unrelated third-party hosts.
func (r *Resolver) Rewrite(url string, source Source) string {
	if source != Mirror {
		return url
	}
	for _, p := range r.prefixes {
		if rest, ok := strings.CutPrefix(url, p.origin); ok {
			return p.mirror + rest
		}
	}
	return url
}
