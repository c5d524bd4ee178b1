// Package mirror rewrites origin download URLs onto an alternate
// distribution endpoint.
//
// Rewriting is a pure string operation; it never touches the network.
package mirror
