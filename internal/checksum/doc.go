// Package checksum computes and compares the SHA-1 digests used to verify
// every downloaded game file.
//
// Digests are lowercase hex strings. Hashing is streaming with a fixed read
// buffer, so the result depends only on the bytes and never on how the file
// was produced.
//
//	ok, err := checksum.Matches("versions/1.21.5/1.21.5.jar", sha1)
package checksum
