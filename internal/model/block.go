package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Block is a top-level syntactic unit within a source file: a free function
// or a class with its methods collapsed into the class block (spec §3).
type Block struct {
	FilePath      string // relative to project root
	QualifiedName string // bare top-level definition name, e.g. "helper"; carries no module prefix, FilePath identifies the file
	StartLine     int
	EndLine       int
	ContentHash   string
}

// BlockRef is the stable identity of a block independent of its content.
type BlockRef struct {
	FilePath      string
	QualifiedName string
}

// Ref returns the stable identity of b.
func (b Block) Ref() BlockRef {
	return BlockRef{FilePath: b.FilePath, QualifiedName: b.QualifiedName}
}

// String renders a BlockRef for logs and error messages.
func (r BlockRef) String() string {
	return r.FilePath + "::" + r.QualifiedName
}

// HashSource computes the stable content hash over a block's source bytes.
// Line endings are normalized to LF and the trailing newline is insignificant
// (whitespace-insensitive at the trailing-newline level only); comments are
// preserved and do affect the hash.
func HashSource(src []byte) string {
	normalized := strings.ReplaceAll(string(src), "\r\n", "\n")
	normalized = strings.TrimRight(normalized, "\n")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
