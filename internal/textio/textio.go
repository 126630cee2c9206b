// Package textio reads the UTF-8 text exports consumed by the ETL jobs.
package textio

import (
	"bufio"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// MaxLineCapacity is the longest line a Scanner accepts (abstracts and
// reference lists can run long).
const MaxLineCapacity = 4 * 1024 * 1024

// ErrInvalidUTF8 is returned by readers created with NewReader when the
// input is not valid UTF-8.
var ErrInvalidUTF8 = encoding.ErrInvalidUTF8

// NewReader wraps r so that a leading UTF-8 byte order mark is dropped and
// invalid UTF-8 surfaces as ErrInvalidUTF8 instead of being replaced.
func NewReader(r io.Reader) io.Reader {
	return transform.NewReader(r, transform.Chain(
		encoding.UTF8Validator,
		unicode.UTF8BOM.NewDecoder(),
	))
}

// NewScanner returns a line scanner over NewReader(r) sized for long lines.
func NewScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(NewReader(r))
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, MaxLineCapacity)
	return scanner
}
