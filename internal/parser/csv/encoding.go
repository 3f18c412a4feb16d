package csv

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DecodeReader wraps r so that bytes in the declared encoding come out as
// UTF-8. The empty name defaults to latin-1, matching the legacy loader's
// pd.read_csv(..., encoding='latin1').
func DecodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "latin1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case "utf-8", "utf8":
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}
