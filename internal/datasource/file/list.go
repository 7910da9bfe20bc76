package file

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadList reads a list of inputs, one per line, from path. Blank lines
// and lines starting with '#' are skipped; order is kept.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input list %s: %w", path, err)
	}
	defer f.Close()
	out, err := ParseList(f)
	if err != nil {
		return nil, fmt.Errorf("read input list %s: %w", path, err)
	}
	return out, nil
}

// ParseList is ReadList over an arbitrary reader.
func ParseList(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
