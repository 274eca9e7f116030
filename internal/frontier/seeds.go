package frontier

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReadSeeds reads a seed list: one URL per line, optionally followed by
// whitespace and a description. Blank lines and lines starting with "#"
// are ignored. Only the first field of each line is returned; validation
// is left to the caller.
func ReadSeeds(r io.Reader) ([]string, error) {
	var seeds []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, strings.Fields(line)[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seeds: %w", err)
	}
	return seeds, nil
}
