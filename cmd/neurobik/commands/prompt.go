package commands

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/thecodenomad/neurobik/pkg/download"
)

// promptSelection lists the candidates and reads a subset choice from in.
// An empty answer or "all" selects everything; otherwise the answer is
// comma- or space-separated 1-based indices.
func promptSelection(in io.Reader, out io.Writer, items []download.Item) ([]download.Item, error) {
	fmt.Fprintln(out, "Items to download:")
	for i, item := range items {
		fmt.Fprintf(out, "  [%d] %s\n", i+1, item)
	}
	fmt.Fprint(out, "Select items (e.g. 1,3) or press Enter for all: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading selection: %w", err)
	}

	indices, err := parseSelection(line, len(items))
	if err != nil {
		return nil, err
	}
	selected := make([]download.Item, 0, len(indices))
	for _, i := range indices {
		selected = append(selected, items[i])
	}
	return selected, nil
}

// parseSelection parses a selection answer into 0-based indices against a
// list of n items. Duplicates are collapsed, order of first mention kept.
func parseSelection(line string, n int) ([]int, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.EqualFold(line, "all") {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		return indices, nil
	}
	if strings.EqualFold(line, "none") {
		return nil, nil
	}

	seen := make(map[int]bool)
	var indices []int
	for _, field := range strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		idx, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", field)
		}
		if idx < 1 || idx > n {
			return nil, fmt.Errorf("selection %d out of range 1..%d", idx, n)
		}
		if !seen[idx-1] {
			seen[idx-1] = true
			indices = append(indices, idx-1)
		}
	}
	return indices, nil
}
