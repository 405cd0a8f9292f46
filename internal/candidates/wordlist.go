package candidates

import (
	"bufio"
	"fmt"
	"os"

	"github.com/eshanized/ERPCT/pkg/debug"
)

// LoadWords reads a word list file, one entry per line. Blank lines are
// skipped; everything else, including leading or trailing spaces inside a
// word, is preserved.
func LoadWords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open word list: %w", err)
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read word list: %w", err)
	}

	debug.Debug("Loaded %d words from %s", len(words), path)
	return words, nil
}
