package g2p

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Adapter runs a grapheme-to-phoneme command that reads one word per line
// on stdin and prints `word phone phone ...` lines, possibly several per
// word.
type Adapter struct {
	command string
	args    []string
}

func New(command string, args []string) *Adapter {
	return &Adapter{command: command, args: args}
}

func (a *Adapter) Pronounce(ctx context.Context, words []string) (map[string][]string, error) {
	if len(words) == 0 {
		return map[string][]string{}, nil
	}
	cmd := exec.CommandContext(ctx, a.command, a.args...)
	cmd.Stdin = strings.NewReader(strings.Join(words, "\n") + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("g2p: %w\n%s", err, stderr.String())
	}
	return parse(stdout.Bytes())
}

func parse(b []byte) (map[string][]string, error) {
	out := map[string][]string{}
	sc := bufio.NewScanner(bytes.NewReader(b))
	line := 0
	for sc.Scan() {
		line++
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		if len(f) < 2 {
			return nil, fmt.Errorf("g2p line %d: no phones for %q", line, f[0])
		}
		out[f[0]] = append(out[f[0]], strings.Join(f[1:], " "))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read g2p output: %w", err)
	}
	return out, nil
}
