package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

type ChangedFile struct {
	Path         string
	ChangedLines []int // one-based lines of the new version
}

var chunkHeader = regexp.MustCompile(`^@@ \-\d+(?:,\d+)? \+(\d+)(?:,(\d+))? @@`)

// ChangedFiles runs git diff against baseRef in the repository containing
// dir. Paths in the result are absolute.
func ChangedFiles(ctx context.Context, dir, baseRef string) ([]ChangedFile, error) {
	top, err := run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, err
	}
	root := strings.TrimSpace(string(top))

	out, err := run(ctx, dir, "diff", "-U0", baseRef)
	if err != nil {
		return nil, err
	}
	changes, err := parseDiff(out)
	if err != nil {
		return nil, err
	}
	for i := range changes {
		changes[i].Path = filepath.Join(root, filepath.FromSlash(changes[i].Path))
	}
	return changes, nil
}

func run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s failed: %w", args[0], err)
	}
	return out, nil
}

func parseDiff(output []byte) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var changes []ChangedFile
	var currentFile *ChangedFile

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "diff --git") {
			// diff --git a/path b/path; the b/ side is the new version.
			parts := strings.Fields(line)
			if len(parts) >= 4 {
				if currentFile != nil {
					changes = append(changes, *currentFile)
				}
				currentFile = &ChangedFile{Path: strings.TrimPrefix(parts[3], "b/"), ChangedLines: []int{}}
			}
			continue
		}

		if currentFile == nil || !strings.HasPrefix(line, "@@") {
			continue
		}

		matches := chunkHeader.FindStringSubmatch(line)
		if len(matches) < 2 {
			continue
		}
		start, _ := strconv.Atoi(matches[1])
		count := 1
		if matches[2] != "" {
			count, _ = strconv.Atoi(matches[2])
		}
		// A pure deletion has no lines in the new version; mark the line it
		// follows so the surrounding block still counts as changed.
		if count == 0 {
			currentFile.ChangedLines = append(currentFile.ChangedLines, max(start, 1))
			continue
		}
		for i := 0; i < count; i++ {
			currentFile.ChangedLines = append(currentFile.ChangedLines, start+i)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if currentFile != nil {
		changes = append(changes, *currentFile)
	}
	return changes, nil
}
