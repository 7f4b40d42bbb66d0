package codeindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"ohtscope/internal/ingest"
)

// Error identifiers follow a fixed lexical convention across both control
// programs: an ERR_ name prefix bound to a decimal literal, either as a C
// preprocessor define, an enum member, or a C# integer constant.
var (
	defineRx    = regexp.MustCompile(`#\s*define\s+(ERR_[A-Z0-9_]+)\s+(\d+)`)
	enumBlockRx = regexp.MustCompile(`(?s)enum\s+\w*\s*\{[^}]+\}`)
	enumKVRx    = regexp.MustCompile(`(ERR_[A-Z0-9_]+)\s*=\s*(\d+)`)
	csConstRx   = regexp.MustCompile(`\bpublic\s+const\s+int\s+(ERR_[A-Z0-9_]+)\s*=\s*(\d+)\s*;`)
)

var sourceExt = map[string]bool{
	".h": true, ".hpp": true, ".c": true, ".cpp": true, ".cc": true,
	".cs": true, ".txt": true, ".ini": true, ".md": true,
	".json": true, ".xml": true, ".yml": true, ".yaml": true,
}

type scanResult struct {
	entries     []Entry
	fingerprint string
}

// scanCollection walks one component's source collection in stable order,
// extracting error-constant definitions and hashing file contents for the
// cache fingerprint. Duplicate symbolic names within the component take the
// last-scanned definition.
func scanCollection(ctx context.Context, comp Component, path string, excludes []string) (scanResult, error) {
	h := sha256.New()
	h.Write([]byte(comp))

	var ordered []Entry
	pos := make(map[string]int) // symbolic name -> index in ordered

	err := ingest.WalkBundle(path, func(name string, data []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !sourceExt[strings.ToLower(filepath.Ext(name))] {
			return nil
		}
		if excluded(name, excludes) {
			return nil
		}
		hashFile(h, name, data)
		for _, e := range scanFile(comp, name, ingest.DecodeText(data)) {
			if i, ok := pos[e.Name]; ok {
				ordered[i] = e
				continue
			}
			pos[e.Name] = len(ordered)
			ordered = append(ordered, e)
		}
		return nil
	})
	if err != nil {
		return scanResult{}, err
	}

	return scanResult{
		entries:     ordered,
		fingerprint: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

func hashFile(h hash.Hash, name string, data []byte) {
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write(data)
	h.Write([]byte{0})
}

func excluded(name string, excludes []string) bool {
	low := strings.ToLower(name)
	for _, frag := range excludes {
		if frag != "" && strings.Contains(low, strings.ToLower(frag)) {
			return true
		}
	}
	return false
}

// scanFile extracts every error-constant definition from one source file.
// Definitions are emitted per convention kind, each kind in textual order,
// so last-write-wins is deterministic given a stable file scan order.
func scanFile(comp Component, file, text string) []Entry {
	var out []Entry
	add := func(name, num string) {
		code, err := strconv.Atoi(num)
		if err != nil {
			return
		}
		out = append(out, Entry{
			Name:      name,
			Code:      code,
			Component: comp,
			File:      file,
			Line:      firstLine(text, name),
		})
	}
	for _, m := range defineRx.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}
	for _, block := range enumBlockRx.FindAllString(text, -1) {
		for _, m := range enumKVRx.FindAllStringSubmatch(block, -1) {
			add(m[1], m[2])
		}
	}
	for _, m := range csConstRx.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}
	return out
}

func firstLine(text, needle string) int {
	for i, line := range strings.Split(text, "\n") {
		if strings.Contains(line, needle) {
			return i + 1
		}
	}
	return -1
}
