// Package main implements the genconfig tool that writes config.default.toml
// from config.DefaultConfig() and config.ConfigDocs.
//
// It is invoked by go generate via the directive in internal/config/config.go.
package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/cord/internal/config"
)

// outPath is relative to internal/config, where go generate runs; the root
// package embeds the file from there.
const outPath = "../../config.default.toml"

func main() {
	result, err := render(config.DefaultConfig(), config.ConfigDocs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, []byte(result), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", outPath, err)
		os.Exit(1)
	}
	fmt.Printf("wrote config.default.toml\n")
}

// render encodes cfg as TOML with indentation stripped and each section and
// key preceded by its doc comment.
func render(cfg *config.Config, docs map[string]config.FieldDoc) (string, error) {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(cfg); err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	out := []string{
		"# ///////////////////////////////////////////////",
		"# cord configuration",
		"# ///////////////////////////////////////////////",
		"#",
		"# Missing keys fall back to the defaults shown here.",
	}

	var section string
	for _, line := range strings.Split(raw.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "[") {
			section = strings.Trim(trimmed, "[] ")
			out = append(out, "", fmt.Sprintf("# ///// %s /////", sectionName(section)), "")
			out = appendComment(out, docs[section].Comment)
			out = append(out, trimmed)
			continue
		}

		key, _, ok := strings.Cut(trimmed, "=")
		if !ok || strings.HasPrefix(trimmed, "#") {
			out = append(out, trimmed)
			continue
		}
		path := strings.TrimSpace(key)
		if section != "" {
			path = section + "." + path
		}
		doc := docs[path]
		out = appendComment(out, doc.Comment)
		out = append(out, trimmed)
		for _, alt := range doc.Alternatives {
			out = append(out, "# "+alt)
		}
	}

	return strings.Join(out, "\n") + "\n", nil
}

// appendComment appends each line of comment as a TOML comment.
func appendComment(out []string, comment string) []string {
	if comment == "" {
		return out
	}
	for _, cl := range strings.Split(comment, "\n") {
		out = append(out, "# "+cl)
	}
	return out
}

// sectionName capitalizes the last dotted segment of a section header, so
// "relay" yields "Relay".
func sectionName(section string) string {
	parts := strings.Split(section, ".")
	last := parts[len(parts)-1]
	if len(last) == 0 {
		return ""
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
