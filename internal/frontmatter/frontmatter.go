// Package frontmatter splits YAML front matter from Markdown bodies and
// extracts declared aliases.
package frontmatter

import (
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// aliasKeys are tried in order; the first present key wins.
var aliasKeys = []string{"aliases", "alias"}

// Split separates the front matter prefix from the body. When content opens
// with a "---" line, prefix runs from the start through the closing "---"
// delimiter (its trailing newline belongs to body). Without a closing
// delimiter the whole content is body.
func Split(content string) (prefix, body string) {
	first, _, ok := strings.Cut(content, "\n")
	if !ok || strings.TrimRight(first, " \t\r") != delim {
		return "", content
	}
	offset := len(first) + 1
	for offset < len(content) {
		line, _, found := strings.Cut(content[offset:], "\n")
		if strings.TrimRight(line, " \t\r") == delim {
			end := offset + len(delim)
			return content[:end], content[end:]
		}
		if !found {
			break
		}
		offset += len(line) + 1
	}
	return "", content
}

// Block returns the YAML between the delimiters, or "" when there is none.
func Block(content string) string {
	prefix, _ := Split(content)
	if prefix == "" {
		return ""
	}
	_, rest, _ := strings.Cut(prefix, "\n")
	return strings.TrimSuffix(rest, delim)
}

// Aliases returns the aliases declared in content's front matter.
// A sequence yields its scalar items, a scalar is split on commas.
// Blank and duplicate entries are dropped; malformed YAML yields nil.
func Aliases(content string) []string {
	block := Block(content)
	if strings.TrimSpace(block) == "" {
		return nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(block), &doc); err != nil {
		return nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil
	}

	for _, want := range aliasKeys {
		for i := 0; i+1 < len(mapping.Content); i += 2 {
			if mapping.Content[i].Value != want {
				continue
			}
			return aliasValues(mapping.Content[i+1])
		}
	}
	return nil
}

func aliasValues(val *yaml.Node) []string {
	var raw []string
	switch val.Kind {
	case yaml.SequenceNode:
		for _, item := range val.Content {
			if item.Kind == yaml.ScalarNode && item.Tag != "!!null" {
				raw = append(raw, item.Value)
			}
		}
	case yaml.ScalarNode:
		if val.Tag != "!!null" {
			raw = strings.Split(val.Value, ",")
		}
	}
	return dedupe(raw)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
