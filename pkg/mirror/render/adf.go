/* Copyright 2025 Dnote Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package render

import (
	"encoding/json"
	"fmt"
	"strings"
)

// node is an Atlassian Document Format node
type node struct {
	Type    string                 `json:"type"`
	Text    string                 `json:"text"`
	Content []node                 `json:"content"`
	Marks   []mark                 `json:"marks"`
	Attrs   map[string]interface{} `json:"attrs"`
}

type mark struct {
	Type  string                 `json:"type"`
	Attrs map[string]interface{} `json:"attrs"`
}

// Text converts a stored rich text value into markdown. A JSON string is wiki
// markup and is returned as is. A document object is converted from
// Atlassian Document Format. Anything else is returned verbatim.
func Text(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
		return s
	}

	var doc node
	if err := json.Unmarshal([]byte(trimmed), &doc); err == nil && doc.Type == "doc" {
		var b strings.Builder
		writeBlocks(&b, doc.Content, "")
		return strings.TrimRight(b.String(), "\n")
	}

	return value
}

func attrString(attrs map[string]interface{}, key string) string {
	v, ok := attrs[key]
	if !ok {
		return ""
	}

	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

func writeBlocks(b *strings.Builder, nodes []node, indent string) {
	for i, n := range nodes {
		if i > 0 {
			b.WriteString("\n")
		}
		writeBlock(b, n, indent)
	}
}

func writeBlock(b *strings.Builder, n node, indent string) {
	switch n.Type {
	case "paragraph":
		b.WriteString(indent)
		b.WriteString(inline(n.Content))
		b.WriteString("\n")
	case "heading":
		level := 1
		if l, ok := n.Attrs["level"].(float64); ok && l >= 1 && l <= 6 {
			level = int(l)
		}
		b.WriteString(indent)
		b.WriteString(strings.Repeat("#", level))
		b.WriteString(" ")
		b.WriteString(inline(n.Content))
		b.WriteString("\n")
	case "bulletList", "orderedList":
		for i, item := range n.Content {
			marker := "- "
			if n.Type == "orderedList" {
				marker = fmt.Sprintf("%d. ", i+1)
			}
			writeListItem(b, item, indent, marker)
		}
	case "codeBlock":
		b.WriteString(indent + "```" + attrString(n.Attrs, "language") + "\n")
		for _, line := range strings.Split(inline(n.Content), "\n") {
			b.WriteString(indent + line + "\n")
		}
		b.WriteString(indent + "```\n")
	case "blockquote":
		var inner strings.Builder
		writeBlocks(&inner, n.Content, "")
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			b.WriteString(indent + "> " + line + "\n")
		}
	case "rule":
		b.WriteString(indent + "---\n")
	case "panel":
		writeBlocks(b, n.Content, indent)
	case "mediaSingle", "mediaGroup":
		for _, m := range n.Content {
			b.WriteString(indent + "[attachment " + attrString(m.Attrs, "id") + "]\n")
		}
	default:
		if len(n.Content) > 0 {
			writeBlocks(b, n.Content, indent)
		} else if n.Text != "" {
			b.WriteString(indent + n.Text + "\n")
		}
	}
}

func writeListItem(b *strings.Builder, item node, indent, marker string) {
	pad := strings.Repeat(" ", len(marker))
	for i, child := range item.Content {
		switch child.Type {
		case "paragraph":
			prefix := pad
			if i == 0 {
				prefix = marker
			}
			b.WriteString(indent + prefix + inline(child.Content) + "\n")
		default:
			if i == 0 {
				b.WriteString(indent + marker + "\n")
			}
			writeBlock(b, child, indent+pad)
		}
	}
}

func inline(nodes []node) string {
	var b strings.Builder

	for _, n := range nodes {
		switch n.Type {
		case "text":
			b.WriteString(applyMarks(n.Text, n.Marks))
		case "hardBreak":
			b.WriteString("  \n")
		case "mention":
			text := attrString(n.Attrs, "text")
			if text == "" {
				text = "@" + attrString(n.Attrs, "id")
			}
			b.WriteString(text)
		case "emoji":
			b.WriteString(attrString(n.Attrs, "shortName"))
		case "inlineCard":
			b.WriteString("<" + attrString(n.Attrs, "url") + ">")
		default:
			b.WriteString(inline(n.Content))
		}
	}

	return b.String()
}

func applyMarks(text string, marks []mark) string {
	for _, m := range marks {
		switch m.Type {
		case "strong":
			text = "**" + text + "**"
		case "em":
			text = "*" + text + "*"
		case "code":
			text = "`" + text + "`"
		case "strike":
			text = "~~" + text + "~~"
		case "link":
			text = "[" + text + "](" + attrString(m.Attrs, "href") + ")"
		}
	}

	return text
}
