package jira

// Document is the minimal Atlassian Document Format tree the issue API
// accepts for rich-text fields: one paragraph holding one text node.
type Document struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
	Content []Node `json:"content"`
}

type Node struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// NewDocument wraps plain text in a single-paragraph document.
func NewDocument(text string) Document {
	return Document{
		Type:    "doc",
		Version: 1,
		Content: []Node{{
			Type:    "paragraph",
			Content: []Node{{Type: "text", Text: text}},
		}},
	}
}
