package core

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ContextSeparator joins retrieved snippets.
const ContextSeparator = "\n---\n"

// KnowledgeRetriever scores reference documents against a query and returns
// the best snippets as prompt context.
type KnowledgeRetriever interface {
	Retrieve(query string, topK int) string
}

type knowledgeRetriever struct {
	dir        string
	maxSnippet int
}

// NewKnowledgeRetriever creates a KnowledgeRetriever over the .txt and .md
// files directly inside dir. Snippets are cut to maxSnippet characters.
func NewKnowledgeRetriever(dir string, maxSnippet int) KnowledgeRetriever {
	return &knowledgeRetriever{dir: dir, maxSnippet: maxSnippet}
}

type scoredDoc struct {
	score   int
	snippet string
}

// Retrieve returns up to topK snippets ordered by descending keyword overlap.
// A document's score counts every query word, duplicates included, that
// occurs as a substring of its lowercased content. Unreadable files and a
// missing directory contribute nothing.
func (kr *knowledgeRetriever) Retrieve(query string, topK int) string {
	if topK <= 0 || kr.dir == "" {
		return ""
	}
	entries, err := os.ReadDir(kr.dir)
	if err != nil {
		return ""
	}

	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return ""
	}

	var docs []scoredDoc
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(kr.dir, entry.Name()))
		if err != nil {
			continue
		}
		content := string(data)
		lower := strings.ToLower(content)

		score := 0
		for _, w := range words {
			if strings.Contains(lower, w) {
				score++
			}
		}
		if score > 0 {
			docs = append(docs, scoredDoc{score: score, snippet: truncateRunes(content, kr.maxSnippet)})
		}
	}
	if len(docs) == 0 {
		return ""
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].score > docs[j].score })
	if len(docs) > topK {
		docs = docs[:topK]
	}
	snippets := make([]string, len(docs))
	for i, d := range docs {
		snippets[i] = d.snippet
	}
	return strings.Join(snippets, ContextSeparator)
}

// AugmentIdea prefixes idea with retrieved context, or returns idea as is
// when there is none.
func AugmentIdea(idea, context string) string {
	if context == "" {
		return idea
	}
	return "Relevant context from knowledge base:\n" + context + "\n\nUser request: " + idea
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
