package rag

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/genpod/internal/knowledge"
)

const systemPrompt = `You answer questions for a software project team from a library of reference documents. Be precise and only state what the documents support.`

func gradeDocumentPrompt(question string, doc knowledge.Document) string {
	return fmt.Sprintf(`Decide whether the retrieved document is relevant to the question.
A document is relevant when it contains keywords or facts related to the question. This is a coarse filter for bad retrievals, not a strict test.

Document (%s):
%s

Question: %s

Answer "yes" or "no".`, doc.Source, doc.Content, question)
}

func generatePrompt(question string, docs []knowledge.Document) string {
	return fmt.Sprintf(`Answer the question using only the context below. If the context does not contain the answer, say "I don't know".

Question:
%s

Context:
%s`, question, renderDocuments(docs))
}

func groundedPrompt(generation string, docs []knowledge.Document) string {
	return fmt.Sprintf(`Decide whether the answer is grounded in and supported by the facts.

Facts:
-------
%s
-------

Answer: %s

Answer "yes" or "no".`, renderDocuments(docs), generation)
}

func usefulPrompt(question, generation string) string {
	return fmt.Sprintf(`Decide whether the answer resolves the question.

Answer:
-------
%s
-------

Question: %s

Answer "yes" or "no".`, generation, question)
}

func rewritePrompt(question string) string {
	return fmt.Sprintf(`Rewrite the question so that it retrieves better results from a keyword search index. Reply with the improved question only.

Question: %s`, question)
}

func renderDocuments(docs []knowledge.Document) string {
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", d.Source, strings.TrimSpace(d.Content))
	}
	return b.String()
}
