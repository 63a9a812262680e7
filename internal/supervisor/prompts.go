package supervisor

import "fmt"

const systemPrompt = `You coordinate a team of agents that turn a user request into a working software project.`

func queryListPrompt(request string) string {
	return fmt.Sprintf(`The user asked for the following project:

%s

Write the questions the team should ask the knowledge base before writing a requirements document. Cover three areas with one well-defined question each:
1. Industry standards and regulations that apply and how they affect design and implementation.
2. Project-specific requirements: key components, features, data structures or formats.
3. Data management: suitable storage and how data should be structured for retrieval.`, request)
}

func followUpPrompt(question, answer string) string {
	return fmt.Sprintf(`Evaluate the knowledge base answer to a question.

Question: %q

Answer:
%s

Judge relevance, completeness, technical accuracy and clarity. Use verdict "COMPLETE" when the answer is adequate. Use "INCOMPLETE" when information is missing and give one focused follow-up query that retrieves all of it.`, question, answer)
}
