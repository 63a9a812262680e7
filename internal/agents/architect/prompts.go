package architect

import (
	"fmt"

	"github.com/felixgeelhaar/genpod/internal/agents"
)

const systemPrompt = `You are the software architect of a team that builds microservices from a user's request. You write precise requirements that developers can implement without guessing.`

func requirementsPrompt(in Input) string {
	return fmt.Sprintf(`Write the requirements document for the project below.
Every section should be concrete: name files, packages, endpoints and data types.
If the request is too ambiguous to write the document, leave the sections empty and set "question" to the single question whose answer would unblock you.

%s%s%s`,
		agents.Section("User request", in.UserRequest),
		agents.Section("Reference material", in.Context),
		agents.Section("Additional information", in.Task.AdditionalInfo),
	)
}

func tasksPrompt(doc string) string {
	return fmt.Sprintf(`Split the tasks summary of this requirements document into an ordered list of independent deliverables.
Each task should be one sentence describing a deliverable a developer can complete on its own.

%s`, doc)
}

func projectDetailsPrompt(request string) string {
	return fmt.Sprintf(`Choose a short project name and a microservice name for this request.
Names must be lowercase and may contain letters, digits, "-" and "_".

User request:
%s`, request)
}

func answerPrompt(doc, question string) string {
	return fmt.Sprintf(`A team member asked a question about the project. Answer it from the requirements document.
Set "is_answer_found" to false when the document does not contain the answer.

%sQuestion:
%s`, agents.Section("Requirements document", doc), question)
}
