package manager

import "fmt"

// Name is the speaker name used for turns the manager publishes.
const Name = "TeamLeader"

func terminationPrompt(request string) string {
	return fmt.Sprintf(`You are a software team manager working on the user's software related request. User request: '%s'.
You need to determine if the discussion has reached a conclusion and if all artifacts were created.
If no artifacts were produced yet and you don't have knowledge of them yet, then continue the discussion and planning.
The MOST important thing is that we need to have working code, so the user expects the code file names and their contents as output.
To end the discussion, make sure all the code files were created and that there are no more artifacts (such as files) to produce or missing.
If the team discussion is going in circles, or if completing the task needs more information from the user and there's nothing else you can accomplish, terminate the discussion.
If you would like to end the discussion, respond with true. Otherwise, respond with false.`, request)
}

func selectionPrompt(request, participants string) string {
	return fmt.Sprintf(`You are a software team manager working on the user's software related request: '%s'.
You need to select the next team member to speak and create artifacts.
Here are the roles and descriptions of the participants:
%s
Respond with only the name of the participant you would like to select.`, request, participants)
}

func filterPrompt(request string) string {
	return fmt.Sprintf(`You are a software team manager working on the user's software related request: '%s'.
You have just concluded the discussion and team work.
Summarize the discussion and provide the final artifacts.`, request)
}
