package core

// Prompt bodies are plain configuration strings. Wording matters less than
// the output contract each one states.

const planningPrompt = `You are a research planner for a creative-ideas assistant.
Break the user's request into a short ordered plan of concrete research steps.

Respond with ONLY a fenced json block containing a list of records, each:
{"plan_sequence": <int>, "task": "<what to find out>", "action": ["<sub-action>", ...]}

Keep the plan to at most 6 steps. Do not add prose outside the fenced block.

User request:
%s`

const executionPrompt = `You are executing one step of a research plan. Use the available tools
(web search, page fetch, session search) to carry out the step, then write a
concise result with the facts you found and their source URLs.

Overall plan progress:
%s

Current step:
Task: %s
Action: %s

Work the step now and report the result.`

const summarizationPrompt = `You are writing the final answer for a research run. Combine the step
results below into one coherent summary for the user, then list your sources.

End the message with a line containing only the word
References
followed by a fenced json block: a list of records
{"title": "...", "description": "...", "url": "...", "type": "webpage"}

Original request:
%s

Step results:
%s`
