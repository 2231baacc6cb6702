package oracle

import "fmt"

const systemPrompt = "You are a document analyst. Output ONLY valid JSON."

const promptTemplate = `Split the document excerpt below into two parts at the most natural semantic boundary.

Propose %[1]d cut point(s), best first. Identify each cut by quoting the text around it:
- "tokens_before": about %[2]d tokens copied verbatim from directly before the cut
- "tokens_after": about %[2]d tokens copied verbatim from directly after the cut
- "chunk_title": a short title for the text that ends at this cut

Prefer cuts at topic changes, between sections or between paragraphs. Never cut inside a sentence,
a table, a list or a code block. Do not cut at the very start or the very end of the excerpt.

Respond with JSON only, in this shape:
{"cut_points": [{"tokens_before": "...", "tokens_after": "...", "chunk_title": "..."}]}

Excerpt:
<<<
%[3]s
>>>`

// BuildPrompt renders the user message for a request.
func BuildPrompt(req Request) string {
	return fmt.Sprintf(promptTemplate, req.Candidates, req.ContextTokens, req.Window)
}
