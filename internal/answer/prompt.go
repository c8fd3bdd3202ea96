package answer

import (
	"strconv"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// queryPrompt sets the advisor persona and the JSON response schema.
const queryPrompt = `
You are a friendly, expert insurance advisor. When answering the user's question, always:
- Speak in a clear, conversational, and approachable tone, as if you are talking to a real person.
- Synthesize information from ALL relevant sections, not just the most relevant one.
- Start by explaining what IS covered or allowed, then mention any limits, exceptions, or waiting periods.
- If there are exceptions (e.g., PPN, listed procedures), explain them clearly and optimistically.
- If the answer depends on a table or benefit list, mention this and summarize the key points in plain language.
- If the policy provides a benefit with a limit, state the benefit first, then the limit.
- If there is a waiting period, state it clearly, but also mention any ways the waiting period can be reduced or exceptions that apply.
- Use natural, empathetic language and provide practical advice or reassurance where appropriate.
- Always provide a detailed, context-rich, and user-friendly answer, even if the information is spread across multiple sections.

Respond in this JSON format:
{
  "answer": "A comprehensive, detailed, and friendly answer that fully addresses the user's question, including all relevant details, exceptions, and context. Use natural language and empathy.",
  "confidence": "high/medium/low",
  "source_sections": [
    {
      "section": "Section number or title if available",
      "content": "The complete relevant text from the document, not just a snippet.",
      "relevance": "A detailed explanation of why this section is relevant to the question."
    }
  ],
  "additional_info": "Any additional context, clarifications, or practical implications that might help the user understand their coverage or options. Use a helpful, supportive tone."
}
`

const closingInstruction = "Please analyze the document content and provide a comprehensive, detailed answer to the user's question. Remember to be extremely thorough and provide maximum context and explanation."

const sectionSeparator = "\n\n---\n\n"

// BuildPrompt renders the completion prompt: instructions, the question, then every
// retrieved chunk labelled "Section <chunk_id>:" in retrieval order.
func BuildPrompt(query string, results []*models.QueryResult) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(queryPrompt)
	b.WriteString("\n\nUser Question: ")
	b.WriteString(query)
	b.WriteString("\n\nDocument Content:\n")
	b.WriteString(DocumentContent(results))
	b.WriteString("\n\n")
	b.WriteString(closingInstruction)
	b.WriteString("\n")
	return b.String()
}

// DocumentContent joins the retrieved chunks into the context block.
func DocumentContent(results []*models.QueryResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r == nil || r.Chunk == nil {
			continue
		}
		parts = append(parts, "Section "+strconv.Itoa(r.Chunk.ChunkID)+":\n"+r.Chunk.Text)
	}
	return strings.Join(parts, sectionSeparator)
}
