package answer

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrMalformedCompletion is returned by Repair alongside a fallback answer when the
// completion is not a usable JSON answer.
var ErrMalformedCompletion = errors.New("malformed completion")

// briefAnswerLength is the rune count below which an answer gets the brevity note.
const briefAnswerLength = 100

const (
	noResultsAnswer = "I could not find any relevant information in the uploaded documents to answer your question. This could be due to several reasons: 1) The document may not contain information about this specific topic, 2) The information might be in a different section that wasn't retrieved, 3) The document might need to be re-uploaded or processed differently, or 4) The question might be too specific for the available content."
	noResultsInfo   = "Here are some suggestions to help: 1) Try rephrasing your question with different keywords or terms, 2) Ask a more general question about the document first to see what information is available, 3) Check if you have uploaded the correct document that should contain this information, 4) Consider uploading additional documents if this information might be in a different file, 5) If this is about a specific policy term, try asking about related terms or broader categories. You can also use the /debug/chunks endpoint to see what content is actually available in the uploaded document."

	completionFailedAnswer = "I apologize, but I encountered an error while processing your question. This could be due to a temporary issue with the language model service, network connectivity problems, or an issue with the API configuration."
	completionFailedInfo   = "Here are some steps you can try: 1) Wait a moment and try your question again, 2) Check if your API keys are properly configured in the .env file, 3) Verify that you have sufficient API credits or quota remaining, 4) Try asking a simpler question first to test the system, 5) If the problem persists, you may need to restart the server or check the server logs for more detailed error information. The system is designed to be robust, so temporary issues usually resolve quickly."

	missingAnswerPrefix = "The system processed your question but returned an unexpected format. Here's what was found: "
	missingAnswerInfo   = "The response format was not as expected, but the system did process your query. This might indicate that the language model returned a different format than anticipated. The answer above contains the raw response from the analysis. If this doesn't fully address your question, try rephrasing it or asking a more specific question."

	notJSONPrefix = "The system analyzed your question and found relevant information, but encountered a formatting issue. Here's the analysis result: "
	notJSONInfo   = "The language model provided an answer but it wasn't in the expected JSON format. This sometimes happens when the model provides a natural language response instead of structured data. The answer above contains the raw response from the analysis. While this might not be as structured as usual, it should still contain relevant information to help answer your question. If you need more specific details, try asking follow-up questions or rephrasing your original question."

	briefAnswerNote = " Note: The answer provided is quite brief. This might indicate that the specific information you're looking for is not extensively covered in the document, or it might be mentioned only in passing. Consider asking follow-up questions or checking related topics in the document."

	unexpectedErrorFormat = "An unexpected error occurred while processing your question: %v. This is not typical and indicates a system issue that needs attention."
	unexpectedErrorInfo   = "This error suggests there might be an issue with the system configuration, the document processing, or the language model service. Here are some troubleshooting steps: 1) Check if the document was properly uploaded and processed, 2) Verify that all required services are running correctly, 3) Check the server logs for more detailed error information, 4) Try restarting the server, 5) If the problem persists, there might be an issue with the API configuration or the language model service. Please try again, and if the issue continues, consider checking the system logs or contacting support."
)

// NoResults is the answer when retrieval found nothing. No completion is requested.
func NoResults() *models.AnswerResponse {
	return fallback(noResultsAnswer, models.ConfidenceLow, noResultsInfo)
}

// CompletionFailed is the answer when the completion call failed.
func CompletionFailed() *models.AnswerResponse {
	return fallback(completionFailedAnswer, models.ConfidenceLow, completionFailedInfo)
}

func fallback(answer string, c models.Confidence, info string) *models.AnswerResponse {
	return &models.AnswerResponse{
		Answer:         answer,
		Confidence:     c,
		SourceSections: []models.SourceSection{},
		AdditionalInfo: info,
	}
}

// Repair turns raw completion text into an answer. Surrounding Markdown code fences are
// ignored. Text that is not a JSON object, or an object without a string "answer", becomes
// a medium-confidence answer quoting raw, returned with ErrMalformedCompletion. An answer
// shorter than 100 characters gets a note appended to additional_info.
func Repair(raw string) (*models.AnswerResponse, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(raw)), &fields); err != nil || fields == nil {
		return fallback(notJSONPrefix+raw, models.ConfidenceMedium, notJSONInfo), ErrMalformedCompletion
	}
	answer, ok := stringField(fields["answer"])
	if !ok {
		return fallback(missingAnswerPrefix+raw, models.ConfidenceMedium, missingAnswerInfo), ErrMalformedCompletion
	}

	conf, _ := stringField(fields["confidence"])
	confidence, _ := models.ParseConfidence(conf)
	info, _ := stringField(fields["additional_info"])
	resp := &models.AnswerResponse{
		Answer:         answer,
		Confidence:     confidence,
		SourceSections: sourceSections(fields["source_sections"]),
		AdditionalInfo: info,
	}
	if utf8.RuneCountInString(answer) < briefAnswerLength {
		resp.AdditionalInfo += briefAnswerNote
	}
	return resp, nil
}

// stripFences removes a ```json ... ``` wrapper.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// stringField decodes a JSON string. Numbers and booleans are rendered as text; null,
// objects and arrays are not strings.
func stringField(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

// sourceSections decodes the cited sections leniently: entries that are not objects are
// skipped and non-string fields are rendered as text.
func sourceSections(raw json.RawMessage) []models.SourceSection {
	out := []models.SourceSection{}
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return out
	}
	for _, item := range items {
		var f map[string]json.RawMessage
		if err := json.Unmarshal(item, &f); err != nil || f == nil {
			continue
		}
		section, _ := stringField(f["section"])
		content, _ := stringField(f["content"])
		relevance, _ := stringField(f["relevance"])
		out = append(out, models.SourceSection{Section: section, Content: content, Relevance: relevance})
	}
	return out
}
