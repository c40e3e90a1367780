package oracle

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are a teaching assistant who turns lecture transcripts into study material for university students. Answer in the language of the transcript."

func withContext(task, instructions, transcript, syllabus string) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(task)
	b.WriteString("\n\n")
	b.WriteString(instructions)
	if syllabus != "" {
		b.WriteString("\n\nCourse syllabus, for context:\n")
		b.WriteString(syllabus)
	}
	b.WriteString("\n\nTranscript:\n")
	b.WriteString(transcript)
	return b.String()
}

func summaryPrompt(transcript, syllabus string) string {
	return withContext("summary",
		"Write a structured summary of the lecture in Markdown, with headings for each major topic and short bullet points. Return only the summary.",
		transcript, syllabus)
}

func glossaryPrompt(transcript, syllabus string) string {
	return withContext("glossary",
		`List the key terms a student must know after this lecture. Answer with a single JSON object of the form {"glossary": [{"term": "...", "definition": "..."}]}.`,
		transcript, syllabus)
}

func quizPrompt(transcript, syllabus string) string {
	return withContext("quiz",
		`Write multiple-choice questions that check understanding of the lecture. Each question has at least 4 options, exactly one correct answer copied verbatim from the options, and a one-sentence rationale. Answer with a single JSON object of the form {"quiz": [{"question": "...", "options": ["...", "...", "...", "..."], "correctAnswer": "...", "rationale": "..."}]}.`,
		transcript, syllabus)
}

func checklistPrompt(transcript, syllabus string) string {
	return withContext("checklist",
		`Write a study checklist: concrete actions a student should complete to master this lecture. Answer with a single JSON object of the form {"checklist": ["...", "..."]}.`,
		transcript, syllabus)
}

func alignmentPrompt(transcript, syllabus string) string {
	return fmt.Sprintf(`Task: alignment

Rate from 0 to 100 how well the lecture covers the syllabus below, and explain the gaps briefly. Answer with a single JSON object of the form {"score": 0, "analysis": "..."}.

Syllabus:
%s

Transcript:
%s`, syllabus, transcript)
}
