package pipeline

import "fmt"

func gradePrompt(in GradeInput) string {
	return fmt.Sprintf(`You are an expert interview coach. Grade the following behavioral interview response on a scale of 0-100.

Job Role: %s

Question: %s

Candidate's Response: %s

Candidate's Resume:
%s

Provide:
1. A numerical grade (0-100)
2. Detailed feedback on what was good and what could be improved
3. Specific suggestions for improvement

Format your response as JSON:
{
  "grade": <number 0-100>,
  "feedback": "<detailed feedback string>",
  "strengths": ["<strength 1>", "<strength 2>", ...],
  "improvements": ["<improvement 1>", "<improvement 2>", ...]
}`, in.Role, in.Question, in.Response, in.Resume)
}

func quickGradePrompt(in QuickGradeInput) string {
	return fmt.Sprintf(`Grade this behavioral interview response on a scale of 0-100. Provide a quick assessment.

Question: %s

Response: %s

Return ONLY a JSON object with this format:
{
  "grade": <number 0-100>,
  "category": "<poor|fair|good|excellent>",
  "feedback": "<brief 1-2 sentence feedback>"
}

Grade ranges:
- poor: 0-39
- fair: 40-59
- good: 60-79
- excellent: 80-100`, in.Question, in.Response)
}

func questionsPrompt(resume string) string {
	return fmt.Sprintf(`Based on this resume, generate %d specific behavioral interview questions that relate directly to the candidate's experiences, projects, or skills mentioned. Make them challenging and relevant.

Resume:
%s

Return ONLY a JSON array of question strings, nothing else. Example format:
["Question 1 here", "Question 2 here", "Question 3 here", "Question 4 here", "Question 5 here"]`, GeneratedQuestionCount, resume)
}
