package ai

import "fmt"

func commitMessagePrompt(diff string) string {
	return fmt.Sprintf(`Analyze this git diff and generate a conventional commit message.

Requirements:
1. Use conventional commit format: type(scope): description
2. Types: feat, fix, docs, style, refactor, test, chore
3. Keep the first line under 72 characters
4. Add a body if needed to explain the motivation

Diff:
`+"```"+`
%s
`+"```"+`

Generate only the commit message, no explanations:`, diff)
}

func prContentPrompt(diff, branch string) string {
	return fmt.Sprintf(`Analyze this git diff and generate a pull request title and description.

Branch name: %s

Requirements for title:
1. Clear and concise (max 72 characters)
2. Use imperative mood ("Add" not "Added")
3. No period at the end

Requirements for body:
1. Summary of changes (2-3 sentences)
2. List of key changes with bullet points
3. Any breaking changes or important notes

Diff:
`+"```"+`
%s
`+"```"+`

Respond in this exact JSON format:
{
  "title": "PR title here",
  "body": "PR body here"
}`, branch, diff)
}
