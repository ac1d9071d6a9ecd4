package mentor

import (
	"fmt"
	"strings"

	"offsecmentor/pkg/domain"
)

// Questions is the fixed skill-assessment catalog. It is read-only at
// runtime; the state machine assumes exactly this order and length.
var Questions = []domain.Question{
	{ID: 1, Prompt: "What is the primary purpose of the three-way handshake in TCP?", Hint: "Think about connection establishment"},
	{ID: 2, Prompt: "Which Linux command would you use to view currently running processes?", Hint: "Common system monitoring command"},
	{ID: 3, Prompt: "What information does an Nmap scan with the -sV flag provide?", Hint: "Think about service details"},
	{ID: 4, Prompt: "Explain what ports 80 and 443 are typically used for.", Hint: "Web-related protocols"},
	{ID: 5, Prompt: "What does enumeration mean in the context of penetration testing?", Hint: "Information gathering phase"},
	{ID: 6, Prompt: "Why is it important to enumerate SMB shares on a Windows system?", Hint: "Think about information disclosure"},
	{ID: 7, Prompt: "What is the purpose of a web directory brute-force tool like gobuster or dirbuster?", Hint: "Finding hidden resources"},
	{ID: 8, Prompt: "Explain what 'privilege escalation' means.", Hint: "Going from low to high access"},
	{ID: 9, Prompt: "What is the CIA triad in information security?", Hint: "Three core principles"},
	{ID: 10, Prompt: "Why should you always get written permission before testing a system?", Hint: "Legal and ethical considerations"},
}

// Transcript concatenates every question with its stored answer, in catalog
// order, framed the way the assessment prompt expects its input.
func (s *Session) Transcript() string {
	var qa strings.Builder
	for i, q := range Questions {
		if i >= len(s.Answers) {
			break
		}
		fmt.Fprintf(&qa, "\nQuestion %d: %s\n", i+1, q.Prompt)
		fmt.Fprintf(&qa, "Answer: %s\n", s.Answers[i])
	}
	return fmt.Sprintf(`Here are the learner's answers to the skill assessment questions:

%s

Please provide a structured assessment following the format specified.`, qa.String())
}
