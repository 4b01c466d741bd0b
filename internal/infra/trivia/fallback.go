package trivia

// builtinQuestions is served whenever the remote provider cannot be used.
// Entries are stored in the provider's encoded form and go through the same normalization.
var builtinQuestions = []rawQuestion{
	{
		Question:         "What is the capital of Australia?",
		CorrectAnswer:    "Canberra",
		IncorrectAnswers: []string{"Sydney", "Melbourne", "Perth"},
	},
	{
		Question:         "Which planet is known as the &quot;Red Planet&quot;?",
		CorrectAnswer:    "Mars",
		IncorrectAnswers: []string{"Venus", "Jupiter", "Mercury"},
	},
	{
		Question:         "Who wrote the play &quot;Romeo and Juliet&quot;?",
		CorrectAnswer:    "William Shakespeare",
		IncorrectAnswers: []string{"Charles Dickens", "Jane Austen", "Mark Twain"},
	},
	{
		Question:         "What is the chemical symbol for gold?",
		CorrectAnswer:    "Au",
		IncorrectAnswers: []string{"Ag", "Gd", "Go"},
	},
	{
		Question:         "How many continents are there on Earth?",
		CorrectAnswer:    "7",
		IncorrectAnswers: []string{"5", "6", "8"},
	},
}
