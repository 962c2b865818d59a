package markov

// fallbackSentences is the built-in corpus used when both the cache and the
// remote source fail. It is intentionally small and bland; its only job is
// to keep the authoring workflow moving until a real corpus loads.
var fallbackSentences = []string{
	"Writing happens one sentence at a time, and most sentences are rewritten twice.",
	"A good draft starts long before the first word reaches the page.",
	"Every post begins with a single idea that refuses to stay quiet.",
	"The best paragraphs read as if they were effortless to write.",
	"Editing is the slow art of deleting everything the reader does not need.",
	"A blog grows by small consistent steps rather than grand gestures.",
	"Readers remember clear thoughts far longer than clever phrasing.",
	"Some days the words arrive easily, and other days they must be dug out.",
	"An outline is a promise the finished draft does not always keep.",
	"Short sentences carry more weight than they appear to hold.",
	"The hardest part of any article is the sentence that opens it.",
	"Nothing sharpens an argument like explaining it to someone else.",
}
