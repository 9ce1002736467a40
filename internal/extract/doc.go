// Package extract finds flashcards in plain-text notes.
//
// A line carrying #flashcard or 🧠 starts a card. When the line has a colon
// the card is complete on that line: the prompt is the text before the last
// colon and the response is the text after it. Otherwise the line is the
// prompt of a multi-line card whose response runs until a separator line
// (---, ***, or their spaced forms). Other #tags on the marker line become
// card tags. Files containing @scry-ignore are skipped.
package extract
