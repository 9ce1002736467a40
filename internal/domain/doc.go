// Package domain contains the core entities of the flashcard system: cards and
// their content-derived identities, the candidates the extractor produces, the
// per-algorithm scheduling state, quality grades, and the leech and due-card
// policies. It is independent of storage, the terminal, and configuration
// loading.
package domain
