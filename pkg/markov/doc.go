/*
Package markov implements the character-level Markov text engine used by the
blog tooling to produce bounded, sentence-aware filler text.

A Model is built wholesale from a cleaned line corpus and holds a fixed-order
n-gram index plus the observed line beginnings. A Generator performs a
weighted random walk over a Model, and an Engine wires the whole pipeline
together: cached corpus first, remote fetch second, and a built-in sentence
list as the last resort, so text generation never fails from the caller's
point of view.
*/
package markov
