// Package textutil compares file stems when annotation video references are
// matched against files on disk.
//
// Similarity takes the better of a normalized Levenshtein ratio and the
// cosine of word-frequency vectors, so both typos and reordered words score
// high. Inputs are case folded and NFC normalized first.
package textutil
