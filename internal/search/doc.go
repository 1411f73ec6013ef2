// Package search ranks notes and links against a free-text query.
//
// Relevance is a crude term-overlap score: the fraction of whitespace
// separated query words that appear verbatim in an item's title and body.
// Tag filters widen the candidate set, and the context flow re-ranks
// candidates by how many of the query's related tags they carry before
// capping the result to a handful of items.
//
// Scores are recomputed on every call over the whole corpus; nothing is
// cached or indexed.
package search
