// Package scoring ranks candidates with a pure, data-driven score built from
// three factors: how recently the content aired, how often it has been
// searched, and how long since the last search. Strategy weight vectors bias
// the factors per queue.
package scoring
