/*
Package multimarkov implements a variable-order Markov chain model that is
generic over its symbol type.

A Model learns, from example sequences of comparable symbols, the empirical
frequency with which each symbol follows each run of preceding symbols, for
every context length up to the model's order. Queries back off from the
longest matching context to shorter ones, and weighted sampling turns the
resulting distribution into a single drawn symbol using a caller-supplied
random source.

The package also provides prior smoothing (so every known symbol stays
reachable from every observed context), a generation loop with temperature
and top-K selection, JSON export/import, and an optional SQLite-backed store
for persisting trained models.
*/
package multimarkov
