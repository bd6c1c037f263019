// Package objectql holds the types shared by the query engine: the
// generic Record, the Source, Resolver and Iterator interfaces data
// sources implement, the collection Schema and the errors construction
// can fail with.
//
// Queries are written in a restricted subset of Python's expression
// syntax:
//
//	person.gender == Person.FEMALE and any(get_note(n).text for n in person.note_list)
//
// See package query for compiling and running them.
package objectql
