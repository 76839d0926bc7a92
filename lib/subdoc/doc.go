// Package subdoc builds sub-document commands: operations addressing a path inside
// a JSON document instead of the whole document.
//
// Builders return immutable Spec values. Lookups (Get, Exists) and Remove carry an
// opcode and a path, every mutation additionally carries a value and the
// create-parents flag:
//
//	subdoc.Get("name")                         // Spec<GET, "name">
//	subdoc.Upsert("a.b", 5, true)              // Spec<DICT_UPSERT, "a.b", 5, 1>
//	subdoc.PushLast("arr", false, 1, 2, 3)     // Spec<ARRAY_ADD_LAST, "arr", MultiValue(1, 2, 3), 0>
//
// Array pushes always wrap their values in a MultiValue, so one command can insert
// several elements. Replace and PushAt never create parents.
//
// Encode and Decode convert a batch of specs to and from the wire format.
// Paths travel as UTF-8, values as JSON. An empty batch is rejected.
package subdoc
