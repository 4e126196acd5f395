/*
Package dynfield implements dynamic fields on top of a key-value store
(Bolt, SQLite or in-memory).

A dynamic field lets an already-created object acquire additional named fields.
The field name (key) may be any comparable value that msgpack can serialize,
and the field value may be any serializable value, including another object.

We implement:

1. Fields: Add, Borrow, BorrowMut, Remove, Exists, ExistsWithType.

2. Object fields, which attach a whole object (something with its own UID) to
a parent, keeping the object addressable by its own identity.

3. Table and Bag, typed and heterogeneous collections built on fields.

# Technical Details

**Addressing.**
Each field lives at an address derived from the parent address, the key and
the key's type tag:

	blake2b-256(scope || parent || uvarint(len(key)) || key || uvarint(len(tag)) || tag)

where key is the msgpack encoding of the key. Including the type tag means
that int32(7) and int64(7) name different fields even though msgpack encodes
them identically.

Key bytes must follow Go equality. Floats are canonicalized before encoding
(-0 becomes +0, NaN is rejected), and key types whose encoding could drop part
of the value are rejected: pointers, interfaces, and structs with unexported,
embedded, skipped or omitempty fields. Types with their own msgpack or
binary/text encoding are trusted to encode injectively.

**Type tags.**
A type tag is the package path and name of a Go type, or whatever the type's
FieldTypeName method returns. Tags are computed once per type and cached.

**Buckets.**
All records live in a single “fields” bucket keyed by the 32-byte address.
A “meta” bucket holds the storage format version.

## Binary encoding

**Record**: record header, then name bytes, then value bytes.

**Record header**:
1. Flags (uvarint): format version and record kind.
2. Parent address (32 bytes).
3. Key type tag (uvarint length + bytes).
4. Value type tag (uvarint length + bytes).
5. Name size (uvarint).
6. Value size (uvarint).
7. Checksum (8 bytes, big-endian xxhash64 of name and value bytes).

**Name** and **value** are msgpack with sorted map keys.
*/
package dynfield
