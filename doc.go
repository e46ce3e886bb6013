/*
Package b3tree implements a content-addressed verification tree: it
commits a byte sequence of any length to a single 32-byte root and lets a
receiver verify, chunk by chunk and without trusting the sender, that
streamed data is exactly what the publisher committed to.

Content is split into fixed-size chunks, each hashed into a leaf chaining
value; leaves merge pairwise by a fixed split rule (the left subtree takes
the largest power of two of chunks strictly below the total) up to the
root. Domain-separation flags keep leaf, parent and root computations
mutually incompatible.

A Tree produces the root and self-verifying encodings: Encode interleaves
the tree's chaining values with the raw bytes in pre-order, and
EncodeRange prunes everything outside a byte range, yielding a minimal
proof for partial retrieval. StreamBuilder computes the same root from
incrementally fed bytes. Decoder consumes an encoding plus a trusted root
and releases only bytes that verified; corruption is detected before the
offending bytes are ever surfaced.
*/
package b3tree
