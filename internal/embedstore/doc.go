// Package embedstore persists collection embeddings in a compact binary file.
//
// Layout (little-endian):
//
//	offset  size  field
//	0       4     magic 0x454D4244 ("EMBD")
//	4       2     version (1)
//	6       2     dimension
//	8       4     count
//	12      ...   count*dimension float32 values, row-major
//
// Row i corresponds to the i-th id in the collection's index.json, which is
// written alongside by SaveIndex. Every write goes through AtomicWrite.
package embedstore
