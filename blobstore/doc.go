// Package blobstore stores named byte blobs, typically framed compressor
// records checkpointed between training steps.
//
// Two implementations are provided:
//
//	store := blobstore.NewMemoryStore()       // tests, in-process exchange
//	store, _ := blobstore.NewLocalStore(dir)  // one file per blob
//
// Put replaces a blob atomically: readers observe either the previous
// content or the new one, never a partial write.
package blobstore
