package vecsketch

import (
	"bytes"
	"context"

	"github.com/hupe1980/vecsketch/blobstore"
	"github.com/hupe1980/vecsketch/frame"
	"github.com/hupe1980/vecsketch/resource"
)

// SaveBlob frames c like Save and stores it under name. It returns the
// stored frame length.
func SaveBlob(ctx context.Context, store blobstore.Store, name string, rc *resource.Controller, c Compressor, compression frame.Compression) (int, error) {
	var buf bytes.Buffer
	if _, err := Save(ctx, &buf, rc, c, compression); err != nil {
		return 0, err
	}
	if err := store.Put(ctx, name, buf.Bytes()); err != nil {
		return 0, translateError("save blob", err)
	}
	return buf.Len(), nil
}

// LoadBlob reads the frame stored under name and decodes the compressor in
// it.
func LoadBlob(ctx context.Context, store blobstore.Store, name string, rc *resource.Controller, optFns ...Option) (Compressor, error) {
	data, err := store.Get(ctx, name)
	if err != nil {
		return nil, translateError("load blob", err)
	}
	return Load(ctx, bytes.NewReader(data), rc, optFns...)
}
