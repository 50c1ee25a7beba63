// Package resource provides the explicit execution context used by every
// parallel entry point: bounded worker slots, a memory budget and an IO rate
// limit.
//
// A Controller replaces a process-wide pool. Create one, share it among as
// many concurrent compressions as you like, and Close it when done:
//
//	rc, err := resource.NewController(resource.Config{MaxWorkers: 8})
//	if err != nil {
//		return err
//	}
//	defer rc.Close()
//
//	err = rc.Run(ctx, len(spans), func(ctx context.Context, i int) error {
//		return work(spans[i])
//	})
package resource
