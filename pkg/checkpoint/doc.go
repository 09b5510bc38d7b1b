// Package checkpoint stores resume points for batch runs in Redis.
//
// A batch run replays a list file record by record. After every outcome the
// caller saves an Entry holding the next index to process and the counts so
// far, so an interrupted run can be resumed without re-sending the records
// that were already processed.
//
// # Basic Usage
//
//	redisClient, err := checkpoint.Connect(ctx, "redis://localhost:6379/0")
//	if err != nil {
//		return err
//	}
//	manager := checkpoint.NewManager(redisClient, checkpoint.DefaultConfig())
//
//	key := checkpoint.Key{
//		File:             "/data/variants.json",
//		Method:           "PUT",
//		EndpointTemplate: "variants/{{id}}",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
//		entry = &checkpoint.Entry{}
//	}
//
// # Metrics
//
//   - checkpoint_hits_total - resume points found
//   - checkpoint_misses_total - lookups without a resume point
//   - checkpoint_errors_total{operation} - Redis operation errors
package checkpoint
