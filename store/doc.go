// Package store defines the aggregate Work Store interface.
//
// [job.Store] is the read and admission surface the engine needs;
// [job.ExecutionStore] adds the dequeue and completion writes a worker
// needs. The composite [Store] adds lifecycle:
//
//	type Store interface {
//	    job.ExecutionStore
//
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// # Available Backends
//
//   - store/memory: in-memory store for development and testing
//   - store/redis: Redis backend (hash per job, stream per attempt log,
//     sorted set per pending queue)
//
// # Usage
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	defer client.Close()
//
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	eng := engine.New(s, taskq.NewConfig())
package store
