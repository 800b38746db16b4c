// Package redis implements store.Store on Redis.
//
// Layout:
//
//	taskq:job:{id}            Hash        job record
//	taskq:job:{id}:attempts   Stream      attempt log, MAXLEN = retention
//	taskq:queue:{name}        Sorted Set  pending ids scored by enqueue time
//
// Admission writes the hash and the queue entry in one MULTI/EXEC. Workers
// claim ids with ZPOPMIN and complete jobs under WATCH so a terminal state
// is written at most once; completion also sets the retention expiry on
// both job keys.
//
// The caller owns the client lifecycle; Close never closes it:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client, redis.WithQueue("default"))
//	if err := s.Ping(ctx); err != nil { ... }
package redis
