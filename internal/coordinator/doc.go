// Package coordinator accepts scene-edit requests from the Forma connector and
// tracks the asynchronous tasks they decompose into.
//
// A request is registered, split into jobs by the Strategy registered for its
// command, and each job is handed to a Spawner with a completion callback
// bound to its TaskID. Completions may arrive in any order. When the last task
// of a request completes the request is retired, and when nothing is left the
// bridge goes idle. Busy/idle edges are delivered to observers exactly once.
//
// Example usage:
//
//	coord := coordinator.New(coordinator.RequiredConfig{
//		Documents: sceneCtx,
//		Spawner:   executor.NewSpawner(ctx, logger),
//	}, coordinator.WithLogger(logger))
//	executor.RegisterStrategies(coord, store)
//	resp := coord.AcceptRequest(ctx, req)
package coordinator
