// Package scope provides nestable coordinations whose stack travels in a
// context.Context.
//
// A Coordinator pushes a Coordination with Begin and resolves the innermost live one
// with Peek. Each Coordination owns a variable map and a list of participants that are
// notified exactly once, when the coordination is ended:
//
//	ctx, c, err := coordinator.Begin(ctx, "work", 30*time.Second)
//	if err != nil {
//	    return err
//	}
//	c.Variables().Put(key, value)
//	if err := doWork(ctx); err != nil {
//	    c.Fail(err)
//	}
//	return c.End(ctx)
//
// Ending a failed coordination notifies participants through Failed and returns an
// *Error of KindFailed carrying the failure cause.
package scope
