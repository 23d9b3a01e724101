// Package composition ties channels to a rendering context.
//
// A System is the process-wide context: it owns the shared asynchronous
// connection and the composition service channel, reference counted through
// Acquire and Release. A Manager belongs to one rendering context and owns
// its channels.
//
//	sys := composition.NewSystem(dialer)
//	if err := sys.Acquire(ctx); err != nil {
//	    return err
//	}
//	defer sys.Release()
//
//	m, _ := composition.NewManager(sys, composition.DefaultConfig())
//	if err := m.CreateChannels(ctx); err != nil {
//	    return err
//	}
//	defer m.RemoveChannels()
//
//	ch, _ := m.AllocateSyncChannel(ctx)
//	defer m.ReleaseSyncChannel(ch)
//
// Released synchronous channels are kept for reuse up to
// Config.MaxFreeSyncChannels; beyond that they are closed.
package composition
