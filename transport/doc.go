// Package transport defines the connection primitive between the channel
// layer and a compositor.
//
// Two implementations ship with the module: compositor.Compositor, an
// in-process partition that applies batches on its own goroutine, and
// redistransport.Dialer, which carries marshaled batches to an
// out-of-process compositor through Redis.
package transport
