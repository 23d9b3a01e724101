// Package compositor is an in-process compositor that plays the remote peer
// of the channel protocol.
//
// Each Connect creates a partition. A synchronous partition applies a batch
// inside Submit and returns the apply result. An asynchronous partition
// queues batches and applies them on a worker goroutine, taking out-of-band
// work before in-band work, and reports results through the notification
// sink of the submitting channel.
//
// The partition validates what it applies: creating a live handle, releasing
// or updating an unknown handle, or updating a handle of the wrong type
// rejects the batch and leaves the partition failed. Every later Submit on
// that connection returns a transmission error.
//
//	comp := compositor.New(compositor.WithRecorder(func(ch uint32, rec []byte) {
//	    // observe the applied byte stream
//	}))
//	defer comp.Close()
//
//	sys := composition.NewSystem(comp)
package compositor
