// Package notify carries asynchronous signals from the compositor back to
// the object-model layer.
//
// A channel registers a Sink together with a message code. The transport calls
// the sink from its own goroutine whenever a batch was processed, a frame was
// presented or the partition hit an error.
//
// Registry decouples the transport from the lifetime of the target: register
// the target, hand the transport reg.Sink(id), and call Unregister on teardown.
//
//	reg := notify.NewRegistry()
//	id := reg.Register(notify.SinkFunc(onNotify))
//	ch.SetNotificationSink(reg.Sink(id), msgCode)
//	...
//	reg.Unregister(id) // further notifications are dropped
package notify
