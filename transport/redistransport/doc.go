// Package redistransport carries the channel protocol over Redis.
//
// A Server wraps a local compositor (any transport.Dialer) and a Dialer
// connects to it from another process. Key layout, all under a common
// prefix:
//
//	connect                  stream of connection announcements
//	conn:<uuid>:in           in-band commands of one connection
//	conn:<uuid>:oob          out-of-band commands of one connection
//	conn:<uuid>:notify       pub/sub channel for notifications
//	seq:request              request id counter
//	reply:<req>              list holding the reply to one request
//
// Batches travel in the wire batch encoding. Requests that need an answer
// (connect, open, synchronous submit, flush) carry a request id drawn with
// INCR and the caller blocks on BLPOP of the reply list until the reply
// arrives or Options.ReplyTimeout passes.
package redistransport
