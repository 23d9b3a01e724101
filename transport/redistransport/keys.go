package redistransport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/wippyai/duce/errors"
)

// DefaultPrefix is prepended to every key.
const DefaultPrefix = "duce:"

// Stream entry fields.
const (
	fieldOp        = "op"
	fieldReq       = "req"
	fieldConn      = "conn"
	fieldSync      = "sync"
	fieldChannel   = "ch"
	fieldService   = "svc"
	fieldOutOfBand = "oob"
	fieldData      = "data"
	fieldCode      = "code"
)

// Operations carried in stream entries.
const (
	opConnect    = "connect"
	opDisconnect = "disconnect"
	opOpen       = "open"
	opClose      = "close"
	opBatch      = "batch"
	opPresent    = "present"
	opFlush      = "flush"
	opNotifier   = "notifier"
)

type keys struct {
	prefix string
}

// connectStream is where clients announce new connections.
func (k keys) connectStream() string { return k.prefix + "connect" }

// requestSeq is the counter request ids are drawn from.
func (k keys) requestSeq() string { return k.prefix + "seq:request" }

func (k keys) reply(req int64) string {
	return k.prefix + "reply:" + strconv.FormatInt(req, 10)
}

func (k keys) inband(conn uuid.UUID) string { return k.prefix + "conn:" + conn.String() + ":in" }
func (k keys) oob(conn uuid.UUID) string    { return k.prefix + "conn:" + conn.String() + ":oob" }
func (k keys) notify(conn uuid.UUID) string { return k.prefix + "conn:" + conn.String() + ":notify" }

// encodeReply formats the result of a request as "code:value".
func encodeReply(code errors.ResultCode, value uint32) string {
	return fmt.Sprintf("%d:%d", uint32(code), value)
}

func decodeReply(s string) (errors.ResultCode, uint32, error) {
	code, value, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, errors.InvalidInput(errors.PhaseCommit, "malformed reply "+strconv.Quote(s))
	}
	c, err := strconv.ParseUint(code, 10, 32)
	if err != nil {
		return 0, 0, errors.Wrap(errors.PhaseCommit, errors.KindInvalidInput, err, "reply code")
	}
	v, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, 0, errors.Wrap(errors.PhaseCommit, errors.KindInvalidInput, err, "reply value")
	}
	return errors.ResultCode(c), uint32(v), nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func field(values map[string]any, name string) string {
	s, _ := values[name].(string)
	return s
}

func fieldUint32(values map[string]any, name string) uint32 {
	v, _ := strconv.ParseUint(field(values, name), 10, 32)
	return uint32(v)
}
