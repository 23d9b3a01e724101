package compositor

import (
	"github.com/wippyai/duce/errors"
	"github.com/wippyai/duce/resource"
	"github.com/wippyai/duce/wire"
)

// apply interprets one record. Callers hold p.mu.
func (p *partition) apply(ch *channelState, rec []byte) error {
	typ, err := wire.PeekType(rec)
	if err != nil {
		return err
	}

	switch typ {
	case wire.CmdCreateResource:
		c, err := wire.DecodeCreateResource(rec)
		if err != nil {
			return err
		}
		if c.Handle == resource.Null || !c.Resource.Valid() {
			return rejected(ch, c.Handle, "create %s with handle %d", c.Resource, c.Handle)
		}
		if _, live := ch.resources[c.Handle]; live {
			return rejected(ch, c.Handle, "handle already live")
		}
		ch.resources[c.Handle] = c.Resource

	case wire.CmdReleaseResource:
		c, err := wire.DecodeReleaseResource(rec)
		if err != nil {
			return err
		}
		if _, live := ch.resources[c.Handle]; !live {
			return rejected(ch, c.Handle, "release of unknown handle")
		}
		delete(ch.resources, c.Handle)

	case wire.CmdDuplicateHandle:
		c, err := wire.DecodeDuplicateHandle(rec)
		if err != nil {
			return err
		}
		rt, live := ch.resources[c.Original]
		if !live {
			return rejected(ch, c.Original, "duplicate of unknown handle")
		}
		target, ok := p.channels[c.TargetChannel]
		if !ok || target.closed {
			return rejected(ch, c.Original, "duplicate to unknown channel %d", c.TargetChannel)
		}
		if _, taken := target.resources[c.Duplicate]; taken || c.Duplicate == resource.Null {
			return rejected(ch, c.Duplicate, "duplicate handle unavailable on channel %d", c.TargetChannel)
		}
		target.resources[c.Duplicate] = rt

	case wire.CmdRegisterNotifications:
		c, err := wire.DecodeRegisterNotifications(rec)
		if err != nil {
			return err
		}
		ch.code = c.Code
		ch.notifyOn = c.Enable

	case wire.CmdTargetSetRoot:
		c, err := wire.DecodeTargetSetRoot(rec)
		if err != nil {
			return err
		}
		if err := requireType(ch, c.Target, resource.TypeCompositionTarget); err != nil {
			return err
		}
		if c.Root != resource.Null {
			if err := requireType(ch, c.Root, resource.TypeVisual); err != nil {
				return err
			}
		}

	case wire.CmdMatrixTransform:
		c, err := wire.DecodeMatrixTransform(rec)
		if err != nil {
			return err
		}
		return requireType(ch, c.Handle, resource.TypeMatrixTransform)

	case wire.CmdSolidColorBrush:
		c, err := wire.DecodeSolidColorBrush(rec)
		if err != nil {
			return err
		}
		return requireType(ch, c.Handle, resource.TypeSolidColorBrush)

	case wire.CmdLinearGradientBrush:
		c, _, err := wire.DecodeLinearGradientBrush(rec)
		if err != nil {
			return err
		}
		return requireType(ch, c.Handle, resource.TypeLinearGradientBrush)

	case wire.CmdPathGeometry:
		c, _, err := wire.DecodePathGeometry(rec)
		if err != nil {
			return err
		}
		if err := requireType(ch, c.Handle, resource.TypePathGeometry); err != nil {
			return err
		}
		if c.Transform != resource.Null {
			return requireType(ch, c.Transform, resource.TypeMatrixTransform)
		}

	default:
		return errors.New(errors.PhaseApply, errors.KindProtocol).
			Op("apply").
			Channel(ch.id).
			Code(errors.CodeInvalidArg).
			Detail("unknown command %s", typ).
			Build()
	}
	return nil
}

func requireType(ch *channelState, h resource.Handle, want resource.Type) error {
	got, live := ch.resources[h]
	if !live {
		return rejected(ch, h, "update of unknown handle")
	}
	if got != want {
		return rejected(ch, h, "handle is %s, want %s", got, want)
	}
	return nil
}

func rejected(ch *channelState, h resource.Handle, detail string, args ...any) error {
	return errors.New(errors.PhaseApply, errors.KindProtocol).
		Op("apply").
		Channel(ch.id).
		Handle(uint32(h)).
		Code(errors.CodeInvalidArg).
		Detail(detail, args...).
		Build()
}
