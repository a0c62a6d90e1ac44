package overlay

import (
	"objectarchive/blunder"
	"objectarchive/dispatch"
)

// Tags assigns one dispatch.Tag to each of the eight message kinds the
// overlay exchanges. Tag numbers are caller-configurable so a host
// application can keep them clear of unrelated traffic on the same
// Dispatcher; New validates that all eight are pairwise distinct.
type Tags struct {
	Alive        dispatch.Tag
	Invalidated  dispatch.Tag
	Inserted     dispatch.Tag
	ChangeKey    dispatch.Tag
	Request      dispatch.Tag
	Response     dispatch.Tag
	RequestData  dispatch.Tag
	ResponseData dispatch.Tag
}

func (t Tags) validate() error {
	seen := make(map[dispatch.Tag]bool, 8)

	for _, tag := range []dispatch.Tag{
		t.Alive, t.Invalidated, t.Inserted, t.ChangeKey,
		t.Request, t.Response, t.RequestData, t.ResponseData,
	} {
		if seen[tag] {
			return blunder.NewError(blunder.InvalidArgError, "overlay: tag %d used for more than one message kind", tag)
		}
		seen[tag] = true
	}

	return nil
}
