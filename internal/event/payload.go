// Package event turns viewer activity payloads into sound triggers.
package event

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
)

// Kind is the category of a viewer event.
type Kind string

const (
	KindLike      Kind = "like"
	KindGift      Kind = "gift"
	KindMessage   Kind = "message"
	KindSuperChat Kind = "superChat"
	KindGuard     Kind = "guard"
	KindEnter     Kind = "enter"
	KindInteract  Kind = "interact"
	KindUnknown   Kind = "unknown"
)

// FollowMsgType is the interaction subtype of a new follower.
const FollowMsgType = 2

var commands = map[string]Kind{
	"LIVE_OPEN_PLATFORM_LIKE":            KindLike,
	"OPEN_LIVEROOM_LIKE":                 KindLike,
	"LIVE_OPEN_PLATFORM_SEND_GIFT":       KindGift,
	"LIVE_OPEN_PLATFORM_DM":              KindMessage,
	"OPEN_LIVEROOM_SUPER_CHAT":           KindSuperChat,
	"LIVE_OPEN_PLATFORM_SUPER_CHAT":      KindSuperChat,
	"OPEN_LIVEROOM_GUARD":                KindGuard,
	"LIVE_OPEN_PLATFORM_GUARD":           KindGuard,
	"OPEN_LIVEROOM_LIVE_ROOM_ENTER":      KindEnter,
	"LIVE_OPEN_PLATFORM_LIVE_ROOM_ENTER": KindEnter,
	"OPEN_LIVEROOM_INTERACT_WORD":        KindInteract,
}

// KindOf maps a payload's cmd discriminator to its Kind.
func KindOf(cmd string) Kind {
	if kind, ok := commands[cmd]; ok {
		return kind
	}
	return KindUnknown
}

var ErrInvalidPayload = errors.New("invalid event payload")

// Payload holds the fields of an event body that dispatch looks at.
type Payload struct {
	Cmd       string
	Kind      Kind
	UID       string
	UName     string
	LikeCount int64
	Price     int64
	MsgType   int64
}

// Parse extracts the discriminator and kind-specific fields from a JSON
// event body. Like counts and gift prices are required for their kinds and
// may be encoded as numbers or numeric strings.
func Parse(body []byte) (*Payload, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidPayload)
	}

	root := gjson.ParseBytes(body)
	cmd := root.Get("cmd")
	if cmd.Type != gjson.String {
		return nil, fmt.Errorf("%w: missing cmd", ErrInvalidPayload)
	}

	data := root.Get("data")
	p := &Payload{
		Cmd:   cmd.String(),
		Kind:  KindOf(cmd.String()),
		UID:   data.Get("uid").String(),
		UName: data.Get("uname").String(),
	}

	var err error
	switch p.Kind {
	case KindLike:
		p.LikeCount, err = intField(data, "like_count")
	case KindGift:
		p.Price, err = intField(data, "price")
	case KindInteract:
		if data.Get("msg_type").Exists() {
			p.MsgType, err = intField(data, "msg_type")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, p.Cmd, err)
	}
	return p, nil
}

func intField(data gjson.Result, name string) (int64, error) {
	field := data.Get(name)
	switch field.Type {
	case gjson.Number:
		return field.Int(), nil
	case gjson.String:
		n, err := strconv.ParseInt(field.Str, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("field %s is not an integer: %q", name, field.Str)
		}
		return n, nil
	case gjson.Null:
		if !field.Exists() {
			return 0, fmt.Errorf("field %s is missing", name)
		}
	}
	return 0, fmt.Errorf("field %s is not an integer", name)
}
