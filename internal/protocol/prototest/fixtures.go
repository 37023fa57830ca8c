// Package prototest builds wire fixtures for tests.
package prototest

import (
	"sort"

	"github.com/streamtap-project/streamtap/internal/protocol"
)

// Msg is one inner message of a Response fixture.
type Msg struct {
	Type   string
	Binary []byte
}

// Response describes a WebcastResponse to encode.
type Response struct {
	Messages      []Msg
	Cursor        string
	InternalExt   string
	FetchInterval int32
	WSURL         string
	WSParams      map[string]string
}

// Encode returns the protobuf encoding of r.
func (r Response) Encode() []byte {
	b := protocol.NewFrameBuilder()
	for _, m := range r.Messages {
		b.Message(1, func(mb *protocol.FrameBuilder) {
			mb.String(1, m.Type).Bytes(2, m.Binary)
		})
	}
	if r.Cursor != "" {
		b.String(2, r.Cursor)
	}
	if r.FetchInterval != 0 {
		b.Int32(3, r.FetchInterval)
	}
	if r.InternalExt != "" {
		b.String(5, r.InternalExt)
	}

	names := make([]string, 0, len(r.WSParams))
	for name := range r.WSParams {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := r.WSParams[name]
		b.Message(7, func(pb *protocol.FrameBuilder) {
			pb.String(1, name).String(2, value)
		})
	}

	if r.WSURL != "" {
		b.String(10, r.WSURL)
	}
	return b.Build()
}

// PushFrame encodes an outer push frame.
func PushFrame(id uint64, frameType string, payload []byte) []byte {
	b := protocol.NewFrameBuilder().Uint64(2, id).String(7, frameType)
	if payload != nil {
		b.Bytes(8, payload)
	}
	return b.Build()
}

// UserSpec describes a wire user.
type UserSpec struct {
	ID       uint64
	UniqueID string
	Nickname string
	Pictures []string
}

func (u UserSpec) write(b *protocol.FrameBuilder) {
	b.Uint64(1, u.ID)
	if u.Nickname != "" {
		b.String(3, u.Nickname)
	}
	if len(u.Pictures) > 0 {
		b.Message(9, func(pb *protocol.FrameBuilder) {
			for _, url := range u.Pictures {
				pb.String(1, url)
			}
		})
	}
	if u.UniqueID != "" {
		b.String(38, u.UniqueID)
	}
}

func event(msgID uint64, displayType string) func(*protocol.FrameBuilder) {
	return func(b *protocol.FrameBuilder) {
		b.Uint64(2, msgID).Uint64(4, 1700000000000)
		if displayType != "" {
			b.Message(8, func(d *protocol.FrameBuilder) { d.String(1, displayType) })
		}
	}
}

// Chat encodes a WebcastChatMessage.
func Chat(msgID uint64, user UserSpec, comment string) []byte {
	return protocol.NewFrameBuilder().
		Message(1, event(msgID, "")).
		Message(2, user.write).
		String(3, comment).
		Build()
}

// GiftSpec describes a WebcastGiftMessage.
type GiftSpec struct {
	MsgID       uint64
	GiftID      int32
	RepeatCount int32
	RepeatEnd   bool
	GiftType    int32
	GiftName    string
	Diamonds    int32
	User        UserSpec
}

// Gift encodes a WebcastGiftMessage.
func Gift(g GiftSpec) []byte {
	b := protocol.NewFrameBuilder().
		Message(1, event(g.MsgID, "")).
		Int32(2, g.GiftID).
		Int32(5, g.RepeatCount).
		Message(7, g.User.write)
	if g.RepeatEnd {
		b.Int32(9, 1)
	}
	b.Message(15, func(d *protocol.FrameBuilder) {
		d.Int32(11, g.GiftType).Int32(12, g.Diamonds).String(16, g.GiftName)
	})
	return b.Build()
}

// Social encodes a WebcastSocialMessage with the given display type.
func Social(msgID uint64, displayType string, user UserSpec) []byte {
	return protocol.NewFrameBuilder().
		Message(1, event(msgID, displayType)).
		Message(2, user.write).
		Build()
}

// Like encodes a WebcastLikeMessage.
func Like(msgID uint64, count, total int32, user UserSpec) []byte {
	return protocol.NewFrameBuilder().
		Message(1, event(msgID, "")).
		Int32(2, count).
		Int32(3, total).
		Message(5, user.write).
		Build()
}

// Control encodes a WebcastControlMessage.
func Control(action int32) []byte {
	return protocol.NewFrameBuilder().Int32(2, action).Build()
}

// BlankUser encodes a user whose nickname and unique id are present on the
// wire as empty strings.
func BlankUser(id uint64) func(*protocol.FrameBuilder) {
	return func(b *protocol.FrameBuilder) {
		b.Uint64(1, id).String(3, "").String(38, "")
	}
}

// ChatFrom encodes a WebcastChatMessage with a hand-built user.
func ChatFrom(msgID uint64, user func(*protocol.FrameBuilder), comment string) []byte {
	return protocol.NewFrameBuilder().
		Message(1, event(msgID, "")).
		Message(2, user).
		String(3, comment).
		Build()
}

// ArmyGroup is one side of a battle item.
type ArmyGroup struct {
	Points int32
	Users  []UserSpec
}

// ArmyItem is a battle item hosted by one user.
type ArmyItem struct {
	HostUserID uint64
	Groups     []ArmyGroup
}

// Armies encodes a WebcastLinkMicArmies message.
func Armies(status int32, items ...ArmyItem) []byte {
	b := protocol.NewFrameBuilder()
	for _, it := range items {
		b.Message(3, func(ib *protocol.FrameBuilder) {
			ib.Uint64(1, it.HostUserID)
			for _, g := range it.Groups {
				ib.Message(2, func(gb *protocol.FrameBuilder) {
					for _, u := range g.Users {
						gb.Message(1, u.write)
					}
					gb.Int32(2, g.Points)
				})
			}
		})
	}
	return b.Int32(7, status).Build()
}

// Envelope encodes a WebcastEnvelopeMessage with one treasure box per user.
func Envelope(coins, canOpen uint32, timestamp uint64, users ...UserSpec) []byte {
	b := protocol.NewFrameBuilder()
	b.Message(1, func(info *protocol.FrameBuilder) {
		for _, u := range users {
			info.Message(8, func(box *protocol.FrameBuilder) {
				box.Message(4, u.write)
			})
		}
	})
	b.Message(2, func(d *protocol.FrameBuilder) {
		d.Uint64(5, uint64(coins)).Uint64(6, uint64(canOpen)).Uint64(7, timestamp)
	})
	return b.Build()
}

// Question encodes a WebcastQuestionNewMessage.
func Question(text string, user UserSpec) []byte {
	return protocol.NewFrameBuilder().
		Message(2, func(q *protocol.FrameBuilder) {
			q.String(2, text).Message(5, user.write)
		}).
		Build()
}

// Viewer is one entry of a room-user ranking.
type Viewer struct {
	Coins uint64
	User  UserSpec
}

// RoomUser encodes a WebcastRoomUserSeqMessage.
func RoomUser(viewerCount int32, top ...Viewer) []byte {
	b := protocol.NewFrameBuilder()
	for _, v := range top {
		b.Message(2, func(tv *protocol.FrameBuilder) {
			tv.Uint64(1, v.Coins).Message(2, v.User.write)
		})
	}
	return b.Int32(3, viewerCount).Build()
}
