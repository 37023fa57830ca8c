package message

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/streamtap-project/streamtap/internal/protocol"
)

// ErrMissingType is returned for a wire message without a type tag.
var ErrMissingType = errors.New("message has no type tag")

// Normalize flattens a decoded wire message.
// It returns a nil Event for messages that carry only raw bytes.
// When catalog is non-empty, gift events are enriched with the matching entry.
func Normalize(m *protocol.WireMessage, catalog Catalog) (Event, error) {
	if m.Type == "" {
		return nil, ErrMissingType
	}
	if m.Payload == nil {
		return nil, nil
	}

	switch p := m.Payload.(type) {
	case *protocol.ChatMessage:
		return chatEvent(p), nil
	case *protocol.MemberMessage:
		return &MemberEvent{UserInfo: userInfo(p.User), EventInfo: eventInfo(p.Event), ActionID: p.ActionID}, nil
	case *protocol.GiftMessage:
		return giftEvent(p, catalog), nil
	case *protocol.LikeMessage:
		return &LikeEvent{
			UserInfo:       userInfo(p.User),
			EventInfo:      eventInfo(p.Event),
			LikeCount:      p.LikeCount,
			TotalLikeCount: p.TotalLikeCount,
		}, nil
	case *protocol.SocialMessage:
		return &SocialEvent{UserInfo: userInfo(p.User), EventInfo: eventInfo(p.Event)}, nil
	case *protocol.RoomUserSeqMessage:
		return roomUserEvent(p), nil
	case *protocol.ControlMessage:
		return &ControlEvent{Action: p.Action}, nil
	case *protocol.LinkMicBattleMessage:
		ev := &BattleEvent{BattleUsers: make([]UserInfo, 0, len(p.BattleUsers))}
		for _, u := range p.BattleUsers {
			ev.BattleUsers = append(ev.BattleUsers, userInfo(u))
		}
		return ev, nil
	case *protocol.LinkMicArmiesMessage:
		return armiesEvent(p), nil
	case *protocol.LiveIntroMessage:
		return &LiveIntroEvent{UserInfo: userInfo(p.User), ID: idString(p.ID), Description: p.Description}, nil
	case *protocol.EmoteChatMessage:
		ev := &EmoteEvent{UserInfo: userInfo(p.User)}
		if p.Emote != nil {
			ev.EmoteID = p.Emote.EmoteID
			ev.EmoteImageURL = p.Emote.ImageURL
		}
		return ev, nil
	case *protocol.EnvelopeMessage:
		return envelopeEvent(p), nil
	case *protocol.SubNotifyMessage:
		return &SubscribeEvent{
			UserInfo:           userInfo(p.User),
			EventInfo:          eventInfo(p.Event),
			ExhibitionType:     p.ExhibitionType,
			SubMonth:           p.SubMonth,
			SubscribeType:      p.SubscribeType,
			OldSubscribeStatus: p.OldSubscribeStatus,
			SubscribingStatus:  p.SubscribingStatus,
		}, nil
	case *protocol.QuestionNewMessage:
		return &QuestionEvent{UserInfo: userInfo(p.User), QuestionText: p.QuestionText}, nil
	default:
		return nil, fmt.Errorf("no normalizer for %s", m.Type)
	}
}

func chatEvent(p *protocol.ChatMessage) *ChatEvent {
	ev := &ChatEvent{UserInfo: userInfo(p.User), EventInfo: eventInfo(p.Event), Comment: p.Comment}
	for _, e := range p.Emotes {
		ce := ChatEmote{PlaceInComment: e.PlaceInComment}
		if e.Emote != nil {
			ce.EmoteID = e.Emote.EmoteID
			ce.EmoteImageURL = e.Emote.ImageURL
		}
		ev.Emotes = append(ev.Emotes, ce)
	}
	return ev
}

func giftEvent(p *protocol.GiftMessage, catalog Catalog) *GiftEvent {
	ev := &GiftEvent{
		UserInfo:     userInfo(p.User),
		EventInfo:    eventInfo(p.Event),
		GiftID:       p.GiftID,
		RepeatCount:  p.RepeatCount,
		RepeatEnd:    p.RepeatEnd != 0,
		GroupID:      idString(p.GroupID),
		MonitorExtra: p.MonitorExtra,
	}
	if d := p.Details; d != nil {
		ev.GiftType = d.GiftType
		ev.GiftName = d.GiftName
		ev.Describe = d.Describe
		ev.DiamondCount = d.DiamondCount
		ev.GiftPictureURL = d.PictureURL
	}
	if x := p.Extra; x != nil {
		ev.ReceiverUserID = idString(x.ReceiverUserID)
		ev.Timestamp = idString(x.Timestamp)
	}
	ev.Gift = LegacyGift{
		GiftID:      p.GiftID,
		RepeatCount: p.RepeatCount,
		RepeatEnd:   p.RepeatEnd,
		GiftType:    ev.GiftType,
	}
	if len(catalog) > 0 {
		if entry, ok := catalog.Find(p.GiftID); ok {
			ev.ExtendedGiftInfo = entry
		}
	}
	return ev
}

func roomUserEvent(p *protocol.RoomUserSeqMessage) *RoomUserEvent {
	ev := &RoomUserEvent{ViewerCount: p.ViewerCount}
	for _, tv := range p.TopViewers {
		ev.TopViewers = append(ev.TopViewers, TopViewer{UserInfo: userInfo(tv.User), CoinCount: tv.CoinCount})
	}
	return ev
}

func armiesEvent(p *protocol.LinkMicArmiesMessage) *ArmiesEvent {
	ev := &ArmiesEvent{BattleStatus: p.BattleStatus, BattleArmies: []BattleArmy{}}
	for _, item := range p.BattleItems {
		for _, group := range item.Groups {
			army := BattleArmy{
				HostUserID:   idString(item.HostUserID),
				Points:       group.Points,
				Participants: make([]UserInfo, 0, len(group.Users)),
			}
			for _, u := range group.Users {
				army.Participants = append(army.Participants, userInfo(u))
			}
			ev.BattleArmies = append(ev.BattleArmies, army)
		}
	}
	return ev
}

func envelopeEvent(p *protocol.EnvelopeMessage) *EnvelopeEvent {
	ev := &EnvelopeEvent{}
	if len(p.BoxUsers) > 0 {
		ev.UserInfo = userInfo(p.BoxUsers[0])
	}
	if d := p.BoxData; d != nil {
		ev.Coins = d.Coins
		ev.CanOpen = d.CanOpen
		ev.Timestamp = idString(d.Timestamp)
	}
	return ev
}

func eventInfo(e *protocol.MessageEvent) EventInfo {
	if e == nil {
		return EventInfo{}
	}
	return EventInfo{
		MsgID:       idString(e.MsgID),
		CreateTime:  idString(e.CreateTime),
		DisplayType: e.DisplayType,
		Label:       e.Label,
	}
}

func userInfo(u *protocol.User) UserInfo {
	if u == nil {
		return UserInfo{}
	}
	info := UserInfo{
		UserID:            idString(u.UserID),
		SecUID:            u.SecUID,
		UniqueID:          u.UniqueID,
		Nickname:          u.Nickname,
		ProfilePictureURL: preferredPicture(u.ProfilePictureURLs),
		UserDetails: &UserDetails{
			CreateTime:         idString(u.CreateTime),
			BioDescription:     u.BioDescription,
			ProfilePictureURLs: u.ProfilePictureURLs,
		},
	}
	if fi := u.FollowInfo; fi != nil {
		info.FollowRole = fi.FollowStatus
		info.FollowInfo = &FollowInfo{
			FollowingCount: fi.FollowingCount,
			FollowerCount:  fi.FollowerCount,
			FollowStatus:   fi.FollowStatus,
			PushStatus:     fi.PushStatus,
		}
	}
	for _, b := range u.Badges {
		info.UserBadges = append(info.UserBadges, Badge{Type: b.Type, Name: b.Name, Level: b.Level})
		label := strings.ToLower(b.Type + " " + b.Name)
		if strings.Contains(label, "moderator") {
			info.IsModerator = true
		}
		if strings.Contains(label, "subscriber") {
			info.IsSubscriber = true
		}
	}
	return info
}

// preferredPicture returns the first webp URL, falling back to the first URL.
func preferredPicture(urls []string) string {
	for _, u := range urls {
		if strings.Contains(u, ".webp") {
			return u
		}
	}
	if len(urls) > 0 {
		return urls[0]
	}
	return ""
}

// idString renders 64-bit identifiers as decimal strings. Zero means absent.
func idString(v uint64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatUint(v, 10)
}
