// Package message turns decoded wire messages into the flattened event
// records handed to subscribers.
package message

// Kind names the signal an event is delivered under.
type Kind string

const (
	KindChat          Kind = "chat"
	KindMember        Kind = "member"
	KindGift          Kind = "gift"
	KindLike          Kind = "like"
	KindSocial        Kind = "social"
	KindRoomUser      Kind = "roomUser"
	KindControl       Kind = "control"
	KindLinkMicBattle Kind = "linkMicBattle"
	KindLinkMicArmies Kind = "linkMicArmies"
	KindLiveIntro     Kind = "liveIntro"
	KindEmote         Kind = "emote"
	KindEnvelope      Kind = "envelope"
	KindSubscribe     Kind = "subscribe"
	KindQuestionNew   Kind = "questionNew"
)

// Control actions that end the broadcast.
const (
	ControlActionEnded      int32 = 3
	ControlActionTerminated int32 = 4
)

// Event is a normalized record.
type Event interface {
	Kind() Kind
}

// Badge is a user badge.
type Badge struct {
	Type  string `json:"type,omitempty"`
	Name  string `json:"name,omitempty"`
	Level int32  `json:"level,omitempty"`
}

// UserDetails carries the less frequently used user attributes.
type UserDetails struct {
	CreateTime         string   `json:"createTime,omitempty"`
	BioDescription     string   `json:"bioDescription,omitempty"`
	ProfilePictureURLs []string `json:"profilePictureUrls,omitempty"`
}

// FollowInfo carries follower counts and the relationship to the broadcaster.
type FollowInfo struct {
	FollowingCount int32 `json:"followingCount"`
	FollowerCount  int32 `json:"followerCount"`
	FollowStatus   int32 `json:"followStatus"`
	PushStatus     int32 `json:"pushStatus"`
}

// UserInfo is the flattened view of a wire user.
// Empty strings mean the attribute was absent on the wire.
type UserInfo struct {
	UserID            string       `json:"userId,omitempty"`
	SecUID            string       `json:"secUid,omitempty"`
	UniqueID          string       `json:"uniqueId,omitempty"`
	Nickname          string       `json:"nickname,omitempty"`
	ProfilePictureURL string       `json:"profilePictureUrl,omitempty"`
	FollowRole        int32        `json:"followRole"`
	UserBadges        []Badge      `json:"userBadges,omitempty"`
	UserDetails       *UserDetails `json:"userDetails,omitempty"`
	FollowInfo        *FollowInfo  `json:"followInfo,omitempty"`
	IsModerator       bool         `json:"isModerator"`
	IsSubscriber      bool         `json:"isSubscriber"`
}

// EventInfo is the flattened common message header.
type EventInfo struct {
	MsgID       string `json:"msgId,omitempty"`
	CreateTime  string `json:"createTime,omitempty"`
	DisplayType string `json:"displayType,omitempty"`
	Label       string `json:"label,omitempty"`
}

type ChatEmote struct {
	EmoteID        string `json:"emoteId,omitempty"`
	EmoteImageURL  string `json:"emoteImageUrl,omitempty"`
	PlaceInComment int32  `json:"placeInComment"`
}

type ChatEvent struct {
	UserInfo
	EventInfo
	Comment string      `json:"comment"`
	Emotes  []ChatEmote `json:"emotes,omitempty"`
}

type MemberEvent struct {
	UserInfo
	EventInfo
	ActionID int32 `json:"actionId"`
}

// LegacyGift mirrors the snake_case gift object older consumers read.
type LegacyGift struct {
	GiftID      int32 `json:"gift_id"`
	RepeatCount int32 `json:"repeat_count"`
	RepeatEnd   int32 `json:"repeat_end"`
	GiftType    int32 `json:"gift_type"`
}

type GiftEvent struct {
	UserInfo
	EventInfo
	GiftID           int32      `json:"giftId"`
	RepeatCount      int32      `json:"repeatCount"`
	RepeatEnd        bool       `json:"repeatEnd"`
	GroupID          string     `json:"groupId,omitempty"`
	GiftType         int32      `json:"giftType"`
	GiftName         string     `json:"giftName,omitempty"`
	Describe         string     `json:"describe,omitempty"`
	DiamondCount     int32      `json:"diamondCount"`
	GiftPictureURL   string     `json:"giftPictureUrl,omitempty"`
	MonitorExtra     string     `json:"monitorExtra,omitempty"`
	ReceiverUserID   string     `json:"receiverUserId,omitempty"`
	Timestamp        string     `json:"timestamp,omitempty"`
	Gift             LegacyGift `json:"gift"`
	ExtendedGiftInfo *GiftEntry `json:"extendedGiftInfo,omitempty"`
}

// Streakable reports whether the gift can be sent as a repeating streak.
func (g *GiftEvent) Streakable() bool { return g.GiftType == 1 }

type LikeEvent struct {
	UserInfo
	EventInfo
	LikeCount      int32 `json:"likeCount"`
	TotalLikeCount int32 `json:"totalLikeCount"`
}

type SocialEvent struct {
	UserInfo
	EventInfo
}

type TopViewer struct {
	UserInfo
	CoinCount uint64 `json:"coinCount"`
}

type RoomUserEvent struct {
	ViewerCount int32       `json:"viewerCount"`
	TopViewers  []TopViewer `json:"topViewers,omitempty"`
}

type ControlEvent struct {
	Action int32 `json:"action"`
}

// StreamEnded reports whether the action terminates the broadcast.
func (c *ControlEvent) StreamEnded() bool {
	return c.Action == ControlActionEnded || c.Action == ControlActionTerminated
}

type BattleEvent struct {
	BattleUsers []UserInfo `json:"battleUsers"`
}

type BattleArmy struct {
	HostUserID   string     `json:"hostUserId,omitempty"`
	Points       int32      `json:"points"`
	Participants []UserInfo `json:"participants"`
}

type ArmiesEvent struct {
	BattleStatus int32        `json:"battleStatus"`
	BattleArmies []BattleArmy `json:"battleArmies"`
}

type LiveIntroEvent struct {
	UserInfo
	ID          string `json:"id,omitempty"`
	Description string `json:"description"`
}

type EmoteEvent struct {
	UserInfo
	EmoteID       string `json:"emoteId,omitempty"`
	EmoteImageURL string `json:"emoteImageUrl,omitempty"`
}

type EnvelopeEvent struct {
	UserInfo
	Coins     uint32 `json:"coins"`
	CanOpen   uint32 `json:"canOpen"`
	Timestamp string `json:"timestamp,omitempty"`
}

type SubscribeEvent struct {
	UserInfo
	EventInfo
	ExhibitionType     int32 `json:"exhibitionType"`
	SubMonth           int32 `json:"subMonth"`
	SubscribeType      int32 `json:"subscribeType"`
	OldSubscribeStatus int32 `json:"oldSubscribeStatus"`
	SubscribingStatus  int32 `json:"subscribingStatus"`
}

type QuestionEvent struct {
	UserInfo
	QuestionText string `json:"questionText"`
}

func (*ChatEvent) Kind() Kind      { return KindChat }
func (*MemberEvent) Kind() Kind    { return KindMember }
func (*GiftEvent) Kind() Kind      { return KindGift }
func (*LikeEvent) Kind() Kind      { return KindLike }
func (*SocialEvent) Kind() Kind    { return KindSocial }
func (*RoomUserEvent) Kind() Kind  { return KindRoomUser }
func (*ControlEvent) Kind() Kind   { return KindControl }
func (*BattleEvent) Kind() Kind    { return KindLinkMicBattle }
func (*ArmiesEvent) Kind() Kind    { return KindLinkMicArmies }
func (*LiveIntroEvent) Kind() Kind { return KindLiveIntro }
func (*EmoteEvent) Kind() Kind     { return KindEmote }
func (*EnvelopeEvent) Kind() Kind  { return KindEnvelope }
func (*SubscribeEvent) Kind() Kind { return KindSubscribe }
func (*QuestionEvent) Kind() Kind  { return KindQuestionNew }
