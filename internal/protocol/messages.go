package protocol

// MessageEvent is the common header carried by most inner messages.
type MessageEvent struct {
	MsgID       uint64
	CreateTime  uint64
	DisplayType string
	Label       string
}

// User is the wire user record.
type User struct {
	UserID             uint64
	Nickname           string
	BioDescription     string
	ProfilePictureURLs []string
	CreateTime         uint64
	FollowInfo         *FollowInfo
	UniqueID           string
	SecUID             string
	Badges             []Badge
}

type FollowInfo struct {
	FollowingCount int32
	FollowerCount  int32
	FollowStatus   int32
	PushStatus     int32
}

type Badge struct {
	Type  string
	Name  string
	Level int32
}

// Emote is an emote reference with its image.
type Emote struct {
	EmoteID  string
	ImageURL string
}

type ChatEmote struct {
	PlaceInComment int32
	Emote          *Emote
}

type ChatMessage struct {
	Event   *MessageEvent
	User    *User
	Comment string
	Emotes  []ChatEmote
}

type MemberMessage struct {
	Event    *MessageEvent
	User     *User
	ActionID int32
}

type GiftDetails struct {
	PictureURL   string
	Describe     string
	GiftType     int32
	DiamondCount int32
	GiftName     string
}

type GiftExtra struct {
	Timestamp      uint64
	ReceiverUserID uint64
}

type GiftMessage struct {
	Event        *MessageEvent
	GiftID       int32
	RepeatCount  int32
	User         *User
	RepeatEnd    int32
	GroupID      uint64
	Details      *GiftDetails
	MonitorExtra string
	Extra        *GiftExtra
}

type LikeMessage struct {
	Event          *MessageEvent
	LikeCount      int32
	TotalLikeCount int32
	User           *User
}

type SocialMessage struct {
	Event *MessageEvent
	User  *User
}

type TopViewer struct {
	CoinCount uint64
	User      *User
}

type RoomUserSeqMessage struct {
	TopViewers  []TopViewer
	ViewerCount int32
}

type ControlMessage struct {
	Action int32
}

type LinkMicBattleMessage struct {
	BattleUsers []*User
}

type ArmiesGroup struct {
	Users  []*User
	Points int32
}

type ArmiesItem struct {
	HostUserID uint64
	Groups     []ArmiesGroup
}

type LinkMicArmiesMessage struct {
	BattleItems  []ArmiesItem
	BattleStatus int32
}

type LiveIntroMessage struct {
	ID          uint64
	Description string
	User        *User
}

type EmoteChatMessage struct {
	User  *User
	Emote *Emote
}

type TreasureBoxData struct {
	Coins     uint32
	CanOpen   uint32
	Timestamp uint64
}

type EnvelopeMessage struct {
	BoxUsers []*User
	BoxData  *TreasureBoxData
}

type SubNotifyMessage struct {
	Event              *MessageEvent
	User               *User
	ExhibitionType     int32
	SubMonth           int32
	SubscribeType      int32
	OldSubscribeStatus int32
	SubscribingStatus  int32
}

type QuestionNewMessage struct {
	QuestionText string
	User         *User
}

func (*ChatMessage) Schema() string          { return SchemaChat }
func (*MemberMessage) Schema() string        { return SchemaMember }
func (*GiftMessage) Schema() string          { return SchemaGift }
func (*LikeMessage) Schema() string          { return SchemaLike }
func (*SocialMessage) Schema() string        { return SchemaSocial }
func (*RoomUserSeqMessage) Schema() string   { return SchemaRoomUserSeq }
func (*ControlMessage) Schema() string       { return SchemaControl }
func (*LinkMicBattleMessage) Schema() string { return SchemaLinkMicBattle }
func (*LinkMicArmiesMessage) Schema() string { return SchemaLinkMicArmies }
func (*LiveIntroMessage) Schema() string     { return SchemaLiveIntro }
func (*EmoteChatMessage) Schema() string     { return SchemaEmoteChat }
func (*EnvelopeMessage) Schema() string      { return SchemaEnvelope }
func (*SubNotifyMessage) Schema() string     { return SchemaSubNotify }
func (*QuestionNewMessage) Schema() string   { return SchemaQuestionNew }
