package message_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamtap-project/streamtap/internal/message"
	"github.com/streamtap-project/streamtap/internal/protocol"
	"github.com/streamtap-project/streamtap/internal/protocol/prototest"
)

func decoded(t *testing.T, schema string, raw []byte) *protocol.WireMessage {
	t.Helper()
	p, err := protocol.Decode(schema, raw)
	require.NoError(t, err)
	return &protocol.WireMessage{Type: schema, Binary: raw, Payload: p.(protocol.Payload)}
}

func TestNormalizeMissingType(t *testing.T) {
	_, err := message.Normalize(&protocol.WireMessage{}, nil)
	assert.True(t, errors.Is(err, message.ErrMissingType))
}

func TestNormalizeRawOnly(t *testing.T) {
	ev, err := message.Normalize(&protocol.WireMessage{Type: "WebcastMysteryMessage", Binary: []byte{1}}, nil)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestNormalizeChat(t *testing.T) {
	user := prototest.UserSpec{
		ID:       7234567890123456789,
		UniqueID: "alice",
		Pictures: []string{"https://cdn.example/a.jpeg", "https://cdn.example/a.webp"},
	}
	ev, err := message.Normalize(decoded(t, protocol.SchemaChat, prototest.Chat(99, user, "hey")), nil)
	require.NoError(t, err)

	chat, ok := ev.(*message.ChatEvent)
	require.True(t, ok)
	assert.Equal(t, message.KindChat, chat.Kind())
	assert.Equal(t, "hey", chat.Comment)
	assert.Equal(t, "7234567890123456789", chat.UserID, "64-bit ids are decimal strings")
	assert.Equal(t, "alice", chat.UniqueID)
	assert.Empty(t, chat.Nickname)
	assert.Equal(t, "https://cdn.example/a.webp", chat.ProfilePictureURL)
	assert.Equal(t, "99", chat.MsgID)

	data, err := json.Marshal(chat)
	require.NoError(t, err)
	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "alice", flat["uniqueId"])
	assert.Equal(t, "hey", flat["comment"])
	_, hasNickname := flat["nickname"]
	assert.False(t, hasNickname, "absent nickname is omitted")
}

func TestNormalizePictureFallsBackToFirst(t *testing.T) {
	user := prototest.UserSpec{ID: 1, Pictures: []string{"https://cdn.example/a.jpeg", "https://cdn.example/b.png"}}
	ev, err := message.Normalize(decoded(t, protocol.SchemaChat, prototest.Chat(1, user, "x")), nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/a.jpeg", ev.(*message.ChatEvent).ProfilePictureURL)
}

func TestNormalizeGiftEnrichment(t *testing.T) {
	raw := prototest.Gift(prototest.GiftSpec{
		MsgID: 1, GiftID: 5655, RepeatCount: 3, RepeatEnd: true, GiftType: 1,
		GiftName: "Rose", Diamonds: 1, User: prototest.UserSpec{ID: 5, UniqueID: "bob"},
	})
	catalog := message.Catalog{
		{ID: 1, Name: "Other"},
		{ID: 5655, Name: "Rose", DiamondCount: 1},
		{ID: 5655, Name: "Duplicate"},
	}

	t.Run("match", func(t *testing.T) {
		ev, err := message.Normalize(decoded(t, protocol.SchemaGift, raw), catalog)
		require.NoError(t, err)
		gift := ev.(*message.GiftEvent)
		require.NotNil(t, gift.ExtendedGiftInfo)
		assert.Equal(t, "Rose", gift.ExtendedGiftInfo.Name, "first matching entry wins")
		assert.True(t, gift.RepeatEnd)
		assert.True(t, gift.Streakable())
		assert.Equal(t, message.LegacyGift{GiftID: 5655, RepeatCount: 3, RepeatEnd: 1, GiftType: 1}, gift.Gift)
	})

	t.Run("no match", func(t *testing.T) {
		ev, err := message.Normalize(decoded(t, protocol.SchemaGift, raw), message.Catalog{{ID: 2}})
		require.NoError(t, err)
		assert.Nil(t, ev.(*message.GiftEvent).ExtendedGiftInfo)
	})

	t.Run("no catalog", func(t *testing.T) {
		ev, err := message.Normalize(decoded(t, protocol.SchemaGift, raw), nil)
		require.NoError(t, err)
		assert.Nil(t, ev.(*message.GiftEvent).ExtendedGiftInfo)
	})
}

func TestNormalizeControlStreamEnd(t *testing.T) {
	for action, ended := range map[int32]bool{1: false, 3: true, 4: true} {
		ev, err := message.Normalize(decoded(t, protocol.SchemaControl, prototest.Control(action)), nil)
		require.NoError(t, err)
		assert.Equal(t, ended, ev.(*message.ControlEvent).StreamEnded(), "action %d", action)
	}
}

func TestNormalizeSocialKeepsDisplayType(t *testing.T) {
	raw := prototest.Social(4, "pm_main_follow_message_viewer_2", prototest.UserSpec{ID: 3})
	ev, err := message.Normalize(decoded(t, protocol.SchemaSocial, raw), nil)
	require.NoError(t, err)
	assert.Equal(t, "pm_main_follow_message_viewer_2", ev.(*message.SocialEvent).DisplayType)
}

func TestCatalogFind(t *testing.T) {
	c := message.Catalog{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}
	entry, ok := c.Find(2)
	require.True(t, ok)
	assert.Equal(t, "b", entry.Name)
	_, ok = c.Find(3)
	assert.False(t, ok)
}

func TestNormalizeArmies(t *testing.T) {
	bob := prototest.UserSpec{ID: 11, UniqueID: "bob"}
	carol := prototest.UserSpec{ID: 12, UniqueID: "carol"}
	dave := prototest.UserSpec{ID: 13, UniqueID: "dave"}
	raw := prototest.Armies(1,
		prototest.ArmyItem{HostUserID: 7234567890123456789, Groups: []prototest.ArmyGroup{
			{Points: 40, Users: []prototest.UserSpec{bob, carol}},
			{Points: 5, Users: []prototest.UserSpec{dave}},
		}},
		prototest.ArmyItem{HostUserID: 42, Groups: []prototest.ArmyGroup{
			{Points: 17},
			{Points: 3, Users: []prototest.UserSpec{bob}},
		}},
	)

	ev, err := message.Normalize(decoded(t, protocol.SchemaLinkMicArmies, raw), nil)
	require.NoError(t, err)
	armies, ok := ev.(*message.ArmiesEvent)
	require.True(t, ok)
	assert.Equal(t, int32(1), armies.BattleStatus)
	require.Len(t, armies.BattleArmies, 4, "one army per group across every item")

	participants := func(a message.BattleArmy) []string {
		ids := make([]string, 0, len(a.Participants))
		for _, u := range a.Participants {
			ids = append(ids, u.UniqueID)
		}
		return ids
	}

	tests := []struct {
		host   string
		points int32
		users  []string
	}{
		{"7234567890123456789", 40, []string{"bob", "carol"}},
		{"7234567890123456789", 5, []string{"dave"}},
		{"42", 17, []string{}},
		{"42", 3, []string{"bob"}},
	}
	for i, tt := range tests {
		army := armies.BattleArmies[i]
		assert.Equal(t, tt.host, army.HostUserID, "army %d", i)
		assert.Equal(t, tt.points, army.Points, "army %d", i)
		assert.Equal(t, tt.users, participants(army), "army %d", i)
	}
	assert.Equal(t, "11", armies.BattleArmies[0].Participants[0].UserID)

	data, err := json.Marshal(armies)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hostUserId":"7234567890123456789"`)
	assert.Contains(t, string(data), `"participants":[]`)
}

func TestNormalizeArmiesEmpty(t *testing.T) {
	ev, err := message.Normalize(decoded(t, protocol.SchemaLinkMicArmies, prototest.Armies(2)), nil)
	require.NoError(t, err)
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"battleStatus":2,"battleArmies":[]}`, string(data))
}

func TestNormalizeEmptyStringsAreAbsent(t *testing.T) {
	raw := prototest.ChatFrom(5, prototest.BlankUser(77), "anonymous")
	ev, err := message.Normalize(decoded(t, protocol.SchemaChat, raw), nil)
	require.NoError(t, err)

	chat := ev.(*message.ChatEvent)
	assert.Equal(t, "77", chat.UserID)
	assert.Empty(t, chat.UniqueID)
	assert.Empty(t, chat.Nickname)

	data, err := json.Marshal(chat)
	require.NoError(t, err)
	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.NotContains(t, flat, "uniqueId")
	assert.NotContains(t, flat, "nickname")
	assert.Equal(t, "77", flat["userId"])
}

func TestNormalizeHoisting(t *testing.T) {
	erin := prototest.UserSpec{ID: 21, UniqueID: "erin", Nickname: "Erin"}
	frank := prototest.UserSpec{ID: 22, UniqueID: "frank"}

	tests := []struct {
		name   string
		schema string
		raw    []byte
		check  func(t *testing.T, ev message.Event)
	}{
		{
			name:   "envelope takes the first box user",
			schema: protocol.SchemaEnvelope,
			raw:    prototest.Envelope(500, 1, 1700000000123, erin, frank),
			check: func(t *testing.T, ev message.Event) {
				env := ev.(*message.EnvelopeEvent)
				assert.Equal(t, "erin", env.UniqueID)
				assert.Equal(t, "Erin", env.Nickname)
				assert.Equal(t, "21", env.UserID)
				assert.Equal(t, uint32(500), env.Coins)
				assert.Equal(t, uint32(1), env.CanOpen)
				assert.Equal(t, "1700000000123", env.Timestamp)
			},
		},
		{
			name:   "envelope without box users",
			schema: protocol.SchemaEnvelope,
			raw:    prototest.Envelope(10, 0, 0),
			check: func(t *testing.T, ev message.Event) {
				env := ev.(*message.EnvelopeEvent)
				assert.Empty(t, env.UniqueID)
				assert.Empty(t, env.Timestamp)
				assert.Equal(t, uint32(10), env.Coins)
			},
		},
		{
			name:   "question details",
			schema: protocol.SchemaQuestionNew,
			raw:    prototest.Question("when is the next stream?", frank),
			check: func(t *testing.T, ev message.Event) {
				q := ev.(*message.QuestionEvent)
				assert.Equal(t, "when is the next stream?", q.QuestionText)
				assert.Equal(t, "frank", q.UniqueID)
				assert.Equal(t, "22", q.UserID)
			},
		},
		{
			name:   "room user top viewers",
			schema: protocol.SchemaRoomUserSeq,
			raw: prototest.RoomUser(1234,
				prototest.Viewer{Coins: 900, User: erin},
				prototest.Viewer{Coins: 15, User: frank},
			),
			check: func(t *testing.T, ev message.Event) {
				ru := ev.(*message.RoomUserEvent)
				assert.Equal(t, int32(1234), ru.ViewerCount)
				require.Len(t, ru.TopViewers, 2)
				assert.Equal(t, "erin", ru.TopViewers[0].UniqueID)
				assert.Equal(t, uint64(900), ru.TopViewers[0].CoinCount)
				assert.Equal(t, "frank", ru.TopViewers[1].UniqueID)
				assert.Equal(t, uint64(15), ru.TopViewers[1].CoinCount)

				data, err := json.Marshal(ru)
				require.NoError(t, err)
				assert.Contains(t, string(data), `"topViewers":[{"userId":"21"`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := message.Normalize(decoded(t, tt.schema, tt.raw), nil)
			require.NoError(t, err)
			require.NotNil(t, ev)
			tt.check(t, ev)
		})
	}
}
